package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"botrelay/internal/entities"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// OpenAIClient relays chat and embedding calls to the OpenAI API
type OpenAIClient struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
}

func newOpenAIConfig(apiKey, baseURL string) openai.ClientConfig {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return cfg
}

func NewOpenAIClient(cfg AIConfig) *OpenAIClient {
	return &OpenAIClient{
		client:         openai.NewClientWithConfig(newOpenAIConfig(cfg.OpenAIKey, cfg.OpenAIBaseURL)),
		chatModel:      cfg.OpenAIChatModel,
		embeddingModel: cfg.OpenAIEmbeddingModel,
	}
}

func (o *OpenAIClient) Name() string { return ProviderOpenAI }

func (o *OpenAIClient) Chat(ctx context.Context, req entities.ChatRequest) (string, error) {
	model := o.chatModel
	if req.Model != "" && !strings.HasPrefix(req.Model, "gemini") {
		model = req.Model
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == entities.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: float32(req.Temperature),
		User:        req.User,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := o.client.CreateChatCompletion(ctx, chatReq)
	ObserveUpstream(ProviderOpenAI, err)
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(o.embeddingModel),
	})
	ObserveUpstream(ProviderOpenAI, err)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai embeddings: empty response")
	}
	return resp.Data[0].Embedding, nil
}

// ValidateOpenAIKey lists models with the key
func ValidateOpenAIKey(ctx context.Context, apiKey, baseURL string) error {
	client := openai.NewClientWithConfig(newOpenAIConfig(apiKey, baseURL))
	_, err := client.ListModels(ctx)
	ObserveUpstream(ProviderOpenAI, err)
	return err
}

// GeminiClient is the fallback provider
type GeminiClient struct {
	client         *genai.Client
	chatModel      string
	embeddingModel string
	dims           int32
}

func NewGeminiClient(ctx context.Context, cfg AIConfig) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiClient{
		client:         client,
		chatModel:      cfg.GeminiChatModel,
		embeddingModel: cfg.GeminiEmbeddingModel,
		dims:           int32(cfg.EmbeddingDimensions),
	}, nil
}

func (g *GeminiClient) Name() string { return ProviderGemini }

func (g *GeminiClient) Chat(ctx context.Context, req entities.ChatRequest) (string, error) {
	model := g.chatModel
	if strings.HasPrefix(req.Model, "gemini") {
		model = req.Model
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == entities.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	temperature := float32(req.Temperature)
	config := &genai.GenerateContentConfig{Temperature: &temperature}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	result, err := g.client.Models.GenerateContent(ctx, model, contents, config)
	ObserveUpstream(ProviderGemini, err)
	if err != nil {
		return "", fmt.Errorf("gemini chat: %w", err)
	}
	return result.Text(), nil
}

func (g *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	config := &genai.EmbedContentConfig{}
	if g.dims > 0 {
		config.OutputDimensionality = &g.dims
	}
	result, err := g.client.Models.EmbedContent(ctx, g.embeddingModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, config)
	ObserveUpstream(ProviderGemini, err)
	if err != nil {
		return nil, fmt.Errorf("gemini embeddings: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, errors.New("gemini embeddings: empty response")
	}
	return result.Embeddings[0].Values, nil
}

// ValidateGeminiKey lists one page of models with the key
func ValidateGeminiKey(ctx context.Context, apiKey string) error {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return err
	}
	_, err = client.Models.List(ctx, &genai.ListModelsConfig{PageSize: 1})
	ObserveUpstream(ProviderGemini, err)
	return err
}
