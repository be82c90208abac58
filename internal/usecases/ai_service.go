package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"botrelay/internal/entities"
	"botrelay/internal/interfaces"

	"go.uber.org/zap"
)

const (
	HistoryLimit        = 10
	knowledgeMatchCount = 3
	defaultTemperature  = 0.7
	defaultSystemPrompt = "You are a helpful assistant. Answer clearly and concisely."
)

const sentimentPrompt = `Classify the sentiment of the user's message.
Respond only with a JSON object: {"sentiment": "positive" | "neutral" | "negative", "score": number from -1 to 1}.`

const analysisPrompt = `You analyse chat conversations between a customer and an assistant.
Respond only with a JSON object: {"summary": string, "sentiment": "positive" | "neutral" | "negative", "score": number from -1 to 1, "topics": [string]}.`

// KeyValidator checks an API key against its provider
type KeyValidator func(ctx context.Context, apiKey string) error

// AIService relays requests to the configured providers in order, falling back on error
type AIService struct {
	providers  []interfaces.AIProvider
	validators map[string]KeyValidator
	logger     *zap.Logger
}

func NewAIService(providers []interfaces.AIProvider, validators map[string]KeyValidator, logger *zap.Logger) *AIService {
	return &AIService{
		providers:  providers,
		validators: validators,
		logger:     logger,
	}
}

// Configured reports whether at least one provider is available
func (s *AIService) Configured() bool {
	return len(s.providers) > 0
}

// Providers lists the configured provider names in fallback order
func (s *AIService) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for _, p := range s.providers {
		names = append(names, p.Name())
	}
	return names
}

// Chat returns the first successful completion and the provider that produced it
func (s *AIService) Chat(ctx context.Context, req entities.ChatRequest) (string, string, error) {
	if !s.Configured() {
		return "", "", fmt.Errorf("no AI provider: %w", entities.ErrNotConfigured)
	}
	var lastErr error
	for _, p := range s.providers {
		reply, err := p.Chat(ctx, req)
		if err == nil {
			return reply, p.Name(), nil
		}
		s.logger.Warn("AI chat failed, trying next provider", zap.String("provider", p.Name()), zap.Error(err))
		lastErr = err
	}
	return "", "", fmt.Errorf("%w: %v", entities.ErrUpstream, lastErr)
}

// Embed returns an embedding from the first provider that succeeds
func (s *AIService) Embed(ctx context.Context, text string) ([]float32, string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, "", fmt.Errorf("text is required: %w", entities.ErrInvalidInput)
	}
	if !s.Configured() {
		return nil, "", fmt.Errorf("no AI provider: %w", entities.ErrNotConfigured)
	}
	var lastErr error
	for _, p := range s.providers {
		vec, err := p.Embed(ctx, text)
		if err == nil {
			return vec, p.Name(), nil
		}
		s.logger.Warn("embedding failed, trying next provider", zap.String("provider", p.Name()), zap.Error(err))
		lastErr = err
	}
	return nil, "", fmt.Errorf("%w: %v", entities.ErrUpstream, lastErr)
}

// Sentiment classifies text. Output the model gets wrong degrades to neutral.
func (s *AIService) Sentiment(ctx context.Context, text string) (*entities.Sentiment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is required: %w", entities.ErrInvalidInput)
	}
	raw, provider, err := s.Chat(ctx, entities.ChatRequest{
		System:   sentimentPrompt,
		Messages: []entities.ChatMessage{{Role: entities.RoleUser, Content: text}},
		JSON:     true,
	})
	if err != nil {
		return nil, err
	}
	result := ParseSentiment(raw)
	result.Provider = provider
	return &result, nil
}

// Analyze summarises a conversation and rates its overall sentiment
func (s *AIService) Analyze(ctx context.Context, messages []entities.ChatMessage) (*entities.ConversationAnalysis, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("messages are required: %w", entities.ErrInvalidInput)
	}

	var transcript strings.Builder
	for _, m := range messages {
		role := m.Role
		if role == "" {
			role = entities.RoleUser
		}
		transcript.WriteString(role)
		transcript.WriteString(": ")
		transcript.WriteString(m.Content)
		transcript.WriteString("\n")
	}

	raw, provider, err := s.Chat(ctx, entities.ChatRequest{
		System:   analysisPrompt,
		Messages: []entities.ChatMessage{{Role: entities.RoleUser, Content: transcript.String()}},
		JSON:     true,
	})
	if err != nil {
		return nil, err
	}

	analysis := ParseAnalysis(raw)
	analysis.Provider = provider
	return &analysis, nil
}

// ReplyInput is what an agent needs to answer one message
type ReplyInput struct {
	Agent     *entities.Agent
	Knowledge interfaces.KnowledgeRepository
	History   []entities.ChatMessage // oldest first
	Message   string
	User      string
}

// Reply answers a message as the agent, with retrieved knowledge and recent history
func (s *AIService) Reply(ctx context.Context, in ReplyInput) (string, string, error) {
	if strings.TrimSpace(in.Message) == "" {
		return "", "", fmt.Errorf("message is required: %w", entities.ErrInvalidInput)
	}

	var knowledge []entities.DocumentMatch
	if in.Agent != nil && in.Knowledge != nil {
		knowledge = s.retrieve(ctx, in.Agent.ID, in.Knowledge, in.Message)
	}

	history := in.History
	if len(history) > HistoryLimit {
		history = history[len(history)-HistoryLimit:]
	}
	messages := make([]entities.ChatMessage, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, entities.ChatMessage{Role: entities.RoleUser, Content: in.Message})

	req := entities.ChatRequest{
		System:      BuildSystemPrompt(in.Agent, knowledge),
		Messages:    messages,
		Temperature: defaultTemperature,
		User:        in.User,
	}
	if in.Agent != nil {
		req.Model = in.Agent.Model
		req.Temperature = in.Agent.Temperature
	}
	return s.Chat(ctx, req)
}

// retrieve is best effort: a failed lookup answers without knowledge
func (s *AIService) retrieve(ctx context.Context, agentID string, repo interfaces.KnowledgeRepository, query string) []entities.DocumentMatch {
	vec, _, err := s.Embed(ctx, query)
	if err != nil {
		s.logger.Debug("knowledge retrieval skipped", zap.String("agent_id", agentID), zap.Error(err))
		return nil
	}
	matches, err := repo.Search(ctx, agentID, vec, knowledgeMatchCount)
	if err != nil {
		s.logger.Warn("knowledge search failed", zap.String("agent_id", agentID), zap.Error(err))
		return nil
	}
	return matches
}

// ValidateKey checks an API key for the named provider
func (s *AIService) ValidateKey(ctx context.Context, provider, apiKey string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	validate, ok := s.validators[provider]
	if !ok {
		return fmt.Errorf("unsupported provider %q: %w", provider, entities.ErrInvalidInput)
	}
	if apiKey == "" {
		return fmt.Errorf("api_key is required: %w", entities.ErrInvalidInput)
	}
	return validate(ctx, apiKey)
}

// BuildSystemPrompt combines the agent prompt with retrieved knowledge
func BuildSystemPrompt(agent *entities.Agent, knowledge []entities.DocumentMatch) string {
	prompt := defaultSystemPrompt
	if agent != nil && strings.TrimSpace(agent.SystemPrompt) != "" {
		prompt = agent.SystemPrompt
	}
	if len(knowledge) == 0 {
		return prompt
	}

	var sb strings.Builder
	sb.WriteString(prompt)
	sb.WriteString("\n\nUse the following knowledge when it is relevant:\n")
	for _, k := range knowledge {
		sb.WriteString("- ")
		sb.WriteString(strings.TrimSpace(k.Content))
		sb.WriteString("\n")
	}
	return sb.String()
}

// ParseSentiment reads the model's JSON answer. Anything unusable becomes neutral 0.
func ParseSentiment(raw string) entities.Sentiment {
	var out struct {
		Sentiment string  `json:"sentiment"`
		Score     float64 `json:"score"`
	}
	if err := decodeJSONObject(raw, &out); err != nil {
		return entities.Sentiment{Sentiment: entities.SentimentNeutral}
	}
	label := normalizeSentiment(out.Sentiment)
	if label == "" {
		return entities.Sentiment{Sentiment: entities.SentimentNeutral}
	}
	return entities.Sentiment{Sentiment: label, Score: clampScore(out.Score)}
}

// ParseAnalysis reads the analysis JSON, keeping raw text as the summary when it is not JSON
func ParseAnalysis(raw string) entities.ConversationAnalysis {
	var out entities.ConversationAnalysis
	if err := decodeJSONObject(raw, &out); err != nil {
		return entities.ConversationAnalysis{
			Summary:   strings.TrimSpace(raw),
			Sentiment: entities.SentimentNeutral,
			Topics:    []string{},
		}
	}
	out.Sentiment = normalizeSentiment(out.Sentiment)
	if out.Sentiment == "" {
		out.Sentiment = entities.SentimentNeutral
		out.Score = 0
	}
	out.Score = clampScore(out.Score)
	if out.Topics == nil {
		out.Topics = []string{}
	}
	return out
}

// decodeJSONObject tolerates code fences and prose around the object
func decodeJSONObject(raw string, out interface{}) error {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return errors.New("no JSON object in response")
	}
	return json.Unmarshal([]byte(raw[start:end+1]), out)
}

func normalizeSentiment(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case entities.SentimentPositive:
		return entities.SentimentPositive
	case entities.SentimentNegative:
		return entities.SentimentNegative
	case entities.SentimentNeutral:
		return entities.SentimentNeutral
	}
	return ""
}

func clampScore(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
