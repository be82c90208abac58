package usecases

import (
	"context"
	"errors"
	"testing"

	"botrelay/internal/entities"
	"botrelay/internal/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestChat_FallsBackToSecondProvider(t *testing.T) {
	primary := &fakeProvider{name: "openai", err: errors.New("429 rate limited")}
	secondary := &fakeProvider{name: "gemini", reply: "hello from gemini"}
	svc := NewAIService([]interfaces.AIProvider{primary, secondary}, nil, zap.NewNop())

	reply, provider, err := svc.Chat(context.Background(), entities.ChatRequest{
		Messages: []entities.ChatMessage{{Role: entities.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello from gemini", reply)
	assert.Equal(t, "gemini", provider)
	assert.Len(t, primary.requests, 1)
}

func TestChat_Errors(t *testing.T) {
	_, _, err := NewAIService(nil, nil, zap.NewNop()).Chat(context.Background(), entities.ChatRequest{})
	assert.ErrorIs(t, err, entities.ErrNotConfigured)

	failing := &fakeProvider{name: "openai", err: errors.New("boom")}
	_, _, err = NewAIService([]interfaces.AIProvider{failing}, nil, zap.NewNop()).Chat(context.Background(), entities.ChatRequest{})
	assert.ErrorIs(t, err, entities.ErrUpstream)
}

func TestEmbed_RequiresText(t *testing.T) {
	svc := NewAIService([]interfaces.AIProvider{&fakeProvider{name: "openai"}}, nil, zap.NewNop())
	_, _, err := svc.Embed(context.Background(), "   ")
	assert.ErrorIs(t, err, entities.ErrInvalidInput)

	vec, provider, err := svc.Embed(context.Background(), "shipping policy")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
	assert.Equal(t, "openai", provider)
}

func TestParseSentiment(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		sentiment string
		score     float64
	}{
		{"plain json", `{"sentiment":"positive","score":0.8}`, entities.SentimentPositive, 0.8},
		{"fenced", "```json\n{\"sentiment\": \"Negative\", \"score\": -0.4}\n```", entities.SentimentNegative, -0.4},
		{"clamped", `{"sentiment":"positive","score":3}`, entities.SentimentPositive, 1},
		{"unknown label", `{"sentiment":"ecstatic","score":0.9}`, entities.SentimentNeutral, 0},
		{"not json", "I think it is positive", entities.SentimentNeutral, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSentiment(tt.raw)
			assert.Equal(t, tt.sentiment, got.Sentiment)
			assert.InDelta(t, tt.score, got.Score, 1e-9)
		})
	}
}

func TestParseAnalysis(t *testing.T) {
	got := ParseAnalysis(`Here you go: {"summary":"Customer asked about refunds","sentiment":"negative","score":-2,"topics":["refunds"]}`)
	assert.Equal(t, "Customer asked about refunds", got.Summary)
	assert.Equal(t, entities.SentimentNegative, got.Sentiment)
	assert.Equal(t, -1.0, got.Score)
	assert.Equal(t, []string{"refunds"}, got.Topics)

	got = ParseAnalysis("The chat went fine.")
	assert.Equal(t, "The chat went fine.", got.Summary)
	assert.Equal(t, entities.SentimentNeutral, got.Sentiment)
	assert.Empty(t, got.Topics)
}

func TestReply_TrimsHistoryAndAddsKnowledge(t *testing.T) {
	store := newMemStore()
	_, _ = store.Knowledge().Add(context.Background(), &entities.Document{AgentID: "a1", Content: "Returns are free within 30 days."})

	provider := &fakeProvider{name: "openai", reply: "Returns are free."}
	svc := NewAIService([]interfaces.AIProvider{provider}, nil, zap.NewNop())

	history := make([]entities.ChatMessage, 15)
	for i := range history {
		history[i] = entities.ChatMessage{Role: entities.RoleUser, Content: "earlier"}
	}
	reply, _, err := svc.Reply(context.Background(), ReplyInput{
		Agent:     &entities.Agent{ID: "a1", SystemPrompt: "Be brief.", Temperature: 0.2},
		Knowledge: store.Knowledge(),
		History:   history,
		Message:   "can I return this?",
	})
	require.NoError(t, err)
	assert.Equal(t, "Returns are free.", reply)

	req := provider.requests[0]
	assert.Len(t, req.Messages, HistoryLimit+1)
	assert.Equal(t, "can I return this?", req.Messages[HistoryLimit].Content)
	assert.Contains(t, req.System, "Be brief.")
	assert.Contains(t, req.System, "Returns are free within 30 days.")
	assert.Equal(t, 0.2, req.Temperature)
}

func TestValidateKey(t *testing.T) {
	var got string
	svc := NewAIService(nil, map[string]KeyValidator{
		"openai": func(_ context.Context, key string) error {
			got = key
			return nil
		},
	}, zap.NewNop())

	require.NoError(t, svc.ValidateKey(context.Background(), "OpenAI", "sk-test"))
	assert.Equal(t, "sk-test", got)
	assert.ErrorIs(t, svc.ValidateKey(context.Background(), "anthropic", "k"), entities.ErrInvalidInput)
	assert.ErrorIs(t, svc.ValidateKey(context.Background(), "openai", ""), entities.ErrInvalidInput)
}
