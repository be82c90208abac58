package usecases

import (
	"context"
	"testing"

	"botrelay/internal/entities"
	"botrelay/internal/infrastructure"
	"botrelay/internal/interfaces"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestMessageService(m *fakeMessenger, defaultToken string, providers ...interfaces.AIProvider) *MessageService {
	logger := zap.NewNop()
	limiter := infrastructure.NewMessageRateLimiter(100, 100)
	ai := NewAIService(providers, nil, logger)
	return NewMessageService(m, ai, limiter, infrastructure.NewChatGuard(), infrastructure.NewMemoryDeduper(), defaultToken, logger)
}

func TestSend_FallsBackToNextBot(t *testing.T) {
	store := newMemStore()
	broken := store.addBot(entities.Bot{Name: "broken", Token: "111:broken", IsActive: true})
	healthy := store.addBot(entities.Bot{Name: "healthy", Token: "222:healthy", IsActive: true})

	m := newFakeMessenger("111:broken")
	svc := newTestMessageService(m, "")

	result, err := svc.Send(context.Background(), store, entities.SendRequest{BotID: broken.ID, ChatID: "42", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, healthy.ID, result.BotID)
	assert.Equal(t, 2, result.Attempts)

	outbound := store.messagesByDirection(entities.DirectionOutbound)
	require.Len(t, outbound, 1)
	assert.Equal(t, "42", outbound[0].ChatID)
	assert.Equal(t, healthy.ID, *outbound[0].BotID)
}

func TestSend_TriesEachTokenOnce(t *testing.T) {
	store := newMemStore()
	store.addBot(entities.Bot{Name: "a", Token: "111:same", IsActive: true})
	store.addBot(entities.Bot{Name: "b", Token: "111:same", IsActive: true})

	m := newFakeMessenger("111:same")
	svc := newTestMessageService(m, "111:same")

	_, err := svc.Send(context.Background(), store, entities.SendRequest{ChatID: "42", Text: "hi"})
	assert.ErrorIs(t, err, entities.ErrUpstream)
	assert.Equal(t, 1, m.calls)
}

func TestSend_DefaultBotWithoutStore(t *testing.T) {
	m := newFakeMessenger()
	svc := newTestMessageService(m, "999:default")

	result, err := svc.Send(context.Background(), nil, entities.SendRequest{ChatID: "7", Text: "hello"})
	require.NoError(t, err)
	assert.Empty(t, result.BotID)
	require.Equal(t, 1, m.sentCount())
	assert.Equal(t, "999:default", m.sent[0].token)
	assert.Equal(t, int64(7), m.sent[0].chatID)
}

func TestSend_SkipsRateLimitedBot(t *testing.T) {
	store := newMemStore()
	busy := store.addBot(entities.Bot{Name: "busy", Token: "111:busy", IsActive: true})
	idle := store.addBot(entities.Bot{Name: "idle", Token: "222:idle", IsActive: true})

	m := newFakeMessenger()
	logger := zap.NewNop()
	limiter := infrastructure.NewMessageRateLimiter(0.001, 1)
	defer limiter.Close()
	svc := NewMessageService(m, NewAIService(nil, nil, logger), limiter, infrastructure.NewChatGuard(), infrastructure.NewMemoryDeduper(), "", logger)
	ctx := context.Background()

	first, err := svc.Send(ctx, store, entities.SendRequest{BotID: busy.ID, ChatID: "1", Text: "a"})
	require.NoError(t, err)
	assert.Equal(t, busy.ID, first.BotID)

	second, err := svc.Send(ctx, store, entities.SendRequest{BotID: busy.ID, ChatID: "1", Text: "b"})
	require.NoError(t, err)
	assert.Equal(t, idle.ID, second.BotID)
	assert.Equal(t, 1, second.Attempts)

	assert.Equal(t, 2, svc.LimiterStats()["active_bots"])
	assert.Nil(t, NewMessageService(m, nil, nil, nil, nil, "", logger).LimiterStats())
}

func TestSend_Errors(t *testing.T) {
	store := newMemStore()

	tests := []struct {
		name  string
		store interfaces.Store
		req   entities.SendRequest
		want  error
	}{
		{"missing text", store, entities.SendRequest{ChatID: "1"}, entities.ErrInvalidInput},
		{"missing chat", store, entities.SendRequest{Text: "x"}, entities.ErrInvalidInput},
		{"non numeric chat", store, entities.SendRequest{ChatID: "abc", Text: "x"}, entities.ErrInvalidInput},
		{"unknown bot", store, entities.SendRequest{BotID: "00000000-0000-0000-0000-000000000999", ChatID: "1", Text: "x"}, entities.ErrNotFound},
		{"no candidates", nil, entities.SendRequest{ChatID: "1", Text: "x"}, entities.ErrNotConfigured},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestMessageService(newFakeMessenger(), "")
			_, err := svc.Send(context.Background(), tt.store, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func inbound(updateID int64, text string) entities.InboundMessage {
	return entities.InboundMessage{
		UpdateID:          updateID,
		ChatID:            555,
		PlatformUserID:    "555",
		Username:          "alice",
		Text:              text,
		PlatformMessageID: updateID * 10,
	}
}

func TestHandleInbound_AgentReplies(t *testing.T) {
	store := newMemStore()
	agent := store.addAgent(entities.Agent{Name: "support", SystemPrompt: "You sell shoes.", IsActive: true, Model: "gpt-4o-mini"})
	bot := store.addBot(entities.Bot{Name: "shop", Token: "123:shop", AgentID: &agent.ID, IsActive: true})

	m := newFakeMessenger()
	provider := &fakeProvider{name: "openai", reply: "We have sneakers in stock."}
	svc := newTestMessageService(m, "", provider)

	require.NoError(t, svc.HandleInbound(context.Background(), store, bot.ID, inbound(1, "do you have sneakers?")))

	require.Equal(t, 1, m.sentCount())
	assert.Equal(t, "123:shop", m.sent[0].token)
	assert.Equal(t, "We have sneakers in stock.", m.sent[0].text)

	in := store.messagesByDirection(entities.DirectionInbound)
	require.Len(t, in, 1)
	require.NotNil(t, in[0].Sentiment)
	assert.Equal(t, entities.SentimentNeutral, *in[0].Sentiment)
	assert.Len(t, store.messagesByDirection(entities.DirectionOutbound), 1)
	assert.Len(t, store.contacts, 1)

	last := provider.requests[len(provider.requests)-1]
	assert.Contains(t, last.System, "You sell shoes.")
	assert.Equal(t, "gpt-4o-mini", last.Model)
}

func TestHandleInbound_DuplicateUpdateIgnored(t *testing.T) {
	store := newMemStore()
	agent := store.addAgent(entities.Agent{Name: "support", IsActive: true})
	bot := store.addBot(entities.Bot{Name: "shop", Token: "123:shop", AgentID: &agent.ID, IsActive: true})

	m := newFakeMessenger()
	svc := newTestMessageService(m, "", &fakeProvider{name: "openai", reply: "ok"})

	ctx := context.Background()
	require.NoError(t, svc.HandleInbound(ctx, store, bot.ID, inbound(9, "hello")))
	require.NoError(t, svc.HandleInbound(ctx, store, bot.ID, inbound(9, "hello")))

	assert.Equal(t, 1, m.sentCount())
	assert.Len(t, store.messagesByDirection(entities.DirectionInbound), 1)
}

func TestHandleInbound_StartCommandUsesDescription(t *testing.T) {
	store := newMemStore()
	agent := store.addAgent(entities.Agent{Name: "support", Description: "I answer shipping questions.", IsActive: true})
	bot := store.addBot(entities.Bot{Name: "shop", Token: "123:shop", AgentID: &agent.ID, IsActive: true})

	m := newFakeMessenger()
	provider := &fakeProvider{name: "openai", reply: "unused"}
	svc := newTestMessageService(m, "", provider)

	msg := inbound(3, "/start")
	msg.IsCommand = true
	msg.Command = "start"
	require.NoError(t, svc.HandleInbound(context.Background(), store, bot.ID, msg))

	require.Equal(t, 1, m.sentCount())
	assert.Equal(t, "I answer shipping questions.", m.sent[0].text)
	assert.Empty(t, provider.requests)
}

func TestHandleInbound_InactiveBotIgnored(t *testing.T) {
	store := newMemStore()
	bot := store.addBot(entities.Bot{Name: "off", Token: "123:off", IsActive: false})

	m := newFakeMessenger()
	svc := newTestMessageService(m, "", &fakeProvider{name: "openai", reply: "ok"})

	require.NoError(t, svc.HandleInbound(context.Background(), store, bot.ID, inbound(4, "anyone?")))
	assert.Zero(t, m.sentCount())
	assert.Empty(t, store.messages)
}

func TestHandleInbound_ReplyInFlightDropsMessage(t *testing.T) {
	store := newMemStore()
	agent := store.addAgent(entities.Agent{Name: "support", IsActive: true})
	bot := store.addBot(entities.Bot{Name: "shop", Token: "123:shop", AgentID: &agent.ID, IsActive: true})

	m := newFakeMessenger()
	svc := newTestMessageService(m, "", &fakeProvider{name: "openai", reply: "ok"})
	require.True(t, svc.guard.TryAcquire(bot.ID+":555"))

	require.NoError(t, svc.HandleInbound(context.Background(), store, bot.ID, inbound(5, "hello?")))
	assert.Zero(t, m.sentCount())
	assert.Len(t, store.messagesByDirection(entities.DirectionInbound), 1)
}

func TestInboundFromUpdate(t *testing.T) {
	update := tgbotapi.Update{
		UpdateID: 77,
		Message: &tgbotapi.Message{
			MessageID: 12,
			Chat:      &tgbotapi.Chat{ID: -1001},
			From:      &tgbotapi.User{UserName: "bob", FirstName: "Bob"},
			Text:      "/start",
			Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}},
		},
	}

	in, ok := InboundFromUpdate(update)
	require.True(t, ok)
	assert.Equal(t, int64(77), in.UpdateID)
	assert.Equal(t, "-1001", in.PlatformUserID)
	assert.Equal(t, "bob", in.Username)
	assert.True(t, in.IsCommand)
	assert.Equal(t, "start", in.Command)

	_, ok = InboundFromUpdate(tgbotapi.Update{UpdateID: 78})
	assert.False(t, ok)
}
