package usecases

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"botrelay/internal/entities"
	"botrelay/internal/infrastructure"
	"botrelay/internal/interfaces"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const (
	defaultBotKey  = "default"
	defaultWelcome = "Hello! Send me a message and I will do my best to help."
)

var errRateLimited = errors.New("bot is over its outbound rate")

// MessageService sends outbound messages and handles inbound webhook updates
type MessageService struct {
	messenger    interfaces.Messenger
	ai           *AIService
	limiter      *infrastructure.MessageRateLimiter
	guard        *infrastructure.ChatGuard
	dedup        interfaces.Deduper
	defaultToken string
	logger       *zap.Logger
}

func NewMessageService(
	messenger interfaces.Messenger,
	ai *AIService,
	limiter *infrastructure.MessageRateLimiter,
	guard *infrastructure.ChatGuard,
	dedup interfaces.Deduper,
	defaultToken string,
	logger *zap.Logger,
) *MessageService {
	return &MessageService{
		messenger:    messenger,
		ai:           ai,
		limiter:      limiter,
		guard:        guard,
		dedup:        dedup,
		defaultToken: defaultToken,
		logger:       logger,
	}
}

// LimiterStats describes the outbound limiter, or nil when sends are not limited
func (s *MessageService) LimiterStats() map[string]interface{} {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Stats()
}

// HasDefaultBot reports whether TELEGRAM_BOT_TOKEN is configured
func (s *MessageService) HasDefaultBot() bool {
	return s.defaultToken != ""
}

type sendCandidate struct {
	botID string // empty for the default bot
	token string
}

func (c sendCandidate) limiterKey() string {
	if c.botID == "" {
		return defaultBotKey
	}
	return c.botID
}

// candidates lists the bots to try: the requested one, every other active
// bot, then the default token. A token appears at most once.
func (s *MessageService) candidates(ctx context.Context, store interfaces.Store, requestedID string) ([]sendCandidate, error) {
	var out []sendCandidate
	seen := make(map[string]bool)
	add := func(c sendCandidate) {
		if c.token == "" || seen[c.token] {
			return
		}
		seen[c.token] = true
		out = append(out, c)
	}

	if requestedID != "" {
		if store == nil {
			return nil, fmt.Errorf("bot %s: %w", requestedID, entities.ErrNotFound)
		}
		bot, err := store.Bots().Get(ctx, requestedID)
		if err != nil {
			return nil, err
		}
		add(sendCandidate{botID: bot.ID, token: bot.Token})
	}

	if store != nil {
		bots, err := store.Bots().List(ctx, true)
		if err != nil {
			s.logger.Warn("could not list fallback bots", zap.Error(err))
		}
		for _, b := range bots {
			add(sendCandidate{botID: b.ID, token: b.Token})
		}
	}

	add(sendCandidate{token: s.defaultToken})
	return out, nil
}

// Send delivers text through the first bot that accepts it and records the outbound message.
// store may be nil when no database is configured; only the default bot is tried then.
func (s *MessageService) Send(ctx context.Context, store interfaces.Store, req entities.SendRequest) (*entities.SendResult, error) {
	text := strings.TrimSpace(req.Text)
	if req.ChatID == "" || text == "" {
		return nil, fmt.Errorf("chat_id and text are required: %w", entities.ErrInvalidInput)
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(req.ChatID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("chat_id must be numeric: %w", entities.ErrInvalidInput)
	}

	candidates, err := s.candidates(ctx, store, req.BotID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no bot available to send: %w", entities.ErrNotConfigured)
	}

	var lastErr error
	attempts := 0
	for _, c := range candidates {
		if s.limiter != nil && !s.limiter.Allow(c.limiterKey()) {
			s.logger.Debug("skipping rate limited bot",
				zap.String("bot_id", c.limiterKey()),
				zap.Duration("retry_in", s.limiter.WaitTime(c.limiterKey())),
			)
			lastErr = errRateLimited
			continue
		}
		attempts++
		messageID, err := s.messenger.SendMessage(ctx, c.token, chatID, text)
		if err != nil {
			s.logger.Warn("send failed, trying next bot", zap.String("bot_id", c.limiterKey()), zap.Error(err))
			lastErr = err
			continue
		}

		s.recordOutbound(ctx, store, c.botID, nil, req.ChatID, text, messageID)
		return &entities.SendResult{BotID: c.botID, MessageID: messageID, Attempts: attempts}, nil
	}

	return nil, fmt.Errorf("all %d bots failed: %w: %v", len(candidates), entities.ErrUpstream, lastErr)
}

func (s *MessageService) recordOutbound(ctx context.Context, store interfaces.Store, botID string, contactID *string, chatID, text string, messageID int64) {
	if store == nil {
		return
	}
	msg := &entities.Message{
		BotID:             optional(botID),
		ContactID:         contactID,
		ChatID:            chatID,
		Direction:         entities.DirectionOutbound,
		Content:           text,
		PlatformMessageID: &messageID,
	}
	if _, err := store.Messages().Create(ctx, msg); err != nil {
		s.logger.Error("failed to record outbound message", zap.String("chat_id", chatID), zap.Error(err))
	}
}

// InboundFromUpdate extracts the text message of a Telegram update.
// ok is false for updates that carry no text message.
func InboundFromUpdate(update tgbotapi.Update) (entities.InboundMessage, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || strings.TrimSpace(msg.Text) == "" {
		return entities.InboundMessage{}, false
	}

	in := entities.InboundMessage{
		UpdateID:          int64(update.UpdateID),
		ChatID:            msg.Chat.ID,
		PlatformUserID:    strconv.FormatInt(msg.Chat.ID, 10),
		Text:              msg.Text,
		PlatformMessageID: int64(msg.MessageID),
		IsCommand:         msg.IsCommand(),
	}
	if in.IsCommand {
		in.Command = msg.Command()
	}
	if msg.From != nil {
		in.Username = msg.From.UserName
		in.FirstName = msg.From.FirstName
		in.LastName = msg.From.LastName
	}
	return in, true
}

// HandleInbound processes one webhook message for botID ("" is the default bot).
// Duplicate updates are dropped, the contact and message are stored, and the
// bot's agent answers when one is attached.
func (s *MessageService) HandleInbound(ctx context.Context, store interfaces.Store, botID string, in entities.InboundMessage) error {
	key := botID
	if key == "" {
		key = defaultBotKey
	}
	if s.dedup != nil {
		seen, err := s.dedup.Seen(ctx, fmt.Sprintf("%s:%d", key, in.UpdateID))
		if err != nil {
			s.logger.Warn("dedup check failed, processing anyway", zap.Error(err))
		} else if seen {
			s.logger.Debug("duplicate update ignored", zap.String("bot_id", key), zap.Int64("update_id", in.UpdateID))
			return nil
		}
	}

	var bot *entities.Bot
	token := s.defaultToken
	if botID != "" {
		b, err := store.Bots().Get(ctx, botID)
		if err != nil {
			return fmt.Errorf("load bot %s: %w", botID, err)
		}
		if !b.IsActive {
			s.logger.Info("update for inactive bot ignored", zap.String("bot_id", botID))
			return nil
		}
		bot, token = b, b.Token
	}

	contact, err := store.Contacts().Upsert(ctx, &entities.Contact{
		BotID:          optional(botID),
		PlatformUserID: in.PlatformUserID,
		Username:       in.Username,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
	})
	var contactID *string
	if err != nil {
		s.logger.Error("failed to upsert contact", zap.String("chat_id", in.PlatformUserID), zap.Error(err))
	} else {
		contactID = &contact.ID
	}

	chatID := strconv.FormatInt(in.ChatID, 10)
	inbound := &entities.Message{
		BotID:             optional(botID),
		ContactID:         contactID,
		ChatID:            chatID,
		Direction:         entities.DirectionInbound,
		Content:           in.Text,
		PlatformMessageID: &in.PlatformMessageID,
	}
	if !in.IsCommand && s.ai.Configured() {
		if sentiment, err := s.ai.Sentiment(ctx, in.Text); err == nil {
			inbound.Sentiment = &sentiment.Sentiment
			inbound.SentimentScore = &sentiment.Score
		} else {
			s.logger.Debug("sentiment tagging skipped", zap.Error(err))
		}
	}
	saved, err := store.Messages().Create(ctx, inbound)
	if err != nil {
		s.logger.Error("failed to record inbound message", zap.String("chat_id", chatID), zap.Error(err))
	}

	if token == "" {
		return nil
	}

	agent := s.agentFor(ctx, store, bot)

	if in.IsCommand && in.Command == "start" {
		welcome := defaultWelcome
		if agent != nil && strings.TrimSpace(agent.Description) != "" {
			welcome = agent.Description
		}
		return s.reply(ctx, store, botID, contactID, token, in.ChatID, welcome)
	}

	if agent == nil || !s.ai.Configured() {
		return nil
	}

	guardKey := key + ":" + chatID
	if !s.guard.TryAcquire(guardKey) {
		s.logger.Info("reply already in flight, message dropped", zap.String("chat", guardKey))
		return nil
	}
	defer s.guard.Release(guardKey)

	history := s.history(ctx, store, botID, chatID, saved)
	answer, provider, err := s.ai.Reply(ctx, ReplyInput{
		Agent:     agent,
		Knowledge: store.Knowledge(),
		History:   history,
		Message:   in.Text,
		User:      in.PlatformUserID,
	})
	if err != nil {
		return fmt.Errorf("generate reply: %w", err)
	}
	s.logger.Debug("agent reply generated", zap.String("agent_id", agent.ID), zap.String("provider", provider))

	return s.reply(ctx, store, botID, contactID, token, in.ChatID, answer)
}

func (s *MessageService) reply(ctx context.Context, store interfaces.Store, botID string, contactID *string, token string, chatID int64, text string) error {
	messageID, err := s.messenger.SendMessage(ctx, token, chatID, text)
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	s.recordOutbound(ctx, store, botID, contactID, strconv.FormatInt(chatID, 10), text, messageID)
	return nil
}

// agentFor returns the bot's active agent or nil
func (s *MessageService) agentFor(ctx context.Context, store interfaces.Store, bot *entities.Bot) *entities.Agent {
	if bot == nil || bot.AgentID == nil || *bot.AgentID == "" {
		return nil
	}
	agent, err := store.Agents().Get(ctx, *bot.AgentID)
	if err != nil {
		s.logger.Warn("agent lookup failed", zap.String("agent_id", *bot.AgentID), zap.Error(err))
		return nil
	}
	if !agent.IsActive {
		return nil
	}
	return agent
}

// history returns the chat's previous messages oldest first, without current
func (s *MessageService) history(ctx context.Context, store interfaces.Store, botID, chatID string, current *entities.Message) []entities.ChatMessage {
	msgs, err := store.Messages().List(ctx, entities.MessageFilter{BotID: botID, ChatID: chatID, Limit: HistoryLimit + 1})
	if err != nil {
		s.logger.Warn("history lookup failed", zap.String("chat_id", chatID), zap.Error(err))
		return nil
	}

	out := make([]entities.ChatMessage, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if current != nil && m.ID == current.ID {
			continue
		}
		role := entities.RoleUser
		if m.Direction == entities.DirectionOutbound {
			role = entities.RoleAssistant
		}
		out = append(out, entities.ChatMessage{Role: role, Content: m.Content})
	}
	if len(out) > HistoryLimit {
		out = out[len(out)-HistoryLimit:]
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
