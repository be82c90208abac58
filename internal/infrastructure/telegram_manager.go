package infrastructure

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TelegramBotManager keeps one Bot API client per bot token
type TelegramBotManager struct {
	bots     map[string]*tgbotapi.BotAPI
	mu       sync.RWMutex
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewTelegramBotManager creates a manager. endpoint follows tgbotapi.APIEndpoint ("…/bot%s/%s").
func NewTelegramBotManager(endpoint string, logger *zap.Logger) *TelegramBotManager {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	return &TelegramBotManager{
		bots:     make(map[string]*tgbotapi.BotAPI),
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

// getBot returns the cached client for token, creating it (and calling getMe) on first use
func (m *TelegramBotManager) getBot(token string) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, fmt.Errorf("empty bot token")
	}

	m.mu.RLock()
	bot, ok := m.bots[token]
	m.mu.RUnlock()
	if ok {
		return bot, nil
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, m.endpoint, m.client)
	ObserveUpstream("telegram", err)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.bots[token]; ok {
		return existing, nil
	}
	m.bots[token] = bot
	return bot, nil
}

// ValidateToken checks a token against getMe and returns the bot username
func (m *TelegramBotManager) ValidateToken(ctx context.Context, token string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	bot, err := m.getBot(token)
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	return bot.Self.UserName, nil
}

// SendMessage sends plain text to a chat and returns the platform message id
func (m *TelegramBotManager) SendMessage(ctx context.Context, token string, chatID int64, text string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	bot, err := m.getBot(token)
	if err != nil {
		return 0, err
	}

	sent, err := bot.Send(tgbotapi.NewMessage(chatID, text))
	ObserveUpstream("telegram", err)
	if err != nil {
		return 0, fmt.Errorf("send to chat %d: %w", chatID, err)
	}
	return int64(sent.MessageID), nil
}

// SetWebhook points the bot's updates at url
func (m *TelegramBotManager) SetWebhook(ctx context.Context, token, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bot, err := m.getBot(token)
	if err != nil {
		return err
	}

	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	_, err = bot.Request(wh)
	ObserveUpstream("telegram", err)
	if err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	m.logger.Info("telegram webhook registered", zap.String("bot", bot.Self.UserName), zap.String("url", url))
	return nil
}

// DeleteWebhook removes the bot's webhook
func (m *TelegramBotManager) DeleteWebhook(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bot, err := m.getBot(token)
	if err != nil {
		return err
	}
	_, err = bot.Request(tgbotapi.DeleteWebhookConfig{})
	ObserveUpstream("telegram", err)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

// Forget drops the cached client for a token (bot deleted or token rotated)
func (m *TelegramBotManager) Forget(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bots, token)
}
