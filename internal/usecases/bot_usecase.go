package usecases

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"botrelay/internal/entities"
	"botrelay/internal/interfaces"

	"go.uber.org/zap"
)

// BotInput is the create/update payload. Nil fields are left unchanged on update.
type BotInput struct {
	Name     *string `json:"name"`
	Token    *string `json:"token"`
	AgentID  *string `json:"agent_id"`
	IsActive *bool   `json:"is_active"`
}

// BotUsecase validates bot tokens against the platform and manages webhooks
type BotUsecase struct {
	messenger     interfaces.Messenger
	publicBaseURL string
	webhookSecret string
	logger        *zap.Logger
}

func NewBotUsecase(messenger interfaces.Messenger, publicBaseURL, webhookSecret string, logger *zap.Logger) *BotUsecase {
	return &BotUsecase{
		messenger:     messenger,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

func (u *BotUsecase) validateToken(ctx context.Context, token string) (string, error) {
	username, err := u.messenger.ValidateToken(ctx, token)
	if err != nil {
		u.logger.Info("bot token rejected", zap.String("token", entities.MaskToken(token)), zap.Error(err))
		return "", fmt.Errorf("invalid bot token: %w", entities.ErrInvalidInput)
	}
	return username, nil
}

func (u *BotUsecase) Create(ctx context.Context, store interfaces.Store, in BotInput) (*entities.Bot, error) {
	name, token := trimmed(in.Name), trimmed(in.Token)
	if name == "" || token == "" {
		return nil, fmt.Errorf("name and token are required: %w", entities.ErrInvalidInput)
	}

	username, err := u.validateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	bot := &entities.Bot{
		Name:     name,
		Platform: entities.PlatformTelegram,
		Token:    token,
		Username: username,
		AgentID:  optional(trimmed(in.AgentID)),
		IsActive: true,
	}
	if in.IsActive != nil {
		bot.IsActive = *in.IsActive
	}
	return store.Bots().Create(ctx, bot)
}

// Update applies the provided fields; a changed token is validated again
func (u *BotUsecase) Update(ctx context.Context, store interfaces.Store, id string, in BotInput) (*entities.Bot, error) {
	current, err := store.Bots().Get(ctx, id)
	if err != nil {
		return nil, err
	}

	patch := map[string]interface{}{}
	if in.Name != nil {
		name := trimmed(in.Name)
		if name == "" {
			return nil, fmt.Errorf("name cannot be empty: %w", entities.ErrInvalidInput)
		}
		patch["name"] = name
	}
	if in.Token != nil {
		token := trimmed(in.Token)
		if token == "" {
			return nil, fmt.Errorf("token cannot be empty: %w", entities.ErrInvalidInput)
		}
		if token != current.Token {
			username, err := u.validateToken(ctx, token)
			if err != nil {
				return nil, err
			}
			patch["token"] = token
			patch["username"] = username
		}
	}
	if in.AgentID != nil {
		patch["agent_id"] = optional(trimmed(in.AgentID))
	}
	if in.IsActive != nil {
		patch["is_active"] = *in.IsActive
	}
	if len(patch) == 0 {
		return current, nil
	}
	updated, err := store.Bots().Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	if _, rotated := patch["token"]; rotated {
		u.forget(current.Token)
	}
	return updated, nil
}

// forget drops the messenger's cached client for a token that is no longer in use
func (u *BotUsecase) forget(token string) {
	if cache, ok := u.messenger.(interfaces.ClientCache); ok {
		cache.Forget(token)
	}
}

// Delete removes the bot through the tenant store first and the admin store second.
// It succeeds if either removed the row, reports ErrNotFound when neither did and
// fails only when both paths errored.
func (u *BotUsecase) Delete(ctx context.Context, tenant interfaces.Store, admin func() (interfaces.Store, error), id string) error {
	var bot *entities.Bot
	removed := false
	var tenantErr, adminErr error

	if tenant != nil {
		bot, _ = tenant.Bots().Get(ctx, id)
		removed, tenantErr = tenant.Bots().Delete(ctx, id)
		if tenantErr != nil {
			u.logger.Warn("tenant delete failed, trying admin client", zap.String("bot_id", id), zap.Error(tenantErr))
		}
	} else {
		tenantErr = entities.ErrNotConfigured
	}

	if !removed {
		adminStore, err := admin()
		if err != nil {
			adminErr = err
		} else {
			if bot == nil {
				bot, _ = adminStore.Bots().Get(ctx, id)
			}
			removed, adminErr = adminStore.Bots().Delete(ctx, id)
		}
	}

	if removed {
		if bot != nil {
			if bot.WebhookURL != "" {
				if err := u.messenger.DeleteWebhook(ctx, bot.Token); err != nil {
					u.logger.Warn("webhook cleanup failed", zap.String("bot_id", id), zap.Error(err))
				}
			}
			u.forget(bot.Token)
		}
		return nil
	}
	if tenantErr != nil && adminErr != nil {
		if errors.Is(tenantErr, entities.ErrNotConfigured) && errors.Is(adminErr, entities.ErrNotConfigured) {
			return fmt.Errorf("no database to delete bot %s: %w", id, entities.ErrNotConfigured)
		}
		return fmt.Errorf("delete bot %s failed on both clients: %v; %v", id, tenantErr, adminErr)
	}
	return fmt.Errorf("bot %s: %w", id, entities.ErrNotFound)
}

// WebhookURL is the public callback Telegram posts updates for botID to
func (u *BotUsecase) WebhookURL(botID string) (string, error) {
	if u.publicBaseURL == "" {
		return "", fmt.Errorf("PUBLIC_BASE_URL not set: %w", entities.ErrNotConfigured)
	}
	return u.publicBaseURL + "/api/webhook/telegram/" + url.PathEscape(botID), nil
}

func (u *BotUsecase) RegisterWebhook(ctx context.Context, store interfaces.Store, id string) (*entities.Bot, error) {
	bot, err := store.Bots().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	hookURL, err := u.WebhookURL(bot.ID)
	if err != nil {
		return nil, err
	}

	registered := hookURL
	if u.webhookSecret != "" {
		registered += "?secret=" + url.QueryEscape(u.webhookSecret)
	}
	if err := u.messenger.SetWebhook(ctx, bot.Token, registered); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrUpstream, err)
	}
	return store.Bots().Update(ctx, id, map[string]interface{}{"webhook_url": hookURL})
}

func (u *BotUsecase) UnregisterWebhook(ctx context.Context, store interfaces.Store, id string) (*entities.Bot, error) {
	bot, err := store.Bots().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := u.messenger.DeleteWebhook(ctx, bot.Token); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrUpstream, err)
	}
	return store.Bots().Update(ctx, id, map[string]interface{}{"webhook_url": ""})
}

// DeepLink is the t.me link that opens a chat with the bot
func DeepLink(bot *entities.Bot) (string, error) {
	if bot.Username == "" {
		return "", fmt.Errorf("bot has no username: %w", entities.ErrNotFound)
	}
	return "https://t.me/" + bot.Username, nil
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
