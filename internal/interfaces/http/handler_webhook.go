package http

import (
	"crypto/subtle"
	"net/http"

	"botrelay/internal/usecases"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const headerTelegramSecret = "X-Telegram-Bot-Api-Secret-Token"

// RegisterWebhookRoutes mounts the Telegram callbacks. They answer 200 no matter
// what happens so Telegram never retries a poisoned update.
func (h *Handler) RegisterWebhookRoutes(webhook *gin.RouterGroup) {
	webhook.POST("/telegram", h.TelegramWebhook)
	webhook.POST("/telegram/:bot_id", h.TelegramWebhook)
}

func (h *Handler) TelegramWebhook(c *gin.Context) {
	botID := c.Param("bot_id")
	log := h.logger.With(zap.String("bot_id", botID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("webhook panic recovered", zap.Any("panic", r))
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}()

	if !h.webhookSecretMatches(c) {
		log.Warn("webhook secret mismatch, update dropped", zap.String("client_ip", c.ClientIP()))
		return
	}

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		log.Info("malformed webhook payload", zap.Error(err))
		return
	}

	in, ok := usecases.InboundFromUpdate(update)
	if !ok {
		log.Debug("update without text ignored", zap.Int("update_id", update.UpdateID))
		return
	}
	if botID != "" && !ValidID(botID) {
		log.Info("webhook for unknown bot ignored")
		return
	}

	log.Debug("inbound update",
		zap.Int64("update_id", in.UpdateID),
		zap.Int64("chat_id", in.ChatID),
		zap.String("preview", TruncateString(in.Text, 64)),
	)

	store, err := h.resolver.System()
	if err != nil {
		log.Warn("no database for webhook processing", zap.Error(err))
		return
	}
	if err := h.messages.HandleInbound(c.Request.Context(), store, botID, in); err != nil {
		log.Error("webhook processing failed", zap.Int64("update_id", in.UpdateID), zap.Error(err))
	}
}

// webhookSecretMatches is true when no secret is configured or the caller sent it
func (h *Handler) webhookSecretMatches(c *gin.Context) bool {
	want := h.cfg.Telegram.WebhookSecret
	if want == "" {
		return true
	}
	got := c.GetHeader(headerTelegramSecret)
	if got == "" {
		got = c.Query("secret")
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
