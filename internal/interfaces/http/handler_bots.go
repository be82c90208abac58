package http

import (
	"context"
	"net/http"

	"botrelay/internal/entities"
	"botrelay/internal/interfaces"
	"botrelay/internal/usecases"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

func (h *Handler) RegisterBotRoutes(api *gin.RouterGroup, m *Middleware) {
	bots := api.Group("/bots")
	{
		bots.GET("", h.ListBots)
		bots.POST("", h.CreateBot)
		bots.GET("/:id", h.GetBot)
		bots.PUT("/:id", h.UpdateBot)
		bots.DELETE("/:id", h.DeleteBot)
		bots.POST("/:id/webhook", m.AdminRequired(), h.RegisterBotWebhook)
		bots.DELETE("/:id/webhook", m.AdminRequired(), h.UnregisterBotWebhook)
		bots.GET("/:id/qr", h.BotQRCode)
	}
}

// present hides tokens from non-admin callers
func present(c *gin.Context, bot *entities.Bot) entities.Bot {
	if isAdmin(c) {
		return *bot
	}
	return bot.Masked()
}

func validateBotInput(in *usecases.BotInput) string {
	if in.Name != nil {
		name := SanitizeDisplay(*in.Name)
		if !ValidateLength(name, 0, MaxNameLength) {
			return "name must be at most 128 characters"
		}
		in.Name = &name
	}
	if in.AgentID != nil && *in.AgentID != "" && !ValidID(*in.AgentID) {
		return "agent_id must be a UUID"
	}
	return ""
}

func (h *Handler) ListBots(c *gin.Context) {
	store, err := tenantStore(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	bots, err := store.Bots().List(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	out := make([]entities.Bot, 0, len(bots))
	for i := range bots {
		out = append(out, present(c, &bots[i]))
	}
	c.JSON(http.StatusOK, out)
}

// CreateBot checks the token with getMe before storing it
func (h *Handler) CreateBot(c *gin.Context) {
	var req usecases.BotInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if msg := validateBotInput(&req); msg != "" {
		badRequest(c, msg)
		return
	}
	store, err := tenantStore(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	bot, err := h.bots.Create(c.Request.Context(), store, req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.logger.Info("bot created", zap.String("bot_id", bot.ID), zap.String("username", bot.Username))
	c.JSON(http.StatusCreated, present(c, bot))
}

func (h *Handler) GetBot(c *gin.Context) {
	id := c.Param("id")
	if !ValidID(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
		return
	}
	store, err := tenantStore(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	bot, err := store.Bots().Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err, zap.String("bot_id", id))
		return
	}
	c.JSON(http.StatusOK, present(c, bot))
}

func (h *Handler) UpdateBot(c *gin.Context) {
	id := c.Param("id")
	if !ValidID(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
		return
	}
	var req usecases.BotInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if msg := validateBotInput(&req); msg != "" {
		badRequest(c, msg)
		return
	}
	store, err := tenantStore(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	bot, err := h.bots.Update(c.Request.Context(), store, id, req)
	if err != nil {
		writeError(c, h.logger, err, zap.String("bot_id", id))
		return
	}
	c.JSON(http.StatusOK, present(c, bot))
}

// DeleteBot tries the caller's store first and falls back to the service-role store
func (h *Handler) DeleteBot(c *gin.Context) {
	id := c.Param("id")
	if !ValidID(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
		return
	}
	store, err := tenantStore(c)
	if err != nil {
		h.logger.Debug("no tenant store for delete", zap.Error(err))
		store = nil
	}
	if err := h.bots.Delete(c.Request.Context(), store, h.resolver.Admin, id); err != nil {
		writeError(c, h.logger, err, zap.String("bot_id", id))
		return
	}
	h.logger.Info("bot deleted", zap.String("bot_id", id))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) RegisterBotWebhook(c *gin.Context) {
	h.changeWebhook(c, h.bots.RegisterWebhook)
}

func (h *Handler) UnregisterBotWebhook(c *gin.Context) {
	h.changeWebhook(c, h.bots.UnregisterWebhook)
}

type webhookOp func(ctx context.Context, store interfaces.Store, id string) (*entities.Bot, error)

func (h *Handler) changeWebhook(c *gin.Context, op webhookOp) {
	id := c.Param("id")
	if !ValidID(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
		return
	}
	store, err := tenantStore(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	bot, err := op(c.Request.Context(), store, id)
	if err != nil {
		writeError(c, h.logger, err, zap.String("bot_id", id))
		return
	}
	c.JSON(http.StatusOK, present(c, bot))
}

// BotQRCode renders the bot's t.me deep link as a PNG
func (h *Handler) BotQRCode(c *gin.Context) {
	id := c.Param("id")
	if !ValidID(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
		return
	}
	store, err := tenantStore(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	bot, err := store.Bots().Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err, zap.String("bot_id", id))
		return
	}
	link, err := usecases.DeepLink(bot)
	if err != nil {
		writeError(c, h.logger, err, zap.String("bot_id", id))
		return
	}
	png, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		writeError(c, h.logger, err, zap.String("bot_id", id))
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}
