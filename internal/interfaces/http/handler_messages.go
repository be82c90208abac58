package http

import (
	"net/http"
	"strconv"
	"strings"

	"botrelay/internal/entities"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) RegisterMessageRoutes(api *gin.RouterGroup) {
	api.GET("/contacts", h.ListContacts)

	messages := api.Group("/messages")
	{
		messages.GET("", h.ListMessages)
		messages.POST("/send", h.SendMessage)
	}
}

func (h *Handler) ListContacts(c *gin.Context) {
	store, err := tenantStore(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	contacts, err := store.Contacts().List(c.Request.Context(), c.Query("bot_id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, contacts)
}

// ListMessages returns newest first; limit is clamped by the repository
func (h *Handler) ListMessages(c *gin.Context) {
	filter := entities.MessageFilter{
		BotID:  c.Query("bot_id"),
		ChatID: c.Query("chat_id"),
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	store, err := tenantStore(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	messages, err := store.Messages().List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// SendMessage delivers text through the first bot that accepts it.
// Without a database only the default bot is available.
func (h *Handler) SendMessage(c *gin.Context) {
	var req entities.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	req.ChatID = strings.TrimSpace(req.ChatID)
	req.Text = SanitizeString(req.Text)
	if req.ChatID == "" || strings.TrimSpace(req.Text) == "" {
		badRequest(c, "chat_id and text are required")
		return
	}
	if !ValidateLength(req.Text, 1, MaxMessageLength) {
		badRequest(c, "text exceeds 4096 characters")
		return
	}
	if req.BotID != "" && !ValidID(req.BotID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
		return
	}

	store, err := tenantStore(c)
	if err != nil {
		h.logger.Debug("sending without a store", zap.Error(err))
		store = nil
	}

	result, err := h.messages.Send(c.Request.Context(), store, req)
	if err != nil {
		writeError(c, h.logger, err, zap.String("chat_id", req.ChatID))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"bot_id":     result.BotID,
		"message_id": result.MessageID,
	})
}
