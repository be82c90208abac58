package http

import (
	"net/http"
	"strings"

	"botrelay/internal/entities"
	"botrelay/internal/usecases"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) RegisterAIRoutes(api *gin.RouterGroup, m *Middleware) {
	ai := api.Group("/ai")
	ai.Use(m.RateLimitPerClient(2, 10))
	{
		ai.POST("/chat", h.AIChat)
		ai.POST("/sentiment", h.AISentiment)
		ai.POST("/analyze", h.AIAnalyze)
		ai.POST("/embeddings", h.AIEmbeddings)
		ai.POST("/validate-key", h.AIValidateKey)
	}
}

type chatRequest struct {
	Message string                 `json:"message"`
	AgentID string                 `json:"agent_id"`
	History []entities.ChatMessage `json:"history"`
}

// AIChat answers one message, as an agent when agent_id is given
func (h *Handler) AIChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	req.Message = SanitizeString(req.Message)
	if strings.TrimSpace(req.Message) == "" {
		badRequest(c, "message is required")
		return
	}
	if !ValidateLength(req.Message, 1, MaxPromptLength) {
		badRequest(c, "message is too long")
		return
	}

	in := usecases.ReplyInput{Message: req.Message, History: req.History}
	if req.AgentID != "" {
		if !ValidID(req.AgentID) {
			c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
			return
		}
		store, err := tenantStore(c)
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		agent, err := store.Agents().Get(c.Request.Context(), req.AgentID)
		if err != nil {
			writeError(c, h.logger, err, zap.String("agent_id", req.AgentID))
			return
		}
		in.Agent = agent
		in.Knowledge = store.Knowledge()
	}

	reply, provider, err := h.ai.Reply(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply, "provider": provider})
}

func (h *Handler) AISentiment(c *gin.Context) {
	text, ok := bindText(c)
	if !ok {
		return
	}
	result, err := h.ai.Sentiment(c.Request.Context(), text)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AIAnalyze summarises a chat transcript
func (h *Handler) AIAnalyze(c *gin.Context) {
	var req struct {
		Messages []entities.ChatMessage `json:"messages"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		badRequest(c, "messages are required")
		return
	}
	result, err := h.ai.Analyze(c.Request.Context(), req.Messages)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) AIEmbeddings(c *gin.Context) {
	text, ok := bindText(c)
	if !ok {
		return
	}
	vec, provider, err := h.ai.Embed(c.Request.Context(), text)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"embedding":  vec,
		"dimensions": len(vec),
		"provider":   provider,
	})
}

// AIValidateKey lists models with a caller-supplied key
func (h *Handler) AIValidateKey(c *gin.Context) {
	var req struct {
		Provider string `json:"provider"`
		APIKey   string `json:"api_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := h.ai.ValidateKey(c.Request.Context(), req.Provider, strings.TrimSpace(req.APIKey)); err != nil {
		h.logger.Info("api key rejected", zap.String("provider", req.Provider), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": publicMessage(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// bindText reads {"text": ...} and writes the 400 itself
func bindText(c *gin.Context) (string, bool) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return "", false
	}
	text := SanitizeString(req.Text)
	if strings.TrimSpace(text) == "" {
		badRequest(c, "text is required")
		return "", false
	}
	if !ValidateLength(text, 1, MaxDocumentLength) {
		badRequest(c, "text is too long")
		return "", false
	}
	return text, true
}
