package http

import (
	"net/http"
	"strings"

	"botrelay/internal/entities"
	"botrelay/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type agentRequest struct {
	Name         *string  `json:"name"`
	Description  *string  `json:"description"`
	SystemPrompt *string  `json:"system_prompt"`
	Model        *string  `json:"model"`
	Temperature  *float64 `json:"temperature"`
	IsActive     *bool    `json:"is_active"`
}

// validate checks lengths and ranges; name presence is checked by the caller
func (r agentRequest) validate() string {
	if r.Name != nil && !ValidateLength(SanitizeDisplay(*r.Name), 1, MaxNameLength) {
		return "name must be 1-128 characters"
	}
	if r.Description != nil && !ValidateLength(*r.Description, 0, MaxDescriptionLength) {
		return "description is too long"
	}
	if r.SystemPrompt != nil && !ValidateLength(*r.SystemPrompt, 0, MaxPromptLength) {
		return "system_prompt is too long"
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return "temperature must be between 0 and 2"
	}
	return ""
}

func (h *Handler) RegisterAgentRoutes(api *gin.RouterGroup, m *Middleware) {
	agents := api.Group("/agents")
	{
		agents.GET("", h.ListAgents)
		agents.POST("", h.CreateAgent)
		agents.GET("/:id", h.GetAgent)
		agents.PUT("/:id", h.UpdateAgent)
		agents.DELETE("/:id", m.AdminRequired(), h.DeleteAgent)
		agents.POST("/:id/documents", h.AddDocument)
		agents.POST("/:id/search", h.SearchDocuments)
	}
}

func (h *Handler) ListAgents(c *gin.Context) {
	store, err := tenantStore(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	agents, err := store.Agents().List(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, agents)
}

func (h *Handler) CreateAgent(c *gin.Context) {
	var req agentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Name == nil || SanitizeDisplay(*req.Name) == "" {
		badRequest(c, "name is required")
		return
	}
	if msg := req.validate(); msg != "" {
		badRequest(c, msg)
		return
	}

	store, err := tenantStore(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	agent := &entities.Agent{
		Name:        SanitizeDisplay(*req.Name),
		Model:       h.cfg.AI.OpenAIChatModel,
		Temperature: 0.7,
		IsActive:    true,
	}
	if req.Description != nil {
		agent.Description = SanitizeDisplay(*req.Description)
	}
	if req.SystemPrompt != nil {
		agent.SystemPrompt = SanitizeString(*req.SystemPrompt)
	}
	if req.Model != nil && strings.TrimSpace(*req.Model) != "" {
		agent.Model = strings.TrimSpace(*req.Model)
	}
	if req.Temperature != nil {
		agent.Temperature = *req.Temperature
	}
	if req.IsActive != nil {
		agent.IsActive = *req.IsActive
	}

	created, err := store.Agents().Create(c.Request.Context(), agent)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetAgent(c *gin.Context) {
	id := c.Param("id")
	if !ValidID(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}
	store, err := tenantStore(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	agent, err := store.Agents().Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err, zap.String("agent_id", id))
		return
	}
	c.JSON(http.StatusOK, agent)
}

func (h *Handler) UpdateAgent(c *gin.Context) {
	id := c.Param("id")
	if !ValidID(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}
	var req agentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		badRequest(c, msg)
		return
	}

	patch := map[string]interface{}{}
	if req.Name != nil {
		patch["name"] = SanitizeDisplay(*req.Name)
	}
	if req.Description != nil {
		patch["description"] = SanitizeDisplay(*req.Description)
	}
	if req.SystemPrompt != nil {
		patch["system_prompt"] = SanitizeString(*req.SystemPrompt)
	}
	if req.Model != nil {
		patch["model"] = strings.TrimSpace(*req.Model)
	}
	if req.Temperature != nil {
		patch["temperature"] = *req.Temperature
	}
	if req.IsActive != nil {
		patch["is_active"] = *req.IsActive
	}

	store, err := tenantStore(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	var agent *entities.Agent
	if len(patch) == 0 {
		agent, err = store.Agents().Get(c.Request.Context(), id)
	} else {
		agent, err = store.Agents().Update(c.Request.Context(), id, patch)
	}
	if err != nil {
		writeError(c, h.logger, err, zap.String("agent_id", id))
		return
	}
	c.JSON(http.StatusOK, agent)
}

func (h *Handler) DeleteAgent(c *gin.Context) {
	id := c.Param("id")
	if !ValidID(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}
	store, err := tenantStore(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	removed, err := store.Agents().Delete(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err, zap.String("agent_id", id))
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// AddDocument embeds content and stores it as agent knowledge
func (h *Handler) AddDocument(c *gin.Context) {
	id := c.Param("id")
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		badRequest(c, "content is required")
		return
	}
	if !ValidateLength(req.Content, 1, MaxDocumentLength) {
		badRequest(c, "content is too long")
		return
	}
	if !ValidID(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}

	store, err := tenantStore(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ctx := c.Request.Context()
	if _, err := store.Agents().Get(ctx, id); err != nil {
		writeError(c, h.logger, err, zap.String("agent_id", id))
		return
	}

	content := SanitizeString(req.Content)
	embedding, _, err := h.ai.Embed(ctx, content)
	if err != nil {
		writeError(c, h.logger, err, zap.String("agent_id", id))
		return
	}
	doc, err := store.Knowledge().Add(ctx, &entities.Document{AgentID: id, Content: content, Embedding: embedding})
	if err != nil {
		writeError(c, h.logger, err, zap.String("agent_id", id))
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// SearchDocuments ranks the agent's knowledge against a query
func (h *Handler) SearchDocuments(c *gin.Context) {
	id := c.Param("id")
	var req struct {
		Query      string `json:"query"`
		MatchCount int    `json:"match_count"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		badRequest(c, "query is required")
		return
	}
	if !ValidID(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}
	if req.MatchCount <= 0 || req.MatchCount > 50 {
		req.MatchCount = repository.DefaultMatchCount
	}

	store, err := tenantStore(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	ctx := c.Request.Context()
	embedding, _, err := h.ai.Embed(ctx, req.Query)
	if err != nil {
		writeError(c, h.logger, err, zap.String("agent_id", id))
		return
	}
	matches, err := store.Knowledge().Search(ctx, id, embedding, req.MatchCount)
	if err != nil {
		writeError(c, h.logger, err, zap.String("agent_id", id))
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}
