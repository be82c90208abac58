package http

import (
	"net/http"

	"botrelay/internal/entities"
	"botrelay/internal/usecases"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) RegisterSetupRoutes(api *gin.RouterGroup, m *Middleware) {
	setup := api.Group("/setup")
	{
		setup.GET("/status", h.SetupStatus)
		setup.POST("/credentials", m.RateLimitPerClient(1, 5), h.SaveCredentials)
		setup.DELETE("/credentials", h.ClearCredentials)
		setup.GET("/schema", h.GetSchema)
		setup.POST("/schema", m.AdminRequired(), h.ApplySchema)
		setup.POST("/complete", h.CompleteSetup)
	}
}

func (h *Handler) SetupStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.setup.Status(
		readCookie(c, entities.CookieSetupComplete),
		readCookie(c, entities.CookieSchemaSetupCompleted),
		readCookie(c, entities.CookieHasSupabaseCredentials),
		isAdmin(c),
	))
}

// SaveCredentials probes the submitted project and stores it in cookies
func (h *Handler) SaveCredentials(c *gin.Context) {
	var req usecases.SetupCredentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	creds, schemaReady, err := h.setup.ValidateCredentials(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, err, zap.String("supabase_url", req.URL))
		return
	}

	h.cookies.SetCredentials(c, creds.URL, creds.AnonKey, creds.ServiceRoleKey, creds.ProjectRef)
	if schemaReady {
		h.cookies.SetFlag(c, entities.CookieSchemaSetupCompleted)
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"project_ref":  creds.ProjectRef,
		"schema_ready": schemaReady,
	})
}

func (h *Handler) ClearCredentials(c *gin.Context) {
	h.cookies.ClearCredentials(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetSchema returns the SQL script for running by hand
func (h *Handler) GetSchema(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sql": h.setup.SchemaScript()})
}

func (h *Handler) ApplySchema(c *gin.Context) {
	if !h.setup.CanApplySchema() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "DATABASE_URL not set; run the script in the SQL editor",
			"sql":   h.setup.SchemaScript(),
		})
		return
	}
	if err := h.setup.ApplySchema(c.Request.Context()); err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.cookies.SetFlag(c, entities.CookieSchemaSetupCompleted)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) CompleteSetup(c *gin.Context) {
	h.cookies.SetFlag(c, entities.CookieSetupComplete)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
