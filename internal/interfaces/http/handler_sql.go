package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) RegisterSQLRoutes(api *gin.RouterGroup, m *Middleware) {
	api.POST("/sql", m.AdminRequired(), h.ExecuteSQL)
}

// ExecuteSQL runs an arbitrary statement for the admin console
func (h *Handler) ExecuteSQL(c *gin.Context) {
	var req struct {
		Query string `json:"query"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if !ValidateLength(req.Query, 0, MaxQueryLength) {
		badRequest(c, "query is too long")
		return
	}

	store, err := tenantStore(c)
	if err != nil {
		// the direct pool may still serve the statement
		store = nil
	}
	result, err := h.dashboard.RunSQL(c.Request.Context(), store, SanitizeString(req.Query))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.logger.Info("admin sql executed", zap.String("command", result.Command), zap.Int64("rows", result.RowCount))
	c.JSON(http.StatusOK, result)
}
