package http

import (
	"net/http"

	"botrelay/internal/usecases"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handler) RegisterAdminRoutes(api *gin.RouterGroup, m *Middleware) {
	admin := api.Group("/admin")
	{
		admin.POST("/login", m.RateLimitPerClient(0.2, 5), h.AdminLogin)
		admin.POST("/logout", h.AdminLogout)
		admin.GET("/status", h.AdminStatus)
		admin.GET("/stats", m.AdminRequired(), h.AdminStats)
	}
}

// AdminLogin checks the password and sets admin_session + admin_mode
func (h *Handler) AdminLogin(c *gin.Context) {
	var req struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Password == "" {
		badRequest(c, "password is required")
		return
	}

	token, err := h.auth.Login(req.Password)
	if err != nil {
		writeError(c, h.logger, err, zap.String("client_ip", c.ClientIP()))
		return
	}

	h.cookies.SetAdminSession(c, token, usecases.AdminSessionTTL)
	h.logger.Info("admin login", zap.String("client_ip", c.ClientIP()))
	c.JSON(http.StatusOK, gin.H{"success": true, "is_admin": true})
}

func (h *Handler) AdminLogout(c *gin.Context) {
	h.cookies.ClearAdminSession(c)
	c.JSON(http.StatusOK, gin.H{"success": true, "is_admin": false})
}

func (h *Handler) AdminStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"is_admin": isAdmin(c)})
}

// AdminStats returns exact row counts and the last week's message activity
func (h *Handler) AdminStats(c *gin.Context) {
	store, err := tenantStore(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	stats, err := h.dashboard.Stats(c.Request.Context(), store)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
