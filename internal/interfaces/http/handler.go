package http

import (
	"context"
	"net/http"
	"time"

	"botrelay/internal/infrastructure"
	"botrelay/internal/interfaces"
	"botrelay/internal/usecases"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthCheck pings one backing service
type HealthCheck func(ctx context.Context) error

// Deps is everything the HTTP layer needs
type Deps struct {
	Config    *infrastructure.Config
	Logger    *zap.Logger
	Auth      *usecases.AuthUsecase
	Setup     *usecases.SetupUsecase
	Messages  *usecases.MessageService
	Bots      *usecases.BotUsecase
	AI        *usecases.AIService
	Dashboard *usecases.DashboardUsecase
	Resolver  interfaces.StoreResolver
	Checks    map[string]HealthCheck
}

type Handler struct {
	cfg       *infrastructure.Config
	logger    *zap.Logger
	cookies   CookieJar
	auth      *usecases.AuthUsecase
	setup     *usecases.SetupUsecase
	messages  *usecases.MessageService
	bots      *usecases.BotUsecase
	ai        *usecases.AIService
	dashboard *usecases.DashboardUsecase
	resolver  interfaces.StoreResolver
	checks    map[string]HealthCheck
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		cfg:       d.Config,
		logger:    d.Logger,
		cookies:   CookieJar{Secure: d.Config.Cookies.Secure, Domain: d.Config.Cookies.Domain},
		auth:      d.Auth,
		setup:     d.Setup,
		messages:  d.Messages,
		bots:      d.Bots,
		ai:        d.AI,
		dashboard: d.Dashboard,
		resolver:  d.Resolver,
		checks:    d.Checks,
	}
}

// SetupRoutes wires middleware and every route group onto r
func SetupRoutes(r *gin.Engine, d Deps) *Handler {
	h := NewHandler(d)
	m := NewMiddleware(d.Auth, d.Resolver, h.cookies)

	maxBody := d.Config.Server.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 10 << 20
	}

	// forwarded headers are only believed from TRUSTED_PROXIES
	if err := r.SetTrustedProxies(d.Config.Server.TrustedProxies); err != nil {
		d.Logger.Warn("invalid TRUSTED_PROXIES, forwarded headers ignored", zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}

	r.Use(Metrics())
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(maxBody))
	r.Use(CORS(d.Config.CORS.AllowedOrigins))

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Telegram calls these without cookies
	webhook := r.Group("/api/webhook")
	h.RegisterWebhookRoutes(webhook)

	api := r.Group("/api")
	api.Use(m.SessionToken())
	api.Use(m.AdminContext())
	api.Use(m.TenantStore())
	{
		h.RegisterSetupRoutes(api, m)
		h.RegisterAdminRoutes(api, m)
		h.RegisterAgentRoutes(api, m)
		h.RegisterBotRoutes(api, m)
		h.RegisterMessageRoutes(api)
		h.RegisterAIRoutes(api, m)
		h.RegisterSQLRoutes(api, m)
	}

	return h
}

// Health reports backing services and which upstreams are configured
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	services := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			services[name] = gin.H{"ok": false, "error": err.Error()}
			status = http.StatusServiceUnavailable
			continue
		}
		services[name] = gin.H{"ok": true}
	}

	c.JSON(status, gin.H{
		"status":   http.StatusText(status),
		"services": services,
		"configured": gin.H{
			"database":     h.cfg.Supabase.Configured(),
			"telegram":     h.messages.HasDefaultBot(),
			"ai":           h.ai.Providers(),
			"admin_login":  h.auth.Enabled(),
			"schema_apply": h.setup.CanApplySchema(),
		},
		"outbound_limiter": h.messages.LimiterStats(),
	})
}
