package http

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"botrelay/internal/entities"
	"botrelay/internal/infrastructure"
	"botrelay/internal/interfaces"
	"botrelay/internal/usecases"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	ctxIsAdmin      = "is_admin"
	ctxSessionToken = "session_token"
	ctxStore        = "tenant_store"
	ctxStoreErr     = "tenant_store_err"

	// an idle client's limiter is dropped after this; a new one starts with a full burst
	limiterIdleTTL = 15 * time.Minute
)

type Middleware struct {
	auth         *usecases.AuthUsecase
	resolver     interfaces.StoreResolver
	cookies      CookieJar
	rateLimiters *cache.Cache
	mu           sync.Mutex
}

func NewMiddleware(auth *usecases.AuthUsecase, resolver interfaces.StoreResolver, cookies CookieJar) *Middleware {
	return &Middleware{
		auth:         auth,
		resolver:     resolver,
		cookies:      cookies,
		rateLimiters: cache.New(limiterIdleTTL, 5*time.Minute),
	}
}

// AdminContext marks the request as admin when admin_mode is "true" and the session verifies
func (m *Middleware) AdminContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		admin := readCookie(c, entities.CookieAdminMode) == entities.FlagTrue &&
			m.auth.VerifySession(readCookie(c, entities.CookieAdminSession))
		c.Set(ctxIsAdmin, admin)
		c.Next()
	}
}

func (m *Middleware) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isAdmin(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

// SessionToken issues the anonymous visitor cookie when it is missing
func (m *Middleware) SessionToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := readCookie(c, entities.CookieSessionToken)
		if token == "" {
			token = uuid.NewString()
			m.cookies.SetSessionToken(c, token)
		}
		c.Set(ctxSessionToken, token)
		c.Next()
	}
}

// TenantStore resolves the request's database store. Failure is kept for the
// handlers that need a store; routes that do not are unaffected.
func (m *Middleware) TenantStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		store, err := m.resolver.Resolve(c.Request, isAdmin(c))
		if err != nil {
			c.Set(ctxStoreErr, err)
		} else {
			c.Set(ctxStore, store)
		}
		c.Next()
	}
}

// RateLimitPerClient limits requests per route and client IP, never per session cookie
func (m *Middleware) RateLimitPerClient(r rate.Limit, b int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.FullPath() + "|" + c.ClientIP()

		if !m.limiter(key, r, b).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}

		c.Next()
	}
}

// limiter returns the client's limiter, refreshing its idle expiry
func (m *Middleware) limiter(key string, r rate.Limit, b int) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	limiter, ok := m.rateLimiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(r, b)
	}
	m.rateLimiters.SetDefault(key, limiter)
	return limiter.(*rate.Limiter)
}

// CORS allows the configured origins with credentials; with none configured every origin is echoed back
func CORS(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Content-Length", "Accept", "Authorization",
			"X-Requested-With", entities.HeaderSupabaseURL, entities.HeaderSupabaseKey,
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		cfg.AllowOrigins = allowedOrigins
	} else {
		cfg.AllowOriginFunc = func(string) bool { return true }
	}
	return cors.New(cfg)
}

// Metrics records request counts and latency per route
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		infrastructure.HTTPRequestsTotal.WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		infrastructure.HTTPRequestDuration.WithLabelValues(path, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// SecurityHeaders adds security headers to prevent common attacks
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Prevent MIME type sniffing
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")
		// Prevent clickjacking
		c.Writer.Header().Set("X-Frame-Options", "DENY")
		c.Writer.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Writer.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		c.Next()
	}
}

// RequestSizeLimiter limits request body size to prevent DoS
func RequestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func isAdmin(c *gin.Context) bool {
	return c.GetBool(ctxIsAdmin)
}

// tenantStore returns the store resolved by TenantStore
func tenantStore(c *gin.Context) (interfaces.Store, error) {
	if v, ok := c.Get(ctxStoreErr); ok {
		return nil, v.(error)
	}
	if v, ok := c.Get(ctxStore); ok {
		return v.(interfaces.Store), nil
	}
	return nil, entities.ErrNotConfigured
}
