package http

import (
	"net/http"
	"time"

	"botrelay/internal/entities"

	"github.com/gin-gonic/gin"
)

const (
	flagCookieMaxAge    = 365 * 24 * time.Hour
	sessionTokenMaxAge  = 30 * 24 * time.Hour
	credentialCookieAge = 365 * 24 * time.Hour
)

// CookieJar writes cookies verbatim. gin's SetCookie query-escapes values,
// which the UI reading these cookies does not expect.
type CookieJar struct {
	Secure bool
	Domain string
}

func (j CookieJar) set(c *gin.Context, name, value string, maxAge time.Duration, httpOnly bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   j.Domain,
		MaxAge:   int(maxAge.Seconds()),
		Secure:   j.Secure,
		HttpOnly: httpOnly,
		SameSite: http.SameSiteLaxMode,
	})
}

func (j CookieJar) clear(c *gin.Context, names ...string) {
	for _, name := range names {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   j.Domain,
			MaxAge:   -1,
			Secure:   j.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// SetFlag sets a readable "true" flag cookie
func (j CookieJar) SetFlag(c *gin.Context, name string) {
	j.set(c, name, entities.FlagTrue, flagCookieMaxAge, false)
}

func (j CookieJar) SetAdminSession(c *gin.Context, token string, ttl time.Duration) {
	j.set(c, entities.CookieAdminSession, token, ttl, true)
	j.set(c, entities.CookieAdminMode, entities.FlagTrue, ttl, false)
}

func (j CookieJar) ClearAdminSession(c *gin.Context) {
	j.clear(c, entities.CookieAdminSession, entities.CookieAdminMode)
}

func (j CookieJar) SetSessionToken(c *gin.Context, token string) {
	j.set(c, entities.CookieSessionToken, token, sessionTokenMaxAge, true)
}

// SetCredentials stores the tenant project in HttpOnly cookies
func (j CookieJar) SetCredentials(c *gin.Context, url, anonKey, serviceKey, projectRef string) {
	j.set(c, entities.CookieSupabaseURL, url, credentialCookieAge, true)
	j.set(c, entities.CookieSupabaseAnonKey, anonKey, credentialCookieAge, true)
	if serviceKey != "" {
		j.set(c, entities.CookieSupabaseServiceRoleKey, serviceKey, credentialCookieAge, true)
	} else {
		j.clear(c, entities.CookieSupabaseServiceRoleKey)
	}
	if projectRef != "" {
		j.set(c, entities.CookieSupabaseProjectRef, projectRef, credentialCookieAge, true)
	}
	j.SetFlag(c, entities.CookieHasSupabaseCredentials)
}

func (j CookieJar) ClearCredentials(c *gin.Context) {
	j.clear(c,
		entities.CookieSupabaseURL,
		entities.CookieSupabaseAnonKey,
		entities.CookieSupabaseServiceRoleKey,
		entities.CookieSupabaseProjectRef,
		entities.CookieHasSupabaseCredentials,
	)
}

// readCookie returns the raw cookie value or ""
func readCookie(c *gin.Context, name string) string {
	cookie, err := c.Request.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
