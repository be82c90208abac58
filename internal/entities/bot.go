package entities

import (
	"strings"
	"time"
)

const PlatformTelegram = "telegram"

type Bot struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Platform   string    `json:"platform"`
	Token      string    `json:"token"`
	Username   string    `json:"username"`
	AgentID    *string   `json:"agent_id"`
	IsActive   bool      `json:"is_active"`
	WebhookURL string    `json:"webhook_url"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Masked returns a copy safe to hand to non-admin callers.
func (b Bot) Masked() Bot {
	b.Token = MaskToken(b.Token)
	return b
}

// MaskToken keeps the bot id prefix and the last four characters of a token.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	prefix := ""
	secret := token
	if i := strings.Index(token, ":"); i >= 0 {
		prefix = token[:i+1]
		secret = token[i+1:]
	}
	if len(secret) <= 4 {
		return prefix + "****"
	}
	return prefix + "****" + secret[len(secret)-4:]
}
