package entities

import "time"

type Contact struct {
	ID             string    `json:"id"`
	BotID          *string   `json:"bot_id"`
	PlatformUserID string    `json:"platform_user_id"` // Telegram chat id
	Username       string    `json:"username"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	CreatedAt      time.Time `json:"created_at"`
	LastSeenAt     time.Time `json:"last_seen_at"`
}
