package entities

import (
	"encoding/json"
	"errors"
	"time"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

type Message struct {
	ID                string    `json:"id"`
	BotID             *string   `json:"bot_id"`
	ContactID         *string   `json:"contact_id"`
	ChatID            string    `json:"chat_id"`
	Direction         string    `json:"direction"` // inbound / outbound
	Content           string    `json:"content"`
	Sentiment         *string   `json:"sentiment"`
	SentimentScore    *float64  `json:"sentiment_score"`
	PlatformMessageID *int64    `json:"platform_message_id"`
	CreatedAt         time.Time `json:"created_at"`
}

// MessageFilter narrows a message listing. Zero values mean "any".
type MessageFilter struct {
	BotID  string
	ChatID string
	Limit  int
}

// InboundMessage is a platform-neutral view of a webhook update.
type InboundMessage struct {
	UpdateID          int64
	ChatID            int64
	PlatformUserID    string
	Username          string
	FirstName         string
	LastName          string
	Text              string
	PlatformMessageID int64
	IsCommand         bool
	Command           string
}

type SendRequest struct {
	BotID  string `json:"bot_id"`
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// UnmarshalJSON accepts chat_id as a string or a JSON number, since Telegram chat ids are integers.
func (r *SendRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		BotID  string          `json:"bot_id"`
		ChatID json.RawMessage `json:"chat_id"`
		Text   string          `json:"text"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.BotID, r.Text, r.ChatID = raw.BotID, raw.Text, ""

	if len(raw.ChatID) == 0 || string(raw.ChatID) == "null" {
		return nil
	}
	if raw.ChatID[0] == '"' {
		return json.Unmarshal(raw.ChatID, &r.ChatID)
	}
	var n json.Number
	if err := json.Unmarshal(raw.ChatID, &n); err != nil {
		return errors.New("chat_id must be a string or a number")
	}
	r.ChatID = n.String()
	return nil
}

type SendResult struct {
	BotID     string `json:"bot_id"`
	MessageID int64  `json:"message_id"`
	Attempts  int    `json:"attempts"`
}
