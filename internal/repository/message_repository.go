package repository

import (
	"context"
	"fmt"

	"botrelay/internal/entities"
	"botrelay/internal/infrastructure"

	"github.com/supabase-community/postgrest-go"
)

const (
	messagesTable       = "messages"
	DefaultMessageLimit = 50
	MaxMessageLimit     = 500
)

type MessageRepository struct {
	db *infrastructure.SupabaseClient
}

func NewMessageRepository(db *infrastructure.SupabaseClient) *MessageRepository {
	return &MessageRepository{db: db}
}

// List returns messages newest first
func (r *MessageRepository) List(ctx context.Context, filter entities.MessageFilter) ([]entities.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	if limit > MaxMessageLimit {
		limit = MaxMessageLimit
	}

	q := r.db.From(messagesTable).Select("*", "", false)
	if filter.BotID != "" {
		q = q.Eq("bot_id", filter.BotID)
	}
	if filter.ChatID != "" {
		q = q.Eq("chat_id", filter.ChatID)
	}

	messages := []entities.Message{}
	_, err := q.Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		ExecuteTo(&messages)
	if err != nil {
		if isInvalidID(err) {
			return messages, nil
		}
		return nil, upstream("list messages", err)
	}
	return messages, nil
}

func (r *MessageRepository) Create(ctx context.Context, msg *entities.Message) (*entities.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row := map[string]interface{}{
		"bot_id":              msg.BotID,
		"contact_id":          msg.ContactID,
		"chat_id":             msg.ChatID,
		"direction":           msg.Direction,
		"content":             msg.Content,
		"sentiment":           msg.Sentiment,
		"sentiment_score":     msg.SentimentScore,
		"platform_message_id": msg.PlatformMessageID,
	}
	var created []entities.Message
	_, err := r.db.From(messagesTable).
		Insert(row, false, "", "representation", "").
		ExecuteTo(&created)
	if err != nil {
		return nil, upstream("create message", err)
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("create message: no row returned: %w", entities.ErrUpstream)
	}
	return &created[0], nil
}
