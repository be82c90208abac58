package repository

import (
	"context"
	"fmt"
	"time"

	"botrelay/internal/entities"
	"botrelay/internal/infrastructure"

	"github.com/supabase-community/postgrest-go"
)

const contactsTable = "contacts"

type ContactRepository struct {
	db *infrastructure.SupabaseClient
}

func NewContactRepository(db *infrastructure.SupabaseClient) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) List(ctx context.Context, botID string) ([]entities.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := r.db.From(contactsTable).Select("*", "", false)
	if botID != "" {
		q = q.Eq("bot_id", botID)
	}
	contacts := []entities.Contact{}
	_, err := q.Order("last_seen_at", &postgrest.OrderOpts{Ascending: false}).ExecuteTo(&contacts)
	if err != nil {
		if isInvalidID(err) {
			return contacts, nil
		}
		return nil, upstream("list contacts", err)
	}
	return contacts, nil
}

// Upsert inserts the contact or refreshes its profile and last_seen_at
func (r *ContactRepository) Upsert(ctx context.Context, contact *entities.Contact) (*entities.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row := map[string]interface{}{
		"bot_id":           contact.BotID,
		"platform_user_id": contact.PlatformUserID,
		"username":         contact.Username,
		"first_name":       contact.FirstName,
		"last_name":        contact.LastName,
		"last_seen_at":     time.Now().UTC().Format(time.RFC3339Nano),
	}
	var saved []entities.Contact
	_, err := r.db.From(contactsTable).
		Insert(row, true, "bot_id,platform_user_id", "representation", "").
		ExecuteTo(&saved)
	if err != nil {
		return nil, upstream("upsert contact", err)
	}
	if len(saved) == 0 {
		return nil, fmt.Errorf("upsert contact: no row returned: %w", entities.ErrUpstream)
	}
	return &saved[0], nil
}
