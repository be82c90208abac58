package repository

import (
	"context"
	"fmt"

	"botrelay/internal/entities"
	"botrelay/internal/infrastructure"

	"github.com/supabase-community/postgrest-go"
)

const botsTable = "bots"

type BotRepository struct {
	db *infrastructure.SupabaseClient
}

func NewBotRepository(db *infrastructure.SupabaseClient) *BotRepository {
	return &BotRepository{db: db}
}

// List returns bots newest first, optionally only the active ones
func (r *BotRepository) List(ctx context.Context, activeOnly bool) ([]entities.Bot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := r.db.From(botsTable).Select("*", "", false)
	if activeOnly {
		q = q.Eq("is_active", "true")
	}
	bots := []entities.Bot{}
	_, err := q.Order("created_at", &postgrest.OrderOpts{Ascending: false}).ExecuteTo(&bots)
	if err != nil {
		return nil, upstream("list bots", err)
	}
	return bots, nil
}

func (r *BotRepository) Get(ctx context.Context, id string) (*entities.Bot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var bots []entities.Bot
	_, err := r.db.From(botsTable).
		Select("*", "", false).
		Eq("id", id).
		Limit(1, "").
		ExecuteTo(&bots)
	if err != nil {
		return nil, lookupError("get bot", err)
	}
	if len(bots) == 0 {
		return nil, entities.ErrNotFound
	}
	return &bots[0], nil
}

func (r *BotRepository) Create(ctx context.Context, bot *entities.Bot) (*entities.Bot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	platform := bot.Platform
	if platform == "" {
		platform = entities.PlatformTelegram
	}
	row := map[string]interface{}{
		"name":        bot.Name,
		"platform":    platform,
		"token":       bot.Token,
		"username":    bot.Username,
		"agent_id":    bot.AgentID,
		"is_active":   bot.IsActive,
		"webhook_url": bot.WebhookURL,
	}
	var created []entities.Bot
	_, err := r.db.From(botsTable).
		Insert(row, false, "", "representation", "").
		ExecuteTo(&created)
	if err != nil {
		return nil, upstream("create bot", err)
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("create bot: no row returned: %w", entities.ErrUpstream)
	}
	return &created[0], nil
}

func (r *BotRepository) Update(ctx context.Context, id string, patch map[string]interface{}) (*entities.Bot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var updated []entities.Bot
	_, err := r.db.From(botsTable).
		Update(withUpdatedAt(patch), "representation", "").
		Eq("id", id).
		ExecuteTo(&updated)
	if err != nil {
		return nil, lookupError("update bot", err)
	}
	if len(updated) == 0 {
		return nil, entities.ErrNotFound
	}
	return &updated[0], nil
}

// Delete reports whether a row was removed. Row-level security can make a
// delete succeed while touching nothing, so callers check the flag.
func (r *BotRepository) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return deleteByID(r.db, botsTable, id)
}
