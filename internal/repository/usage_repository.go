package repository

import (
	"context"
	"fmt"
	"time"

	"botrelay/internal/entities"
	"botrelay/internal/infrastructure"
)

// CountMessages counts messages in one direction created in [from, to)
func (s *Store) CountMessages(ctx context.Context, direction string, from, to time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	q := s.db.From(messagesTable).
		Select("id", "exact", true).
		Gte("created_at", from.UTC().Format(time.RFC3339)).
		Lt("created_at", to.UTC().Format(time.RFC3339))
	if direction != "" {
		q = q.Eq("direction", direction)
	}
	_, count, err := q.Execute()
	infrastructure.ObserveUpstream("supabase", err)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

// UsageHistory returns sent/received counts per UTC day for the last days, oldest first
func (s *Store) UsageHistory(ctx context.Context, days int, now time.Time) ([]entities.DailyUsage, error) {
	if days <= 0 {
		return []entities.DailyUsage{}, nil
	}
	today := now.UTC().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -(days - 1))

	usage := make([]entities.DailyUsage, 0, days)
	for day := start; !day.After(today); day = day.AddDate(0, 0, 1) {
		next := day.AddDate(0, 0, 1)
		sent, err := s.CountMessages(ctx, entities.DirectionOutbound, day, next)
		if err != nil {
			return nil, err
		}
		received, err := s.CountMessages(ctx, entities.DirectionInbound, day, next)
		if err != nil {
			return nil, err
		}
		usage = append(usage, entities.DailyUsage{
			Date:             day.Format("2006-01-02"),
			MessagesSent:     sent,
			MessagesReceived: received,
		})
	}
	return usage, nil
}
