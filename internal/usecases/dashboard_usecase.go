package usecases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"botrelay/internal/entities"
	"botrelay/internal/interfaces"
)

const usageHistoryDays = 7

// DashboardUsecase serves the admin overview and the SQL console
type DashboardUsecase struct {
	sql interfaces.SQLRunner
	now func() time.Time
}

// NewDashboardUsecase accepts a nil sql runner; statements then go through exec_sql
func NewDashboardUsecase(sql interfaces.SQLRunner) *DashboardUsecase {
	return &DashboardUsecase{sql: sql, now: time.Now}
}

// Stats counts rows per table and adds the last week's message activity
func (u *DashboardUsecase) Stats(ctx context.Context, store interfaces.Store) (*entities.Stats, error) {
	stats := &entities.Stats{}
	counts := []struct {
		table string
		dst   *int64
	}{
		{"agents", &stats.Agents},
		{"bots", &stats.Bots},
		{"contacts", &stats.Contacts},
		{"messages", &stats.Messages},
	}
	for _, c := range counts {
		n, err := store.Count(ctx, c.table)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}

	history, err := store.UsageHistory(ctx, usageHistoryDays, u.now())
	if err != nil {
		return nil, err
	}
	stats.History = history
	return stats, nil
}

// RunSQL executes a statement on the direct connection when there is one,
// otherwise through the tenant's exec_sql function.
func (u *DashboardUsecase) RunSQL(ctx context.Context, store interfaces.Store, query string) (*entities.SQLResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required: %w", entities.ErrInvalidInput)
	}
	if u.sql != nil {
		return u.sql.Run(ctx, query)
	}
	if store == nil {
		return nil, fmt.Errorf("no database connection: %w", entities.ErrNotConfigured)
	}
	return store.ExecSQL(ctx, query)
}
