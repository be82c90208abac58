package usecases

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"botrelay/internal/entities"
	"botrelay/internal/infrastructure"
	"botrelay/internal/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probeStore struct {
	*memStore
	ready bool
	err   error
}

func (p probeStore) Probe(context.Context) (bool, error) { return p.ready, p.err }

type fakeResolver struct {
	store interfaces.Store
	last  entities.Credentials
}

func (f *fakeResolver) Resolve(*http.Request, bool) (interfaces.Store, error) { return f.store, nil }
func (f *fakeResolver) System() (interfaces.Store, error) { return f.store, nil }
func (f *fakeResolver) Admin() (interfaces.Store, error) { return f.store, nil }

func (f *fakeResolver) ForCredentials(creds entities.Credentials) interfaces.Store {
	f.last = creds
	return f.store
}

type fakeSQLRunner struct {
	applied int
	query   string
}

func (f *fakeSQLRunner) Run(_ context.Context, query string) (*entities.SQLResult, error) {
	f.query = query
	return &entities.SQLResult{Rows: []map[string]interface{}{}, Command: "UPDATE 3", RowCount: 3}, nil
}

func (f *fakeSQLRunner) ApplySchema(context.Context, int) error {
	f.applied++
	return nil
}

func TestValidateCredentials(t *testing.T) {
	ctx := context.Background()

	t.Run("derives project ref", func(t *testing.T) {
		resolver := &fakeResolver{store: probeStore{memStore: newMemStore(), ready: false}}
		uc := NewSetupUsecase(resolver, nil, infrastructure.SupabaseConfig{}, 1536)

		creds, ready, err := uc.ValidateCredentials(ctx, SetupCredentials{URL: " https://abcd1234.supabase.co/ ", AnonKey: "anon"})
		require.NoError(t, err)
		assert.False(t, ready)
		assert.Equal(t, "https://abcd1234.supabase.co", creds.URL)
		assert.Equal(t, "abcd1234", creds.ProjectRef)
		assert.Equal(t, "anon", resolver.last.Key)
	})

	t.Run("unreachable project", func(t *testing.T) {
		resolver := &fakeResolver{store: probeStore{memStore: newMemStore(), err: errors.New("dial tcp: no such host")}}
		uc := NewSetupUsecase(resolver, nil, infrastructure.SupabaseConfig{}, 1536)

		_, _, err := uc.ValidateCredentials(ctx, SetupCredentials{URL: "https://nope.supabase.co", AnonKey: "anon"})
		assert.ErrorIs(t, err, entities.ErrInvalidInput)
		assert.Contains(t, err.Error(), "invalid supabase credentials")
	})

	t.Run("missing fields", func(t *testing.T) {
		uc := NewSetupUsecase(&fakeResolver{store: newMemStore()}, nil, infrastructure.SupabaseConfig{}, 1536)
		_, _, err := uc.ValidateCredentials(ctx, SetupCredentials{URL: "https://x.supabase.co"})
		assert.ErrorIs(t, err, entities.ErrInvalidInput)
		_, _, err = uc.ValidateCredentials(ctx, SetupCredentials{URL: "ftp://x", AnonKey: "k"})
		assert.ErrorIs(t, err, entities.ErrInvalidInput)
	})
}

func TestApplySchema(t *testing.T) {
	uc := NewSetupUsecase(&fakeResolver{}, nil, infrastructure.SupabaseConfig{}, 768)
	assert.False(t, uc.CanApplySchema())
	assert.ErrorIs(t, uc.ApplySchema(context.Background()), entities.ErrNotConfigured)
	assert.Contains(t, uc.SchemaScript(), "VECTOR(768)")

	runner := &fakeSQLRunner{}
	uc = NewSetupUsecase(&fakeResolver{}, runner, infrastructure.SupabaseConfig{}, 768)
	require.NoError(t, uc.ApplySchema(context.Background()))
	assert.Equal(t, 1, runner.applied)
}

func TestSetupStatus(t *testing.T) {
	uc := NewSetupUsecase(&fakeResolver{}, nil, infrastructure.SupabaseConfig{URL: "https://x.supabase.co", AnonKey: "k"}, 1536)
	status := uc.Status("true", "TRUE", "true", false)
	assert.True(t, status.SetupComplete)
	assert.False(t, status.SchemaSetupCompleted)
	assert.True(t, status.HasSupabaseCredentials)
	assert.True(t, status.DefaultConfigured)
}

func TestDashboardStats(t *testing.T) {
	store := newMemStore()
	store.addAgent(entities.Agent{Name: "a"})
	store.addBot(entities.Bot{Name: "b", Token: "1:x"})

	uc := NewDashboardUsecase(nil)
	uc.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }

	stats, err := uc.Stats(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Agents)
	assert.Equal(t, int64(1), stats.Bots)
	assert.Zero(t, stats.Messages)
	require.Len(t, stats.History, usageHistoryDays)
	assert.Equal(t, "2026-03-10", stats.History[usageHistoryDays-1].Date)
}

func TestRunSQL(t *testing.T) {
	ctx := context.Background()

	_, err := NewDashboardUsecase(nil).RunSQL(ctx, newMemStore(), "  ")
	assert.ErrorIs(t, err, entities.ErrInvalidInput)

	_, err = NewDashboardUsecase(nil).RunSQL(ctx, nil, "select 1")
	assert.ErrorIs(t, err, entities.ErrNotConfigured)

	result, err := NewDashboardUsecase(nil).RunSQL(ctx, newMemStore(), "select 1")
	require.NoError(t, err)
	assert.Equal(t, "select 1", result.Rows[0]["query"])

	runner := &fakeSQLRunner{}
	result, err = NewDashboardUsecase(runner).RunSQL(ctx, nil, "update bots set is_active = true")
	require.NoError(t, err)
	assert.Equal(t, "update bots set is_active = true", runner.query)
	assert.Equal(t, int64(3), result.RowCount)
}
