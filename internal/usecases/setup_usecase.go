package usecases

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"botrelay/internal/entities"
	"botrelay/internal/infrastructure"
	"botrelay/internal/interfaces"
)

// SetupCredentials is what the setup wizard submits
type SetupCredentials struct {
	URL            string `json:"supabase_url"`
	AnonKey        string `json:"anon_key"`
	ServiceRoleKey string `json:"service_role_key"`
	ProjectRef     string `json:"project_ref"`
}

type SetupUsecase struct {
	resolver interfaces.StoreResolver
	sql      interfaces.SQLRunner
	defaults infrastructure.SupabaseConfig
	dims     int
}

// NewSetupUsecase accepts a nil sql runner when DATABASE_URL is not set
func NewSetupUsecase(resolver interfaces.StoreResolver, sql interfaces.SQLRunner, defaults infrastructure.SupabaseConfig, dims int) *SetupUsecase {
	return &SetupUsecase{
		resolver: resolver,
		sql:      sql,
		defaults: defaults,
		dims:     dims,
	}
}

// Status derives the wizard state from the raw flag cookie values
func (u *SetupUsecase) Status(setupComplete, schemaCompleted, hasCredentials string, isAdmin bool) entities.SetupStatus {
	return entities.SetupStatus{
		SetupComplete:          setupComplete == entities.FlagTrue,
		SchemaSetupCompleted:   schemaCompleted == entities.FlagTrue,
		HasSupabaseCredentials: hasCredentials == entities.FlagTrue,
		IsAdmin:                isAdmin,
		DefaultConfigured:      u.defaults.Configured(),
	}
}

// ValidateCredentials normalises the submitted project and probes it with the anon key.
// A reachable project without tables is accepted; schemaReady tells the caller which.
func (u *SetupUsecase) ValidateCredentials(ctx context.Context, in SetupCredentials) (SetupCredentials, bool, error) {
	in.URL = strings.TrimRight(strings.TrimSpace(in.URL), "/")
	in.AnonKey = strings.TrimSpace(in.AnonKey)
	in.ServiceRoleKey = strings.TrimSpace(in.ServiceRoleKey)
	in.ProjectRef = strings.TrimSpace(in.ProjectRef)

	if in.URL == "" || in.AnonKey == "" {
		return in, false, fmt.Errorf("supabase_url and anon_key are required: %w", entities.ErrInvalidInput)
	}
	parsed, err := url.Parse(in.URL)
	if err != nil || (parsed.Scheme != "https" && parsed.Scheme != "http") || parsed.Host == "" {
		return in, false, fmt.Errorf("supabase_url must be an http(s) URL: %w", entities.ErrInvalidInput)
	}
	if in.ProjectRef == "" {
		in.ProjectRef = infrastructure.ProjectRefFromURL(in.URL)
	}

	store := u.resolver.ForCredentials(entities.Credentials{
		URL:        in.URL,
		Key:        in.AnonKey,
		ProjectRef: in.ProjectRef,
		Scope:      entities.ScopeCookie,
	})
	schemaReady, err := store.Probe(ctx)
	if err != nil {
		return in, false, fmt.Errorf("invalid supabase credentials: %w", entities.ErrInvalidInput)
	}
	return in, schemaReady, nil
}

func (u *SetupUsecase) SchemaScript() string {
	return infrastructure.SchemaScript(u.dims)
}

// CanApplySchema reports whether a direct database connection is available
func (u *SetupUsecase) CanApplySchema() bool {
	return u.sql != nil
}

func (u *SetupUsecase) ApplySchema(ctx context.Context) error {
	if u.sql == nil {
		return fmt.Errorf("DATABASE_URL not set: %w", entities.ErrNotConfigured)
	}
	return u.sql.ApplySchema(ctx, u.dims)
}
