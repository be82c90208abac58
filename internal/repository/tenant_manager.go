package repository

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"botrelay/internal/entities"
	"botrelay/internal/infrastructure"
	"botrelay/internal/interfaces"

	"github.com/patrickmn/go-cache"
)

// CredentialSources is everything a request can carry about which project to use
type CredentialSources struct {
	HeaderURL        string
	HeaderKey        string
	HasCredentials   string // raw has_supabase_credentials cookie
	CookieURL        string
	CookieAnonKey    string
	CookieServiceKey string
	CookieProjectRef string
	Admin            bool
}

// SourcesFromRequest reads the override headers and credential cookies
func SourcesFromRequest(r *http.Request, admin bool) CredentialSources {
	cookie := func(name string) string {
		if c, err := r.Cookie(name); err == nil {
			return c.Value
		}
		return ""
	}
	return CredentialSources{
		HeaderURL:        strings.TrimSpace(r.Header.Get(entities.HeaderSupabaseURL)),
		HeaderKey:        strings.TrimSpace(r.Header.Get(entities.HeaderSupabaseKey)),
		HasCredentials:   cookie(entities.CookieHasSupabaseCredentials),
		CookieURL:        cookie(entities.CookieSupabaseURL),
		CookieAnonKey:    cookie(entities.CookieSupabaseAnonKey),
		CookieServiceKey: cookie(entities.CookieSupabaseServiceRoleKey),
		CookieProjectRef: cookie(entities.CookieSupabaseProjectRef),
		Admin:            admin,
	}
}

// ResolveCredentials applies the tenant decision table, first match wins:
// headers, then credential cookies, then configured defaults.
func ResolveCredentials(src CredentialSources, defaults infrastructure.SupabaseConfig) (entities.Credentials, error) {
	if src.HeaderURL != "" && src.HeaderKey != "" {
		return entities.Credentials{
			URL:        strings.TrimRight(src.HeaderURL, "/"),
			Key:        src.HeaderKey,
			ProjectRef: infrastructure.ProjectRefFromURL(src.HeaderURL),
			Scope:      entities.ScopeHeader,
		}, nil
	}

	if src.HasCredentials == entities.FlagTrue && src.CookieURL != "" {
		key, privileged := "", false
		switch {
		case src.Admin && src.CookieServiceKey != "":
			key, privileged = src.CookieServiceKey, true
		case src.CookieAnonKey != "":
			key = src.CookieAnonKey
		case src.CookieServiceKey != "":
			key, privileged = src.CookieServiceKey, true
		}
		if key != "" {
			ref := src.CookieProjectRef
			if ref == "" {
				ref = infrastructure.ProjectRefFromURL(src.CookieURL)
			}
			return entities.Credentials{
				URL:        strings.TrimRight(src.CookieURL, "/"),
				Key:        key,
				ProjectRef: ref,
				Scope:      entities.ScopeCookie,
				Privileged: privileged,
			}, nil
		}
	}

	return defaultCredentials(defaults, src.Admin, entities.ScopeDefault)
}

// defaultCredentials picks the service-role key for privileged callers and the anon key otherwise
func defaultCredentials(defaults infrastructure.SupabaseConfig, privileged bool, scope string) (entities.Credentials, error) {
	if !defaults.Configured() {
		return entities.Credentials{}, fmt.Errorf("no database credentials: %w", entities.ErrNotConfigured)
	}
	creds := entities.Credentials{
		URL:        defaults.URL,
		ProjectRef: defaults.ProjectRef,
		Scope:      scope,
	}
	switch {
	case privileged && defaults.ServiceRoleKey != "":
		creds.Key, creds.Privileged = defaults.ServiceRoleKey, true
	case defaults.AnonKey != "":
		creds.Key = defaults.AnonKey
	default:
		creds.Key, creds.Privileged = defaults.ServiceRoleKey, true
	}
	return creds, nil
}

// TenantManager resolves and caches one Store per project/key pair
type TenantManager struct {
	defaults infrastructure.SupabaseConfig
	stores   *cache.Cache
}

func NewTenantManager(defaults infrastructure.SupabaseConfig) *TenantManager {
	return &TenantManager{
		defaults: defaults,
		stores:   cache.New(30*time.Minute, 10*time.Minute),
	}
}

// Resolve returns the store a request should talk to
func (t *TenantManager) Resolve(r *http.Request, admin bool) (interfaces.Store, error) {
	creds, err := ResolveCredentials(SourcesFromRequest(r, admin), t.defaults)
	if err != nil {
		return nil, err
	}
	return t.ForCredentials(creds), nil
}

// System is used where no request cookies exist, such as webhook processing
func (t *TenantManager) System() (interfaces.Store, error) {
	creds, err := defaultCredentials(t.defaults, true, entities.ScopeSystem)
	if err != nil {
		return nil, err
	}
	return t.ForCredentials(creds), nil
}

// Admin always uses the configured service-role key
func (t *TenantManager) Admin() (interfaces.Store, error) {
	if t.defaults.URL == "" || t.defaults.ServiceRoleKey == "" {
		return nil, fmt.Errorf("no service role key: %w", entities.ErrNotConfigured)
	}
	return t.ForCredentials(entities.Credentials{
		URL:        t.defaults.URL,
		Key:        t.defaults.ServiceRoleKey,
		ProjectRef: t.defaults.ProjectRef,
		Scope:      entities.ScopeSystem,
		Privileged: true,
	}), nil
}

func (t *TenantManager) ForCredentials(creds entities.Credentials) interfaces.Store {
	key := creds.URL + "|" + creds.Key + "|" + creds.Scope
	if cached, ok := t.stores.Get(key); ok {
		return cached.(*Store)
	}
	store := NewStore(infrastructure.NewSupabaseClient(creds))
	t.stores.Set(key, store, cache.DefaultExpiration)
	return store
}

// Cached returns the number of live tenant stores
func (t *TenantManager) Cached() int {
	return t.stores.ItemCount()
}
