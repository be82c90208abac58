package entities

// Cookie names shared by the UI and the API. Values are read and written verbatim.
const (
	CookieAdminSession           = "admin_session"
	CookieAdminMode              = "admin_mode"
	CookieSetupComplete          = "setup_complete"
	CookieSchemaSetupCompleted   = "schema_setup_completed"
	CookieHasSupabaseCredentials = "has_supabase_credentials"
	CookieSessionToken           = "session_token"

	CookieSupabaseURL            = "supabase_url"
	CookieSupabaseAnonKey        = "supabase_anon_key"
	CookieSupabaseServiceRoleKey = "supabase_service_role_key"
	CookieSupabaseProjectRef     = "supabase_project_ref"
)

// Request headers that override cookie credentials.
const (
	HeaderSupabaseURL = "X-Supabase-Url"
	HeaderSupabaseKey = "X-Supabase-Key"
)

// FlagTrue is the only value a flag cookie is considered set with.
const FlagTrue = "true"

const (
	ScopeHeader  = "header"
	ScopeCookie  = "cookie"
	ScopeDefault = "default"
	ScopeSystem  = "system"
)

// Credentials identify one hosted database project and the key used against it.
type Credentials struct {
	URL        string `json:"supabase_url"`
	Key        string `json:"-"`
	ProjectRef string `json:"project_ref"`
	Scope      string `json:"scope"`
	Privileged bool   `json:"privileged"` // service-role key in use
}

// SetupStatus mirrors the setup flag cookies.
type SetupStatus struct {
	SetupComplete          bool `json:"setup_complete"`
	SchemaSetupCompleted   bool `json:"schema_setup_completed"`
	HasSupabaseCredentials bool `json:"has_supabase_credentials"`
	IsAdmin                bool `json:"is_admin"`
	DefaultConfigured      bool `json:"default_configured"`
}
