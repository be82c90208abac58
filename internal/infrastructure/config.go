package infrastructure

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds application configuration
type Config struct {
	Server   ServerConfig
	Admin    AdminConfig
	Supabase SupabaseConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Telegram TelegramConfig
	AI       AIConfig
	CORS     CORSConfig
	Cookies  CookieConfig
}

type ServerConfig struct {
	Port           string
	Mode           string // gin mode: debug / release / test
	PublicBaseURL  string // used to build webhook URLs
	MaxBodyBytes   int64
	TrustedProxies []string // X-Forwarded-For is only believed from these; empty means none
}

type AdminConfig struct {
	Password      string
	PasswordHash  string
	SessionSecret string
}

type SupabaseConfig struct {
	URL            string
	AnonKey        string
	ServiceRoleKey string
	ProjectRef     string
}

// Configured reports whether a default project can be reached with at least one key.
func (s SupabaseConfig) Configured() bool {
	return s.URL != "" && (s.AnonKey != "" || s.ServiceRoleKey != "")
}

type DatabaseConfig struct {
	URL      string
	MaxConns int32
}

type RedisConfig struct {
	URL string
}

type TelegramConfig struct {
	BotToken      string
	WebhookSecret string
	APIEndpoint   string
}

type AIConfig struct {
	OpenAIKey            string
	OpenAIBaseURL        string
	OpenAIChatModel      string
	OpenAIEmbeddingModel string
	GeminiKey            string
	GeminiChatModel      string
	GeminiEmbeddingModel string
	EmbeddingDimensions  int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type CookieConfig struct {
	Secure bool
	Domain string
}

// LoadConfig loads configuration from the .env file and environment variables
func LoadConfig(logger *zap.Logger) *Config {
	if err := godotenv.Load(); err != nil {
		logger.Warn(".env file not loaded, using environment only", zap.Error(err))
	}

	v := viper.New()
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.public_base_url", "")
	v.SetDefault("server.max_body_bytes", 10<<20)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("telegram.api_endpoint", "https://api.telegram.org/bot%s/%s")
	v.SetDefault("ai.openai_chat_model", "gpt-4o-mini")
	v.SetDefault("ai.openai_embedding_model", "text-embedding-3-small")
	v.SetDefault("ai.gemini_chat_model", "gemini-2.5-flash")
	v.SetDefault("ai.gemini_embedding_model", "gemini-embedding-001")
	v.SetDefault("ai.embedding_dimensions", 1536)
	v.SetDefault("cors.allowed_origins", "")
	v.SetDefault("cookies.secure", false)

	// Map environment variables to config keys
	v.BindEnv("server.port", "SERVER_PORT", "PORT")
	v.BindEnv("server.mode", "GIN_MODE")
	v.BindEnv("server.public_base_url", "PUBLIC_BASE_URL")
	v.BindEnv("server.max_body_bytes", "MAX_BODY_BYTES")
	v.BindEnv("server.trusted_proxies", "TRUSTED_PROXIES")
	v.BindEnv("admin.password", "ADMIN_PASSWORD")
	v.BindEnv("admin.password_hash", "ADMIN_PASSWORD_HASH")
	v.BindEnv("admin.session_secret", "SESSION_SECRET")
	v.BindEnv("supabase.url", "SUPABASE_URL", "NEXT_PUBLIC_SUPABASE_URL")
	v.BindEnv("supabase.anon_key", "SUPABASE_ANON_KEY", "NEXT_PUBLIC_SUPABASE_ANON_KEY")
	v.BindEnv("supabase.service_role_key", "SUPABASE_SERVICE_ROLE_KEY")
	v.BindEnv("supabase.project_ref", "SUPABASE_PROJECT_REF")
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.max_conns", "DATABASE_MAX_CONNS")
	v.BindEnv("redis.url", "REDIS_URL")
	v.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("telegram.webhook_secret", "TELEGRAM_WEBHOOK_SECRET")
	v.BindEnv("telegram.api_endpoint", "TELEGRAM_API_ENDPOINT")
	v.BindEnv("ai.openai_key", "OPENAI_API_KEY")
	v.BindEnv("ai.openai_base_url", "OPENAI_BASE_URL")
	v.BindEnv("ai.openai_chat_model", "OPENAI_CHAT_MODEL")
	v.BindEnv("ai.openai_embedding_model", "OPENAI_EMBEDDING_MODEL")
	v.BindEnv("ai.gemini_key", "GEMINI_API_KEY")
	v.BindEnv("ai.gemini_chat_model", "GEMINI_CHAT_MODEL")
	v.BindEnv("ai.gemini_embedding_model", "GEMINI_EMBEDDING_MODEL")
	v.BindEnv("ai.embedding_dimensions", "EMBEDDING_DIMENSIONS")
	v.BindEnv("cors.allowed_origins", "CORS_ALLOWED_ORIGINS")
	v.BindEnv("cookies.secure", "COOKIE_SECURE")
	v.BindEnv("cookies.domain", "COOKIE_DOMAIN")

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("server.port"),
			Mode:           v.GetString("server.mode"),
			PublicBaseURL:  strings.TrimRight(v.GetString("server.public_base_url"), "/"),
			MaxBodyBytes:   v.GetInt64("server.max_body_bytes"),
			TrustedProxies: splitList(v.GetString("server.trusted_proxies")),
		},
		Admin: AdminConfig{
			Password:      v.GetString("admin.password"),
			PasswordHash:  v.GetString("admin.password_hash"),
			SessionSecret: v.GetString("admin.session_secret"),
		},
		Supabase: SupabaseConfig{
			URL:            strings.TrimRight(v.GetString("supabase.url"), "/"),
			AnonKey:        v.GetString("supabase.anon_key"),
			ServiceRoleKey: v.GetString("supabase.service_role_key"),
			ProjectRef:     v.GetString("supabase.project_ref"),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("database.url"),
			MaxConns: v.GetInt32("database.max_conns"),
		},
		Redis: RedisConfig{
			URL: v.GetString("redis.url"),
		},
		Telegram: TelegramConfig{
			BotToken:      v.GetString("telegram.bot_token"),
			WebhookSecret: v.GetString("telegram.webhook_secret"),
			APIEndpoint:   v.GetString("telegram.api_endpoint"),
		},
		AI: AIConfig{
			OpenAIKey:            v.GetString("ai.openai_key"),
			OpenAIBaseURL:        v.GetString("ai.openai_base_url"),
			OpenAIChatModel:      v.GetString("ai.openai_chat_model"),
			OpenAIEmbeddingModel: v.GetString("ai.openai_embedding_model"),
			GeminiKey:            v.GetString("ai.gemini_key"),
			GeminiChatModel:      v.GetString("ai.gemini_chat_model"),
			GeminiEmbeddingModel: v.GetString("ai.gemini_embedding_model"),
			EmbeddingDimensions:  v.GetInt("ai.embedding_dimensions"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
		},
		Cookies: CookieConfig{
			Secure: v.GetBool("cookies.secure"),
			Domain: v.GetString("cookies.domain"),
		},
	}

	if cfg.Supabase.ProjectRef == "" {
		cfg.Supabase.ProjectRef = ProjectRefFromURL(cfg.Supabase.URL)
	}
	if cfg.Admin.SessionSecret == "" {
		logger.Warn("SESSION_SECRET not set, admin sessions will not survive a restart")
	}

	return cfg
}

// ProjectRefFromURL extracts "abcd" from "https://abcd.supabase.co".
func ProjectRefFromURL(rawURL string) string {
	host := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	if i := strings.IndexAny(host, "/:"); i >= 0 {
		host = host[:i]
	}
	if !strings.HasSuffix(host, ".supabase.co") {
		return ""
	}
	return strings.TrimSuffix(host, ".supabase.co")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
