package infrastructure

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestProjectRefFromURL(t *testing.T) {
	assert.Equal(t, "abcd1234", ProjectRefFromURL("https://abcd1234.supabase.co"))
	assert.Equal(t, "abcd1234", ProjectRefFromURL("https://abcd1234.supabase.co/rest/v1"))
	assert.Equal(t, "", ProjectRefFromURL("http://localhost:54321"))
	assert.Equal(t, "", ProjectRefFromURL(""))
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://proj.supabase.co")
	t.Setenv("SUPABASE_ANON_KEY", "anon")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("EMBEDDING_DIMENSIONS", "768")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1,10.0.0.2")

	cfg := LoadConfig(zap.NewNop())
	assert.True(t, cfg.Supabase.Configured())
	assert.Equal(t, "proj", cfg.Supabase.ProjectRef)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 768, cfg.AI.EmbeddingDimensions)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.OpenAIChatModel)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Server.TrustedProxies)
}

func TestSchemaScript(t *testing.T) {
	script := SchemaScript(0)
	for _, want := range []string{"agents", "bots", "contacts", "messages", "documents", "match_documents", "exec_sql", "VECTOR(1536)"} {
		assert.True(t, strings.Contains(script, want), want)
	}
}
