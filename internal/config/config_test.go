// internal/config/config_test.go

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locale/internal/domain/event"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LOCALE_CONFIG", "MODEL_PROVIDER", "GOOGLE_API_KEY", "OPENAI_API_KEY",
		"RETRIEVAL_MODE", "RETRIEVAL_TIMEOUT", "SERVER_PORT", "SERVER_CORS_ORIGINS",
		"MODEL_TEMPERATURE", "NATS_URL", "AUTH_REQUIRED",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderGemini, cfg.Model.Provider)
	assert.Equal(t, string(event.ModeStructured), cfg.Retrieval.Mode)
	assert.Equal(t, 90*time.Second, cfg.Retrieval.Timeout)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Empty(t, cfg.NATS.URL)
	assert.False(t, cfg.Auth.Required)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MODEL_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "  sk-test  ")
	t.Setenv("RETRIEVAL_MODE", "text")
	t.Setenv("RETRIEVAL_TIMEOUT", "30s")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("AUTH_REQUIRED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Model.Provider)
	assert.Equal(t, "sk-test", cfg.APIKey())
	assert.Equal(t, "OPENAI_API_KEY", cfg.APIKeyVar())
	assert.NoError(t, cfg.MissingKey())
	assert.Equal(t, string(event.ModeText), cfg.Retrieval.Mode)
	assert.Equal(t, 30*time.Second, cfg.Retrieval.Timeout)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CorsOrigins)
	assert.True(t, cfg.Auth.Required)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "locale.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7000
retrieval:
  timeout: 45s
  enforce_schema: true
render:
  summary_length: 80
`), 0o600))
	t.Setenv("LOCALE_CONFIG", path)
	t.Setenv("SERVER_PORT", "7001")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7001, cfg.Server.Port)
	assert.Equal(t, 45*time.Second, cfg.Retrieval.Timeout)
	assert.True(t, cfg.Retrieval.EnforceSchema)
	assert.Equal(t, 80, cfg.Render.SummaryLength)
	assert.Equal(t, "gemini-2.5-flash", cfg.Model.GeminiModel)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"MODEL_PROVIDER", "anthropic"},
		{"RETRIEVAL_MODE", "html"},
		{"MODEL_TEMPERATURE", "1.5"},
		{"SERVER_PORT", "70000"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOCALE_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestMissingKey(t *testing.T) {
	cfg := Default()

	err := cfg.MissingKey()
	require.Error(t, err)
	assert.ErrorIs(t, err, event.ErrConfigMissing)
	assert.Contains(t, err.Error(), "GOOGLE_API_KEY is not set")

	cfg.Model.GoogleAPIKey = "key"
	assert.NoError(t, cfg.MissingKey())
}
