package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allVars = []string{
	"PORT", "ENVIRONMENT", "LOG_LEVEL", "STORE_BACKEND", "REDIS_URL", "SQLITE_DSN", "POSTGRES_DSN",
	"LLM_PROVIDER", "MODEL_NAME", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "OPENAI_BASE_URL",
	"OLLAMA_URL", "SYNTHESIS_TIMEOUT", "CONTENT_RATING", "WORLD_FILE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allVars {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "redis", cfg.StoreBackend)
	assert.Equal(t, "mock", cfg.LLMProvider)
	assert.Equal(t, 45*time.Second, cfg.SynthesisTimeout)
	assert.Equal(t, "PG13", cfg.ContentRating)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("SQLITE_DSN", "sqlite:///tmp/w.db")
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "k")
	t.Setenv("SYNTHESIS_TIMEOUT", "2m")
	t.Setenv("CONTENT_RATING", "r")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.Equal(t, "sqlite:///tmp/w.db", cfg.SQLiteDSN)
	assert.Equal(t, 2*time.Minute, cfg.SynthesisTimeout)
	assert.Equal(t, "R", cfg.ContentRating)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad backend", map[string]string{"STORE_BACKEND": "mongo"}, "STORE_BACKEND"},
		{"postgres without dsn", map[string]string{"STORE_BACKEND": "postgres"}, "POSTGRES_DSN"},
		{"bad provider", map[string]string{"LLM_PROVIDER": "venice"}, "LLM_PROVIDER"},
		{"anthropic without key", map[string]string{"LLM_PROVIDER": "anthropic"}, "ANTHROPIC_API_KEY"},
		{"openai without key", map[string]string{"LLM_PROVIDER": "openai"}, "OPENAI_API_KEY"},
		{"unparseable timeout", map[string]string{"SYNTHESIS_TIMEOUT": "soon"}, "SYNTHESIS_TIMEOUT"},
		{"negative timeout", map[string]string{"SYNTHESIS_TIMEOUT": "-1s"}, "SYNTHESIS_TIMEOUT"},
		{"bad rating", map[string]string{"CONTENT_RATING": "NC17"}, "CONTENT_RATING"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_OpenAICompatibleWithoutKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:8000/v1")

	_, err := Load()
	assert.NoError(t, err)
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
