package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	// Entity store
	StoreBackend string
	RedisURL     string
	SQLiteDSN    string
	PostgresDSN  string

	// Content synthesis
	LLMProvider      string
	ModelName        string
	AnthropicAPIKey  string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OllamaURL        string
	SynthesisTimeout time.Duration
	ContentRating    string

	WorldFile string
}

var (
	storeBackends  = []string{"redis", "sqlite", "postgres", "memory"}
	llmProviders   = []string{"anthropic", "openai", "ollama", "mock"}
	contentRatings = []string{"G", "PG", "PG13", "R"}
)

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	timeout, err := time.ParseDuration(getEnv("SYNTHESIS_TIMEOUT", "45s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNTHESIS_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "redis")),
		RedisURL:     getEnv("REDIS_URL", "localhost:6379"),
		SQLiteDSN:    getEnv("SQLITE_DSN", "sqlite://wayfarer.db"),
		PostgresDSN:  getEnv("POSTGRES_DSN", ""),

		LLMProvider:      strings.ToLower(getEnv("LLM_PROVIDER", "mock")),
		ModelName:        getEnv("MODEL_NAME", ""),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
		OllamaURL:        getEnv("OLLAMA_URL", "http://localhost:11434"),
		SynthesisTimeout: timeout,
		ContentRating:    strings.ToUpper(getEnv("CONTENT_RATING", "PG13")),

		WorldFile: getEnv("WORLD_FILE", "data/worlds/temple.yaml"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements such as provider credentials.
func (c *Config) Validate() error {
	var errs []error

	if !oneOf(c.StoreBackend, storeBackends) {
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be one of %v, got %q", storeBackends, c.StoreBackend))
	}
	if c.StoreBackend == "postgres" && c.PostgresDSN == "" {
		errs = append(errs, errors.New("POSTGRES_DSN is required when STORE_BACKEND=postgres"))
	}
	if !oneOf(c.LLMProvider, llmProviders) {
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be one of %v, got %q", llmProviders, c.LLMProvider))
	}
	switch c.LLMProvider {
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic"))
		}
	case "openai":
		// Compatible servers behind OPENAI_BASE_URL may not need a key.
		if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required when LLM_PROVIDER=openai"))
		}
	}
	if c.SynthesisTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SYNTHESIS_TIMEOUT must be positive, got %s", c.SynthesisTimeout))
	}
	if !oneOf(c.ContentRating, contentRatings) {
		errs = append(errs, fmt.Errorf("CONTENT_RATING must be one of %v, got %q", contentRatings, c.ContentRating))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
