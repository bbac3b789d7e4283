package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/wayfarer/internal/config"
	"github.com/jwebster45206/wayfarer/pkg/chat"
)

// LLMService defines the interface for interacting with a chat model.
type LLMService interface {
	// InitModel prepares the model on startup (pulls it, checks availability).
	InitModel(ctx context.Context, modelName string) error

	// Chat sends the conversation and returns the model's reply.
	Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error)
}

const (
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultOllamaModel    = "llama3.1"
)

// NewLLMService returns the provider named by cfg.LLMProvider.
func NewLLMService(cfg *config.Config, logger *slog.Logger) (LLMService, string, error) {
	model := cfg.ModelName
	switch cfg.LLMProvider {
	case "anthropic":
		if model == "" {
			model = DefaultAnthropicModel
		}
		return NewAnthropicService(cfg.AnthropicAPIKey, model, logger), model, nil
	case "openai":
		if model == "" {
			model = DefaultOpenAIModel
		}
		return NewOpenAIService(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, model, logger), model, nil
	case "ollama":
		if model == "" {
			model = DefaultOllamaModel
		}
		return NewOllamaService(cfg.OllamaURL, model, logger), model, nil
	case "mock":
		return NewMockLLM(), "mock", nil
	default:
		return nil, "", fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}
}
