package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/jwebster45206/wayfarer/pkg/chat"
)

const (
	DefaultOpenAITemperature = 0.7
	DefaultOpenAIMaxTokens   = 1024
)

// OpenAIService implements LLMService for OpenAI and OpenAI-compatible servers
// (vLLM, LocalAI, LM Studio) reached through baseURL.
type OpenAIService struct {
	client    *openai.Client
	modelName string
	logger    *slog.Logger
}

func NewOpenAIService(apiKey, baseURL, modelName string, logger *slog.Logger) *OpenAIService {
	if apiKey == "" {
		apiKey = "dummy-key" // Local servers don't need a real key
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	config.HTTPClient = &http.Client{
		Timeout: 120 * time.Second,
	}

	return &OpenAIService{
		client:    openai.NewClientWithConfig(config),
		modelName: modelName,
		logger:    logger,
	}
}

// InitModel checks that the server lists the model. Compatible servers without
// a models endpoint only produce a warning.
func (s *OpenAIService) InitModel(ctx context.Context, modelName string) error {
	models, err := s.client.ListModels(ctx)
	if err != nil {
		s.logger.Warn("Could not list OpenAI models", "error", err, "model", modelName)
		return nil
	}

	for _, m := range models.Models {
		if m.ID == modelName {
			s.logger.Info("Model available", "model", modelName)
			return nil
		}
	}
	return fmt.Errorf("model %s not offered by server", modelName)
}

func (s *OpenAIService) Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:       s.modelName,
		Messages:    toOpenAIMessages(messages),
		Temperature: DefaultOpenAITemperature,
		MaxTokens:   DefaultOpenAIMaxTokens,
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("empty response from model %s", s.modelName)
	}

	s.logger.Debug("OpenAI response received",
		"model", resp.Model,
		"finish_reason", resp.Choices[0].FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	return &chat.ChatResponse{
		Message: resp.Choices[0].Message.Content,
		Model:   resp.Model,
	}, nil
}

func toOpenAIMessages(messages []chat.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case chat.ChatRoleSystem:
			role = openai.ChatMessageRoleSystem
		case chat.ChatRoleAgent:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
