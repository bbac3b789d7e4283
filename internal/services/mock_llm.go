package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jwebster45206/wayfarer/pkg/chat"
	"github.com/jwebster45206/wayfarer/pkg/prompts"
)

// MockLLM is an offline LLMService. By default it answers synthesis and
// narration prompts with well-formed JSON so the whole game runs without a model.
type MockLLM struct {
	InitModelFunc func(ctx context.Context, modelName string) error
	ChatFunc      func(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error)

	// Track calls for testing
	InitModelCalls []string
	ChatCalls      [][]chat.ChatMessage

	generated int
	mu        sync.Mutex // protects all fields above
}

func NewMockLLM() *MockLLM {
	return &MockLLM{
		InitModelCalls: make([]string, 0),
		ChatCalls:      make([][]chat.ChatMessage, 0),
	}
}

func (m *MockLLM) InitModel(ctx context.Context, modelName string) error {
	m.mu.Lock()
	m.InitModelCalls = append(m.InitModelCalls, modelName)
	fn := m.InitModelFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, modelName)
	}
	return nil
}

func (m *MockLLM) Chat(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
	m.mu.Lock()
	m.ChatCalls = append(m.ChatCalls, messages)
	fn := m.ChatFunc
	m.mu.Unlock()

	// Called without the lock so scripted functions may block on ctx.
	if fn != nil {
		return fn(ctx, messages)
	}

	switch {
	case hasSystemPrefix(messages, prompts.SynthesisSystemPrompt):
		m.mu.Lock()
		m.generated++
		n := m.generated
		m.mu.Unlock()
		return &chat.ChatResponse{Model: "mock", Message: fmt.Sprintf(
			`{"name":"Uncharted Chamber %d","description":"Dust hangs in the still air of an unremarkable room.","items":[],"connections":{"onward":{"description":"a dim passage"}}}`, n)}, nil
	case hasSystemPrefix(messages, prompts.NarrationSystemPrompt):
		return &chat.ChatResponse{Model: "mock", Message: `{"action":"ponder","world_state_changes":{},"player_response":"Nothing much happens."}`}, nil
	default:
		return &chat.ChatResponse{Model: "mock", Message: "Mock response"}, nil
	}
}

// Respond scripts every later Chat call to return text.
func (m *MockLLM) Respond(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatFunc = func(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
		return &chat.ChatResponse{Message: text, Model: "mock"}, nil
	}
}

// SetChatError sets up the mock to return an error on Chat
func (m *MockLLM) SetChatError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatFunc = func(ctx context.Context, messages []chat.ChatMessage) (*chat.ChatResponse, error) {
		return nil, err
	}
}

// SetInitModelError sets up the mock to return an error on InitModel
func (m *MockLLM) SetInitModelError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelFunc = func(ctx context.Context, modelName string) error {
		return err
	}
}

// GetChatCalls returns a copy of the recorded conversations.
func (m *MockLLM) GetChatCalls() [][]chat.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]chat.ChatMessage, len(m.ChatCalls))
	copy(out, m.ChatCalls)
	return out
}

// Reset clears all call tracking
func (m *MockLLM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelCalls = make([]string, 0)
	m.ChatCalls = make([][]chat.ChatMessage, 0)
}

func hasSystemPrefix(messages []chat.ChatMessage, prompt string) bool {
	if len(messages) == 0 || messages[0].Role != chat.ChatRoleSystem {
		return false
	}
	prefix := prompt
	if len(prefix) > 50 {
		prefix = prefix[:50]
	}
	return strings.HasPrefix(messages[0].Content, prefix)
}
