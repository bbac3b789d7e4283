package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jwebster45206/wayfarer/pkg/chat"
)

// FallbackResponse is shown when the model's reply cannot be used.
const FallbackResponse = "I'm sorry, I encountered an error processing your command. Please try again."

// Narration is the model's resolution of free-form player input.
type Narration struct {
	Action       string         `json:"action"`
	StateChanges map[string]any `json:"world_state_changes,omitempty"`
	Response     string         `json:"player_response"`
}

// FallbackNarration is the narration used when the model's reply is unusable.
func FallbackNarration() *Narration {
	return &Narration{Action: "error", Response: FallbackResponse}
}

// NarrationMessages builds the prompt for free-form input. context is the
// retrieval context rendered as JSON.
func NarrationMessages(input string, context any, rating string) ([]chat.ChatMessage, error) {
	return New(NarrationSystemPrompt).
		WithRating(rating).
		WithContext("Relevant context", context).
		WithUserMessage(input).
		Build()
}

// ParseNarration decodes a model reply. A reply without a player response is an error.
func ParseNarration(text string) (*Narration, error) {
	raw, err := chat.ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var n Narration
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		return nil, fmt.Errorf("failed to parse narration reply: %w", err)
	}
	n.Response = strings.TrimSpace(n.Response)
	if n.Response == "" {
		return nil, errors.New("narration reply has no player_response")
	}
	if n.Action == "" {
		n.Action = "narrate"
	}
	return &n, nil
}
