package prompts

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jwebster45206/wayfarer/pkg/chat"
	"github.com/jwebster45206/wayfarer/pkg/graph"
)

// originView is what the model is shown about the place the player left.
type originView struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Items       []string `json:"items,omitempty"`
	Exits       []string `json:"exits"`
}

// SynthesisMessages builds the prompt for inventing the far side of a connection.
func SynthesisMessages(req graph.SynthesisRequest, rating string) ([]chat.ChatMessage, error) {
	if req.Origin == nil {
		return nil, fmt.Errorf("origin location is required")
	}

	exits := make([]string, 0, len(req.Origin.Connections))
	for name := range req.Origin.Connections {
		exits = append(exits, name)
	}
	sort.Strings(exits)

	origin := originView{
		Name:        req.Origin.Name,
		Description: req.Origin.Description,
		Items:       req.Origin.Items,
		Exits:       exits,
	}

	return New(SynthesisSystemPrompt).
		WithRating(rating).
		WithContext("Origin location", origin).
		WithUserMessage(fmt.Sprintf("The player leaves %s by the exit %q. Where do they arrive?", req.Origin.Name, req.Connection)).
		Build()
}

type exitReply struct {
	Description string `json:"description"`
}

type synthesisReply struct {
	Name           string               `json:"name"`
	Description    string               `json:"description"`
	Items          []string             `json:"items"`
	BackConnection string               `json:"back_connection"`
	Connections    map[string]exitReply `json:"connections"`
}

// ParseSynthesis decodes a model reply into a synthesis result. Exit targets
// are never taken from the model: every proposed exit is unresolved.
func ParseSynthesis(text string) (*graph.SynthesisResult, error) {
	raw, err := chat.ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var reply synthesisReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, fmt.Errorf("failed to parse synthesis reply: %w", err)
	}

	result := &graph.SynthesisResult{
		Name:           reply.Name,
		Description:    reply.Description,
		Items:          reply.Items,
		BackConnection: reply.BackConnection,
		Connections:    make(map[string]graph.EdgeSpec, len(reply.Connections)),
	}
	for name, c := range reply.Connections {
		result.Connections[name] = graph.EdgeSpec{Description: c.Description}
	}
	return result, nil
}
