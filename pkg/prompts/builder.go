package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jwebster45206/wayfarer/pkg/chat"
)

type section struct {
	label string
	value any
}

// Builder constructs chat messages for LLM interaction using a fluent interface.
// Context sections are rendered as indented JSON inside the system prompt.
type Builder struct {
	system      string
	rating      string
	sections    []section
	userMessage string
}

// New creates a builder for the given system prompt.
func New(system string) *Builder {
	return &Builder{system: system}
}

// WithRating appends content rating guidance to the system prompt.
func (b *Builder) WithRating(rating string) *Builder {
	b.rating = rating
	return b
}

// WithContext adds a labelled JSON section. Nil values are skipped.
func (b *Builder) WithContext(label string, value any) *Builder {
	if value != nil {
		b.sections = append(b.sections, section{label: label, value: value})
	}
	return b
}

// WithUserMessage sets the final user turn.
func (b *Builder) WithUserMessage(message string) *Builder {
	b.userMessage = message
	return b
}

// Build returns a system message followed by the user message.
func (b *Builder) Build() ([]chat.ChatMessage, error) {
	if b.system == "" {
		return nil, errors.New("system prompt is required")
	}
	if strings.TrimSpace(b.userMessage) == "" {
		return nil, errors.New("user message is required")
	}

	var sb strings.Builder
	sb.WriteString(b.system)

	if b.rating != "" {
		sb.WriteString("\n\nContent Rating: " + b.rating + " (" + GetContentRatingPrompt(b.rating) + ")")
	}

	for _, s := range b.sections {
		data, err := json.MarshalIndent(s.value, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("error rendering %s: %w", s.label, err)
		}
		sb.WriteString("\n\n" + s.label + ":\n```json\n" + string(data) + "\n```")
	}

	return []chat.ChatMessage{
		chat.SystemMessage(sb.String()),
		chat.UserMessage(b.userMessage),
	}, nil
}
