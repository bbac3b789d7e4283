package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/jwebster45206/wayfarer/pkg/graph"
	"github.com/jwebster45206/wayfarer/pkg/prompts"
	"github.com/jwebster45206/wayfarer/pkg/textfilter"
)

var _ graph.ContentSynthesizer = (*LLMSynthesizer)(nil)

// LLMSynthesizer invents locations with a chat model. Replies are cleaned for
// the configured content rating before the graph sees them.
type LLMSynthesizer struct {
	llm       LLMService
	rating    string
	sanitizer *textfilter.Sanitizer
	logger    *slog.Logger
}

func NewLLMSynthesizer(llm LLMService, rating string, logger *slog.Logger) *LLMSynthesizer {
	return &LLMSynthesizer{
		llm:       llm,
		rating:    rating,
		sanitizer: textfilter.NewSanitizer(rating),
		logger:    logger,
	}
}

func (s *LLMSynthesizer) Synthesize(ctx context.Context, req graph.SynthesisRequest) (*graph.SynthesisResult, error) {
	messages, err := prompts.SynthesisMessages(req, s.rating)
	if err != nil {
		return nil, fmt.Errorf("failed to build synthesis prompt: %w", err)
	}

	resp, err := s.llm.Chat(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to generate location: %w", err)
	}

	result, err := prompts.ParseSynthesis(resp.Message)
	if err != nil {
		s.logger.Warn("Unusable synthesis reply",
			"origin_id", req.Origin.ID,
			"connection", req.Connection,
			"reply", resp.Message,
			"error", err)
		return nil, err
	}

	if s.sanitizer.Filters(result.Name) || s.sanitizer.Filters(result.Description) {
		s.logger.Info("Filtering synthesized location for content rating",
			"origin_id", req.Origin.ID,
			"connection", req.Connection,
			"rating", s.rating)
	}
	s.clean(result)
	if result.Name == "" {
		return nil, errors.New("synthesized location has no name")
	}

	s.logger.Debug("Location synthesized",
		"origin_id", req.Origin.ID,
		"connection", req.Connection,
		"reserved_id", req.ReservedID,
		"name", result.Name,
		"exits", len(result.Connections))
	return result, nil
}

func (s *LLMSynthesizer) clean(result *graph.SynthesisResult) {
	result.Name = s.sanitizer.Name(result.Name)
	result.Description = s.sanitizer.Text(result.Description)
	result.Items = s.sanitizer.Items(result.Items)
	result.BackConnection = s.exitName(result.BackConnection)

	names := make([]string, 0, len(result.Connections))
	for name := range result.Connections {
		names = append(names, name)
	}
	sort.Strings(names)

	exits := make(map[string]graph.EdgeSpec, len(names))
	for _, name := range names {
		spec := result.Connections[name]
		clean := s.exitName(name)
		if clean == "" {
			continue
		}
		if _, dup := exits[clean]; dup {
			continue
		}
		spec.Description = s.sanitizer.Text(spec.Description)
		exits[clean] = spec
	}
	result.Connections = exits
}

func (s *LLMSynthesizer) exitName(name string) string {
	return strings.ToLower(s.sanitizer.Text(name))
}
