package services

import (
	"context"
	"log/slog"

	"github.com/jwebster45206/wayfarer/internal/retrieval"
	"github.com/jwebster45206/wayfarer/pkg/prompts"
	"github.com/jwebster45206/wayfarer/pkg/textfilter"
)

// LLMNarrator resolves free-form player input with a chat model. Model and
// parse failures return the fallback narration; only cancellation is an error.
type LLMNarrator struct {
	llm       LLMService
	rating    string
	sanitizer *textfilter.Sanitizer
	logger    *slog.Logger
}

func NewLLMNarrator(llm LLMService, rating string, logger *slog.Logger) *LLMNarrator {
	return &LLMNarrator{
		llm:       llm,
		rating:    rating,
		sanitizer: textfilter.NewSanitizer(rating),
		logger:    logger,
	}
}

func (n *LLMNarrator) Narrate(ctx context.Context, input string, rc *retrieval.Context) (*prompts.Narration, error) {
	messages, err := prompts.NarrationMessages(input, rc, n.rating)
	if err != nil {
		return nil, err
	}

	resp, err := n.llm.Chat(ctx, messages)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		n.logger.Error("Narration request failed", "error", err)
		return prompts.FallbackNarration(), nil
	}

	narration, err := prompts.ParseNarration(resp.Message)
	if err != nil {
		n.logger.Warn("Unusable narration reply", "reply", resp.Message, "error", err)
		return prompts.FallbackNarration(), nil
	}

	narration.Response = n.sanitizer.Text(narration.Response)
	return narration, nil
}
