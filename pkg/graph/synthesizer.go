package graph

import (
	"context"

	"github.com/jwebster45206/wayfarer/pkg/world"
)

// ContentSynthesizer produces the content of a location that does not exist yet.
// Implementations must honor ctx cancellation; the manager abandons calls that
// outlive the synthesis timeout either way.
type ContentSynthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)
}

// SynthesisRequest is what the synthesizer is told about the traversal.
type SynthesisRequest struct {
	Origin     *world.Location `json:"origin"`
	Connection string          `json:"connection"`
	ReservedID int64           `json:"reserved_id"`
}

// SynthesisResult describes a new location. Connections should include an entry
// usable as the way back; BackConnection names it explicitly when set.
type SynthesisResult struct {
	Name           string              `json:"name"`
	Description    string              `json:"description"`
	Items          []string            `json:"items,omitempty"`
	BackConnection string              `json:"back_connection,omitempty"`
	Connections    map[string]EdgeSpec `json:"connections"`
}

// EdgeSpec is a synthesizer's proposal for one exit of the new location.
type EdgeSpec struct {
	Description string `json:"description,omitempty"`
	TargetID    int64  `json:"target_id,omitempty"`
}

// SynthesizerFunc adapts a function to ContentSynthesizer.
type SynthesizerFunc func(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)

func (f SynthesizerFunc) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	return f(ctx, req)
}
