package graph

import (
	"context"
	"log/slog"
	"time"

	"github.com/jwebster45206/wayfarer/pkg/world"
)

// DefaultSynthesisTimeout bounds a single Content Synthesizer call.
const DefaultSynthesisTimeout = 45 * time.Second

// Publisher is notified after a traversal arrives somewhere.
type Publisher interface {
	PublishTraversal(ctx context.Context, outcome world.TraversalOutcome) error
}

// Recorder receives traversal and synthesis measurements.
type Recorder interface {
	ObserveTraversal(outcome world.TraversalOutcome, elapsed time.Duration)
	ObserveSynthesis(elapsed time.Duration, err error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithSynthesisTimeout bounds each synthesizer call. Non-positive values keep the default.
func WithSynthesisTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithClock replaces the time source used for measurements.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithPublisher sets where Visit and Materialized outcomes are announced.
func WithPublisher(p Publisher) Option {
	return func(m *Manager) {
		m.publisher = p
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		m.recorder = r
	}
}
