package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/wayfarer/pkg/chat"
	"github.com/jwebster45206/wayfarer/pkg/graph"
	"github.com/jwebster45206/wayfarer/pkg/storage"
	"github.com/jwebster45206/wayfarer/pkg/world"
	"github.com/jwebster45206/wayfarer/pkg/worldstate"
)

func synthesisRequest() graph.SynthesisRequest {
	return graph.SynthesisRequest{
		Origin: &world.Location{
			ID:          1,
			Name:        "Temple Entrance",
			Description: "Crumbling pillars.",
			Connections: map[string]world.ConnectionEdge{"north": {Name: "north", IsPlaceholder: true, TargetID: 2}},
		},
		Connection: "north",
		ReservedID: 2,
	}
}

func TestLLMSynthesizer_CleansReply(t *testing.T) {
	mock := NewMockLLM()
	mock.Respond("```json\n" + `{
		"name": "the  damn   crypt",
		"description": "Bones.   Everywhere.",
		"items": ["Skull", "skull ", ""],
		"back_connection": " South ",
		"connections": {
			"South": {"description": "up the   stairs"},
			"south": {"description": "duplicate"},
			"  ": {"description": "blank"},
			"Deeper In": {"description": "darkness"}
		}
	}` + "\n```")

	s := NewLLMSynthesizer(mock, "PG", discardLogger())
	result, err := s.Synthesize(context.Background(), synthesisRequest())
	require.NoError(t, err)

	assert.Equal(t, "The Dang Crypt", result.Name)
	assert.Equal(t, "Bones. Everywhere.", result.Description)
	assert.Equal(t, []string{"skull"}, result.Items)
	assert.Equal(t, "south", result.BackConnection)
	assert.Equal(t, map[string]graph.EdgeSpec{
		"south":     {Description: "up the stairs"},
		"deeper in": {Description: "darkness"},
	}, result.Connections)

	calls := mock.GetChatCalls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0][0].Content, "Content Rating: PG")
	assert.Contains(t, calls[0][1].Content, `"north"`)
}

func TestLLMSynthesizer_LogsFilteredReply(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	mock := NewMockLLM()
	mock.Respond(`{"name": "hell's gate", "description": "A gate."}`)
	_, err := NewLLMSynthesizer(mock, "G", logger).Synthesize(context.Background(), synthesisRequest())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Filtering synthesized location")

	buf.Reset()
	mock.Respond(`{"name": "hell's gate", "description": "A gate."}`)
	_, err = NewLLMSynthesizer(mock, "R", logger).Synthesize(context.Background(), synthesisRequest())
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "Filtering synthesized location")
}

func TestLLMSynthesizer_Failures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *MockLLM)
	}{
		{"model error", func(m *MockLLM) { m.SetChatError(errors.New("503")) }},
		{"prose reply", func(m *MockLLM) { m.Respond("A cold wind blows.") }},
		{"empty name", func(m *MockLLM) { m.Respond(`{"name":"  ","description":"x","connections":{}}`) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockLLM()
			tt.setup(mock)
			_, err := NewLLMSynthesizer(mock, "R", discardLogger()).Synthesize(context.Background(), synthesisRequest())
			assert.Error(t, err)
		})
	}
}

// The synthesizer drives a real graph traversal end to end.
func TestLLMSynthesizer_WithGraph(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	tracker := worldstate.NewTracker(store, discardLogger())
	mock := NewMockLLM()
	synth := NewLLMSynthesizer(mock, "PG13", discardLogger())
	m := graph.New(store, synth, tracker, graph.WithLogger(discardLogger()), graph.WithSynthesisTimeout(time.Second))
	require.NoError(t, m.Load(ctx))

	start, err := m.CreateLocation(ctx, &world.Location{Name: "Gate", Description: "A gate."})
	require.NoError(t, err)
	_, err = m.AddConnection(ctx, start.ID, "north", world.Placeholder("a dark path"))
	require.NoError(t, err)

	outcome := m.Traverse(ctx, start.ID, "north")
	require.Equal(t, world.OutcomeMaterialized, outcome.Kind, outcome.String())
	assert.True(t, strings.HasPrefix(outcome.Location.Name, "Uncharted Chamber"))
	assert.Contains(t, outcome.Location.Connections, "south")
	assert.Contains(t, outcome.Location.Connections, "onward")
	require.NoError(t, m.ValidateBidirectionalClosure())

	// A model that hangs past the deadline becomes a timeout.
	mock.ChatFunc = func(ctx context.Context, _ []chat.ChatMessage) (*chat.ChatResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	m2 := graph.New(store, synth, tracker, graph.WithLogger(discardLogger()), graph.WithSynthesisTimeout(20*time.Millisecond))
	require.NoError(t, m2.Load(ctx))
	outcome = m2.Traverse(ctx, outcome.LocationID, "onward")
	assert.Equal(t, world.OutcomeFailed, outcome.Kind)
	assert.Equal(t, world.ReasonTimeout, outcome.Reason)
}
