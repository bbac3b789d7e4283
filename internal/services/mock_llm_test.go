package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/wayfarer/pkg/chat"
	"github.com/jwebster45206/wayfarer/pkg/graph"
	"github.com/jwebster45206/wayfarer/pkg/prompts"
	"github.com/jwebster45206/wayfarer/pkg/world"
)

func TestMockLLM_Defaults(t *testing.T) {
	mock := NewMockLLM()
	ctx := context.Background()

	require.NoError(t, mock.InitModel(ctx, "test-model"))
	assert.Equal(t, []string{"test-model"}, mock.InitModelCalls)

	resp, err := mock.Chat(ctx, []chat.ChatMessage{chat.UserMessage("Hello")})
	require.NoError(t, err)
	assert.Equal(t, "Mock response", resp.Message)

	msgs, err := prompts.SynthesisMessages(graph.SynthesisRequest{
		Origin:     &world.Location{ID: 1, Name: "Gate"},
		Connection: "north",
	}, "PG")
	require.NoError(t, err)

	first, err := mock.Chat(ctx, msgs)
	require.NoError(t, err)
	second, err := mock.Chat(ctx, msgs)
	require.NoError(t, err)

	r1, err := prompts.ParseSynthesis(first.Message)
	require.NoError(t, err)
	r2, err := prompts.ParseSynthesis(second.Message)
	require.NoError(t, err)
	assert.NotEqual(t, r1.Name, r2.Name)
	assert.Contains(t, r1.Connections, "onward")

	msgs, err = prompts.NarrationMessages("whistle", nil, "PG")
	require.NoError(t, err)
	resp, err = mock.Chat(ctx, msgs)
	require.NoError(t, err)
	n, err := prompts.ParseNarration(resp.Message)
	require.NoError(t, err)
	assert.Equal(t, "Nothing much happens.", n.Response)

	assert.Len(t, mock.GetChatCalls(), 4)
	mock.Reset()
	assert.Empty(t, mock.GetChatCalls())
}

func TestMockLLM_Scripted(t *testing.T) {
	mock := NewMockLLM()
	ctx := context.Background()

	mock.Respond("scripted")
	resp, err := mock.Chat(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "scripted", resp.Message)

	boom := errors.New("boom")
	mock.SetChatError(boom)
	_, err = mock.Chat(ctx, nil)
	assert.ErrorIs(t, err, boom)

	mock.SetInitModelError(boom)
	assert.ErrorIs(t, mock.InitModel(ctx, "m"), boom)
}
