package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/wayfarer/pkg/storage"
	"github.com/jwebster45206/wayfarer/pkg/storage/storagetest"
)

func TestMemoryStore_Conformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.EntityStore {
		return storage.NewMemoryStore()
	})
}

func TestMemoryStore_FailOn(t *testing.T) {
	s := storage.NewMemoryStore()
	ctx := context.Background()

	s.FailOn(storage.OpGet, errors.New("connection reset"))
	_, err := s.Get(ctx, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrUnavailable))
	assert.Equal(t, 1, s.Calls(storage.OpGet))

	s.FailOn(storage.OpGet, nil)
	e, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := storage.NewMemoryStore()
	ctx := context.Background()

	id, err := s.Create(ctx, &storage.Entity{Kind: storage.KindLocation, Name: "Hall", Properties: map[string]any{"items": []any{"torch"}}})
	require.NoError(t, err)

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	got.Properties["items"] = []any{"stolen"}

	again, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []any{"torch"}, again.Properties["items"])
}

func TestDecodeProperty(t *testing.T) {
	type edge struct {
		TargetID int64 `json:"target_id"`
	}
	props := map[string]any{"north": map[string]any{"target_id": float64(2)}}

	var e edge
	ok, err := storage.DecodeProperty(props, "north", &e)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(2), e.TargetID)

	ok, err = storage.DecodeProperty(props, "south", &e)
	require.NoError(t, err)
	assert.False(t, ok)

	out := map[string]any{}
	require.NoError(t, storage.EncodeProperty(out, "edge", edge{TargetID: 3}))
	assert.Equal(t, map[string]any{"target_id": float64(3)}, out["edge"])
}
