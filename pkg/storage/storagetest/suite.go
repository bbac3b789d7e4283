// Package storagetest holds the conformance checks every EntityStore backend must pass.
package storagetest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/wayfarer/pkg/storage"
)

// Factory returns a fresh, empty store. Cleanup is the factory's job (t.Cleanup).
type Factory func(t *testing.T) storage.EntityStore

// Run executes the conformance suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("NextID is unique and increasing", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		seen := make(map[int64]bool)
		var last int64
		for i := 0; i < 5; i++ {
			id, err := s.NextID(ctx)
			require.NoError(t, err)
			assert.Greater(t, id, last)
			assert.False(t, seen[id], "id %d handed out twice", id)
			seen[id] = true
			last = id
		}
	})

	t.Run("Create assigns ids and honors explicit ids", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		auto := &storage.Entity{Kind: storage.KindLocation, Name: "Ancient Temple Entrance"}
		id, err := s.Create(ctx, auto)
		require.NoError(t, err)
		assert.NotZero(t, id)
		assert.Equal(t, id, auto.ID)

		explicit := &storage.Entity{ID: id + 10, Kind: storage.KindLocation, Name: "Cave"}
		gotID, err := s.Create(ctx, explicit)
		require.NoError(t, err)
		assert.Equal(t, id+10, gotID)

		_, err = s.Create(ctx, &storage.Entity{ID: id + 10, Kind: storage.KindLocation, Name: "Other Cave"})
		assert.True(t, errors.Is(err, storage.ErrExists), "expected ErrExists, got %v", err)

		next, err := s.NextID(ctx)
		require.NoError(t, err)
		assert.Greater(t, next, id+10, "sequence must skip explicitly created ids")
	})

	t.Run("Get returns nil for missing entities", func(t *testing.T) {
		s := newStore(t)
		e, err := s.Get(context.Background(), 4242)
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("properties round trip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		props := map[string]any{
			"items": []any{"torch", "hieroglyphs"},
			"connections": map[string]any{
				"north": map[string]any{"name": "north", "target_id": float64(2), "is_placeholder": false},
			},
		}
		id, err := s.Create(ctx, &storage.Entity{Kind: storage.KindLocation, Name: "Hall", Description: "A hall.", Properties: props})
		require.NoError(t, err)

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Hall", got.Name)
		assert.Equal(t, "A hall.", got.Description)
		assert.Equal(t, storage.KindLocation, got.Kind)
		assert.Equal(t, props, got.Properties)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("Update and Delete report existence", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.Create(ctx, &storage.Entity{Kind: storage.KindItem, Name: "Torch"})
		require.NoError(t, err)

		ok, err := s.Update(ctx, &storage.Entity{ID: id, Name: "Blue Torch", Properties: map[string]any{"state": "lit"}})
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Blue Torch", got.Name)
		assert.Equal(t, storage.KindItem, got.Kind, "update must not change kind")
		assert.Equal(t, "lit", got.Properties["state"])

		ok, err = s.Update(ctx, &storage.Entity{ID: id + 100, Name: "Ghost"})
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = s.Delete(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.Delete(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err = s.Get(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("List filters by kind in id order", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var want []int64
		for _, name := range []string{"Hall", "Library", "Garden"} {
			id, err := s.Create(ctx, &storage.Entity{Kind: storage.KindLocation, Name: name})
			require.NoError(t, err)
			want = append(want, id)
		}
		_, err := s.Create(ctx, &storage.Entity{Kind: storage.KindItem, Name: "Torch"})
		require.NoError(t, err)

		got, err := s.List(ctx, storage.KindLocation)
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i, e := range got {
			assert.Equal(t, want[i], e.ID)
			assert.Equal(t, storage.KindLocation, e.Kind)
		}

		none, err := s.List(ctx, storage.KindSave)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("state history is append-only", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		latest, err := s.LatestStateVersion(ctx, 7)
		require.NoError(t, err)
		assert.Nil(t, latest)

		for i := 1; i <= 3; i++ {
			data, err := json.Marshal(map[string]int{"visit_count": i})
			require.NoError(t, err)
			v, err := s.AppendStateVersion(ctx, 7, data)
			require.NoError(t, err)
			assert.Equal(t, int64(7), v.EntityID)
		}

		latest, err = s.LatestStateVersion(ctx, 7)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.JSONEq(t, `{"visit_count":3}`, string(latest.Data))

		versions, err := s.StateVersions(ctx, 7)
		require.NoError(t, err)
		require.Len(t, versions, 3)
		for i, v := range versions {
			var decoded map[string]int
			require.NoError(t, json.Unmarshal(v.Data, &decoded))
			assert.Equal(t, i+1, decoded["visit_count"])
			if i > 0 {
				assert.Greater(t, v.Seq, versions[i-1].Seq)
			}
		}

		other, err := s.StateVersions(ctx, 8)
		require.NoError(t, err)
		assert.Empty(t, other)
	})
}
