package storage

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	entitystore "github.com/jwebster45206/wayfarer/pkg/storage"
	"github.com/jwebster45206/wayfarer/pkg/storage/storagetest"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	store, err := NewRedisStore("redis://"+mr.Addr(), logger)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create redis store: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
		mr.Close()
	})
	return store, mr
}

func TestRedisStore_Conformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) entitystore.EntityStore {
		store, _ := setupTestRedis(t)
		return store
	})
}

func TestRedisStore_BareAddress(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := NewRedisStore(mr.Addr(), logger)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(context.Background()))
}

func TestRedisStore_InvalidURL(t *testing.T) {
	_, err := NewRedisStore("redis://localhost:6379/notanumber", slog.Default())
	assert.Error(t, err)
}

func TestRedisStore_KeyLayout(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	id, err := store.Create(ctx, &entitystore.Entity{Kind: entitystore.KindLocation, Name: "Hall"})
	require.NoError(t, err)

	assert.True(t, mr.Exists(redisEntityKey(id)))
	members, err := mr.ZMembers(redisKindKey(entitystore.KindLocation))
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, members)

	_, err = store.AppendStateVersion(ctx, id, []byte(`{"visited":true}`))
	require.NoError(t, err)
	items, err := mr.List(redisStateKey(id))
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestRedisStore_ConnectionLossIsUnavailable(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	id, err := store.Create(ctx, &entitystore.Entity{Kind: entitystore.KindLocation, Name: "Hall"})
	require.NoError(t, err)

	mr.Close()

	_, err = store.Get(ctx, id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entitystore.ErrUnavailable), "expected ErrUnavailable, got %v", err)

	_, err = store.LatestStateVersion(ctx, id)
	assert.True(t, errors.Is(err, entitystore.ErrUnavailable))
}
