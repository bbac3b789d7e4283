//go:build integration

package postgres

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/jwebster45206/wayfarer/pkg/storage"
	"github.com/jwebster45206/wayfarer/pkg/storage/storagetest"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	dsn := os.Getenv("WAYFARER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("WAYFARER_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	client, err := New(ctx, dsn, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("connecting to test postgres: %v", err)
	}
	if _, err := client.pool.Exec(ctx, `TRUNCATE entities, world_states`); err != nil {
		t.Fatalf("truncating tables: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClient_Conformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.EntityStore {
		return testClient(t)
	})
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	client := testClient(t)
	if err := client.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema (idempotent): %v", err)
	}
}
