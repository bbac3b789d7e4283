// Package postgres is an EntityStore on PostgreSQL for shared deployments.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jwebster45206/wayfarer/pkg/storage"
)

var _ storage.EntityStore = (*Client)(nil)

type Client struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to dsn and creates the schema if needed.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Client, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	c := &Client{pool: pool, logger: logger}
	if err := c.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("Postgres store ready")
	return c, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.pool.Ping(ctx); err != nil {
		return storage.Unavailable("postgres ping", err)
	}
	return nil
}

func (c *Client) Close() error {
	c.pool.Close()
	return nil
}
