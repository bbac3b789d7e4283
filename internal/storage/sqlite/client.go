// Package sqlite is a single-file EntityStore for local play.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jwebster45206/wayfarer/pkg/storage"
)

var _ storage.EntityStore = (*Client)(nil)

type Client struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// New opens the database named by dsn (sqlite://path), applies pragmas and
// creates the schema.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Client, error) {
	driverDSN, err := parseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing sqlite DSN: %w", err)
	}

	db, err := sql.Open("sqlite", driverDSN)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// One connection keeps :memory: databases shared and writers serialized.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA busy_timeout = 30000;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}

	c := &Client{db: db, logger: logger, now: time.Now}
	if err := c.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("SQLite store ready", "dsn", dsn)
	return c, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return storage.Unavailable("sqlite ping", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.db.Close()
}
