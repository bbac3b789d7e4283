package postgres

import (
	"context"
	"fmt"
)

// EnsureSchema creates the sequence and tables. All statements run in one
// implicit transaction and are idempotent.
func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
CREATE SEQUENCE IF NOT EXISTS entity_ids;

CREATE TABLE IF NOT EXISTS entities (
    id          BIGINT PRIMARY KEY,
    kind        TEXT NOT NULL,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    properties  JSONB NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities (kind, id);

CREATE TABLE IF NOT EXISTS world_states (
    seq        BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    entity_id  BIGINT NOT NULL,
    data       JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_world_states_entity ON world_states (entity_id, seq);
`
	if _, err := c.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("executing DDL: %w", err)
	}
	return nil
}
