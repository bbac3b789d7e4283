package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/jwebster45206/wayfarer/pkg/storage"
)

func (c *Client) AppendStateVersion(ctx context.Context, entityID int64, data json.RawMessage) (*storage.StateVersion, error) {
	v := &storage.StateVersion{
		EntityID: entityID,
		Data:     append(json.RawMessage(nil), data...),
	}
	row := c.pool.QueryRow(ctx,
		`INSERT INTO world_states (entity_id, data) VALUES ($1, $2) RETURNING seq, created_at`,
		entityID, []byte(data))
	if err := row.Scan(&v.Seq, &v.CreatedAt); err != nil {
		c.logger.Error("Failed to append world state", "entity_id", entityID, "error", err)
		return nil, storage.Unavailable("postgres append state", err)
	}
	return v, nil
}

func (c *Client) LatestStateVersion(ctx context.Context, entityID int64) (*storage.StateVersion, error) {
	row := c.pool.QueryRow(ctx, `
SELECT seq, entity_id, data, created_at FROM world_states
WHERE entity_id = $1 ORDER BY seq DESC LIMIT 1
`, entityID)
	v, err := scanStateVersion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storage.Unavailable("postgres latest state", err)
	}
	return v, nil
}

func (c *Client) StateVersions(ctx context.Context, entityID int64) ([]*storage.StateVersion, error) {
	rows, err := c.pool.Query(ctx, `
SELECT seq, entity_id, data, created_at FROM world_states
WHERE entity_id = $1 ORDER BY seq ASC
`, entityID)
	if err != nil {
		return nil, storage.Unavailable("postgres state history", err)
	}
	defer rows.Close()

	out := make([]*storage.StateVersion, 0)
	for rows.Next() {
		v, err := scanStateVersion(rows)
		if err != nil {
			return nil, storage.Unavailable("postgres state history", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("postgres state history", err)
	}
	return out, nil
}

func scanStateVersion(row pgx.Row) (*storage.StateVersion, error) {
	var (
		v    storage.StateVersion
		data []byte
	)
	if err := row.Scan(&v.Seq, &v.EntityID, &data, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.Data = json.RawMessage(data)
	return &v, nil
}
