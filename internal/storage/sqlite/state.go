package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jwebster45206/wayfarer/pkg/storage"
)

func (c *Client) AppendStateVersion(ctx context.Context, entityID int64, data json.RawMessage) (*storage.StateVersion, error) {
	now := c.now().UTC()
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO world_states (entity_id, data, created_at) VALUES (?, ?, ?)`,
		entityID, string(data), formatTime(now))
	if err != nil {
		c.logger.Error("Failed to append world state", "entity_id", entityID, "error", err)
		return nil, storage.Unavailable("sqlite append state", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return nil, storage.Unavailable("sqlite append state", err)
	}
	return &storage.StateVersion{
		EntityID:  entityID,
		Seq:       seq,
		Data:      append(json.RawMessage(nil), data...),
		CreatedAt: now,
	}, nil
}

func (c *Client) LatestStateVersion(ctx context.Context, entityID int64) (*storage.StateVersion, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT seq, entity_id, data, created_at FROM world_states
		 WHERE entity_id = ? ORDER BY seq DESC LIMIT 1`, entityID)
	v, err := scanStateVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storage.Unavailable("sqlite latest state", err)
	}
	return v, nil
}

func (c *Client) StateVersions(ctx context.Context, entityID int64) ([]*storage.StateVersion, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT seq, entity_id, data, created_at FROM world_states
		 WHERE entity_id = ? ORDER BY seq ASC`, entityID)
	if err != nil {
		return nil, storage.Unavailable("sqlite state history", err)
	}
	defer rows.Close()

	out := make([]*storage.StateVersion, 0)
	for rows.Next() {
		v, err := scanStateVersion(rows)
		if err != nil {
			return nil, storage.Unavailable("sqlite state history", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("sqlite state history", err)
	}
	return out, nil
}

func scanStateVersion(s scanner) (*storage.StateVersion, error) {
	var (
		v       storage.StateVersion
		data    string
		created string
	)
	if err := s.Scan(&v.Seq, &v.EntityID, &data, &created); err != nil {
		return nil, err
	}
	v.Data = json.RawMessage(data)
	t, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	v.CreatedAt = t
	return &v, nil
}
