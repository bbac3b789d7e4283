package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jwebster45206/wayfarer/pkg/storage"
)

const entityColumns = `id, kind, name, description, properties, created_at, updated_at`

func (c *Client) NextID(ctx context.Context) (int64, error) {
	var id int64
	err := c.db.QueryRowContext(ctx,
		`UPDATE sequences SET value = value + 1 WHERE name = 'entity' RETURNING value`).Scan(&id)
	if err != nil {
		return 0, storage.Unavailable("sqlite next id", err)
	}
	return id, nil
}

func (c *Client) Create(ctx context.Context, e *storage.Entity) (int64, error) {
	if e == nil {
		return 0, errors.New("entity cannot be nil")
	}

	props, err := marshalProperties(e.Properties)
	if err != nil {
		return 0, err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storage.Unavailable("sqlite begin", err)
	}
	defer tx.Rollback()

	id := e.ID
	if id == 0 {
		err = tx.QueryRowContext(ctx,
			`UPDATE sequences SET value = value + 1 WHERE name = 'entity' RETURNING value`).Scan(&id)
		if err != nil {
			return 0, storage.Unavailable("sqlite next id", err)
		}
	} else {
		var exists int
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM entities WHERE id = ?`, id).Scan(&exists)
		switch {
		case err == nil:
			return 0, storage.ErrExists
		case !errors.Is(err, sql.ErrNoRows):
			return 0, storage.Unavailable("sqlite create", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE sequences SET value = MAX(value, ?) WHERE name = 'entity'`, id); err != nil {
			return 0, storage.Unavailable("sqlite create", err)
		}
	}

	now := c.now().UTC()
	created := e.CreatedAt
	if created.IsZero() {
		created = now
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO entities (`+entityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, e.Kind, e.Name, e.Description, props, formatTime(created), formatTime(now))
	if err != nil {
		return 0, storage.Unavailable("sqlite create", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, storage.Unavailable("sqlite commit", err)
	}

	e.ID = id
	e.CreatedAt = created
	e.UpdatedAt = now
	return id, nil
}

func (c *Client) Get(ctx context.Context, id int64) (*storage.Entity, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storage.Unavailable("sqlite get", err)
	}
	return e, nil
}

func (c *Client) Update(ctx context.Context, e *storage.Entity) (bool, error) {
	if e == nil {
		return false, errors.New("entity cannot be nil")
	}
	props, err := marshalProperties(e.Properties)
	if err != nil {
		return false, err
	}

	now := c.now().UTC()
	res, err := c.db.ExecContext(ctx,
		`UPDATE entities SET name = ?, description = ?, properties = ?, updated_at = ? WHERE id = ?`,
		e.Name, e.Description, props, formatTime(now), e.ID)
	if err != nil {
		return false, storage.Unavailable("sqlite update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storage.Unavailable("sqlite update", err)
	}
	if n > 0 {
		e.UpdatedAt = now
	}
	return n > 0, nil
}

func (c *Client) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
	if err != nil {
		return false, storage.Unavailable("sqlite delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storage.Unavailable("sqlite delete", err)
	}
	return n > 0, nil
}

func (c *Client) List(ctx context.Context, kind string) ([]*storage.Entity, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE kind = ? ORDER BY id`, kind)
	if err != nil {
		return nil, storage.Unavailable("sqlite list", err)
	}
	defer rows.Close()

	out := make([]*storage.Entity, 0)
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, storage.Unavailable("sqlite list", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("sqlite list", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(s scanner) (*storage.Entity, error) {
	var (
		e                storage.Entity
		props            string
		created, updated string
	)
	if err := s.Scan(&e.ID, &e.Kind, &e.Name, &e.Description, &props, &created, &updated); err != nil {
		return nil, err
	}
	if props != "" && props != "{}" {
		if err := json.Unmarshal([]byte(props), &e.Properties); err != nil {
			return nil, fmt.Errorf("decoding properties of entity %d: %w", e.ID, err)
		}
	}
	var err error
	if e.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &e, nil
}

func marshalProperties(props map[string]any) (string, error) {
	if len(props) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("encoding properties: %w", err)
	}
	return string(data), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
