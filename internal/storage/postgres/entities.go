package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jwebster45206/wayfarer/pkg/storage"
)

const entityColumns = `id, kind, name, description, properties, created_at, updated_at`

func (c *Client) NextID(ctx context.Context) (int64, error) {
	var id int64
	if err := c.pool.QueryRow(ctx, `SELECT nextval('entity_ids')`).Scan(&id); err != nil {
		return 0, storage.Unavailable("postgres next id", err)
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

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return 0, storage.Unavailable("postgres begin", err)
	}
	defer tx.Rollback(ctx)

	id := e.ID
	if id == 0 {
		if err := tx.QueryRow(ctx, `SELECT nextval('entity_ids')`).Scan(&id); err != nil {
			return 0, storage.Unavailable("postgres next id", err)
		}
	}

	query := `
INSERT INTO entities (id, kind, name, description, properties, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()), now())
ON CONFLICT (id) DO NOTHING
RETURNING created_at, updated_at
`
	var created *time.Time
	if !e.CreatedAt.IsZero() {
		t := e.CreatedAt
		created = &t
	}
	var createdAt, updatedAt time.Time
	row := tx.QueryRow(ctx, query, id, e.Kind, e.Name, e.Description, props, created)
	if err := row.Scan(&createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, storage.ErrExists
		}
		return 0, storage.Unavailable("postgres create", err)
	}

	// Keep the sequence ahead of explicitly chosen ids.
	if e.ID != 0 {
		_, err := tx.Exec(ctx,
			`SELECT setval('entity_ids', GREATEST($1, (SELECT last_value FROM entity_ids)))`, id)
		if err != nil {
			return 0, storage.Unavailable("postgres create", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, storage.Unavailable("postgres commit", err)
	}
	e.ID = id
	e.CreatedAt = createdAt
	e.UpdatedAt = updatedAt
	return id, nil
}

func (c *Client) Get(ctx context.Context, id int64) (*storage.Entity, error) {
	row := c.pool.QueryRow(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = $1`, id)
	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storage.Unavailable("postgres get", err)
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

	row := c.pool.QueryRow(ctx, `
UPDATE entities SET name = $1, description = $2, properties = $3, updated_at = now()
WHERE id = $4
RETURNING updated_at
`, e.Name, e.Description, props, e.ID)
	if err := row.Scan(&e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, storage.Unavailable("postgres update", err)
	}
	return true, nil
}

func (c *Client) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := c.pool.Exec(ctx, `DELETE FROM entities WHERE id = $1`, id)
	if err != nil {
		return false, storage.Unavailable("postgres delete", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (c *Client) List(ctx context.Context, kind string) ([]*storage.Entity, error) {
	rows, err := c.pool.Query(ctx, `SELECT `+entityColumns+` FROM entities WHERE kind = $1 ORDER BY id`, kind)
	if err != nil {
		return nil, storage.Unavailable("postgres list", err)
	}
	defer rows.Close()

	out := make([]*storage.Entity, 0)
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, storage.Unavailable("postgres list", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("postgres list", err)
	}
	return out, nil
}

func scanEntity(row pgx.Row) (*storage.Entity, error) {
	var (
		e     storage.Entity
		props []byte
	)
	if err := row.Scan(&e.ID, &e.Kind, &e.Name, &e.Description, &props, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if len(props) > 0 && string(props) != "{}" {
		if err := json.Unmarshal(props, &e.Properties); err != nil {
			return nil, fmt.Errorf("decoding properties of entity %d: %w", e.ID, err)
		}
	}
	return &e, nil
}

func marshalProperties(props map[string]any) ([]byte, error) {
	if len(props) == 0 {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("marshaling properties: %w", err)
	}
	return data, nil
}
