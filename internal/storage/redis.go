package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	entitystore "github.com/jwebster45206/wayfarer/pkg/storage"
)

const (
	redisEntitySeqKey = "entity:seq"
	redisStateSeqKey  = "state:seq"
)

func redisEntityKey(id int64) string { return "entity:" + strconv.FormatInt(id, 10) }
func redisKindKey(kind string) string { return "entities:" + kind }
func redisStateKey(id int64) string { return "state:" + strconv.FormatInt(id, 10) }

// createScript stores an entity under an explicit id unless the id is taken, and
// keeps the id sequence at or above every stored id.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('ZADD', KEYS[2], ARGV[2], ARGV[2])
local current = tonumber(redis.call('GET', KEYS[3]) or '0')
if tonumber(ARGV[2]) > current then
	redis.call('SET', KEYS[3], ARGV[2])
end
return 1
`)

// RedisStore implements the EntityStore interface on Redis. Entities are JSON
// strings, each kind has a sorted set of ids and state history is a list per entity.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
	now    func() time.Time
}

// Ensure RedisStore implements EntityStore interface
var _ entitystore.EntityStore = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed store. redisURL may be a redis:// URL or a bare host:port.
func NewRedisStore(redisURL string, logger *slog.Logger) (*RedisStore, error) {
	opt := &redis.Options{Addr: redisURL}
	if strings.Contains(redisURL, "://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		opt = parsed
	}

	return &RedisStore{
		client: redis.NewClient(opt),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Client exposes the underlying client so the event broadcaster can share it.
func (r *RedisStore) Client() *redis.Client {
	return r.client
}

// Health and lifecycle methods

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return entitystore.Unavailable("redis ping", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStore) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Entity operations

func (r *RedisStore) NextID(ctx context.Context) (int64, error) {
	id, err := r.client.Incr(ctx, redisEntitySeqKey).Result()
	if err != nil {
		return 0, entitystore.Unavailable("redis next id", err)
	}
	return id, nil
}

func (r *RedisStore) Create(ctx context.Context, e *entitystore.Entity) (int64, error) {
	if e == nil {
		return 0, errors.New("entity cannot be nil")
	}

	stored := e.Clone()
	if stored.ID == 0 {
		id, err := r.NextID(ctx)
		if err != nil {
			return 0, err
		}
		stored.ID = id
	}

	now := r.now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	data, err := json.Marshal(stored)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal entity: %w", err)
	}

	keys := []string{redisEntityKey(stored.ID), redisKindKey(stored.Kind), redisEntitySeqKey}
	created, err := createScript.Run(ctx, r.client, keys, string(data), stored.ID).Int()
	if err != nil {
		r.logger.Error("Failed to create entity", "id", stored.ID, "error", err)
		return 0, entitystore.Unavailable("redis create", err)
	}
	if created == 0 {
		return 0, entitystore.ErrExists
	}

	e.ID = stored.ID
	e.CreatedAt = stored.CreatedAt
	e.UpdatedAt = stored.UpdatedAt
	return stored.ID, nil
}

func (r *RedisStore) Get(ctx context.Context, id int64) (*entitystore.Entity, error) {
	data, err := r.client.Get(ctx, redisEntityKey(id)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Return nil for not found
		}
		r.logger.Error("Failed to load entity", "id", id, "error", err)
		return nil, entitystore.Unavailable("redis get", err)
	}
	return decodeEntity(data)
}

func (r *RedisStore) Update(ctx context.Context, e *entitystore.Entity) (bool, error) {
	if e == nil {
		return false, errors.New("entity cannot be nil")
	}
	existing, err := r.Get(ctx, e.ID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}

	existing.Name = e.Name
	existing.Description = e.Description
	existing.Properties = e.Clone().Properties
	existing.UpdatedAt = r.now().UTC()

	data, err := json.Marshal(existing)
	if err != nil {
		return false, fmt.Errorf("failed to marshal entity: %w", err)
	}
	ok, err := r.client.SetXX(ctx, redisEntityKey(e.ID), data, 0).Result()
	if err != nil {
		r.logger.Error("Failed to update entity", "id", e.ID, "error", err)
		return false, entitystore.Unavailable("redis update", err)
	}
	if ok {
		e.UpdatedAt = existing.UpdatedAt
	}
	return ok, nil
}

func (r *RedisStore) Delete(ctx context.Context, id int64) (bool, error) {
	existing, err := r.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisEntityKey(id))
		pipe.ZRem(ctx, redisKindKey(existing.Kind), id)
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to delete entity", "id", id, "error", err)
		return false, entitystore.Unavailable("redis delete", err)
	}
	return true, nil
}

func (r *RedisStore) List(ctx context.Context, kind string) ([]*entitystore.Entity, error) {
	ids, err := r.client.ZRange(ctx, redisKindKey(kind), 0, -1).Result()
	if err != nil {
		return nil, entitystore.Unavailable("redis list", err)
	}
	out := make([]*entitystore.Entity, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = "entity:" + id
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, entitystore.Unavailable("redis list", err)
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			r.logger.Warn("Kind index points at a missing entity", "kind", kind, "key", keys[i])
			continue
		}
		e, err := decodeEntity(s)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// State history operations

func (r *RedisStore) AppendStateVersion(ctx context.Context, entityID int64, data json.RawMessage) (*entitystore.StateVersion, error) {
	seq, err := r.client.Incr(ctx, redisStateSeqKey).Result()
	if err != nil {
		return nil, entitystore.Unavailable("redis state seq", err)
	}
	v := &entitystore.StateVersion{
		EntityID:  entityID,
		Seq:       seq,
		Data:      append(json.RawMessage(nil), data...),
		CreatedAt: r.now().UTC(),
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state version: %w", err)
	}
	if err := r.client.RPush(ctx, redisStateKey(entityID), encoded).Err(); err != nil {
		r.logger.Error("Failed to append state version", "entity_id", entityID, "error", err)
		return nil, entitystore.Unavailable("redis append state", err)
	}
	return v, nil
}

func (r *RedisStore) LatestStateVersion(ctx context.Context, entityID int64) (*entitystore.StateVersion, error) {
	data, err := r.client.LIndex(ctx, redisStateKey(entityID), -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, entitystore.Unavailable("redis latest state", err)
	}
	return decodeStateVersion(data)
}

func (r *RedisStore) StateVersions(ctx context.Context, entityID int64) ([]*entitystore.StateVersion, error) {
	items, err := r.client.LRange(ctx, redisStateKey(entityID), 0, -1).Result()
	if err != nil {
		return nil, entitystore.Unavailable("redis state history", err)
	}
	out := make([]*entitystore.StateVersion, 0, len(items))
	for _, item := range items {
		v, err := decodeStateVersion(item)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeEntity(data string) (*entitystore.Entity, error) {
	var e entitystore.Entity
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	return &e, nil
}

func decodeStateVersion(data string) (*entitystore.StateVersion, error) {
	var v entitystore.StateVersion
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state version: %w", err)
	}
	return &v, nil
}
