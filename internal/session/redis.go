package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ventas:session:"

// RedisStore keeps records in redis with a TTL matching the record lifetime,
// so several gateway replicas can share sessions.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// NewRedisClient opens and pings a redis client.
func NewRedisClient(ctx context.Context, addr, password string, db, poolSize int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     poolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func redisKey(id string) string { return redisKeyPrefix + id }

// Save writes rec as JSON with a TTL of its remaining lifetime.
func (r *RedisStore) Save(ctx context.Context, rec *Record) error {
	if err := rec.validate(); err != nil {
		return err
	}
	ttl := rec.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return r.Delete(ctx, rec.ID)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return r.client.Set(ctx, redisKey(rec.ID), data, ttl).Err()
}

// Get reads the record for id.
func (r *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, ErrInvalid
	}
	data, err := r.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if rec.Session == nil || rec.Expired(r.now()) {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Delete removes the key for id.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, redisKey(id)).Err()
}

// Cleanup is a no-op: redis expires keys on its own.
func (r *RedisStore) Cleanup(context.Context) (int, error) {
	return 0, nil
}
