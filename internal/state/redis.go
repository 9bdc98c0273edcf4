package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key written by RedisStore.
const DefaultRedisPrefix = "gcalsync:"

// RedisStore keeps state values in Redis as JSON strings without expiry.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore connects to the server described by a redis:// or rediss://
// URL.
func NewRedisStore(ctx context.Context, rawURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, DefaultRedisPrefix), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Get implements Store. Keys are namespaced with the store prefix.
func (r *RedisStore) Get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read state %q: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to decode state %q: %w", key, err)
	}
	return true, nil
}

// Set stores value JSON-encoded under key, replacing any previous value.
func (r *RedisStore) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode state %q: %w", key, err)
	}
	if err := r.client.Set(ctx, r.prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write state %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Removing a missing key is not an error.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete state %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
