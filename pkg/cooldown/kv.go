package cooldown

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound indicates the requested key does not exist in the medium.
var ErrNotFound = errors.New("key not found")

// KV is the durable key-value medium backing the cooldown store. It is
// deliberately minimal so the backing (redis, in-memory map for tests)
// is swappable without touching the cooldown logic.
type KV interface {
	Read(ctx context.Context, key string) (string, error)
	Write(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// MemoryKV is an in-memory KV implementation. It does not survive the
// process, which makes it suitable for tests and single-run tools only.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryKV creates an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		data: make(map[string]string),
	}
}

// Read implements KV.
func (m *MemoryKV) Read(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

// Write implements KV.
func (m *MemoryKV) Write(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}

// Delete implements KV.
func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// RedisKV is a KV implementation on a Redis backend, giving cooldown
// records a lifetime beyond a single process instance.
type RedisKV struct {
	redis *redis.Client
}

// NewRedisKV creates a Redis-backed KV.
func NewRedisKV(redisClient *redis.Client) *RedisKV {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisKV{
		redis: redisClient,
	}
}

// Read implements KV.
func (r *RedisKV) Read(ctx context.Context, key string) (string, error) {
	value, err := r.redis.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

// Write implements KV.
func (r *RedisKV) Write(ctx context.Context, key, value string) error {
	if err := r.redis.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete implements KV.
func (r *RedisKV) Delete(ctx context.Context, key string) error {
	if err := r.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
