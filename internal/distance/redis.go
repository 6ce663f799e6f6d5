package distance

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultSharedTTL is how long shared distance entries live. Street networks
// change slowly, so a long TTL is appropriate.
const DefaultSharedTTL = 7 * 24 * time.Hour

// RedisStoreConfig holds configuration for the Redis-backed shared tier.
type RedisStoreConfig struct {
	// Client is the Redis client (required).
	Client *redis.Client

	// TTL is the entry lifetime (default: DefaultSharedTTL).
	TTL time.Duration

	// KeyPrefix namespaces entries (default: "dist:v1:").
	KeyPrefix string
}

// RedisStore is a cross-session distance tier backed by Redis. It is an
// optimization, not a correctness requirement: read and write failures are
// surfaced to the session cache, which logs and falls through to the
// provider.
type RedisStore struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
}

// NewRedisStore creates a Redis-backed shared distance store.
func NewRedisStore(cfg RedisStoreConfig) *RedisStore {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultSharedTTL
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "dist:v1:"
	}
	return &RedisStore{
		client:    cfg.Client,
		ttl:       ttl,
		keyPrefix: prefix,
	}
}

// Get reads a shared entry. The bool result reports whether the key existed.
func (s *RedisStore) Get(ctx context.Context, key string) (Result, bool, error) {
	val, err := s.client.Get(ctx, s.keyPrefix+key).Result()
	if err == redis.Nil {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("shared distance get: %w", err)
	}

	var meters float64
	var millis int64
	if _, err := fmt.Sscanf(val, "%f|%d", &meters, &millis); err != nil {
		// Unparseable entry; treat as a miss so it gets overwritten.
		return Result{}, false, nil
	}

	return Result{
		Meters:   meters,
		Duration: time.Duration(millis) * time.Millisecond,
	}, true, nil
}

// Set writes a shared entry with the configured TTL.
func (s *RedisStore) Set(ctx context.Context, key string, res Result) error {
	val := fmt.Sprintf("%f|%d", res.Meters, res.Duration.Milliseconds())
	if err := s.client.Set(ctx, s.keyPrefix+key, val, s.ttl).Err(); err != nil {
		return fmt.Errorf("shared distance set: %w", err)
	}
	return nil
}
