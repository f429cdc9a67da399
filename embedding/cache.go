package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hubenschmidt/go-admissions/vector"
)

// RedisConfig holds connection details for the embedding cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	TTL      time.Duration
}

// kvStore is the subset of the Redis client the cache uses.
type kvStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// Cached serves repeated texts from Redis. Cache errors are logged and
// bypassed; they never fail an Embed call.
type Cached struct {
	inner  Provider
	client kvStore
	ttl    time.Duration
}

var _ Provider = (*Cached)(nil)

// NewCached connects to Redis and wraps p.
func NewCached(ctx context.Context, p Provider, cfg RedisConfig) (*Cached, error) {
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 10
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newCached(p, client, cfg.TTL), nil
}

func newCached(p Provider, client kvStore, ttl time.Duration) *Cached {
	return &Cached{inner: p, client: client, ttl: ttl}
}

func (c *Cached) Name() string   { return c.inner.Name() }
func (c *Cached) Dimension() int { return c.inner.Dimension() }

func (c *Cached) Embed(ctx context.Context, text string) ([]float64, error) {
	key := c.key(text)

	if v, ok := c.lookup(ctx, key); ok {
		return v, nil
	}

	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.client.Set(ctx, key, vector.Encode(v), c.ttl).Err(); err != nil {
		log.Printf("[cache] store %s: %v", key, err)
	}
	return v, nil
}

func (c *Cached) lookup(ctx context.Context, key string) ([]float64, bool) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		log.Printf("[cache] lookup %s: %v", key, err)
		return nil, false
	}

	v, err := vector.Decode(b)
	if err != nil || len(v) != c.inner.Dimension() {
		log.Printf("[cache] discarding malformed entry %s", key)
		return nil, false
	}
	return v, true
}

// key namespaces entries by provider so different models never share vectors.
func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "embed:" + c.inner.Name() + ":" + hex.EncodeToString(sum[:])
}

// Close closes the Redis client and the wrapped provider.
func (c *Cached) Close() error {
	err := c.client.Close()
	if closer, ok := c.inner.(Closer); ok {
		err = errors.Join(err, closer.Close())
	}
	return err
}
