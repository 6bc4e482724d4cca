package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/biomateca/biomateca-backend/internal/platform/envutil"
	"github.com/biomateca/biomateca-backend/internal/platform/logger"
)

// View keys for the cached material lists. Every approval, rejection and
// submission invalidates the views it can change.
const (
	KeyPendingMaterials  = "materials:pending"
	KeyApprovedMaterials = "materials:approved"
)

func KeyUserMaterials(userID string) string { return "materials:user:" + userID }

type ViewCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Invalidate(ctx context.Context, keys ...string) error
	Close() error
}

type redisViewCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewRedisViewCache(log *logger.Logger) (ViewCache, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := time.Duration(envutil.Int("VIEW_CACHE_TTL_SECONDS", 300)) * time.Second
	return &redisViewCache{
		log: log.With("service", "RedisViewCache"),
		rdb: rdb,
		ttl: ttl,
	}, nil
}

func (c *redisViewCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		// A stale or malformed entry behaves like a miss.
		c.log.Warn("dropping malformed cache entry", "key", key, "error", err)
		_ = c.rdb.Del(ctx, key).Err()
		return false, nil
	}
	return true, nil
}

func (c *redisViewCache) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal %q: %w", key, err)
	}
	return c.rdb.Set(ctx, key, raw, c.ttl).Err()
}

func (c *redisViewCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *redisViewCache) Close() error { return c.rdb.Close() }

// NoopViewCache serves deployments without Redis; every read is a miss.
type NoopViewCache struct{}

func (NoopViewCache) Get(context.Context, string, any) (bool, error) { return false, nil }
func (NoopViewCache) Set(context.Context, string, any) error         { return nil }
func (NoopViewCache) Invalidate(context.Context, ...string) error    { return nil }
func (NoopViewCache) Close() error                                   { return nil }
