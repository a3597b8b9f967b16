package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/models"
)

const (
	listKey      = "catalog:bundles"
	bundlePrefix = "catalog:bundle:"
)

// Cache holds public catalog reads. A miss returns (nil, nil).
type Cache interface {
	GetList(ctx context.Context) ([]models.Bundle, error)
	SetList(ctx context.Context, bundles []models.Bundle) error
	GetBundle(ctx context.Context, id string) (*models.Bundle, error)
	SetBundle(ctx context.Context, b models.Bundle) error
	Invalidate(ctx context.Context, id string) error
}

// Connect initializes a Redis client from URL or host:port input.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// RedisCache stores catalog entries as JSON with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates the catalog cache adapter.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) GetList(ctx context.Context) ([]models.Bundle, error) {
	var out []models.Bundle
	found, err := c.get(ctx, listKey, &out)
	if err != nil || !found {
		return nil, err
	}
	if out == nil {
		out = []models.Bundle{}
	}
	return out, nil
}

func (c *RedisCache) SetList(ctx context.Context, bundles []models.Bundle) error {
	return c.set(ctx, listKey, bundles)
}

func (c *RedisCache) GetBundle(ctx context.Context, id string) (*models.Bundle, error) {
	var out models.Bundle
	found, err := c.get(ctx, bundlePrefix+id, &out)
	if err != nil || !found {
		return nil, err
	}
	return &out, nil
}

func (c *RedisCache) SetBundle(ctx context.Context, b models.Bundle) error {
	return c.set(ctx, bundlePrefix+b.ID, b)
}

func (c *RedisCache) Invalidate(ctx context.Context, id string) error {
	keys := []string{listKey}
	if id != "" {
		keys = append(keys, bundlePrefix+id)
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *RedisCache) get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// A stale or foreign entry is treated as a miss.
		return false, nil
	}
	return true, nil
}

func (c *RedisCache) set(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// NopCache never hits. Used when REDIS_URL is unset.
type NopCache struct{}

func (NopCache) GetList(context.Context) ([]models.Bundle, error)           { return nil, nil }
func (NopCache) SetList(context.Context, []models.Bundle) error             { return nil }
func (NopCache) GetBundle(context.Context, string) (*models.Bundle, error) { return nil, nil }
func (NopCache) SetBundle(context.Context, models.Bundle) error             { return nil }
func (NopCache) Invalidate(context.Context, string) error                   { return nil }
