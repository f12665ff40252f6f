// Package cache provides a Redis-backed product cache used cache-aside.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/denim-store/storefront/internal/models"
	"github.com/redis/go-redis/v9"
)

// Config holds cache configuration.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// ProductCache stores product details as JSON keyed by product ID.
type ProductCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewProductCache creates a product cache on client.
func NewProductCache(client *redis.Client, prefix string, ttl time.Duration) *ProductCache {
	if prefix == "" {
		prefix = "denim:product:"
	}
	return &ProductCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *ProductCache) key(id int64) string {
	return c.prefix + strconv.FormatInt(id, 10)
}

// Get returns the cached product and whether it was found.
func (c *ProductCache) Get(ctx context.Context, id int64) (*models.Product, bool, error) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get error: %w", err)
	}

	var p models.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false, fmt.Errorf("cache unmarshal error: %w", err)
	}
	return &p, true, nil
}

// Set stores a product with the configured TTL.
func (c *ProductCache) Set(ctx context.Context, p *models.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if err := c.client.Set(ctx, c.key(p.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

// Invalidate removes the given products from the cache.
func (c *ProductCache) Invalidate(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}
