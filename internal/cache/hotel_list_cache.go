package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "hotels:by-city:"

// NewRedisClient parses a redis:// or rediss:// URL and checks connectivity
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis URL is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// HotelListCache keeps raw hotels-by-city payloads in Redis with a TTL
type HotelListCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewHotelListCache creates a Redis-backed hotel list cache
func NewHotelListCache(client redis.UniversalClient, ttl time.Duration) *HotelListCache {
	return &HotelListCache{
		client: client,
		ttl:    ttl,
		prefix: defaultKeyPrefix,
	}
}

// Get returns the cached payload; a miss is not an error
func (c *HotelListCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read hotel list: %w", err)
	}
	return payload, true, nil
}

// Set stores a payload for the configured TTL
func (c *HotelListCache) Set(ctx context.Context, key string, payload []byte) error {
	if err := c.client.Set(ctx, c.prefix+key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store hotel list: %w", err)
	}
	return nil
}

// Ping checks the cache is reachable
func (c *HotelListCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
