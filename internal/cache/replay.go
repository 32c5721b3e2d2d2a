// Package cache keeps a Redis record of payment notifications that were
// already applied, so gateway redeliveries skip the database transaction.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "payu:notification:"

type ReplayCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewReplayCache(client *redis.Client, ttl time.Duration) *ReplayCache {
	return &ReplayCache{client: client, ttl: ttl}
}

func (c *ReplayCache) Seen(ctx context.Context, key string) (bool, error) {
	_, err := c.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("replay lookup: %w", err)
	}
	return true, nil
}

// Remember must only be called after the notification's effects committed.
func (c *ReplayCache) Remember(ctx context.Context, key string) error {
	if err := c.client.Set(ctx, keyPrefix+key, time.Now().UTC().Format(time.RFC3339), c.ttl).Err(); err != nil {
		return fmt.Errorf("replay store: %w", err)
	}
	return nil
}

func (c *ReplayCache) Close() error {
	return c.client.Close()
}
