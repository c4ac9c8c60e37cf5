package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedIntent is the phase-one response replayed for a repeated Idempotency-Key.
type CachedIntent struct {
	ProviderOrderID string `json:"order_id"`
	AmountMinor     int64  `json:"amount"`
	Currency        string `json:"currency"`
	Receipt         string `json:"receipt"`
}

// IntentCache remembers payment intents by (user, idempotency key).
type IntentCache interface {
	Get(ctx context.Context, userID, key string) (*CachedIntent, error)
	Put(ctx context.Context, userID, key string, intent CachedIntent) error
}

type RedisIntentCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisIntentCache(client *redis.Client, ttl time.Duration) *RedisIntentCache {
	return &RedisIntentCache{client: client, ttl: ttl}
}

func (c *RedisIntentCache) getKey(userID, key string) string {
	return fmt.Sprintf("idem:intent:%s:%s", userID, key)
}

// Get returns nil, nil on a miss.
func (c *RedisIntentCache) Get(ctx context.Context, userID, key string) (*CachedIntent, error) {
	data, err := c.client.Get(ctx, c.getKey(userID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var intent CachedIntent
	if err := json.Unmarshal(data, &intent); err != nil {
		return nil, fmt.Errorf("corrupt cached intent: %w", err)
	}
	return &intent, nil
}

// Put stores intent under the key, replacing whatever was there. Checkout only
// writes after a cache miss or an amount change, so the latest intent is the
// one that matches the cart.
func (c *RedisIntentCache) Put(ctx context.Context, userID, key string, intent CachedIntent) error {
	data, err := json.Marshal(intent)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.getKey(userID, key), data, c.ttl).Err()
}
