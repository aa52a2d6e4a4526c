package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"commission-service/internal/models"

	"github.com/go-redis/redis/v8"
)

// Client caches computed settlement reports. It is a pure cache: nothing in
// here is ever treated as a source of truth, and mutations invalidate keys
// instead of editing cached figures in place. Incrementally maintained
// counters are exactly the drift bug this service exists to kill.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SettlementKey builds the cache key for one agent's settlement window.
func SettlementKey(tier models.AgentTier, agentID int64, window string) string {
	return fmt.Sprintf("settlement:%s:%d:%s", tier, agentID, window)
}

// OverviewKey builds the cache key for a system overview window.
func OverviewKey(window string) string {
	return fmt.Sprintf("overview:%s", window)
}

// GetJSON loads a cached value into v. The second return is false on a miss.
func (c *Client) GetJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), v); err != nil {
		return false, fmt.Errorf("corrupt cache entry %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores a value with a TTL.
func (c *Client) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

// Delete removes cache keys. Missing keys are not an error.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}
