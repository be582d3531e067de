// Package cache wraps an optional Redis connection used to cache
// recommendation reads and to publish prediction and alert events.
// A Cache built without a URL is a no-op, so callers never branch on it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Event channels.
const (
	ChannelPredictions = "staffcast:predictions"
	ChannelAlerts      = "staffcast:alerts"
)

// KeyPrefix namespaces every cache key.
const KeyPrefix = "staffcast:"

// Breaker settings for Redis calls.
const (
	breakerThreshold = 5
	breakerCoolDown  = 30 * time.Second
)

// Cache is a thin JSON layer over Redis.
type Cache struct {
	client  *redis.Client
	breaker *breaker
	log     zerolog.Logger
}

// Disabled returns a Cache that stores nothing and publishes nowhere.
func Disabled() *Cache {
	return &Cache{log: zerolog.Nop()}
}

// New connects to the Redis server at url ("redis://host:port/db").
// An empty url yields a disabled cache.
func New(ctx context.Context, url string, log zerolog.Logger) (*Cache, error) {
	if url == "" {
		return Disabled(), nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return newCache(client, log), nil
}

func newCache(client *redis.Client, log zerolog.Logger) *Cache {
	return &Cache{
		client:  client,
		breaker: newBreaker(breakerThreshold, breakerCoolDown),
		log:     log.With().Str("component", "cache").Logger(),
	}
}

// guard runs fn unless the breaker is open. redis.Nil is not a failure.
func (c *Cache) guard(fn func() error) error {
	if err := c.breaker.allow(); err != nil {
		return err
	}
	err := fn()
	if errors.Is(err, redis.Nil) {
		c.breaker.record(nil)
		return err
	}
	if tripped := c.breaker.record(err); tripped {
		c.log.Warn().Err(err).Dur("cool_down", c.breaker.coolDown).Msg("redis failing, skipping calls")
	}
	return err
}

// Available reports whether a Redis connection backs this cache.
func (c *Cache) Available() bool {
	return c != nil && c.client != nil
}

// GetJSON decodes key into dest. The bool reports a hit.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if !c.Available() {
		return false, nil
	}
	var val []byte
	err := c.guard(func() (err error) {
		val, err = c.client.Get(ctx, KeyPrefix+key).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) || errors.Is(err, ErrCircuitOpen) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores value under key for ttl.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.Available() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	err = c.guard(func() error {
		return c.client.Set(ctx, KeyPrefix+key, data, ttl).Err()
	})
	if errors.Is(err, ErrCircuitOpen) {
		return nil
	}
	return err
}

// Invalidate deletes every key starting with prefix.
func (c *Cache) Invalidate(ctx context.Context, prefix string) error {
	if !c.Available() {
		return nil
	}
	// Never skipped by the breaker; stale reads must not outlive a batch.
	iter := c.client.Scan(ctx, 0, KeyPrefix+prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan %s: %w", prefix, err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Publish sends message as JSON on channel. Delivery is best effort.
func (c *Cache) Publish(ctx context.Context, channel string, message any) error {
	if !c.Available() {
		return nil
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", channel, err)
	}
	err = c.guard(func() error {
		return c.client.Publish(ctx, channel, data).Err()
	})
	if errors.Is(err, ErrCircuitOpen) {
		return nil
	}
	if err != nil {
		c.log.Warn().Err(err).Str("channel", channel).Msg("publish failed")
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Ping checks the connection. A disabled cache is always healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Available() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close releases the connection.
func (c *Cache) Close() error {
	if !c.Available() {
		return nil
	}
	return c.client.Close()
}
