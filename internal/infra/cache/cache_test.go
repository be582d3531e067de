package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_EmptyURLIsDisabled(t *testing.T) {
	c, err := New(context.Background(), "", zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, c.Available())
}

func TestNew_BadURL(t *testing.T) {
	_, err := New(context.Background(), "http://not-redis", zerolog.Nop())
	assert.Error(t, err)
}

func TestDisabled_NoOps(t *testing.T) {
	ctx := context.Background()
	c := Disabled()

	require.NoError(t, c.SetJSON(ctx, "recs:2026-03-10", map[string]int{"a": 1}, time.Minute))

	var dest map[string]int
	hit, err := c.GetJSON(ctx, "recs:2026-03-10", &dest)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, dest)

	assert.NoError(t, c.Invalidate(ctx, "recs:"))
	assert.NoError(t, c.Publish(ctx, ChannelAlerts, "x"))
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Close())
}

func TestNilCache_NotAvailable(t *testing.T) {
	var c *Cache
	assert.False(t, c.Available())
}

// ─── Breaker ────────────────────────────────────────────────────────────────

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	b := newBreaker(3, 30*time.Second)
	b.now = func() time.Time { return now }

	boom := errors.New("connection refused")
	for i := 0; i < 2; i++ {
		require.NoError(t, b.allow())
		assert.False(t, b.record(boom))
	}
	require.NoError(t, b.allow())
	assert.True(t, b.record(boom), "third failure trips")
	assert.Equal(t, breakerOpen, b.current())
	assert.ErrorIs(t, b.allow(), ErrCircuitOpen)
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b := newBreaker(2, time.Second)
	boom := errors.New("timeout")

	b.record(boom)
	b.record(nil)
	assert.False(t, b.record(boom), "count restarts after a success")
	assert.Equal(t, breakerClosed, b.current())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	b := newBreaker(1, 30*time.Second)
	b.now = func() time.Time { return now }
	boom := errors.New("timeout")

	require.NoError(t, b.allow())
	require.True(t, b.record(boom))

	now = now.Add(31 * time.Second)
	require.NoError(t, b.allow(), "cool-down over, one probe allowed")
	assert.ErrorIs(t, b.allow(), ErrCircuitOpen, "second caller waits for the probe")

	// Failed probe reopens.
	assert.True(t, b.record(boom))
	assert.ErrorIs(t, b.allow(), ErrCircuitOpen)

	now = now.Add(31 * time.Second)
	require.NoError(t, b.allow())
	assert.False(t, b.record(nil))
	assert.Equal(t, breakerClosed, b.current())
	assert.NoError(t, b.allow())
}

func TestCache_DeadRedisDegradesToMiss(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	c := newCache(client, zerolog.Nop())
	t.Cleanup(func() { c.Close() })

	var dest map[string]int
	for i := 0; i < breakerThreshold; i++ {
		_, err := c.GetJSON(ctx, "recs:x", &dest)
		assert.Error(t, err)
	}
	assert.Equal(t, breakerOpen, c.breaker.current())

	hit, err := c.GetJSON(ctx, "recs:x", &dest)
	assert.NoError(t, err, "open breaker reads as a miss")
	assert.False(t, hit)
	assert.NoError(t, c.SetJSON(ctx, "recs:x", map[string]int{"a": 1}, time.Minute))
	assert.NoError(t, c.Publish(ctx, ChannelPredictions, "x"))
}
