package cache

import (
	"context"
	"testing"
	"time"

	"calnotify/internal/events"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) (*UnreadCounts, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	logger := zerolog.Nop()
	return NewUnreadCounts(rdb, time.Minute, &logger), mr
}

func TestUnreadCounts_SetGet(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	_, ok := c.Get(ctx, 1)
	assert.False(t, ok)

	c.Set(ctx, 1, 0, 7)
	count, ok := c.Get(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, int64(7), count)

	_, ok = c.Get(ctx, 2)
	assert.False(t, ok, "keys are per user")

	mr.FastForward(2 * time.Minute)
	_, ok = c.Get(ctx, 1)
	assert.False(t, ok, "entry expires after ttl")
}

func TestUnreadCounts_InvalidatedByEvents(t *testing.T) {
	c, _ := setupCache(t)
	ctx := context.Background()
	bus := events.NewEventBus()
	c.Subscribe(bus)

	c.Set(ctx, 1, 0, 3)
	c.Set(ctx, 2, 0, 4)

	bus.Publish(events.NewEvent(events.NotificationRead, 1, nil))

	_, ok := c.Get(ctx, 1)
	assert.False(t, ok)
	count, ok := c.Get(ctx, 2)
	require.True(t, ok)
	assert.Equal(t, int64(4), count)

	bus.Publish(events.NewEvent(events.SoundDeleted, 2, nil))
	_, ok = c.Get(ctx, 2)
	assert.True(t, ok, "unrelated events leave the cache alone")
}

func TestUnreadCounts_StaleVersionNotStored(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	version := c.Version(ctx, 1)
	assert.Zero(t, version)

	// Notifications change while the caller is counting in the database.
	c.Invalidate(ctx, 1)
	c.Set(ctx, 1, version, 5)

	_, ok := c.Get(ctx, 1)
	assert.False(t, ok, "count read before the invalidation is dropped")
	assert.False(t, mr.Exists(unreadKey(1)))

	version = c.Version(ctx, 1)
	assert.Equal(t, int64(1), version)
	c.Set(ctx, 1, version, 4)
	count, ok := c.Get(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, int64(4), count)

	assert.Zero(t, c.Version(ctx, 2), "versions are per user")
}

func TestUnreadCounts_Disabled(t *testing.T) {
	var c *UnreadCounts
	ctx := context.Background()

	c.Set(ctx, 1, 0, 3)
	_, ok := c.Get(ctx, 1)
	assert.False(t, ok)
	assert.Zero(t, c.Version(ctx, 1))
	c.Invalidate(ctx, 1)
}
