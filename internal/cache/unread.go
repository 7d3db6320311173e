package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"calnotify/internal/events"
	"calnotify/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// UnreadCounts caches per-user unread notification counts in Redis.
// A nil *UnreadCounts, or one without a client, never hits and never stores.
//
// Every invalidation bumps a per-user version key. Callers read Version before
// counting in the database and pass it to Set, which stores nothing when an
// invalidation happened in between.
type UnreadCounts struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewUnreadCounts(client *redis.Client, ttl time.Duration, logger *zerolog.Logger) *UnreadCounts {
	return &UnreadCounts{
		redis:  client,
		ttl:    ttl,
		logger: logger.With().Str("component", "unread_cache").Logger(),
	}
}

func unreadKey(userID int64) string {
	return fmt.Sprintf("notifications:unread:%d", userID)
}

func unreadVersionKey(userID int64) string {
	return fmt.Sprintf("notifications:unread:%d:version", userID)
}

var errStaleCount = errors.New("unread count is stale")

func (c *UnreadCounts) enabled() bool {
	return c != nil && c.redis != nil && c.ttl > 0
}

// Get returns the cached count and whether it was present.
func (c *UnreadCounts) Get(ctx context.Context, userID int64) (int64, bool) {
	if !c.enabled() {
		return 0, false
	}
	val, err := c.redis.Get(ctx, unreadKey(userID)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn().Err(err).Int64("user_id", userID).Msg("Unread cache read failed")
		}
		metrics.IncCacheLookup(false)
		return 0, false
	}
	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		metrics.IncCacheLookup(false)
		return 0, false
	}
	metrics.IncCacheLookup(true)
	return count, true
}

// Version returns the user's invalidation counter; 0 when none happened yet.
func (c *UnreadCounts) Version(ctx context.Context, userID int64) int64 {
	if !c.enabled() {
		return 0
	}
	v, err := c.redis.Get(ctx, unreadVersionKey(userID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn().Err(err).Int64("user_id", userID).Msg("Unread cache version read failed")
	}
	return v
}

// Set stores count if no invalidation happened since version was read.
func (c *UnreadCounts) Set(ctx context.Context, userID, version, count int64) {
	if !c.enabled() {
		return
	}
	vKey := unreadVersionKey(userID)
	err := c.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errStaleCount
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, unreadKey(userID), count, c.ttl)
			return nil
		})
		return err
	}, vKey)
	switch {
	case err == nil:
	case errors.Is(err, errStaleCount), errors.Is(err, redis.TxFailedErr):
		c.logger.Debug().Int64("user_id", userID).Msg("Skipped caching stale unread count")
	default:
		c.logger.Warn().Err(err).Int64("user_id", userID).Msg("Unread cache write failed")
	}
}

func (c *UnreadCounts) Invalidate(ctx context.Context, userID int64) {
	if !c.enabled() {
		return
	}
	vKey := unreadVersionKey(userID)
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, vKey)
		// Outlives any count stored under the previous version.
		pipe.Expire(ctx, vKey, 2*c.ttl)
		pipe.Del(ctx, unreadKey(userID))
		return nil
	})
	if err != nil {
		c.logger.Warn().Err(err).Int64("user_id", userID).Msg("Unread cache invalidation failed")
	}
}

// Subscribe drops the cached count whenever a user's notifications change.
func (c *UnreadCounts) Subscribe(bus *events.EventBus) {
	bus.Subscribe(func(e events.Event) error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		c.Invalidate(ctx, e.UserID)
		return nil
	},
		events.NotificationCreated,
		events.NotificationRead,
		events.NotificationsRead,
		events.NotificationDeleted,
		events.NotificationsCleared,
	)
}
