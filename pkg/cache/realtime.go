package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"storefront/internal/models"
	"storefront/internal/utils"

	"github.com/redis/go-redis/v9"
)

// RealtimeCounter keeps per-day event counters and a HyperLogLog of session
// IDs next to the event collection, so the admin dashboard can show today's
// activity without scanning events.
type RealtimeCounter struct {
	cache *RedisCache
	ttl   time.Duration
	now   func() time.Time
}

func NewRealtimeCounter(cache *RedisCache, ttl time.Duration) *RealtimeCounter {
	return &RealtimeCounter{cache: cache, ttl: ttl, now: time.Now}
}

// Record adds events to the counters of the current UTC day.
func (c *RealtimeCounter) Record(ctx context.Context, events []*models.AnalyticsEvent) error {
	if len(events) == 0 {
		return nil
	}

	day := utils.DayKey(c.now())
	counts, sessions := tallyEvents(events)
	sessionsKey := c.sessionsKey(day)

	_, err := c.cache.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for eventType, n := range counts {
			key := c.countKey(day, eventType)
			pipe.IncrBy(ctx, key, n)
			pipe.Expire(ctx, key, c.ttl)
		}
		if len(sessions) > 0 {
			pipe.PFAdd(ctx, sessionsKey, sessions...)
			pipe.Expire(ctx, sessionsKey, c.ttl)
		}
		// The type index lets Snapshot find counters without KEYS.
		for eventType := range counts {
			pipe.SAdd(ctx, c.typesKey(day), string(eventType))
		}
		pipe.Expire(ctx, c.typesKey(day), c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record realtime counters: %w", err)
	}
	return nil
}

// Snapshot reads the counters for the given UTC day (YYYY-MM-DD).
func (c *RealtimeCounter) Snapshot(ctx context.Context, day string) (*models.RealtimeSnapshot, error) {
	client := c.cache.Client()

	types, err := client.SMembers(ctx, c.typesKey(day)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read realtime event types: %w", err)
	}

	snapshot := &models.RealtimeSnapshot{
		Date:   day,
		Counts: make(map[models.EventType]int64, len(types)),
	}

	if len(types) > 0 {
		keys := make([]string, len(types))
		for i, t := range types {
			keys[i] = c.countKey(day, models.EventType(t))
		}

		values, err := client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read realtime counters: %w", err)
		}
		for i, value := range values {
			snapshot.Counts[models.EventType(types[i])] = parseCount(value)
		}
	}

	sessions, err := client.PFCount(ctx, c.sessionsKey(day)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read realtime sessions: %w", err)
	}
	snapshot.UniqueSessions = sessions

	return snapshot, nil
}

// Today returns the snapshot for the current UTC day.
func (c *RealtimeCounter) Today(ctx context.Context) (*models.RealtimeSnapshot, error) {
	return c.Snapshot(ctx, utils.DayKey(c.now()))
}

func (c *RealtimeCounter) countKey(day string, eventType models.EventType) string {
	return c.cache.Key("analytics", "realtime", day, "count", string(eventType))
}

func (c *RealtimeCounter) sessionsKey(day string) string {
	return c.cache.Key("analytics", "realtime", day, "sessions")
}

func (c *RealtimeCounter) typesKey(day string) string {
	return c.cache.Key("analytics", "realtime", day, "types")
}

func tallyEvents(events []*models.AnalyticsEvent) (map[models.EventType]int64, []interface{}) {
	counts := make(map[models.EventType]int64)
	seen := make(map[string]struct{})
	sessions := make([]interface{}, 0)

	for _, event := range events {
		counts[event.EventType]++
		if event.SessionID == "" {
			continue
		}
		if _, ok := seen[event.SessionID]; ok {
			continue
		}
		seen[event.SessionID] = struct{}{}
		sessions = append(sessions, event.SessionID)
	}

	return counts, sessions
}

func parseCount(value interface{}) int64 {
	s, ok := value.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
