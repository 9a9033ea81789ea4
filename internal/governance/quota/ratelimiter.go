package quota

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "o1bot:rate:"

// Limiter is a per-user sliding-log rate limiter. Allow purges entries older
// than the window, denies without recording when the remaining count has
// reached the limit, and otherwise records now and allows.
type Limiter interface {
	Allow(ctx context.Context, userID string) (bool, error)
}

// MemoryLimiter keeps windows in process memory. Windows do not survive a restart.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	windows map[string][]time.Time
}

// NewMemoryLimiter creates a limiter admitting limit requests per window.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string][]time.Time),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, userID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	live := l.purge(userID, now)
	if len(live) >= l.limit {
		return false, nil
	}
	l.windows[userID] = append(live, now)
	return true, nil
}

// Usage returns the number of requests in the user's current window.
func (l *MemoryLimiter) Usage(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.purge(userID, l.now()))
}

// purge drops timestamps at least one window old. Callers hold l.mu.
func (l *MemoryLimiter) purge(userID string, now time.Time) []time.Time {
	stamps := l.windows[userID]
	i := 0
	for i < len(stamps) && now.Sub(stamps[i]) >= l.window {
		i++
	}
	stamps = stamps[i:]
	if len(stamps) == 0 {
		delete(l.windows, userID)
		return nil
	}
	l.windows[userID] = stamps
	return stamps
}

// RedisLimiter implements the sliding log as a Redis sorted set per user so
// replicas share one window.
type RedisLimiter struct {
	rdb    redis.Cmdable
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter creates a Redis-based limiter admitting limit requests per window.
func NewRedisLimiter(rdb redis.Cmdable, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, window: window, now: time.Now}
}

func (rl *RedisLimiter) Allow(ctx context.Context, userID string) (bool, error) {
	key := rateLimitKeyPrefix + userID
	now := rl.now()
	windowStart := now.Add(-rl.window).UnixMilli()

	pipe := rl.rdb.Pipeline()

	// Remove entries at least one window old
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(windowStart, 10))

	// Count current entries in the window
	countCmd := pipe.ZCard(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limiter pipeline (clean+count): %w", err)
	}

	count := countCmd.Val()
	if count >= int64(rl.limit) {
		return false, nil
	}

	// Under limit: add new entry and refresh TTL
	pipe2 := rl.rdb.Pipeline()
	member := fmt.Sprintf("%d:%d", now.UnixNano(), count)
	pipe2.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: member})
	pipe2.Expire(ctx, key, rl.window+rl.window/2)

	if _, err := pipe2.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limiter pipeline (add): %w", err)
	}
	return true, nil
}

// Usage returns the number of requests in the user's current window.
func (rl *RedisLimiter) Usage(ctx context.Context, userID string) (int, error) {
	now := rl.now()
	count, err := rl.rdb.ZCount(ctx, rateLimitKeyPrefix+userID,
		"("+strconv.FormatInt(now.Add(-rl.window).UnixMilli(), 10),
		strconv.FormatInt(now.UnixMilli(), 10),
	).Result()
	if err != nil {
		return 0, fmt.Errorf("counting rate window: %w", err)
	}
	return int(count), nil
}
