package quota

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 9, 12, 12, 0, 0, 0, time.UTC)}
}

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	return s, client
}

// limiters returns both implementations driven by the same fake clock.
func limiters(t *testing.T, limit int, window time.Duration) (map[string]Limiter, *fakeClock) {
	t.Helper()
	clock := newClock()

	mem := NewMemoryLimiter(limit, window)
	mem.now = clock.Now

	_, rdb := setupMiniredis(t)
	rl := NewRedisLimiter(rdb, limit, window)
	rl.now = clock.Now

	return map[string]Limiter{"memory": mem, "redis": rl}, clock
}

func TestLimiter_TenthAllowedEleventhDenied(t *testing.T) {
	all, clock := limiters(t, 10, 30*time.Second)
	for name, l := range all {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := range 10 {
				allowed, err := l.Allow(ctx, "u1")
				require.NoError(t, err)
				assert.True(t, allowed, "request %d should be allowed", i+1)
				clock.Advance(time.Millisecond)
			}

			allowed, err := l.Allow(ctx, "u1")
			require.NoError(t, err)
			assert.False(t, allowed)
		})
	}
}

func TestLimiter_DeniedRequestsAreNotRecorded(t *testing.T) {
	all, clock := limiters(t, 2, 30*time.Second)
	for name, l := range all {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for range 2 {
				allowed, _ := l.Allow(ctx, "u1")
				require.True(t, allowed)
			}
			// Hammer while full; none of these may extend the window.
			for range 5 {
				clock.Advance(5 * time.Second)
				allowed, _ := l.Allow(ctx, "u1")
				require.False(t, allowed)
			}

			clock.Advance(5 * time.Second)
			allowed, err := l.Allow(ctx, "u1")
			require.NoError(t, err)
			assert.True(t, allowed, "window should have slid past the admitted requests")
		})
	}
}

func TestLimiter_AdmitsAfterWindowIdle(t *testing.T) {
	all, clock := limiters(t, 3, 30*time.Second)
	for name, l := range all {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for range 3 {
				allowed, _ := l.Allow(ctx, "u1")
				require.True(t, allowed)
			}
			allowed, _ := l.Allow(ctx, "u1")
			require.False(t, allowed)

			clock.Advance(30 * time.Second)

			allowed, err := l.Allow(ctx, "u1")
			require.NoError(t, err)
			assert.True(t, allowed)
		})
	}
}

func TestLimiter_UsersAreIndependent(t *testing.T) {
	all, _ := limiters(t, 1, 30*time.Second)
	for name, l := range all {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			allowed, _ := l.Allow(ctx, "u1")
			require.True(t, allowed)
			allowed, _ = l.Allow(ctx, "u1")
			require.False(t, allowed)

			allowed, err := l.Allow(ctx, "u2")
			require.NoError(t, err)
			assert.True(t, allowed)
		})
	}
}

func TestMemoryLimiter_UsageAndCleanup(t *testing.T) {
	clock := newClock()
	l := NewMemoryLimiter(10, 30*time.Second)
	l.now = clock.Now
	ctx := context.Background()

	for range 4 {
		_, _ = l.Allow(ctx, "u1")
	}
	assert.Equal(t, 4, l.Usage("u1"))

	clock.Advance(31 * time.Second)
	assert.Equal(t, 0, l.Usage("u1"))
	assert.NotContains(t, l.windows, "u1", "empty windows should be dropped")
}

func TestRedisLimiter_PurgesOldEntries(t *testing.T) {
	_, rdb := setupMiniredis(t)
	clock := newClock()
	rl := NewRedisLimiter(rdb, 3, 30*time.Second)
	rl.now = clock.Now
	ctx := context.Background()

	key := rateLimitKeyPrefix + "u1"
	old := float64(clock.Now().Add(-40 * time.Second).UnixMilli())
	for i := range 3 {
		rdb.ZAdd(ctx, key, redis.Z{Score: old + float64(i), Member: fmt.Sprintf("old:%d", i)})
	}

	allowed, err := rl.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, allowed, "old entries should be cleaned, allowing new request")

	usage, err := rl.Usage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, usage)
}

func TestRedisLimiter_SetsTTL(t *testing.T) {
	mr, rdb := setupMiniredis(t)
	rl := NewRedisLimiter(rdb, 3, 30*time.Second)

	_, err := rl.Allow(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, mr.TTL(rateLimitKeyPrefix+"u1"))
}

func TestRedisLimiter_ConnectionError(t *testing.T) {
	mr, rdb := setupMiniredis(t)
	rl := NewRedisLimiter(rdb, 3, 30*time.Second)
	mr.Close()

	_, err := rl.Allow(context.Background(), "u1")
	assert.Error(t, err)
}
