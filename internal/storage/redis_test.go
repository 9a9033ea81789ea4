package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisStore_SaveThenLoad(t *testing.T) {
	_, client := setupRedis(t)
	ctx := context.Background()
	s := NewRedisStore[record](client, "o1bot:users")

	want := map[string]record{"u1": {Prompt: "p", Mode: "economy"}}
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRedisStore_SaveReplaces(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()
	s := NewRedisStore[int64](client, "o1bot:usage")

	require.NoError(t, s.Save(ctx, map[string]int64{"u1": 5, "u2": 7}))
	require.NoError(t, s.Save(ctx, map[string]int64{"u2": 1}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"u2": 1}, got)

	require.NoError(t, s.Save(ctx, map[string]int64{}))
	assert.False(t, mr.Exists("o1bot:usage"))
}

func TestRedisStore_SkipsMalformedEntries(t *testing.T) {
	mr, client := setupRedis(t)
	mr.HSet("o1bot:usage", "u1", "12", "u2", "twelve")

	got, err := NewRedisStore[int64](client, "o1bot:usage").Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"u1": 12}, got)
}

func TestRedisStore_ConnectionError(t *testing.T) {
	mr, client := setupRedis(t)
	mr.Close()

	s := NewRedisStore[int64](client, "o1bot:usage")
	_, err := s.Load(context.Background())
	assert.Error(t, err)
	assert.Error(t, s.Save(context.Background(), map[string]int64{"u1": 1}))
}
