package quota

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiox-platform/o1bot/internal/storage"
)

type memStore struct {
	mu      sync.Mutex
	doc     map[string]int64
	saves   int
	loadErr error
	saveErr error
}

func (m *memStore) Load(context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make(map[string]int64, len(m.doc))
	for k, v := range m.doc {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) Save(_ context.Context, doc map[string]int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.doc = doc
	m.saves++
	return nil
}

func (m *memStore) snapshot() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc
}

func TestLedger_GetAbsentIsZero(t *testing.T) {
	l := NewLedger(&memStore{})
	assert.Equal(t, int64(0), l.Get("nobody"))
}

func TestLedger_AddTokensPersists(t *testing.T) {
	store := &memStore{}
	l := NewLedger(store)
	ctx := context.Background()

	require.NoError(t, l.AddTokens(ctx, "u1", 120))
	require.NoError(t, l.AddTokens(ctx, "u1", 30))

	assert.Equal(t, int64(150), l.Get("u1"))
	assert.Equal(t, map[string]int64{"u1": 150}, store.snapshot())
}

func TestLedger_AddZeroIsNoop(t *testing.T) {
	store := &memStore{}
	l := NewLedger(store)

	require.NoError(t, l.AddTokens(context.Background(), "u1", 0))
	assert.Equal(t, 0, store.saves)
	assert.Equal(t, int64(0), l.Get("u1"))
}

func TestLedger_AddNegativeRejected(t *testing.T) {
	l := NewLedger(&memStore{})
	err := l.AddTokens(context.Background(), "u1", -5)
	assert.ErrorIs(t, err, ErrNegativeTokens)
	assert.Equal(t, int64(0), l.Get("u1"))
}

func TestLedger_ResetAllThenAdd(t *testing.T) {
	store := &memStore{}
	l := NewLedger(store)
	ctx := context.Background()

	require.NoError(t, l.AddTokens(ctx, "u1", 4000))
	require.NoError(t, l.AddTokens(ctx, "u2", 10))

	require.NoError(t, l.ResetAll(ctx))
	assert.Equal(t, int64(0), l.Get("u1"))
	assert.Equal(t, int64(0), l.Get("u2"))
	assert.Empty(t, store.snapshot())

	require.NoError(t, l.AddTokens(ctx, "u1", 25))
	assert.Equal(t, int64(25), l.Get("u1"))
}

func TestLedger_PersistFailureKeepsCredit(t *testing.T) {
	store := &memStore{saveErr: errors.New("disk full")}
	l := NewLedger(store)

	err := l.AddTokens(context.Background(), "u1", 10)
	assert.Error(t, err)
	assert.Equal(t, int64(10), l.Get("u1"))
}

func TestLedger_LoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"u1": 4999, "u2": 0}`), 0o600))

	l := NewLedger(storage.NewFileStore[int64](path))
	require.NoError(t, l.Load(context.Background()))
	assert.Equal(t, int64(4999), l.Get("u1"))
	assert.Equal(t, int64(0), l.Get("u2"))
}

func TestLedger_LoadCorruptIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"u1": "lots"`), 0o600))

	l := NewLedger(storage.NewFileStore[int64](path))
	require.NoError(t, l.Load(context.Background()))
	assert.Equal(t, int64(0), l.Get("u1"))
}

func TestLedger_LoadNullThenAdd(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "usage.json")
	require.NoError(t, os.WriteFile(path, []byte("null"), 0o600))

	l := NewLedger(storage.NewFileStore[int64](path))
	require.NoError(t, l.Load(ctx))
	require.NoError(t, l.AddTokens(ctx, "u1", 25))

	r, err := l.Reserve("u1", 10, 5000)
	require.NoError(t, err)
	require.NoError(t, l.Commit(ctx, r, 5))
	assert.Equal(t, int64(30), l.Get("u1"))
}

func TestLedger_LoadBackendErrorIsReturned(t *testing.T) {
	l := NewLedger(&memStore{loadErr: errors.New("connection refused")})
	assert.Error(t, l.Load(context.Background()))
}

func TestLedger_Reservations(t *testing.T) {
	ctx := context.Background()

	t.Run("reserve below quota", func(t *testing.T) {
		l := NewLedger(&memStore{})
		r, err := l.Reserve("u1", 100, 5000)
		require.NoError(t, err)
		assert.Equal(t, int64(100), l.Reserved("u1"))

		require.NoError(t, l.Commit(ctx, r, 80))
		assert.Equal(t, int64(0), l.Reserved("u1"))
		assert.Equal(t, int64(80), l.Get("u1"))
	})

	t.Run("reservations count against quota", func(t *testing.T) {
		l := NewLedger(&memStore{})
		require.NoError(t, l.AddTokens(ctx, "u1", 4900))

		_, err := l.Reserve("u1", 100, 5000)
		require.NoError(t, err)

		_, err = l.Reserve("u1", 1, 5000)
		assert.ErrorIs(t, err, ErrQuotaExceeded)
	})

	t.Run("one below quota still admits", func(t *testing.T) {
		l := NewLedger(&memStore{})
		require.NoError(t, l.AddTokens(ctx, "u1", 4999))

		r, err := l.Reserve("u1", 500, 5000)
		require.NoError(t, err)
		require.NoError(t, l.Commit(ctx, r, 50))
		assert.Equal(t, int64(5049), l.Get("u1"))
	})

	t.Run("release frees the hold", func(t *testing.T) {
		l := NewLedger(&memStore{})
		r, err := l.Reserve("u1", 5000, 5000)
		require.NoError(t, err)

		l.Release(r)
		l.Release(r)
		assert.Equal(t, int64(0), l.Reserved("u1"))
		assert.Equal(t, int64(0), l.Get("u1"))

		_, err = l.Reserve("u1", 1, 5000)
		assert.NoError(t, err)
	})

	t.Run("commit twice", func(t *testing.T) {
		l := NewLedger(&memStore{})
		r, err := l.Reserve("u1", 10, 5000)
		require.NoError(t, err)
		require.NoError(t, l.Commit(ctx, r, 10))
		assert.ErrorIs(t, l.Commit(ctx, r, 10), ErrAlreadySettled)
		assert.Equal(t, int64(10), l.Get("u1"))
	})

	t.Run("commit after reset lands on new period", func(t *testing.T) {
		l := NewLedger(&memStore{})
		require.NoError(t, l.AddTokens(ctx, "u1", 3000))
		r, err := l.Reserve("u1", 100, 5000)
		require.NoError(t, err)

		require.NoError(t, l.ResetAll(ctx))
		assert.Equal(t, int64(100), l.Reserved("u1"), "in-flight holds survive a reset")

		require.NoError(t, l.Commit(ctx, r, 70))
		assert.Equal(t, int64(70), l.Get("u1"))
	})
}

func TestLedger_ConcurrentAdds(t *testing.T) {
	store := &memStore{}
	l := NewLedger(store)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.AddTokens(ctx, "u1", 2)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), l.Get("u1"))
	assert.Equal(t, int64(100), store.snapshot()["u1"])
}

func TestLedger_ConcurrentReservationsRespectQuota(t *testing.T) {
	l := NewLedger(&memStore{})

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Reserve("u1", 100, 1000); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, granted)
}
