package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/aiox-platform/o1bot/internal/storage"
)

// Ledger counts tokens used per user in the current accounting period.
// Additions, reservations and resets are linearized by one lock, and every
// change to usage is written through to the store while the lock is held.
type Ledger struct {
	mu       sync.Mutex
	store    storage.Store[int64]
	usage    map[string]int64
	reserved map[string]int64
}

// Reservation holds back an estimate of tokens for one in-flight generation.
type Reservation struct {
	UserID  string
	Tokens  int64
	settled bool
}

// NewLedger creates an empty ledger backed by store.
func NewLedger(store storage.Store[int64]) *Ledger {
	return &Ledger{
		store:    store,
		usage:    make(map[string]int64),
		reserved: make(map[string]int64),
	}
}

// Load replaces usage with the durable document. A corrupt document is
// treated as an empty ledger.
func (l *Ledger) Load(ctx context.Context) error {
	doc, err := l.store.Load(ctx)
	if errors.Is(err, storage.ErrCorrupt) {
		slog.Warn("usage ledger is corrupt, starting empty", "error", err)
		doc = map[string]int64{}
	} else if err != nil {
		return fmt.Errorf("loading usage: %w", err)
	}
	if doc == nil {
		doc = map[string]int64{}
	}

	for userID, n := range doc {
		if n <= 0 {
			delete(doc, userID)
		}
	}

	l.mu.Lock()
	l.usage = doc
	l.mu.Unlock()

	slog.Info("usage ledger loaded", "users", len(doc))
	return nil
}

// Get returns the tokens used by userID this period, 0 if none.
func (l *Ledger) Get(userID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.usage[userID]
}

// Reserved returns the tokens held back by in-flight generations for userID.
func (l *Ledger) Reserved(userID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reserved[userID]
}

// Position returns used and reserved tokens for userID under one lock.
func (l *Ledger) Position(userID string) (used, reserved int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.usage[userID], l.reserved[userID]
}

// AddTokens credits count tokens to userID and persists. Zero is a no-op.
// When persisting fails the in-memory credit stands and the error is returned.
func (l *Ledger) AddTokens(ctx context.Context, userID string, count int64) error {
	if count < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeTokens, count)
	}
	if count == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.usage[userID] += count
	return l.persistLocked(ctx)
}

// ResetAll zeroes every user's usage and persists. In-flight reservations
// survive so their commits land on the new period.
func (l *Ledger) ResetAll(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.usage = make(map[string]int64)
	return l.persistLocked(ctx)
}

// Persist writes the current usage to the store.
func (l *Ledger) Persist(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.persistLocked(ctx)
}

// Reserve holds back tokens for userID if usage plus existing reservations
// is still below quota. The check and the hold are atomic.
func (l *Ledger) Reserve(userID string, tokens, quota int64) (*Reservation, error) {
	if tokens < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeTokens, tokens)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	used := l.usage[userID] + l.reserved[userID]
	if used >= quota {
		return nil, fmt.Errorf("%w: %d/%d tokens used", ErrQuotaExceeded, used, quota)
	}
	l.reserved[userID] += tokens
	return &Reservation{UserID: userID, Tokens: tokens}, nil
}

// Commit replaces the reservation with the actual token count and persists.
func (l *Ledger) Commit(ctx context.Context, r *Reservation, actual int64) error {
	if actual < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeTokens, actual)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if r.settled {
		return ErrAlreadySettled
	}
	l.releaseLocked(r)
	if actual == 0 {
		return nil
	}
	l.usage[r.UserID] += actual
	return l.persistLocked(ctx)
}

// Release drops the reservation without charging anything. Releasing a
// settled reservation is a no-op.
func (l *Ledger) Release(r *Reservation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !r.settled {
		l.releaseLocked(r)
	}
}

func (l *Ledger) releaseLocked(r *Reservation) {
	r.settled = true
	left := l.reserved[r.UserID] - r.Tokens
	if left <= 0 {
		delete(l.reserved, r.UserID)
		return
	}
	l.reserved[r.UserID] = left
}

func (l *Ledger) persistLocked(ctx context.Context) error {
	if err := l.store.Save(ctx, maps.Clone(l.usage)); err != nil {
		return fmt.Errorf("saving usage: %w", err)
	}
	return nil
}
