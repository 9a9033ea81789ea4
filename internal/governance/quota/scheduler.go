package quota

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Resetter is the part of the ledger the scheduler drives.
type Resetter interface {
	ResetAll(ctx context.Context) error
}

// ResetScheduler zeroes the ledger once per interval. The first reset fires
// one interval after Start.
type ResetScheduler struct {
	ledger     Resetter
	interval   time.Duration
	afterReset func(ctx context.Context, err error)

	mu      sync.Mutex
	running bool
	next    time.Time
}

// NewResetScheduler creates a scheduler. afterReset may be nil.
func NewResetScheduler(ledger Resetter, interval time.Duration, afterReset func(ctx context.Context, err error)) *ResetScheduler {
	return &ResetScheduler{ledger: ledger, interval: interval, afterReset: afterReset}
}

// Start launches the reset loop until ctx is done. It returns false without
// starting a second loop if one is already running.
func (s *ResetScheduler) Start(ctx context.Context) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		slog.Debug("reset scheduler already running")
		return false
	}
	s.running = true
	s.next = time.Now().Add(s.interval)
	s.mu.Unlock()

	go s.loop(ctx)
	slog.Info("usage reset scheduler started", "interval", s.interval)
	return true
}

// NextReset returns when the next reset is due, or the zero time when stopped.
func (s *ResetScheduler) NextReset() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}
	}
	return s.next
}

func (s *ResetScheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("usage reset scheduler stopped")
			return
		case now := <-ticker.C:
			s.mu.Lock()
			s.next = now.Add(s.interval)
			s.mu.Unlock()

			err := s.ledger.ResetAll(ctx)
			if err != nil {
				slog.Error("resetting usage ledger", "error", err)
			} else {
				slog.Info("usage ledger reset")
			}
			if s.afterReset != nil {
				s.afterReset(ctx, err)
			}
		}
	}
}
