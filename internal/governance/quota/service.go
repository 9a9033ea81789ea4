package quota

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aiox-platform/o1bot/internal/config"
)

// Service is the admission controller: the per-user rate limit and the
// daily token quota, backed by a Limiter and the Ledger.
type Service struct {
	limiter   Limiter
	ledger    *Ledger
	cfg       config.LimitsConfig
	nextReset func() time.Time
}

// NewService creates a new quota Service.
func NewService(limiter Limiter, ledger *Ledger, cfg config.LimitsConfig) *Service {
	return &Service{
		limiter: limiter,
		ledger:  ledger,
		cfg:     cfg,
	}
}

// WithResetClock sets the source for UsageStatus.NextReset.
func (s *Service) WithResetClock(next func() time.Time) *Service {
	s.nextReset = next
	return s
}

// Admit records one request in the user's rate window. It returns
// ErrRateLimited when the window is full. Limiter failures admit the request.
func (s *Service) Admit(ctx context.Context, userID string) error {
	allowed, err := s.limiter.Allow(ctx, userID)
	if err != nil {
		slog.Warn("quota: rate limiter check failed, allowing request", "user_id", userID, "error", err)
		return nil
	}
	if !allowed {
		return fmt.Errorf("%w: max %d requests per %s", ErrRateLimited, s.cfg.RateLimit, s.cfg.Window)
	}
	return nil
}

// QuotaFor returns the user's daily token quota.
func (s *Service) QuotaFor(userID string) int64 {
	return s.cfg.QuotaFor(userID)
}

// CheckQuota returns ErrQuotaExceeded once usage plus in-flight reservations
// reaches the user's quota.
func (s *Service) CheckQuota(userID string) error {
	st := s.Status(userID)
	if st.Exceeded() {
		return fmt.Errorf("%w: %d/%d tokens used", ErrQuotaExceeded, st.Used+st.Reserved, st.Quota)
	}
	return nil
}

// Reserve holds back estimate tokens (at least 1) for a generation.
func (s *Service) Reserve(userID string, estimate int64) (*Reservation, error) {
	return s.ledger.Reserve(userID, max(estimate, 1), s.QuotaFor(userID))
}

// Record charges the actual token total of a completed generation.
func (s *Service) Record(ctx context.Context, r *Reservation, totalTokens int64) error {
	return s.ledger.Commit(ctx, r, totalTokens)
}

// Release drops a reservation for a generation that failed.
func (s *Service) Release(r *Reservation) {
	s.ledger.Release(r)
}

// Status returns the user's usage against quota.
func (s *Service) Status(userID string) UsageStatus {
	used, reserved := s.ledger.Position(userID)
	st := UsageStatus{UserID: userID, Used: used, Reserved: reserved, Quota: s.QuotaFor(userID)}
	if s.nextReset != nil {
		st.NextReset = s.nextReset()
	}
	return st
}
