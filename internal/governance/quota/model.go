package quota

import (
	"errors"
	"time"
)

var (
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrQuotaExceeded  = errors.New("daily token limit exceeded")
	ErrNegativeTokens = errors.New("token count must not be negative")
	ErrAlreadySettled = errors.New("reservation already settled")
)

// UsageStatus is a user's position against their quota in the current period.
type UsageStatus struct {
	UserID    string    `json:"user_id"`
	Used      int64     `json:"used"`
	Reserved  int64     `json:"reserved"`
	Quota     int64     `json:"quota"`
	NextReset time.Time `json:"next_reset,omitzero"`
}

// Remaining is the quota left after usage and in-flight reservations, never negative.
func (s UsageStatus) Remaining() int64 {
	return max(s.Quota-s.Used-s.Reserved, 0)
}

// Exceeded reports whether no further generation may start.
func (s UsageStatus) Exceeded() bool {
	return s.Used+s.Reserved >= s.Quota
}
