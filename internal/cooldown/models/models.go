package models

import (
	"fmt"
	"math"
	"time"

	id "warden/pkg/domain"
)

// Entry blocks a user from starting verification until ExpiresAt.
type Entry struct {
	UserID    id.UserID `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ActiveAt reports whether the entry still blocks at now. An entry whose
// expiry is at or before now is treated as absent.
func (e Entry) ActiveAt(now time.Time) bool {
	return e.ExpiresAt.After(now)
}

// Remaining is the time left at now, never negative.
func (e Entry) Remaining(now time.Time) time.Duration {
	return max(e.ExpiresAt.Sub(now), 0)
}

// BlockedError describes an active cooldown. It is carried inside the
// blocked domain error so transports can report the remaining time.
type BlockedError struct {
	Until     time.Time
	Remaining time.Duration
}

func (e *BlockedError) Error() string {
	return "cooldown active for " + FormatRemaining(e.Remaining)
}

// RetryAfterSeconds rounds the remaining time up to whole seconds.
func (e *BlockedError) RetryAfterSeconds() int64 {
	return int64(math.Ceil(e.Remaining.Seconds()))
}

// FormatRemaining renders d as "{h}h {m}m" with minutes truncated.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int64(d / time.Hour)
	m := int64((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh %dm", h, m)
}
