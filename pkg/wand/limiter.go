package wand

import (
	"time"
)

const (
	// minUpdate throttles how often a changed feedback value may hit the
	// wire.
	minUpdate = 10 * time.Millisecond

	// maxUpdate forces a periodic resend even without changes; the
	// transport drops commands silently now and then.
	maxUpdate = 1000 * time.Millisecond
)

// limiter wraps a value with a dirty flag and last-send timestamp. Pending is
// side-effect free so a timed-out send leaves the limiter untouched; Sent
// commits after the wire write succeeded.
type limiter[T comparable] struct {
	value  T
	dirty  bool
	sentAt time.Time
}

func newLimiter[T comparable](initial T, now time.Time) *limiter[T] {
	return &limiter[T]{
		value:  initial,
		dirty:  true,
		sentAt: now,
	}
}

// set stores the new target, marking it dirty only when it differs from the
// last-accepted value.
func (l *limiter[T]) set(value T) {
	if value != l.value {
		l.value = value
		l.dirty = true
	}
}

// pending reports whether a send is due at now.
func (l *limiter[T]) pending(now time.Time) (T, bool) {
	since := now.Sub(l.sentAt)
	if (l.dirty && since >= minUpdate) || since >= maxUpdate {
		return l.value, true
	}
	var zero T
	return zero, false
}

// sent clears the dirty flag and resets the resend timer.
func (l *limiter[T]) sent(now time.Time) {
	l.dirty = false
	l.sentAt = now
}
