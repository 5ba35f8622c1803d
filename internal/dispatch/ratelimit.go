package dispatch

import (
	"context"
	"sync"
	"time"
)

// Limiter is a sliding-window rate limiter shared by every send in the
// process. It admits at most limit acquisitions per window; callers over
// the ceiling block until the oldest admission ages out, so sends are
// delayed rather than dropped.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	sent   []time.Time

	now func() time.Time
}

// NewLimiter creates a limiter admitting limit sends per window.
func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Acquire blocks until a send slot is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		admitted, resetAt := l.tryAcquire()
		if admitted {
			return nil
		}

		wait := time.Until(resetAt)
		if wait <= 0 {
			wait = time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// tryAcquire admits the caller if the window has room, otherwise reports
// when the oldest admission leaves the window.
func (l *Limiter) tryAcquire() (admitted bool, resetAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.sent[:0]
	for _, ts := range l.sent {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.sent = kept

	if len(l.sent) < l.limit {
		l.sent = append(l.sent, now)
		return true, time.Time{}
	}
	return false, l.sent[0].Add(l.window)
}
