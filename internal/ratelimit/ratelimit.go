// Package ratelimit implements the sliding-window hit counter used for
// pre-auth throttling (spec.md §4.5). Each key keeps its own ring of
// recent hit timestamps; Hit atomically records an attempt and reports
// whether it falls under the configured limit within the trailing window.
//
// Structurally this mirrors progressdb-ProgressDB's pkg/auth/limiter.go
// limiterPool — a mutex-guarded map from key to a per-key limiter value —
// but the per-key value is a hand-rolled sliding window rather than
// golang.org/x/time/rate's token bucket, because the wire protocol needs
// the exact trailing-window hit count (Allow(count) / Deny(limit)), which a
// token bucket cannot report (see DESIGN.md).
package ratelimit

import (
	"sync"
	"time"
)

// DefaultSweepInterval is how often expired per-key windows are purged.
const DefaultSweepInterval = 10 * time.Minute

// Verdict is the outcome of one Hit call.
type Verdict struct {
	Allowed bool
	Count   int // hits within the trailing window, including this one, when Allowed
	Limit   int // the limit that was applied, always populated
}

type window struct {
	mu   sync.Mutex
	hits []time.Time
}

// Limiter is a process-wide, concurrent-safe sliding-window rate limiter
// keyed by an opaque string such as "auth:<client_ip>".
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

// New returns an empty Limiter.
func New() *Limiter {
	return &Limiter{windows: make(map[string]*window), now: time.Now}
}

func (l *Limiter) windowFor(key string) *window {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[key]
	if !ok {
		w = &window{}
		l.windows[key] = w
	}
	return w
}

// Hit atomically increments key's hit counter and reports Allow iff fewer
// than limit successful hits occurred for key within the trailing
// window_ms (spec.md §3 invariant 5). The chosen policy is a sliding
// window: hits older than windowMs are pruned before counting, so the
// window boundary always trails "now" rather than snapping to a fixed
// bucket edge.
func (l *Limiter) Hit(key string, windowMs int64, limit int) Verdict {
	w := l.windowFor(key)
	w.mu.Lock()
	defer w.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-time.Duration(windowMs) * time.Millisecond)
	kept := w.hits[:0]
	for _, t := range w.hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.hits = kept

	if len(w.hits) >= limit {
		return Verdict{Allowed: false, Count: len(w.hits), Limit: limit}
	}
	w.hits = append(w.hits, now)
	return Verdict{Allowed: true, Count: len(w.hits), Limit: limit}
}

// Sweep removes any key whose entire window has expired relative to
// maxAgeMs, bounding memory growth (spec.md §4.5). Callers run this on a
// periodic ticker, default DefaultSweepInterval.
func (l *Limiter) Sweep(maxAgeMs int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-time.Duration(maxAgeMs) * time.Millisecond)
	for key, w := range l.windows {
		w.mu.Lock()
		stale := true
		for _, t := range w.hits {
			if t.After(cutoff) {
				stale = false
				break
			}
		}
		w.mu.Unlock()
		if stale {
			delete(l.windows, key)
		}
	}
}

// StartSweeper launches a goroutine that calls Sweep every interval (or
// DefaultSweepInterval if interval <= 0) until the returned stop func is
// called.
func (l *Limiter) StartSweeper(interval time.Duration, maxAgeMs int64) (stop func()) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Sweep(maxAgeMs)
			case <-done:
				return
			}
		}
	}()
	return sync.OnceFunc(func() { close(done) })
}
