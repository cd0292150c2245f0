// Package persistence defines the QuestPersistence port the connection
// actor flushes dirty character-scoped quest state through, and the
// fixed-cadence Scheduler that drives it (spec.md §4.8).
//
// The core never owns storage: DB schema and ORM details are explicitly out
// of scope (spec.md §1). Concrete adapters (e.g. persistence/mysql) live
// alongside this package and are injected by the process that wires up a
// Listener.
package persistence

import (
	"context"
	"time"

	"nexuscore/internal/session"
)

// DefaultInterval is the scheduler's fixed tick cadence (spec.md §4.8).
const DefaultInterval = 30 * time.Second

// QuestPersistence is the injected port for flushing dirty quest state.
type QuestPersistence interface {
	// PersistDirty writes out the character's dirty active quests and
	// returns how many were written plus a new Session with QuestDirty
	// cleared and CompletedQuestIDs possibly updated.
	PersistDirty(ctx context.Context, characterID uint64, s session.Session) (count int, next session.Session, err error)

	// PersistOnLogout performs a best-effort terminal flush at connection
	// teardown. Errors are logged by the caller but never prevent teardown.
	PersistOnLogout(ctx context.Context, characterID uint64, s session.Session) error
}

// Scheduler fires a fixed-cadence tick that flushes a single connection's
// dirty quest state through a QuestPersistence port, starting from when the
// connection enters the world (spec.md §4.8).
type Scheduler struct {
	port     QuestPersistence
	interval time.Duration

	timer   *time.Timer
	started bool
}

// NewScheduler returns a Scheduler bound to port. A zero interval selects
// DefaultInterval.
func NewScheduler(port QuestPersistence, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{port: port, interval: interval}
}

// Start idempotently arms the timer, firing fire once after the configured
// interval. It is a no-op if the timer is already running — spec.md §3
// invariant 4: "persist_timer is created at most once per connection
// lifetime".
func (s *Scheduler) Start(fire func()) {
	if s.started {
		return
	}
	s.started = true
	s.timer = time.AfterFunc(s.interval, fire)
}

// Reschedule arms exactly one more tick, first cancelling any tick still
// pending, so a connection always has at most one outstanding timer even
// when a flush is requested between ticks.
func (s *Scheduler) Reschedule(fire func()) {
	if !s.started {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.interval, fire)
}

// Stop cancels the timer. Safe to call multiple times or before Start; the
// connection actor calls this exactly once from its termination hook
// (spec.md §3 invariant 4).
func (s *Scheduler) Stop() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.started = false
}

// Tick performs one persistence cycle: no-op (but still considered handled)
// if no character is bound yet, otherwise calls PersistDirty and folds the
// result into the session. On error the existing session is retained
// unchanged; the next tick retries (spec.md §4.8 step 3 — no dedicated
// backoff, the fixed cadence bounds retry rate).
func (s *Scheduler) Tick(ctx context.Context, cur session.Session) (next session.Session, persisted bool, err error) {
	if cur.CharacterID() == 0 {
		return cur, false, nil
	}
	count, updated, err := s.port.PersistDirty(ctx, cur.CharacterID(), cur)
	if err != nil {
		return cur, false, err
	}
	_ = count
	return updated, true, nil
}

// Logout performs the unconditional terminal flush. It no-ops if no
// character was ever bound. Errors are returned for logging but never
// block teardown — callers must not propagate them as a reason to delay
// connection destruction.
func (s *Scheduler) Logout(ctx context.Context, cur session.Session) error {
	if cur.CharacterID() == 0 {
		return nil
	}
	return s.port.PersistOnLogout(ctx, cur.CharacterID(), cur)
}
