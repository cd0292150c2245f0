package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"nexuscore/internal/session"
)

type fakePort struct {
	mu           sync.Mutex
	dirtyCalls   int
	logoutCalls  int
	failNext     bool
	lastLogoutID uint64
}

func (f *fakePort) PersistDirty(ctx context.Context, characterID uint64, s session.Session) (int, session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirtyCalls++
	if f.failNext {
		f.failNext = false
		return 0, s, errors.New("transient failure")
	}
	next := s.Clone()
	next.QuestDirty = false
	return len(next.ActiveQuests), next, nil
}

func (f *fakePort) PersistOnLogout(ctx context.Context, characterID uint64, s session.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	f.lastLogoutID = characterID
	return nil
}

func TestTickNoopWithoutCharacter(t *testing.T) {
	port := &fakePort{}
	s := NewScheduler(port, 0)
	next, persisted, err := s.Tick(context.Background(), session.New())
	require.NoError(t, err)
	require.False(t, persisted)
	require.Equal(t, 0, port.dirtyCalls)
	require.Equal(t, session.New(), next)
}

func TestTickPersistsWhenCharacterBound(t *testing.T) {
	port := &fakePort{}
	s := NewScheduler(port, 0)
	sess := session.New()
	sess.Character = &session.Character{ID: 42}
	sess.QuestDirty = true

	next, persisted, err := s.Tick(context.Background(), sess)
	require.NoError(t, err)
	require.True(t, persisted)
	require.False(t, next.QuestDirty)
	require.Equal(t, 1, port.dirtyCalls)
}

func TestTickRetainsSessionOnError(t *testing.T) {
	port := &fakePort{failNext: true}
	s := NewScheduler(port, 0)
	sess := session.New()
	sess.Character = &session.Character{ID: 7}
	sess.QuestDirty = true

	next, persisted, err := s.Tick(context.Background(), sess)
	require.Error(t, err)
	require.False(t, persisted)
	require.True(t, next.QuestDirty, "session must be retained unchanged on failure")
}

func TestLogoutCalledOnceWhenCharacterBound(t *testing.T) {
	port := &fakePort{}
	s := NewScheduler(port, 0)
	sess := session.New()
	sess.Character = &session.Character{ID: 99}

	err := s.Logout(context.Background(), sess)
	require.NoError(t, err)
	require.Equal(t, 1, port.logoutCalls)
	require.Equal(t, uint64(99), port.lastLogoutID)
}

func TestLogoutNoopWithoutCharacter(t *testing.T) {
	port := &fakePort{}
	s := NewScheduler(port, 0)
	err := s.Logout(context.Background(), session.New())
	require.NoError(t, err)
	require.Equal(t, 0, port.logoutCalls)
}

func TestSchedulerStartIsIdempotent(t *testing.T) {
	port := &fakePort{}
	s := NewScheduler(port, 0)
	fires := 0
	s.Start(func() { fires++ })
	first := s.timer
	s.Start(func() { fires++ }) // second Start must be a no-op
	require.Same(t, first, s.timer, "second Start must not arm another timer")
	s.Stop()
}
