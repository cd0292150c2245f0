package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHitAllowsUpToLimitThenDenies(t *testing.T) {
	l := New()
	cur := time.Unix(0, 0)
	l.now = func() time.Time { return cur }

	for i := 0; i < 5; i++ {
		v := l.Hit("auth:1.2.3.4", 60000, 5)
		require.True(t, v.Allowed, "hit %d should be allowed", i)
	}
	v := l.Hit("auth:1.2.3.4", 60000, 5)
	require.False(t, v.Allowed)
	require.Equal(t, 5, v.Limit)
}

func TestHitAllowsAgainAfterWindowExpires(t *testing.T) {
	l := New()
	cur := time.Unix(0, 0)
	l.now = func() time.Time { return cur }

	for i := 0; i < 5; i++ {
		require.True(t, l.Hit("k", 60000, 5).Allowed)
	}
	require.False(t, l.Hit("k", 60000, 5).Allowed)

	cur = cur.Add(60*time.Second + time.Millisecond)
	require.True(t, l.Hit("k", 60000, 5).Allowed)
}

func TestHitBoundOverWindow(t *testing.T) {
	l := New()
	cur := time.Unix(0, 0)
	l.now = func() time.Time { return cur }

	allowedCount := 0
	for i := 0; i < 100; i++ {
		if l.Hit("bound", 1000, 10).Allowed {
			allowedCount++
		}
		cur = cur.Add(50 * time.Millisecond)
	}
	require.LessOrEqual(t, allowedCount, 10*5) // 100 hits 50ms apart span five 1000ms windows, at most 10 each
}

func TestSweepRemovesStaleKeys(t *testing.T) {
	l := New()
	cur := time.Unix(0, 0)
	l.now = func() time.Time { return cur }
	l.Hit("stale", 1000, 5)

	cur = cur.Add(time.Hour)
	l.Sweep(1000)

	l.mu.Lock()
	_, exists := l.windows["stale"]
	l.mu.Unlock()
	require.False(t, exists)
}

func TestKeysAreIndependent(t *testing.T) {
	l := New()
	for i := 0; i < 5; i++ {
		require.True(t, l.Hit("a", 60000, 5).Allowed)
	}
	require.False(t, l.Hit("a", 60000, 5).Allowed)
	require.True(t, l.Hit("b", 60000, 5).Allowed)
}
