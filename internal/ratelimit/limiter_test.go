package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_ConsumeToken_WithinBudget(t *testing.T) {
	l := New(3, time.Minute)
	for i := 0; i < 3; i++ {
		assert.True(t, l.ConsumeToken(), "request %d should be allowed", i)
	}
	assert.False(t, l.ConsumeToken(), "fourth request should exhaust the window")
}

func TestLimiter_RollWindow_ResetsOnBoundary(t *testing.T) {
	base := time.Now()
	l := New(2, time.Second)
	l.now = func() time.Time { return base }

	require.True(t, l.ConsumeToken())
	require.True(t, l.ConsumeToken())
	assert.False(t, l.ConsumeToken())

	l.now = func() time.Time { return base.Add(2 * time.Second) }
	assert.True(t, l.ConsumeToken(), "new window should have a fresh budget")
}

func TestLimiter_Stats_ReportsThrottled(t *testing.T) {
	l := New(1, time.Minute)
	require.True(t, l.ConsumeToken())

	stats := l.Stats()
	assert.Equal(t, 0, stats.RemainingTokens)
	assert.True(t, stats.Throttled)
}

func TestLimiter_Reset(t *testing.T) {
	l := New(1, time.Minute)
	require.True(t, l.ConsumeToken())
	require.False(t, l.ConsumeToken())

	l.Reset()
	assert.True(t, l.ConsumeToken())
}

func TestManager_FailsOpenForUnregisteredProvider(t *testing.T) {
	m := NewManager()
	assert.True(t, m.ConsumeToken("unknown-upstream"))
}

func TestManager_AddProviderAndGet(t *testing.T) {
	m := NewManager()
	m.AddProvider("yahoo", 2, time.Minute)

	l, ok := m.Get("yahoo")
	require.True(t, ok)
	assert.True(t, l.ConsumeToken())
	assert.True(t, l.ConsumeToken())
	assert.False(t, m.ConsumeToken("yahoo"))
}

func TestDefaultWindows_CoversAllUpstreams(t *testing.T) {
	windows := DefaultWindows()
	for _, name := range []string{"yahoo", "binance", "alpaca", "eodhd"} {
		w, ok := windows[name]
		require.True(t, ok, "missing default window for %s", name)
		assert.Greater(t, w.MaxRequests, 0)
		assert.Equal(t, time.Minute, w.Window)
	}
}
