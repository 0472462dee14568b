// Package ratelimit implements the fixed-window per-upstream request gate
// described in spec.md §4.A. Unlike a continuous token-bucket (which is what
// golang.org/x/time/rate provides — see DESIGN.md for why that library does
// not fit here), each window's budget is a flat count that resets on
// wall-clock boundaries rather than refilling gradually; this mirrors how
// upstream vendors themselves publish their budgets ("100 requests/min").
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a fixed-window counter: maxRequests tokens available in each
// window-wide slice of wall-clock time.
type Limiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	used        int
	windowStart time.Time
	now         func() time.Time
}

// New creates a Limiter. window is the window size; maxRequests is the
// per-window budget.
func New(maxRequests int, window time.Duration) *Limiter {
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		windowStart: time.Now(),
		now:         time.Now,
	}
}

// rollWindow resets the counter if the current wall-clock window has
// elapsed. Must be called with mu held.
func (l *Limiter) rollWindow() {
	now := l.now()
	if now.Sub(l.windowStart) >= l.window {
		// Advance windowStart by whole window-lengths so back-to-back
		// rolls stay aligned to wall-clock boundaries instead of drifting.
		elapsed := now.Sub(l.windowStart)
		steps := elapsed / l.window
		l.windowStart = l.windowStart.Add(steps * l.window)
		l.used = 0
	}
}

// ConsumeToken attempts to take one token from the current window.
// Non-blocking: returns false immediately when the window is depleted.
func (l *Limiter) ConsumeToken() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollWindow()
	if l.used >= l.maxRequests {
		return false
	}
	l.used++
	return true
}

// RemainingTokens reports how many requests remain in the current window.
func (l *Limiter) RemainingTokens() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollWindow()
	remaining := l.maxRequests - l.used
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Stats is a point-in-time snapshot for observability.
type Stats struct {
	MaxRequests     int
	Used            int
	RemainingTokens int
	WindowStart     time.Time
	WindowEnds      time.Time
	Throttled       bool
}

// Stats returns a snapshot of the limiter's current window.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollWindow()
	remaining := l.maxRequests - l.used
	if remaining < 0 {
		remaining = 0
	}
	return Stats{
		MaxRequests:     l.maxRequests,
		Used:            l.used,
		RemainingTokens: remaining,
		WindowStart:     l.windowStart,
		WindowEnds:      l.windowStart.Add(l.window),
		Throttled:       remaining == 0,
	}
}

// Reset clears the limiter back to a fresh window, starting now.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.used = 0
	l.windowStart = l.now()
}

// Manager owns one Limiter per upstream provider name.
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{limiters: make(map[string]*Limiter)}
}

// AddProvider registers a Limiter for the named upstream.
func (m *Manager) AddProvider(name string, maxRequests int, window time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[name] = New(maxRequests, window)
}

// Get returns the Limiter for a provider, if registered.
func (m *Manager) Get(provider string) (*Limiter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.limiters[provider]
	return l, ok
}

// ConsumeToken consumes a token for the named provider. Providers with no
// registered Limiter are always allowed (fail open — observability, not
// enforcement, is the point of an unconfigured limiter).
func (m *Manager) ConsumeToken(provider string) bool {
	l, ok := m.Get(provider)
	if !ok {
		return true
	}
	return l.ConsumeToken()
}

// Stats returns a snapshot of every registered provider's limiter.
func (m *Manager) Stats() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Stats, len(m.limiters))
	for name, l := range m.limiters {
		out[name] = l.Stats()
	}
	return out
}

// DefaultWindows returns the conservative per-upstream budgets named in
// spec.md §4.A.
func DefaultWindows() map[string]struct {
	MaxRequests int
	Window      time.Duration
} {
	return map[string]struct {
		MaxRequests int
		Window      time.Duration
	}{
		"yahoo":   {100, time.Minute},
		"binance": {1200, time.Minute},
		"alpaca":  {150, time.Minute},
		"eodhd":   {50, time.Minute},
	}
}
