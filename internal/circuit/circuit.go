// Package circuit wraps sony/gobreaker with a per-provider manager and
// structured logging; it does not classify failures by kind. Each REST
// adapter (yahoo, binance, alpaca, eodhd) gets one breaker so an unhealthy
// upstream is isolated before it can burn the rest of a fallback chain's
// budget. The WS stream managers do not use a breaker.
package circuit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ErrOpen is returned when a call is rejected because the breaker is open.
var ErrOpen = errors.New("circuit breaker is open")

// Config mirrors spec.md §4.B's failure-threshold language onto gobreaker's
// settings.
type Config struct {
	Name                string
	ConsecutiveFailures uint32        // trips the breaker
	HalfOpenProbes      uint32        // max requests let through while half-open
	OpenTimeout         time.Duration // how long the breaker stays open before probing
}

// Breaker is a named, observable circuit breaker around a single upstream.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// New creates a Breaker from Config.
func New(cfg Config) *Breaker {
	if cfg.HalfOpenProbes == 0 {
		cfg.HalfOpenProbes = 1
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenProbes,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info().Str("provider", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	}

	return &Breaker{name: cfg.Name, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Call executes fn through the breaker. Returns ErrOpen without calling fn
// when the circuit is open.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}
	return err
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// IsHealthy reports whether the breaker is closed (i.e. not currently
// rejecting requests outright).
func (b *Breaker) IsHealthy() bool {
	return b.cb.State() == gobreaker.StateClosed
}

// Counts exposes gobreaker's rolling counters for telemetry.
func (b *Breaker) Counts() gobreaker.Counts {
	return b.cb.Counts()
}

// Manager owns one Breaker per upstream provider name.
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{breakers: make(map[string]*Breaker)}
}

// AddProvider registers a Breaker for the named provider.
func (m *Manager) AddProvider(name string, cfg Config) {
	cfg.Name = name
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breakers[name] = New(cfg)
}

// Get returns the Breaker for a provider, if registered.
func (m *Manager) Get(provider string) (*Breaker, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.breakers[provider]
	return b, ok
}

// Call runs fn through the named provider's breaker. Providers with no
// registered breaker run fn directly.
func (m *Manager) Call(ctx context.Context, provider string, fn func(ctx context.Context) error) error {
	b, ok := m.Get(provider)
	if !ok {
		return fn(ctx)
	}
	return b.Call(ctx, fn)
}

// UnhealthyProviders lists providers whose breaker is not closed.
func (m *Manager) UnhealthyProviders() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for name, b := range m.breakers {
		if !b.IsHealthy() {
			out = append(out, name)
		}
	}
	return out
}
