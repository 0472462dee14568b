// Package simulator implements the FX and Commodity simulators (spec.md
// §4.B, §9): the last-resort fallback when every real upstream has failed or
// has no coverage for a symbol. Output is Gaussian-process-like with
// mean-reversion, session-volatility scaling, and occasional Bernoulli(p)
// trend resets. These numerics are approximate — spec.md §9 explicitly
// disclaims exact reproducibility.
//
// Every Quote this package emits carries Source: quote.SourceSimulated.
// That tag is what the Arena Guard (internal/hub, component N) uses to keep
// simulated data away from arena-participant subscribers; this package has
// no awareness of the guard and must never be allowed to un-set the tag.
package simulator

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/wargames-arena/marketfeed/internal/providers"
	"github.com/wargames-arena/marketfeed/internal/quote"
	"github.com/wargames-arena/marketfeed/internal/session"
)

// Kind distinguishes the two simulator flavors this package serves; both
// share the same random-walk engine with different default parameters.
type Kind string

const (
	KindForex     Kind = "forex"
	KindCommodity Kind = "commodity"
)

// seriesState is the per-symbol mean-reverting random walk.
type seriesState struct {
	mu        sync.Mutex
	mean      float64
	last      float64
	rng       *rand.Rand
	group     session.Group
}

// Adapter implements providers.Adapter by simulating a random walk per
// symbol, seeded from an initial anchor price supplied by the caller.
type Adapter struct {
	kind   Kind
	mu     sync.Mutex
	series map[string]*seriesState
	now    func() time.Time
}

// New creates a simulator of the given kind. anchors seeds each symbol's
// starting mean — callers typically pull these from the last known-good
// real quote before all real sources failed.
func New(kind Kind, anchors map[string]float64) *Adapter {
	a := &Adapter{kind: kind, series: make(map[string]*seriesState), now: time.Now}
	for sym, price := range anchors {
		a.series[sym] = &seriesState{mean: price, last: price, rng: rand.New(rand.NewSource(hashSeed(sym))), group: groupFor(kind)}
	}
	return a
}

// Seed adds or replaces one symbol's series with its own kind, independent
// of the kind passed to New. Used when a single simulator instance backs
// both FX and commodity fallbacks under the one quote.SourceSimulated slot.
func (a *Adapter) Seed(symbol string, price float64, kind Kind) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.series[symbol] = &seriesState{mean: price, last: price, rng: rand.New(rand.NewSource(hashSeed(symbol))), group: groupFor(kind)}
}

func groupFor(kind Kind) session.Group {
	if kind == KindForex {
		return session.GroupForex
	}
	return session.GroupCommodity
}

// hashSeed derives a deterministic-per-symbol seed (FNV-1a, shifted to a
// non-negative int64) so each symbol gets its own series and repeated runs
// against the same symbol set reproduce the same series.
func hashSeed(s string) int64 {
	var h uint64 = 14695981039346656037
	for _, c := range s {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return int64(h >> 1)
}

func (a *Adapter) Name() quote.Source { return quote.SourceSimulated }

func (a *Adapter) seriesFor(symbol string) *seriesState {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.series[symbol]
	if !ok {
		s = &seriesState{mean: 1.0, last: 1.0, rng: rand.New(rand.NewSource(hashSeed(symbol))), group: groupFor(a.kind)}
		a.series[symbol] = s
	}
	return s
}

// next advances the random walk one tick: mean-reverting drift, Gaussian
// noise scaled by the current session's volatility multiplier, and a
// Bernoulli(p=0.001) chance of a trend reset (the mean jumps to a new
// nearby level, simulating a news-driven regime shift).
func (s *seriesState) next(t time.Time) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := session.Evaluate(s.group, t)
	vol := status.VolatilityMultiplier
	if vol <= 0 {
		vol = 0.3 // market closed: still tick, just quietly
	}

	if s.rng.Float64() < 0.001 {
		s.mean *= 1 + (s.rng.Float64()-0.5)*0.05
	}

	reversion := (s.mean - s.last) * 0.05
	noise := s.rng.NormFloat64() * s.mean * 0.0015 * vol
	s.last += reversion + noise
	if s.last <= 0 {
		s.last = s.mean * 0.5
	}
	return s.last
}

func (a *Adapter) GetQuote(ctx context.Context, symbol string) providers.Result[quote.Quote] {
	return providers.Timed(quote.SourceSimulated, func() (quote.Quote, *providers.Error) {
		s := a.seriesFor(symbol)
		now := a.now()
		mid := s.next(now)
		spread := mid * 0.0005
		q := quote.Quote{
			Symbol:    symbol,
			Bid:       mid - spread/2,
			Ask:       mid + spread/2,
			Last:      mid,
			Timestamp: now,
			Source:    quote.SourceSimulated,
		}
		return q, nil
	})
}

func (a *Adapter) GetCandles(ctx context.Context, symbol string, tf providers.Timeframe, limit int) providers.Result[[]quote.Candle] {
	return providers.Timed(quote.SourceSimulated, func() ([]quote.Candle, *providers.Error) {
		if limit <= 0 {
			limit = 50
		}
		s := a.seriesFor(symbol)
		now := a.now()
		step := timeframeDuration(tf)
		candles := make([]quote.Candle, 0, limit)
		cursor := now.Add(-time.Duration(limit) * step)
		for i := 0; i < limit; i++ {
			open := s.last
			high, low := open, open
			for j := 0; j < 4; j++ {
				p := s.next(cursor)
				if p > high {
					high = p
				}
				if p < low {
					low = p
				}
			}
			close := s.last
			candles = append(candles, quote.Candle{Time: cursor, Open: open, High: high, Low: low, Close: close})
			cursor = cursor.Add(step)
		}
		return candles, nil
	})
}

func timeframeDuration(tf providers.Timeframe) time.Duration {
	switch tf {
	case providers.TF1Min:
		return time.Minute
	case providers.TF5Min:
		return 5 * time.Minute
	case providers.TF15Min:
		return 15 * time.Minute
	case providers.TF1Hour:
		return time.Hour
	case providers.TF1Day:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// GetOrderBook always reports unsupported: simulated data never carries a
// synthesized depth book — there is nothing underneath it to synthesize
// from, unlike Alpaca's NBBO-derived one-level book.
func (a *Adapter) GetOrderBook(ctx context.Context, symbol string, levels int) providers.Result[quote.OrderBook] {
	return providers.Result[quote.OrderBook]{Success: false, Source: quote.SourceSimulated}
}

// IsHealthy is always true: the simulator has no upstream to fail against.
func (a *Adapter) IsHealthy(ctx context.Context) bool { return true }
