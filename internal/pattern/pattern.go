// Package pattern implements Pattern Discovery (spec.md §4.J): enriched
// trades are bucketed by (regime, rsi_bucket, macd_crossover, bb_zone,
// side); a bucket becomes a discovered TradePattern once it accumulates
// enough samples at a high enough win rate.
package pattern

import (
	"fmt"
	"sync"
	"time"

	"github.com/wargames-arena/marketfeed/internal/indicators"
)

// Crossover classifies the sign of the current MACD histogram: bullish when
// positive, bearish when negative, none at zero or when MACD is not valid.
// The previous bar's histogram is not compared, so a persisting sign reads
// the same as a fresh sign change.
type Crossover string

const (
	CrossoverBullish Crossover = "bullish"
	CrossoverBearish Crossover = "bearish"
	CrossoverNone    Crossover = "none"
)

// BBZone classifies where price sits within its Bollinger bands.
type BBZone string

const (
	BBZoneLower  BBZone = "lower"  // %B < 0.25
	BBZoneMiddle BBZone = "middle"
	BBZoneUpper  BBZone = "upper" // %B > 0.75
)

// EnrichedTrade is a trade annotated with the indicator context it occurred
// under, as produced by the Orchestrator from the Indicator Engine's
// current snapshot.
type EnrichedTrade struct {
	BotID     string
	Side      string
	PnL       float64
	Timestamp time.Time
	Regime    indicators.Regime
	RSI       float64
	Crossover Crossover
	BBPercent float64 // %B = (price-lower)/(upper-lower)
}

func rsiBucket(rsi float64) string {
	switch {
	case rsi < 30:
		return "0-30"
	case rsi < 45:
		return "30-45"
	case rsi < 55:
		return "45-55"
	case rsi < 70:
		return "55-70"
	default:
		return "70-100"
	}
}

func bbZone(bbPercent float64) BBZone {
	switch {
	case bbPercent < 0.25:
		return BBZoneLower
	case bbPercent > 0.75:
		return BBZoneUpper
	default:
		return BBZoneMiddle
	}
}

// bucketKey uniquely identifies one (regime, rsi_bucket, crossover, zone, side).
func bucketKey(t EnrichedTrade) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", t.Regime, rsiBucket(t.RSI), t.Crossover, bbZone(t.BBPercent), t.Side)
}

type bucket struct {
	key        string
	trades     []EnrichedTrade
	wins       int
	totalPnL   float64
	firstSeen  time.Time
	lastSeen   time.Time
}

// TradePattern is a discovered, stable behavioral pattern.
type TradePattern struct {
	Key           string
	SampleCount   int
	WinRate       float64
	Profitability float64 // mean P&L
	Frequency     float64 // trades per hour over the bucket's observed span
	Confidence    float64 // = win rate
}

const minSamples = 5
const minWinRate = 0.55

// Discovery owns the bucket set and derives TradePatterns from it.
type Discovery struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

func New() *Discovery {
	return &Discovery{buckets: make(map[string]*bucket)}
}

// Observe drops one enriched trade into its bucket.
func (d *Discovery) Observe(t EnrichedTrade) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := bucketKey(t)
	b, ok := d.buckets[key]
	if !ok {
		b = &bucket{key: key, firstSeen: t.Timestamp}
		d.buckets[key] = b
	}
	b.trades = append(b.trades, t)
	b.totalPnL += t.PnL
	if t.PnL > 0 {
		b.wins++
	}
	b.lastSeen = t.Timestamp
}

// Patterns returns every discovered TradePattern (sample >= 5, win rate >=
// 0.55), ranked by confidence x profitability descending.
func (d *Discovery) Patterns() []TradePattern {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []TradePattern
	for _, b := range d.buckets {
		n := len(b.trades)
		if n < minSamples {
			continue
		}
		winRate := float64(b.wins) / float64(n)
		if winRate < minWinRate {
			continue
		}
		profitability := b.totalPnL / float64(n)
		spanHours := b.lastSeen.Sub(b.firstSeen).Hours()
		frequency := 0.0
		if spanHours > 0 {
			frequency = float64(n) / spanHours
		}
		confidence := winRate

		out = append(out, TradePattern{
			Key:           b.key,
			SampleCount:   n,
			WinRate:       winRate,
			Profitability: profitability,
			Frequency:     frequency,
			Confidence:    confidence,
		})
	}

	sortByScore(out)
	return out
}

// HighConfidence filters Patterns() to confidence > 0.7 and profitability > 0.
func (d *Discovery) HighConfidence() []TradePattern {
	all := d.Patterns()
	var out []TradePattern
	for _, p := range all {
		if p.Confidence > 0.7 && p.Profitability > 0 {
			out = append(out, p)
		}
	}
	return out
}

func sortByScore(patterns []TradePattern) {
	for i := 1; i < len(patterns); i++ {
		j := i
		for j > 0 && score(patterns[j-1]) < score(patterns[j]) {
			patterns[j-1], patterns[j] = patterns[j], patterns[j-1]
			j--
		}
	}
}

func score(p TradePattern) float64 { return p.Confidence * p.Profitability }
