// Package indicators implements the Indicator Engine (spec.md §4.H):
// incremental, per-symbol technical indicator state fed one tick/candle at a
// time. Unlike the teacher's batch CalculateRSI/CalculateATR (which
// recompute from a full price slice every call), every indicator here is an
// O(1)-per-update struct so the hub's hot path never rescans history —
// the Wilder smoothing formulas themselves are carried over unchanged.
package indicators

import (
	"math"

	"github.com/wargames-arena/marketfeed/internal/quote"
)

// RSIResult mirrors the teacher's result-struct idiom: a value plus a
// validity flag rather than a special sentinel float.
type RSIResult struct {
	Value   float64
	IsValid bool
}

// RSI is Wilder's RSI, updated incrementally from successive closes.
type RSI struct {
	period   int
	avgGain  float64
	avgLoss  float64
	prevClose float64
	seen     int
}

func NewRSI(period int) *RSI {
	if period <= 0 {
		period = 14
	}
	return &RSI{period: period}
}

// Update feeds one new close price and returns the current RSI.
func (r *RSI) Update(close float64) RSIResult {
	if r.seen == 0 {
		r.prevClose = close
		r.seen++
		return RSIResult{Value: 50.0, IsValid: false}
	}

	change := close - r.prevClose
	r.prevClose = close
	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	if r.seen <= r.period {
		r.avgGain += gain
		r.avgLoss += loss
		r.seen++
		if r.seen == r.period+1 {
			r.avgGain /= float64(r.period)
			r.avgLoss /= float64(r.period)
		} else {
			return RSIResult{Value: 50.0, IsValid: false}
		}
	} else {
		alpha := 1.0 / float64(r.period)
		r.avgGain = r.avgGain*(1-alpha) + gain*alpha
		r.avgLoss = r.avgLoss*(1-alpha) + loss*alpha
	}

	if r.avgLoss == 0 {
		return RSIResult{Value: 100.0, IsValid: true}
	}
	rs := r.avgGain / r.avgLoss
	return RSIResult{Value: 100.0 - (100.0 / (1.0 + rs)), IsValid: true}
}

// EMA is an exponential moving average seeded by its first observation.
type EMA struct {
	period int
	alpha  float64
	value  float64
	seeded bool
}

func NewEMA(period int) *EMA {
	if period <= 0 {
		period = 12
	}
	return &EMA{period: period, alpha: 2.0 / float64(period+1)}
}

func (e *EMA) Update(price float64) float64 {
	if !e.seeded {
		e.value = price
		e.seeded = true
		return e.value
	}
	e.value = e.value*(1-e.alpha) + price*e.alpha
	return e.value
}

func (e *EMA) Value() float64 { return e.value }

// SMA is a fixed-window simple moving average over a ring of prices.
type SMA struct {
	period int
	buf    []float64
	idx    int
	filled bool
	sum    float64
}

func NewSMA(period int) *SMA {
	if period <= 0 {
		period = 20
	}
	return &SMA{period: period, buf: make([]float64, period)}
}

func (s *SMA) Update(price float64) (value float64, valid bool) {
	if s.filled {
		s.sum -= s.buf[s.idx]
	}
	s.buf[s.idx] = price
	s.sum += price
	s.idx = (s.idx + 1) % s.period
	if s.idx == 0 {
		s.filled = true
	}
	if !s.filled {
		return s.sum / float64(s.idx), false
	}
	return s.sum / float64(s.period), true
}

// MACDResult is the three-line output of the MACD indicator.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
	IsValid   bool
}

// MACD composes a fast EMA, slow EMA, and a signal EMA over their
// difference — the standard 12/26/9 construction, parameterized here.
type MACD struct {
	fast, slow, signal *EMA
	updates            int
	minUpdates         int
}

func NewMACD(fastPeriod, slowPeriod, signalPeriod int) *MACD {
	return &MACD{
		fast:       NewEMA(fastPeriod),
		slow:       NewEMA(slowPeriod),
		signal:     NewEMA(signalPeriod),
		minUpdates: slowPeriod + signalPeriod,
	}
}

func (m *MACD) Update(price float64) MACDResult {
	fast := m.fast.Update(price)
	slow := m.slow.Update(price)
	macd := fast - slow
	sig := m.signal.Update(macd)
	m.updates++
	return MACDResult{MACD: macd, Signal: sig, Histogram: macd - sig, IsValid: m.updates >= m.minUpdates}
}

// BollingerResult is the three-band output of the Bollinger Band indicator.
type BollingerResult struct {
	Upper, Middle, Lower float64
	IsValid              bool
}

// Bollinger tracks an SMA plus a rolling stddev over the same window.
type Bollinger struct {
	period   int
	stdDevs  float64
	buf      []float64
	idx      int
	filled   bool
}

func NewBollinger(period int, stdDevs float64) *Bollinger {
	if period <= 0 {
		period = 20
	}
	if stdDevs <= 0 {
		stdDevs = 2.0
	}
	return &Bollinger{period: period, stdDevs: stdDevs, buf: make([]float64, period)}
}

func (b *Bollinger) Update(price float64) BollingerResult {
	b.buf[b.idx] = price
	b.idx = (b.idx + 1) % b.period
	if b.idx == 0 {
		b.filled = true
	}
	if !b.filled {
		return BollingerResult{IsValid: false}
	}

	mean := 0.0
	for _, v := range b.buf {
		mean += v
	}
	mean /= float64(b.period)

	variance := 0.0
	for _, v := range b.buf {
		d := v - mean
		variance += d * d
	}
	variance /= float64(b.period)
	sd := math.Sqrt(variance)

	return BollingerResult{
		Upper:   mean + b.stdDevs*sd,
		Middle:  mean,
		Lower:   mean - b.stdDevs*sd,
		IsValid: true,
	}
}

// ATRResult mirrors the teacher's ATRResult shape.
type ATRResult struct {
	Value   float64
	IsValid bool
}

// ATR is Wilder's Average True Range, fed one OHLC bar at a time.
type ATR struct {
	period    int
	prevClose float64
	hasPrev   bool
	avgTR     float64
	seen      int
}

func NewATR(period int) *ATR {
	if period <= 0 {
		period = 14
	}
	return &ATR{period: period}
}

func (a *ATR) Update(high, low, close float64) ATRResult {
	if !a.hasPrev {
		a.prevClose = close
		a.hasPrev = true
		return ATRResult{IsValid: false}
	}

	hl := high - low
	hc := math.Abs(high - a.prevClose)
	lc := math.Abs(low - a.prevClose)
	tr := math.Max(hl, math.Max(hc, lc))
	a.prevClose = close

	a.seen++
	if a.seen <= a.period {
		a.avgTR += tr
		if a.seen == a.period {
			a.avgTR /= float64(a.period)
			return ATRResult{Value: a.avgTR, IsValid: true}
		}
		return ATRResult{IsValid: false}
	}

	alpha := 1.0 / float64(a.period)
	a.avgTR = a.avgTR*(1-alpha) + tr*alpha
	return ATRResult{Value: a.avgTR, IsValid: true}
}

// Regime classifies recent price action into a coarse market regime, used
// by the fingerprinting and clustering stages to contextualize bot behavior.
type Regime string

const (
	RegimeTrendingUp   Regime = "trending_up"
	RegimeTrendingDown Regime = "trending_down"
	RegimeRanging      Regime = "ranging"
	RegimeVolatile     Regime = "volatile"
	RegimeQuiet        Regime = "quiet"
)

// quietBandWidth and quietATRRatio bound "low-vol-narrow-bands": both the
// Bollinger band width and the ATR-to-price ratio must sit well below the
// ranging/volatile thresholds before a symbol is classified quiet rather
// than merely ranging.
const quietBandWidth = 0.008
const quietATRRatio = 0.01

// ClassifyRegime derives a Regime from the current MACD histogram sign,
// Bollinger band width relative to the middle band, and ATR level, per
// spec.md §4.H's rule table. SMA and RSI values are not consulted.
func ClassifyRegime(macd MACDResult, boll BollingerResult, atr ATRResult, price float64) Regime {
	if !macd.IsValid || !boll.IsValid {
		return RegimeRanging
	}
	bandWidth := 0.0
	if boll.Middle != 0 {
		bandWidth = (boll.Upper - boll.Lower) / boll.Middle
	}
	if atr.IsValid && price != 0 && atr.Value/price > 0.03 {
		return RegimeVolatile
	}
	if atr.IsValid && price != 0 && bandWidth < quietBandWidth && atr.Value/price < quietATRRatio {
		return RegimeQuiet
	}
	if bandWidth < 0.02 {
		return RegimeRanging
	}
	switch {
	case macd.Histogram > 0:
		return RegimeTrendingUp
	case macd.Histogram < 0:
		return RegimeTrendingDown
	default:
		return RegimeRanging
	}
}

// Engine owns one full indicator set per symbol.
type Engine struct {
	perSymbol map[string]*symbolState
}

type symbolState struct {
	rsi  *RSI
	macd *MACD
	boll *Bollinger
	atr  *ATR

	lastPrice float64
	hasPrice  bool
}

func NewEngine() *Engine {
	return &Engine{perSymbol: make(map[string]*symbolState)}
}

func (e *Engine) stateFor(symbol string) *symbolState {
	s, ok := e.perSymbol[symbol]
	if !ok {
		s = &symbolState{
			rsi:  NewRSI(14),
			macd: NewMACD(12, 26, 9),
			boll: NewBollinger(20, 2.0),
			atr:  NewATR(14),
		}
		e.perSymbol[symbol] = s
	}
	return s
}

// Snapshot is the full indicator readout for one symbol after one update.
type Snapshot struct {
	RSI       RSIResult
	MACD      MACDResult
	Bollinger BollingerResult
	ATR       ATRResult
	Regime    Regime
}

// UpdateCandle feeds one closed candle into a symbol's indicator set.
func (e *Engine) UpdateCandle(symbol string, c quote.Candle) Snapshot {
	s := e.stateFor(symbol)
	rsi := s.rsi.Update(c.Close)
	macd := s.macd.Update(c.Close)
	boll := s.boll.Update(c.Close)
	atr := s.atr.Update(c.High, c.Low, c.Close)
	regime := ClassifyRegime(macd, boll, atr, c.Close)
	s.lastPrice = c.Close
	s.hasPrice = true
	return Snapshot{RSI: rsi, MACD: macd, Bollinger: boll, ATR: atr, Regime: regime}
}

// LastPrice returns the most recent close fed to UpdateCandle for symbol.
// The Orchestrator reads this before folding in the next tick to derive
// PriorTickDelta (spec.md §4.I); ok is false until the symbol has seen a
// first tick.
func (e *Engine) LastPrice(symbol string) (float64, bool) {
	s, ok := e.perSymbol[symbol]
	if !ok || !s.hasPrice {
		return 0, false
	}
	return s.lastPrice, true
}
