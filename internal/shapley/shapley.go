// Package shapley implements the Shapley Attributor (spec.md §4.L): a
// five-factor average-marginal P&L decomposition per bot, normalized so the
// five factors sum to the bot's realized total P&L. This is an
// approximation to permutation Shapley value — exact enumeration over 5
// factors is tractable (120 permutations/trade) but unnecessary for the
// accuracy this system needs.
package shapley

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/wargames-arena/marketfeed/internal/indicators"
	"github.com/wargames-arena/marketfeed/internal/pattern"
)

// TradeContext is everything one trade needs scored across the five
// factors.
type TradeContext struct {
	BotID           string
	Side            string // "buy" | "sell"
	Quantity        float64
	Price           float64
	Equity          float64 // account equity the trade was sized against
	PnL             float64
	Timestamp       time.Time
	PriorTradeGap   time.Duration
	RSI             float64
	RSISlope        float64 // RSI(t) - RSI(t-1)
	Crossover       pattern.Crossover
	BBPercent       float64
	Regime          indicators.Regime
	InVolatilityBand bool // price within the indicator engine's expected band for regime
}

// Factors is the five-dimension attribution for one trade or one bot's average.
type Factors struct {
	SignalQuality   float64
	Timing          float64
	Sizing          float64
	ExitQuality     float64
	RegimeAlignment float64
}

func (f Factors) sum() float64 {
	return f.SignalQuality + f.Timing + f.Sizing + f.ExitQuality + f.RegimeAlignment
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

// scoreTrade computes the raw (pre-normalization) five-factor score for one
// trade, per spec.md §4.L's rule table.
func scoreTrade(t TradeContext) Factors {
	s := sign(t.PnL)
	isBuy := t.Side == "buy"

	signalQuality := 0.0
	switch {
	case t.RSI < 35 && isBuy:
		signalQuality += 0.3
	case t.RSI > 70 && isBuy:
		signalQuality -= 0.2
	case t.RSI > 65 && !isBuy:
		signalQuality += 0.3
	case t.RSI < 30 && !isBuy:
		signalQuality -= 0.2
	}
	if t.Crossover == pattern.CrossoverBullish && isBuy {
		signalQuality += 0.3
	}
	if t.Crossover == pattern.CrossoverBearish && !isBuy {
		signalQuality += 0.3
	}
	if t.BBPercent < 0.1 && isBuy {
		signalQuality += 0.2
	}
	if t.BBPercent > 0.9 && !isBuy {
		signalQuality += 0.2
	}
	signalQuality *= s

	patience := math.Min(t.PriorTradeGap.Seconds(), 60) / 60
	volBandCorrect := 0.0
	if t.InVolatilityBand {
		volBandCorrect = 0.3
	}
	rsiSlopeAgreement := 0.0
	if (isBuy && t.RSISlope > 0) || (!isBuy && t.RSISlope < 0) {
		rsiSlopeAgreement = 0.3
	}
	timing := (patience*0.4 + volBandCorrect + rsiSlopeAgreement) * s

	sizeRatio := 0.0
	if t.Equity > 0 {
		sizeRatio = (t.Quantity * t.Price) / t.Equity
	}
	targetRatio := 750.0 / 5000.0
	z := (sizeRatio - targetRatio) / (targetRatio * 0.6)
	gaussian := math.Exp(-0.5 * z * z)
	sizing := gaussian * 0.5
	if s < 0 {
		sizing = gaussian * -0.3
	}
	if sizeRatio > targetRatio*3 || sizeRatio < targetRatio*0.1 {
		sizing = -0.2
	}

	exitQuality := 0.0
	if !isBuy {
		if t.RSI > 65 && t.BBPercent > 0.85 {
			exitQuality += 0.4
		}
		if t.Crossover == pattern.CrossoverBullish {
			exitQuality -= 0.3
		}
		exitQuality *= s
	}

	regimeAlignment := 0.0
	switch {
	case isBuy && t.Regime == indicators.RegimeTrendingUp:
		regimeAlignment = 0.5
	case !isBuy && t.Regime == indicators.RegimeTrendingDown:
		regimeAlignment = 0.5
	case isBuy && t.Regime == indicators.RegimeTrendingDown:
		regimeAlignment = -0.3
	case !isBuy && t.Regime == indicators.RegimeTrendingUp:
		regimeAlignment = -0.3
	}
	regimeAlignment *= s

	return Factors{
		SignalQuality:   signalQuality,
		Timing:          timing,
		Sizing:          sizing,
		ExitQuality:     exitQuality,
		RegimeAlignment: regimeAlignment,
	}
}

type botState struct {
	contexts []TradeContext
	totalPnL float64
}

// Attributor owns per-bot trade context history and derives attribution.
type Attributor struct {
	mu   sync.Mutex
	bots map[string]*botState
}

func New() *Attributor {
	return &Attributor{bots: make(map[string]*botState)}
}

// Record appends a trade's context and realized P&L to its bot's history.
func (a *Attributor) Record(ctx TradeContext) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.bots[ctx.BotID]
	if !ok {
		s = &botState{}
		a.bots[ctx.BotID] = s
	}
	s.contexts = append(s.contexts, ctx)
	s.totalPnL += ctx.PnL
}

// Attribution is the public, named-by-bot result of one attribution pass.
type Attribution struct {
	BotID    string
	Factors  Factors
	TotalPnL float64
	Rank     int
}

// Compute derives every bot's normalized five-factor attribution, averaged
// over its trade contexts and rescaled so the five factors sum to the bot's
// realized total P&L, then ranks bots by total descending.
func (a *Attributor) Compute() []Attribution {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []Attribution
	for botID, s := range a.bots {
		if len(s.contexts) == 0 {
			continue
		}
		var avg Factors
		for _, ctx := range s.contexts {
			f := scoreTrade(ctx)
			avg.SignalQuality += f.SignalQuality
			avg.Timing += f.Timing
			avg.Sizing += f.Sizing
			avg.ExitQuality += f.ExitQuality
			avg.RegimeAlignment += f.RegimeAlignment
		}
		n := float64(len(s.contexts))
		avg.SignalQuality /= n
		avg.Timing /= n
		avg.Sizing /= n
		avg.ExitQuality /= n
		avg.RegimeAlignment /= n

		rawSum := avg.sum()
		scaled := avg
		if rawSum != 0 {
			scale := s.totalPnL / rawSum
			scaled = Factors{
				SignalQuality:   avg.SignalQuality * scale,
				Timing:          avg.Timing * scale,
				Sizing:          avg.Sizing * scale,
				ExitQuality:     avg.ExitQuality * scale,
				RegimeAlignment: avg.RegimeAlignment * scale,
			}
		}

		out = append(out, Attribution{BotID: botID, Factors: scaled, TotalPnL: s.totalPnL})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].TotalPnL > out[j].TotalPnL })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Top returns the top-n Attributions by rank, for periodic snapshots.
func (a *Attributor) Top(n int) []Attribution {
	all := a.Compute()
	if n > len(all) {
		n = len(all)
	}
	return all[:n]
}
