// Package fingerprint implements the Bot Fingerprinter (spec.md §4.I): per
// bot, a bounded trade history plus incrementally updated behavioral
// aggregates used both for display and as the 9-dimension feature vector
// the Behavioral Clusterer (internal/cluster) consumes.
package fingerprint

import (
	"math"
	"sync"
	"time"

	"github.com/wargames-arena/marketfeed/internal/ring"
)

const defaultHistorySize = 500
const baselineTradesPerMin = 1.0

// Trade is one observed arena trade, already dedup'd and sequenced by the
// Orchestrator before it reaches the Fingerprinter.
type Trade struct {
	BotID     string
	Side      string // "buy" | "sell"
	Quantity  float64
	Price     float64
	PnL       float64
	Timestamp time.Time

	// PriorTickDelta is the price change immediately preceding this trade,
	// supplied by the Orchestrator from the Indicator Engine's last tick —
	// needed for the Contrarian and MomentumBias statistics.
	PriorTickDelta float64
}

// Streak tracks consecutive win/loss runs by P&L sign.
type Streak struct {
	Current int // positive run length on wins, negative on losses
	MaxWin  int
	MaxLoss int
}

// Features is the 9-dimension feature vector spec.md §4.I defines for
// clustering input.
type Features struct {
	WinRate        float64
	ProfitFactor   float64 // capped at 5
	Aggressiveness float64
	Conviction     float64
	Contrarian     float64
	MomentumBias   float64
	BuyRatio       float64
	TradeFrequency float64 // trades per minute
	Regularity     float64 // coefficient of variation of inter-trade intervals
}

// Fingerprint is the full per-bot state the Fingerprinter owns exclusively.
type Fingerprint struct {
	mu sync.Mutex

	botID       string
	history     *ring.Buffer[Trade]
	wins        int
	losses      int
	grossProfit float64
	grossLoss   float64
	totalSize   float64
	maxSize     float64
	buys        int
	streak      Streak
	firstSeen   time.Time
	lastSeen    time.Time

	// sign history for MomentumBias's Pearson correlation, bounded by the
	// same window as history.
	sideSigns    []float64
	tickDeltas   []float64
}

func newFingerprint(botID string) *Fingerprint {
	return &Fingerprint{
		botID:   botID,
		history: ring.New[Trade](defaultHistorySize),
	}
}

// Manager owns one Fingerprint per bot.
type Manager struct {
	mu   sync.RWMutex
	bots map[string]*Fingerprint
}

func NewManager() *Manager {
	return &Manager{bots: make(map[string]*Fingerprint)}
}

func (m *Manager) fingerprintFor(botID string) *Fingerprint {
	m.mu.RLock()
	fp, ok := m.bots[botID]
	m.mu.RUnlock()
	if ok {
		return fp
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if fp, ok := m.bots[botID]; ok {
		return fp
	}
	fp = newFingerprint(botID)
	m.bots[botID] = fp
	return fp
}

// Observe feeds one trade into its bot's fingerprint.
func (m *Manager) Observe(t Trade) {
	m.fingerprintFor(t.BotID).observe(t)
}

func (fp *Fingerprint) observe(t Trade) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	fp.history.Push(t)
	if fp.firstSeen.IsZero() {
		fp.firstSeen = t.Timestamp
	}
	fp.lastSeen = t.Timestamp

	if t.PnL >= 0 {
		fp.wins++
		fp.grossProfit += t.PnL
		if fp.streak.Current >= 0 {
			fp.streak.Current++
		} else {
			fp.streak.Current = 1
		}
	} else {
		fp.losses++
		fp.grossLoss += -t.PnL
		if fp.streak.Current <= 0 {
			fp.streak.Current--
		} else {
			fp.streak.Current = -1
		}
	}
	if fp.streak.Current > fp.streak.MaxWin {
		fp.streak.MaxWin = fp.streak.Current
	}
	if -fp.streak.Current > fp.streak.MaxLoss {
		fp.streak.MaxLoss = -fp.streak.Current
	}

	fp.totalSize += t.Quantity
	if t.Quantity > fp.maxSize {
		fp.maxSize = t.Quantity
	}
	if t.Side == "buy" {
		fp.buys++
		fp.sideSigns = append(fp.sideSigns, 1)
	} else {
		fp.sideSigns = append(fp.sideSigns, -1)
	}
	fp.tickDeltas = append(fp.tickDeltas, t.PriorTickDelta)
	if len(fp.sideSigns) > defaultHistorySize {
		fp.sideSigns = fp.sideSigns[len(fp.sideSigns)-defaultHistorySize:]
		fp.tickDeltas = fp.tickDeltas[len(fp.tickDeltas)-defaultHistorySize:]
	}
}

// Streak returns the current streak state for a bot.
func (m *Manager) Streak(botID string) Streak {
	fp := m.fingerprintFor(botID)
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.streak
}

// Features computes the 9-dimension feature vector for a bot from its
// current aggregates. Returns ok=false if the bot has fewer than 5 trades,
// per spec.md §4.K's clustering eligibility threshold.
func (m *Manager) Features(botID string) (Features, bool) {
	fp := m.fingerprintFor(botID)
	fp.mu.Lock()
	defer fp.mu.Unlock()

	total := fp.wins + fp.losses
	if total < 5 {
		return Features{}, false
	}

	winRate := float64(fp.wins) / float64(total)
	profitFactor := 5.0
	if fp.grossLoss > 0 {
		profitFactor = math.Min(fp.grossProfit/fp.grossLoss, 5.0)
	}

	span := fp.lastSeen.Sub(fp.firstSeen).Minutes()
	if span <= 0 {
		span = 1.0 / 60.0
	}
	tradeFrequency := float64(total) / span
	aggressiveness := math.Min(tradeFrequency/baselineTradesPerMin, 2.0)

	conviction := 0.0
	if fp.maxSize > 0 {
		conviction = (fp.totalSize / float64(total)) / fp.maxSize
	}

	buyRatio := float64(fp.buys) / float64(total)

	contrarian := contrarianRatio(fp.history.Snapshot())
	momentumBias := pearson(fp.sideSigns, fp.tickDeltas)
	regularity := intervalRegularity(fp.history.Snapshot())

	return Features{
		WinRate:        winRate,
		ProfitFactor:   profitFactor,
		Aggressiveness: aggressiveness,
		Conviction:     conviction,
		Contrarian:     contrarian,
		MomentumBias:   momentumBias,
		BuyRatio:       buyRatio,
		TradeFrequency: tradeFrequency,
		Regularity:     regularity,
	}, true
}

// contrarianRatio is the fraction of trades whose side opposes the sign of
// the prior-tick price delta.
func contrarianRatio(trades []Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	opposing := 0
	for _, t := range trades {
		sideSign := 1.0
		if t.Side != "buy" {
			sideSign = -1.0
		}
		if sideSign*t.PriorTickDelta < 0 {
			opposing++
		}
	}
	return float64(opposing) / float64(len(trades))
}

// pearson computes the Pearson correlation coefficient between x and y.
func pearson(x, y []float64) float64 {
	n := len(x)
	if n == 0 || n != len(y) {
		return 0
	}
	var sumX, sumY, sumXY, sumX2, sumY2 float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumX2 += x[i] * x[i]
		sumY2 += y[i] * y[i]
	}
	nf := float64(n)
	num := nf*sumXY - sumX*sumY
	den := math.Sqrt((nf*sumX2 - sumX*sumX) * (nf*sumY2 - sumY*sumY))
	if den == 0 {
		return 0
	}
	return num / den
}

// intervalRegularity is the coefficient of variation (stddev/mean) of
// inter-trade time intervals — lower means more regular spacing.
func intervalRegularity(trades []Trade) float64 {
	if len(trades) < 3 {
		return 0
	}
	intervals := make([]float64, 0, len(trades)-1)
	for i := 1; i < len(trades); i++ {
		intervals = append(intervals, trades[i].Timestamp.Sub(trades[i-1].Timestamp).Seconds())
	}
	mean := 0.0
	for _, v := range intervals {
		mean += v
	}
	mean /= float64(len(intervals))
	if mean == 0 {
		return 0
	}
	variance := 0.0
	for _, v := range intervals {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(intervals))
	return math.Sqrt(variance) / mean
}

// History returns a bot's trade history snapshot, oldest-first.
func (m *Manager) History(botID string) []Trade {
	return m.fingerprintFor(botID).history.Snapshot()
}

// BotIDs returns every bot the Fingerprinter has observed at least once.
func (m *Manager) BotIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.bots))
	for id := range m.bots {
		out = append(out, id)
	}
	return out
}
