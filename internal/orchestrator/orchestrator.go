// Package orchestrator implements the Observation Orchestrator (spec.md
// §4.M): connects to the arena event stream, deduplicates the
// double-emitted trade events, assigns monotonic sequence numbers, and fans
// each accepted trade out to the ring buffer, fingerprinter, indicator
// engine, pattern discovery, and Shapley attributor. Periodic snapshot and
// clustering passes run on their own independent timers, never collapsed
// into one scheduler tick, per spec.md §5.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wargames-arena/marketfeed/internal/arena"
	"github.com/wargames-arena/marketfeed/internal/cluster"
	"github.com/wargames-arena/marketfeed/internal/fingerprint"
	"github.com/wargames-arena/marketfeed/internal/indicators"
	"github.com/wargames-arena/marketfeed/internal/pattern"
	"github.com/wargames-arena/marketfeed/internal/quote"
	"github.com/wargames-arena/marketfeed/internal/ring"
	"github.com/wargames-arena/marketfeed/internal/shapley"
)

const dedupWindow = 2 * time.Second
const defaultRingCapacity = 10000
const defaultSnapshotInterval = 30 * time.Second
const defaultClusteringInterval = 120 * time.Second

// Snapshot is the periodic summary spec.md §4.M describes: counts, rate,
// top/bottom performers, active patterns, symbol list, latest Shapley top-5.
type Snapshot struct {
	TakenAt         time.Time
	TotalTrades     int64
	TradesPerMinute float64
	TopPerformers   []arena.LeaderboardEntry
	BottomPerformers []arena.LeaderboardEntry
	ActivePatterns  []pattern.TradePattern
	Symbols         []string
	TopShapley      []shapley.Attribution
}

// Orchestrator owns the ring buffer and snapshot history, per spec.md §3's
// ownership rule.
type Orchestrator struct {
	stream arena.Stream

	ring        *ring.Buffer[arena.TradeEvent]
	fingerprint *fingerprint.Manager
	indicators  *indicators.Engine
	pattern     *pattern.Discovery
	shapley     *shapley.Attributor

	mu            sync.Mutex
	seenHashes    map[string]time.Time
	sequenceNum   int64
	tradeCount    int64
	startedAt     time.Time
	symbolSet     map[string]bool
	lastLeaderboard arena.LeaderboardEvent

	snapshotInterval   time.Duration
	clusteringInterval time.Duration

	onSnapshot func(Snapshot)
	onCluster  func(cluster.Result)
}

// New wires an Orchestrator to a Stream and the five downstream analysis
// components. onSnapshot/onCluster may be nil.
func New(stream arena.Stream, onSnapshot func(Snapshot), onCluster func(cluster.Result)) *Orchestrator {
	return &Orchestrator{
		stream:             stream,
		ring:               ring.New[arena.TradeEvent](defaultRingCapacity),
		fingerprint:        fingerprint.NewManager(),
		indicators:         indicators.NewEngine(),
		pattern:            pattern.New(),
		shapley:            shapley.New(),
		seenHashes:         make(map[string]time.Time),
		symbolSet:          make(map[string]bool),
		snapshotInterval:   defaultSnapshotInterval,
		clusteringInterval: defaultClusteringInterval,
		onSnapshot:         onSnapshot,
		onCluster:          onCluster,
	}
}

// Run connects the stream, registers handlers, and starts the independent
// snapshot and clustering timers. Blocks until ctx is canceled.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startedAt = time.Now()

	o.stream.On(arena.EventBotTrade, func(payload interface{}) { o.handleTradeEvent(payload, arena.EventBotTrade) })
	o.stream.On(arena.EventContinuousTrade, func(payload interface{}) { o.handleTradeEvent(payload, arena.EventContinuousTrade) })
	o.stream.On(arena.EventLeaderboard, o.handleLeaderboardEvent)

	if err := o.stream.Connect(ctx); err != nil {
		log.Warn().Err(err).Msg("orchestrator initial connect failed, relying on background reconnect")
	}

	snapshotTicker := time.NewTicker(o.snapshotInterval)
	clusterTicker := time.NewTicker(o.clusteringInterval)
	defer snapshotTicker.Stop()
	defer clusterTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.stream.Disconnect()
			return ctx.Err()
		case <-snapshotTicker.C:
			o.emitSnapshot()
		case <-clusterTicker.C:
			o.runClustering()
		}
	}
}

// handleTradeEvent is registered against both arena:bot:trade and
// continuous:trade; dedup collapses the double emission.
func (o *Orchestrator) handleTradeEvent(payload interface{}, eventType arena.EventName) {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return
	}
	evt, ok := parseTradeEvent(m)
	if !ok {
		log.Debug().Msg("orchestrator: malformed trade event payload, dropping")
		return
	}
	evt.EventType = eventType

	hash := tradeHash(evt)
	if o.isDuplicate(hash) {
		return
	}

	seq := o.nextSequence()
	_ = seq // counted but not stored on the event; ring append order gives the same ordering

	o.mu.Lock()
	o.tradeCount++
	o.symbolSet[evt.Symbol] = true
	o.mu.Unlock()

	o.ring.Push(evt)
	o.fanOut(evt)
}

func (o *Orchestrator) handleLeaderboardEvent(payload interface{}) {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return
	}
	lb, ok := parseLeaderboardEvent(m)
	if !ok {
		return
	}
	o.mu.Lock()
	o.lastLeaderboard = lb
	o.mu.Unlock()
}

// fanOut feeds one accepted trade to every downstream analysis component,
// per spec.md §4.M's per-trade pipeline.
func (o *Orchestrator) fanOut(evt arena.TradeEvent) {
	priorDelta := o.priorTickDelta(evt.Symbol, evt.Price)

	fpTrade := fingerprint.Trade{
		BotID: evt.BotID, Side: evt.Side, Quantity: evt.Quantity,
		Price: evt.Price, PnL: evt.PnL, Timestamp: evt.Timestamp,
		PriorTickDelta: priorDelta,
	}
	o.fingerprint.Observe(fpTrade)

	snap := o.indicators.UpdateCandle(evt.Symbol, syntheticCandle(evt.Price))

	crossover := pattern.CrossoverNone
	if snap.MACD.IsValid {
		if snap.MACD.Histogram > 0 {
			crossover = pattern.CrossoverBullish
		} else if snap.MACD.Histogram < 0 {
			crossover = pattern.CrossoverBearish
		}
	}
	bbPercent := 0.5
	if snap.Bollinger.IsValid && snap.Bollinger.Upper != snap.Bollinger.Lower {
		bbPercent = (evt.Price - snap.Bollinger.Lower) / (snap.Bollinger.Upper - snap.Bollinger.Lower)
	}

	enriched := pattern.EnrichedTrade{
		BotID: evt.BotID, Side: evt.Side, PnL: evt.PnL, Timestamp: evt.Timestamp,
		Regime: snap.Regime, RSI: snap.RSI.Value, Crossover: crossover, BBPercent: bbPercent,
	}
	o.pattern.Observe(enriched)

	o.shapley.Record(shapley.TradeContext{
		BotID: evt.BotID, Side: evt.Side, Quantity: evt.Quantity, Price: evt.Price,
		Equity: 5000, PnL: evt.PnL, Timestamp: evt.Timestamp,
		RSI: snap.RSI.Value, Crossover: crossover, BBPercent: bbPercent, Regime: snap.Regime,
	})
}

// syntheticCandle treats one trade print as a single-tick candle, per
// spec.md §4.M: "tick the Indicator Engine with the trade's price as a
// synthetic market print."
func syntheticCandle(price float64) quote.Candle {
	return quote.Candle{High: price, Low: price, Close: price, Open: price}
}

// priorTickDelta is the price change since the Indicator Engine's last
// observed tick for symbol, read before that tick is folded in — zero on a
// symbol's first trade, per spec.md §4.I.
func (o *Orchestrator) priorTickDelta(symbol string, price float64) float64 {
	last, ok := o.indicators.LastPrice(symbol)
	if !ok {
		return 0
	}
	return price - last
}

func (o *Orchestrator) isDuplicate(hash string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	for h, seenAt := range o.seenHashes {
		if now.Sub(seenAt) > dedupWindow {
			delete(o.seenHashes, h)
		}
	}
	if _, ok := o.seenHashes[hash]; ok {
		return true
	}
	o.seenHashes[hash] = now
	return false
}

func (o *Orchestrator) nextSequence() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sequenceNum++
	return o.sequenceNum
}

func tradeHash(evt arena.TradeEvent) string {
	raw := fmt.Sprintf("%s|%s|%f|%f|%d", evt.BotID, evt.Side, evt.Quantity, evt.Price, evt.Timestamp.UnixMilli())
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (o *Orchestrator) emitSnapshot() {
	o.mu.Lock()
	elapsed := time.Since(o.startedAt).Minutes()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(o.tradeCount) / elapsed
	}
	symbols := make([]string, 0, len(o.symbolSet))
	for s := range o.symbolSet {
		symbols = append(symbols, s)
	}
	leaderboard := o.lastLeaderboard
	tradeCount := o.tradeCount
	o.mu.Unlock()

	top, bottom := splitLeaderboard(leaderboard)

	snap := Snapshot{
		TakenAt:          time.Now(),
		TotalTrades:      tradeCount,
		TradesPerMinute:  rate,
		TopPerformers:    top,
		BottomPerformers: bottom,
		ActivePatterns:   o.pattern.HighConfidence(),
		Symbols:          symbols,
		TopShapley:       o.shapley.Top(5),
	}
	if o.onSnapshot != nil {
		o.onSnapshot(snap)
	}
}

func splitLeaderboard(lb arena.LeaderboardEvent) (top, bottom []arena.LeaderboardEntry) {
	n := len(lb.Entries)
	if n == 0 {
		return nil, nil
	}
	k := 5
	if k > n {
		k = n
	}
	top = lb.Entries[:k]
	bottom = lb.Entries[n-k:]
	return top, bottom
}

// QueryTrades answers a Ring Event Buffer lookup (spec.md §4.G) over the
// accepted trade history.
func (o *Orchestrator) QueryTrades(f ring.QueryFilter) []arena.TradeEvent {
	return o.ring.Query(f, tradeEventFields)
}

func tradeEventFields(evt arena.TradeEvent) ring.Fields {
	return ring.Fields{
		Timestamp: evt.Timestamp,
		EventType: string(evt.EventType),
		BotID:     evt.BotID,
		Symbol:    evt.Symbol,
	}
}

func (o *Orchestrator) runClustering() {
	result := cluster.Run(o.fingerprint, 0)
	if o.onCluster != nil {
		o.onCluster(result)
	}
}
