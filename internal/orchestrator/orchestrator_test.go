package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wargames-arena/marketfeed/internal/arena"
	"github.com/wargames-arena/marketfeed/internal/cluster"
	"github.com/wargames-arena/marketfeed/internal/ring"
)

// fakeStream is a minimal arena.Stream double: Connect/Disconnect are no-ops,
// On records handlers so the test can invoke them directly, Emit is unused.
type fakeStream struct {
	handlers  map[arena.EventName]arena.Handler
	connected bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{handlers: make(map[arena.EventName]arena.Handler)}
}

func (f *fakeStream) Connect(ctx context.Context) error { f.connected = true; return nil }
func (f *fakeStream) Disconnect() error                 { f.connected = false; return nil }
func (f *fakeStream) On(event arena.EventName, handler arena.Handler) {
	f.handlers[event] = handler
}
func (f *fakeStream) Emit(event arena.EventName, payload interface{}) error { return nil }
func (f *fakeStream) Connected() bool                                      { return f.connected }

func tradePayload(botID string, price float64, tsMillis int64) map[string]interface{} {
	return map[string]interface{}{
		"botId":     botID,
		"symbol":    "AAPL",
		"side":      "buy",
		"quantity":  10.0,
		"price":     price,
		"pnl":       1.5,
		"timestamp": float64(tsMillis),
	}
}

func TestOrchestrator_HandleTradeEvent_AcceptsWellFormedPayload(t *testing.T) {
	o := New(newFakeStream(), nil, nil)
	o.handleTradeEvent(tradePayload("bot-1", 150.0, 1700000000000), arena.EventBotTrade)

	assert.Equal(t, int64(1), o.tradeCount)
	assert.True(t, o.symbolSet["AAPL"])
	assert.Equal(t, 1, o.ring.Len())
}

func TestOrchestrator_HandleTradeEvent_DropsMalformedPayload(t *testing.T) {
	o := New(newFakeStream(), nil, nil)
	o.handleTradeEvent(map[string]interface{}{"symbol": "AAPL"}, arena.EventBotTrade) // no botId

	assert.Equal(t, int64(0), o.tradeCount)
}

func TestOrchestrator_HandleTradeEvent_DropsNonMapPayload(t *testing.T) {
	o := New(newFakeStream(), nil, nil)
	o.handleTradeEvent("not a map", arena.EventBotTrade)

	assert.Equal(t, int64(0), o.tradeCount)
}

func TestOrchestrator_HandleTradeEvent_DedupsIdenticalDoubleEmission(t *testing.T) {
	o := New(newFakeStream(), nil, nil)
	payload := tradePayload("bot-1", 150.0, 1700000000000)

	o.handleTradeEvent(payload, arena.EventBotTrade)
	o.handleTradeEvent(payload, arena.EventContinuousTrade) // arena:bot:trade + continuous:trade fire identically

	assert.Equal(t, int64(1), o.tradeCount, "second identical emission must be deduped within the window")
}

func TestOrchestrator_HandleTradeEvent_DistinctTradesBothCounted(t *testing.T) {
	o := New(newFakeStream(), nil, nil)
	o.handleTradeEvent(tradePayload("bot-1", 150.0, 1700000000000), arena.EventBotTrade)
	o.handleTradeEvent(tradePayload("bot-1", 151.0, 1700000000001), arena.EventBotTrade)

	assert.Equal(t, int64(2), o.tradeCount)
}

func TestOrchestrator_IsDuplicate_ExpiresOutsideDedupWindow(t *testing.T) {
	o := New(newFakeStream(), nil, nil)
	hash := "fixed-hash"
	o.seenHashes[hash] = time.Now().Add(-dedupWindow - time.Second)

	assert.False(t, o.isDuplicate(hash), "an entry older than dedupWindow must not be treated as a duplicate")
}

func TestOrchestrator_HandleLeaderboardEvent_UpdatesLastLeaderboard(t *testing.T) {
	o := New(newFakeStream(), nil, nil)
	o.handleLeaderboardEvent(map[string]interface{}{
		"entries": []interface{}{
			map[string]interface{}{"botId": "bot-1", "rank": 1.0, "totalPnL": 100.0, "winRate": 0.6},
		},
	})

	require.Len(t, o.lastLeaderboard.Entries, 1)
	assert.Equal(t, "bot-1", o.lastLeaderboard.Entries[0].BotID)
}

func TestOrchestrator_HandleLeaderboardEvent_IgnoresMalformedPayload(t *testing.T) {
	o := New(newFakeStream(), nil, nil)
	o.handleLeaderboardEvent(map[string]interface{}{"nope": true})

	assert.Empty(t, o.lastLeaderboard.Entries)
}

func TestOrchestrator_EmitSnapshot_InvokesCallbackWithCounts(t *testing.T) {
	var got Snapshot
	o := New(newFakeStream(), func(s Snapshot) { got = s }, nil)
	o.startedAt = time.Now().Add(-time.Minute)
	o.handleTradeEvent(tradePayload("bot-1", 150.0, 1700000000000), arena.EventBotTrade)

	o.emitSnapshot()

	assert.Equal(t, int64(1), got.TotalTrades)
	assert.Contains(t, got.Symbols, "AAPL")
	assert.Greater(t, got.TradesPerMinute, 0.0)
}

func TestOrchestrator_EmitSnapshot_NilCallbackDoesNotPanic(t *testing.T) {
	o := New(newFakeStream(), nil, nil)
	assert.NotPanics(t, func() { o.emitSnapshot() })
}

func TestSplitLeaderboard_EmptyEntriesReturnsNil(t *testing.T) {
	top, bottom := splitLeaderboard(arena.LeaderboardEvent{})
	assert.Nil(t, top)
	assert.Nil(t, bottom)
}

func TestSplitLeaderboard_FewerThanFiveEntriesOverlapsTopAndBottom(t *testing.T) {
	lb := arena.LeaderboardEvent{Entries: []arena.LeaderboardEntry{
		{BotID: "bot-1", Rank: 1}, {BotID: "bot-2", Rank: 2}, {BotID: "bot-3", Rank: 3},
	}}
	top, bottom := splitLeaderboard(lb)
	assert.Len(t, top, 3)
	assert.Len(t, bottom, 3)
}

func TestSplitLeaderboard_TenEntriesSplitsTopAndBottomFive(t *testing.T) {
	entries := make([]arena.LeaderboardEntry, 10)
	for i := range entries {
		entries[i] = arena.LeaderboardEntry{BotID: string(rune('a' + i)), Rank: i + 1}
	}
	top, bottom := splitLeaderboard(arena.LeaderboardEvent{Entries: entries})
	require.Len(t, top, 5)
	require.Len(t, bottom, 5)
	assert.Equal(t, entries[0].BotID, top[0].BotID)
	assert.Equal(t, entries[9].BotID, bottom[4].BotID)
}

func TestOrchestrator_RunClustering_InvokesCallback(t *testing.T) {
	var got cluster.Result
	invoked := false
	o := New(newFakeStream(), nil, func(r cluster.Result) { invoked = true; got = r })
	o.runClustering()

	assert.True(t, invoked)
	_ = got
}

func TestOrchestrator_QueryTrades_FiltersByEventType(t *testing.T) {
	o := New(newFakeStream(), nil, nil)
	o.handleTradeEvent(tradePayload("bot-1", 150.0, 1700000000000), arena.EventBotTrade)
	o.handleTradeEvent(tradePayload("bot-2", 151.0, 1700000000500), arena.EventContinuousTrade)

	out := o.QueryTrades(ring.QueryFilter{EventType: string(arena.EventContinuousTrade)})
	require.Len(t, out, 1)
	assert.Equal(t, "bot-2", out[0].BotID)
}

func TestOrchestrator_FanOut_PriorTickDeltaReflectsIndicatorEngineLastPrice(t *testing.T) {
	o := New(newFakeStream(), nil, nil)
	o.handleTradeEvent(tradePayload("bot-1", 150.0, 1700000000000), arena.EventBotTrade)
	o.handleTradeEvent(tradePayload("bot-1", 155.0, 1700000000001), arena.EventBotTrade)

	history := o.fingerprint.History("bot-1")
	require.Len(t, history, 2)
	assert.Equal(t, 0.0, history[0].PriorTickDelta, "first trade for a symbol has no prior tick")
	assert.Equal(t, 5.0, history[1].PriorTickDelta, "second trade must reflect the price move since the first")
}

func TestOrchestrator_NextSequence_Increments(t *testing.T) {
	o := New(newFakeStream(), nil, nil)
	assert.Equal(t, int64(1), o.nextSequence())
	assert.Equal(t, int64(2), o.nextSequence())
}

func TestOrchestrator_Run_StopsOnContextCancel(t *testing.T) {
	stream := newFakeStream()
	o := New(stream, nil, nil)
	o.snapshotInterval = time.Hour
	o.clusteringInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- o.Run(ctx) }()

	require.Eventually(t, func() bool { return stream.connected }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
	assert.False(t, stream.connected, "Run must disconnect the stream on shutdown")
}
