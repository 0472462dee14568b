package fingerprint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatures_BelowMinTradesNotEligible(t *testing.T) {
	m := NewManager()
	base := time.Now()
	for i := 0; i < 4; i++ {
		m.Observe(Trade{BotID: "bot-1", Side: "buy", Quantity: 1, PnL: 1, Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}
	_, ok := m.Features("bot-1")
	assert.False(t, ok)
}

func TestFeatures_ComputesWinRateAndBuyRatio(t *testing.T) {
	m := NewManager()
	base := time.Now()
	trades := []Trade{
		{Side: "buy", Quantity: 1, PnL: 10},
		{Side: "buy", Quantity: 1, PnL: 10},
		{Side: "sell", Quantity: 1, PnL: -5},
		{Side: "buy", Quantity: 1, PnL: 10},
		{Side: "sell", Quantity: 1, PnL: 10},
	}
	for i, tr := range trades {
		tr.BotID = "bot-1"
		tr.Timestamp = base.Add(time.Duration(i) * time.Minute)
		m.Observe(tr)
	}

	f, ok := m.Features("bot-1")
	require.True(t, ok)
	assert.Equal(t, 0.8, f.WinRate)
	assert.Equal(t, 0.6, f.BuyRatio)
}

func TestStreak_TracksWinAndLossRuns(t *testing.T) {
	m := NewManager()
	base := time.Now()
	pnls := []float64{1, 1, 1, -1, -1}
	for i, pnl := range pnls {
		m.Observe(Trade{BotID: "bot-1", Side: "buy", Quantity: 1, PnL: pnl, Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}
	streak := m.Streak("bot-1")
	assert.Equal(t, -2, streak.Current)
	assert.Equal(t, 3, streak.MaxWin)
	assert.Equal(t, 2, streak.MaxLoss)
}

func TestHistory_ReturnsOldestFirst(t *testing.T) {
	m := NewManager()
	base := time.Now()
	for i := 0; i < 3; i++ {
		m.Observe(Trade{BotID: "bot-1", Side: "buy", Quantity: 1, PnL: float64(i), Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}
	history := m.History("bot-1")
	require.Len(t, history, 3)
	assert.Equal(t, 0.0, history[0].PnL)
	assert.Equal(t, 2.0, history[2].PnL)
}

func TestBotIDs_TracksEveryObservedBot(t *testing.T) {
	m := NewManager()
	m.Observe(Trade{BotID: "bot-1", Side: "buy", Timestamp: time.Now()})
	m.Observe(Trade{BotID: "bot-2", Side: "sell", Timestamp: time.Now()})
	ids := m.BotIDs()
	assert.Contains(t, ids, "bot-1")
	assert.Contains(t, ids, "bot-2")
}

func TestPearson_PerfectPositiveCorrelation(t *testing.T) {
	corr := pearson([]float64{1, 2, 3, 4}, []float64{2, 4, 6, 8})
	assert.InDelta(t, 1.0, corr, 0.0001)
}

func TestPearson_MismatchedLengthsReturnsZero(t *testing.T) {
	assert.Equal(t, 0.0, pearson([]float64{1, 2}, []float64{1}))
}
