package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeRange_FromBeforeOrEqualTo(t *testing.T) {
	tr := TimeRange{
		From: time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 7, 30, 11, 0, 0, 0, time.UTC),
	}
	assert.True(t, tr.To.After(tr.From) || tr.To.Equal(tr.From))
}

func TestSnapshotRecord_CarriesArbitraryPayload(t *testing.T) {
	rec := SnapshotRecord{
		TakenAt:         time.Now(),
		TotalTrades:     100,
		TradesPerMinute: 12.5,
		Symbols:         []string{"AAPL", "EUR/USD"},
		Payload:         map[string]interface{}{"botCount": 21.0},
	}

	assert.Greater(t, rec.TotalTrades, int64(0))
	assert.Contains(t, rec.Symbols, "AAPL")
	assert.Equal(t, 21.0, rec.Payload["botCount"])
}

func TestPatternRecord_ConfidenceAndWinRateAreFractions(t *testing.T) {
	p := PatternRecord{
		Key:           "breakout:AAPL:1h",
		SampleCount:   12,
		WinRate:       0.62,
		Profitability: 1.8,
		Confidence:    0.91,
		ObservedAt:    time.Now(),
	}

	assert.GreaterOrEqual(t, p.WinRate, 0.0)
	assert.LessOrEqual(t, p.WinRate, 1.0)
	assert.GreaterOrEqual(t, p.Confidence, 0.0)
	assert.LessOrEqual(t, p.Confidence, 1.0)
}

func TestAttributionRecord_FiveFactorsSumCloseToTotal(t *testing.T) {
	rec := AttributionRecord{
		BotID:           "bot-1",
		SignalQuality:   126.0,
		Timing:          105.0,
		Sizing:          84.0,
		ExitQuality:     63.0,
		RegimeAlignment: 42.0,
		TotalPnL:        420.0,
		Rank:            1,
		ComputedAt:      time.Now(),
	}

	sum := rec.SignalQuality + rec.Timing + rec.Sizing + rec.ExitQuality + rec.RegimeAlignment
	assert.InDelta(t, rec.TotalPnL, sum, 0.001, "Shapley factors should sum to the bot's total P&L")
	require.Equal(t, "bot-1", rec.BotID)
}
