package pattern

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wargames-arena/marketfeed/internal/indicators"
)

func makeTrade(pnl float64, at time.Time) EnrichedTrade {
	return EnrichedTrade{
		BotID: "bot-1", Side: "buy", PnL: pnl, Timestamp: at,
		Regime: indicators.RegimeTrendingUp, RSI: 60, Crossover: CrossoverBullish, BBPercent: 0.5,
	}
}

func TestDiscovery_BelowMinSamplesNotReported(t *testing.T) {
	d := New()
	base := time.Now()
	for i := 0; i < 4; i++ {
		d.Observe(makeTrade(1.0, base.Add(time.Duration(i)*time.Minute)))
	}
	assert.Empty(t, d.Patterns())
}

func TestDiscovery_EmergesAboveThreshold(t *testing.T) {
	d := New()
	base := time.Now()
	for i := 0; i < 6; i++ {
		d.Observe(makeTrade(2.0, base.Add(time.Duration(i)*time.Hour)))
	}
	patterns := d.Patterns()
	require.Len(t, patterns, 1)
	assert.Equal(t, 6, patterns[0].SampleCount)
	assert.Equal(t, 1.0, patterns[0].WinRate)
	assert.Equal(t, 2.0, patterns[0].Profitability)
}

func TestDiscovery_LowWinRateExcluded(t *testing.T) {
	d := New()
	base := time.Now()
	for i := 0; i < 10; i++ {
		pnl := -1.0
		if i < 4 {
			pnl = 1.0
		}
		d.Observe(makeTrade(pnl, base.Add(time.Duration(i)*time.Hour)))
	}
	assert.Empty(t, d.Patterns())
}

func TestDiscovery_HighConfidenceFiltersLowConfidence(t *testing.T) {
	d := New()
	base := time.Now()
	for i := 0; i < 6; i++ {
		d.Observe(makeTrade(1.0, base.Add(time.Duration(i)*time.Hour)))
	}
	high := d.HighConfidence()
	for _, p := range high {
		assert.Greater(t, p.Confidence, 0.7)
		assert.Greater(t, p.Profitability, 0.0)
	}
}

func TestDiscovery_ConfidenceEqualsWinRate(t *testing.T) {
	d := New()
	base := time.Now()
	for i := 0; i < 5; i++ {
		d.Observe(makeTrade(1.0, base.Add(time.Duration(i)*time.Hour)))
	}
	patterns := d.Patterns()
	require.Len(t, patterns, 1)
	assert.Equal(t, 1.0, patterns[0].Confidence, "confidence is wins/total with no sample-size dampening")
}

func TestDiscovery_BucketsSeparateDistinctKeys(t *testing.T) {
	d := New()
	base := time.Now()
	buy := makeTrade(1.0, base)
	sell := buy
	sell.Side = "sell"

	for i := 0; i < 6; i++ {
		d.Observe(buy)
		d.Observe(sell)
	}
	patterns := d.Patterns()
	assert.Len(t, patterns, 2)
}
