package cluster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wargames-arena/marketfeed/internal/fingerprint"
)

func seedBot(fm *fingerprint.Manager, botID string, winRate float64, count int) {
	base := time.Now()
	wins := int(winRate * float64(count))
	for i := 0; i < count; i++ {
		pnl := -1.0
		if i < wins {
			pnl = 1.0
		}
		side := "buy"
		if i%2 == 1 {
			side = "sell"
		}
		fm.Observe(fingerprint.Trade{
			BotID: botID, Side: side, Quantity: 1, Price: 100, PnL: pnl,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}
}

func TestRun_NoEligibleBotsReturnsEmptyResult(t *testing.T) {
	fm := fingerprint.NewManager()
	result := Run(fm, 0)
	assert.Empty(t, result.Clusters)
	assert.Empty(t, result.Noise)
}

func TestRun_ProducesClustersForEligibleBots(t *testing.T) {
	fm := fingerprint.NewManager()
	for i := 0; i < 8; i++ {
		seedBot(fm, string(rune('A'+i)), 0.8, 10)
	}

	result := Run(fm, 2)

	totalAssigned := len(result.Noise)
	for _, c := range result.Clusters {
		totalAssigned += len(c.BotIDs)
	}
	assert.Equal(t, 8, totalAssigned, "every eligible bot should end up in a cluster or noise")
}

func TestRun_SkipsBotsBelowEligibilityThreshold(t *testing.T) {
	fm := fingerprint.NewManager()
	seedBot(fm, "too-few-trades", 0.5, 2)
	result := Run(fm, 1)
	assert.Empty(t, result.Clusters)
	assert.Empty(t, result.Noise)
}

func TestRun_ClustersHaveValidCentroids(t *testing.T) {
	fm := fingerprint.NewManager()
	for i := 0; i < 6; i++ {
		seedBot(fm, string(rune('A'+i)), 0.7, 8)
	}
	result := Run(fm, 2)
	for _, c := range result.Clusters {
		require.NotEmpty(t, c.BotIDs)
		assert.GreaterOrEqual(t, c.Radius, 0.0)
	}
}
