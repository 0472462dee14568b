package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTradeEvent_Valid(t *testing.T) {
	raw := map[string]interface{}{
		"botId":     "bot-1",
		"symbol":    "AAPL",
		"side":      "buy",
		"quantity":  10.0,
		"price":     150.5,
		"pnl":       3.25,
		"timestamp": float64(1700000000000),
	}
	ev, ok := parseTradeEvent(raw)
	require.True(t, ok)
	assert.Equal(t, "bot-1", ev.BotID)
	assert.Equal(t, "AAPL", ev.Symbol)
	assert.Equal(t, 10.0, ev.Quantity)
	assert.Equal(t, 150.5, ev.Price)
	assert.Equal(t, 3.25, ev.PnL)
	assert.EqualValues(t, 1700000000000, ev.Timestamp.UnixMilli())
}

func TestParseTradeEvent_MissingBotIDRejected(t *testing.T) {
	_, ok := parseTradeEvent(map[string]interface{}{"symbol": "AAPL"})
	assert.False(t, ok)
}

func TestParseTradeEvent_IntQuantityCoerced(t *testing.T) {
	raw := map[string]interface{}{"botId": "bot-1", "quantity": 5}
	ev, ok := parseTradeEvent(raw)
	require.True(t, ok)
	assert.Equal(t, 5.0, ev.Quantity)
}

func TestParseLeaderboardEvent_Valid(t *testing.T) {
	raw := map[string]interface{}{
		"entries": []interface{}{
			map[string]interface{}{"botId": "bot-1", "rank": 1.0, "totalPnL": 100.0, "winRate": 0.6},
			map[string]interface{}{"botId": "bot-2", "rank": 2.0, "totalPnL": 50.0, "winRate": 0.4},
		},
	}
	ev, ok := parseLeaderboardEvent(raw)
	require.True(t, ok)
	require.Len(t, ev.Entries, 2)
	assert.Equal(t, "bot-1", ev.Entries[0].BotID)
	assert.Equal(t, 1, ev.Entries[0].Rank)
}

func TestParseLeaderboardEvent_MissingEntriesRejected(t *testing.T) {
	_, ok := parseLeaderboardEvent(map[string]interface{}{})
	assert.False(t, ok)
}

func TestParseLeaderboardEvent_SkipsMalformedEntries(t *testing.T) {
	raw := map[string]interface{}{
		"entries": []interface{}{"not-a-map", map[string]interface{}{"botId": "bot-1", "rank": 1.0}},
	}
	ev, ok := parseLeaderboardEvent(raw)
	require.True(t, ok)
	require.Len(t, ev.Entries, 1)
	assert.Equal(t, "bot-1", ev.Entries[0].BotID)
}
