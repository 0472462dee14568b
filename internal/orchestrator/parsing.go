package orchestrator

import (
	"time"

	"github.com/wargames-arena/marketfeed/internal/arena"
)

func asString(m map[string]interface{}, key string) (string, bool) {
	v, ok := m[key].(string)
	return v, ok
}

func asFloat(m map[string]interface{}, key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// parseTradeEvent decodes the generic JSON payload handed to an arena.Handler
// into a typed TradeEvent. Timestamps arrive as epoch milliseconds.
func parseTradeEvent(m map[string]interface{}) (arena.TradeEvent, bool) {
	botID, ok := asString(m, "botId")
	if !ok {
		return arena.TradeEvent{}, false
	}
	symbol, _ := asString(m, "symbol")
	side, _ := asString(m, "side")
	quantity, _ := asFloat(m, "quantity")
	price, _ := asFloat(m, "price")
	pnl, _ := asFloat(m, "pnl")

	var ts time.Time
	if ms, ok := asFloat(m, "timestamp"); ok {
		ts = time.UnixMilli(int64(ms))
	} else {
		ts = time.Now()
	}

	return arena.TradeEvent{
		BotID: botID, Symbol: symbol, Side: side,
		Quantity: quantity, Price: price, PnL: pnl, Timestamp: ts,
	}, true
}

func parseLeaderboardEvent(m map[string]interface{}) (arena.LeaderboardEvent, bool) {
	raw, ok := m["entries"].([]interface{})
	if !ok {
		return arena.LeaderboardEvent{}, false
	}
	entries := make([]arena.LeaderboardEntry, 0, len(raw))
	for _, item := range raw {
		em, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		botID, _ := asString(em, "botId")
		rank, _ := asFloat(em, "rank")
		totalPnL, _ := asFloat(em, "totalPnL")
		winRate, _ := asFloat(em, "winRate")
		entries = append(entries, arena.LeaderboardEntry{
			BotID: botID, Rank: int(rank), TotalPnL: totalPnL, WinRate: winRate,
		})
	}
	return arena.LeaderboardEvent{Entries: entries}, true
}
