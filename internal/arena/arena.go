// Package arena abstracts the Socket.IO-compatible event stream the
// Observation Orchestrator (spec.md §4.M) consumes: trade, leaderboard,
// tournament, and evolution events emitted by the 21-bot wargames arena.
// Stream is an interface rather than a concrete client so the orchestrator
// can be tested against a fake without a live socket.
package arena

import (
	"context"
	"time"
)

// EventName identifies one of the arena's emitted event types.
type EventName string

const (
	EventBotTrade       EventName = "arena:bot:trade"
	EventContinuousTrade EventName = "continuous:trade"
	EventLeaderboard    EventName = "arena:leaderboard"
	EventTournament     EventName = "arena:tournament"
	EventEvolution      EventName = "arena:evolution"
)

// TradeEvent is the shape carried by both arena:bot:trade and
// continuous:trade — the Orchestrator treats them identically except for
// deduplication, which exists precisely because both fire for one trade.
type TradeEvent struct {
	BotID     string
	Symbol    string
	Side      string // "buy" | "sell"
	Quantity  float64
	Price     float64
	PnL       float64
	Timestamp time.Time

	// EventType is the arena event name this trade was observed on
	// (arena:bot:trade or continuous:trade), kept for the Ring Event
	// Buffer's query filter (spec.md §4.G) even though both fire for the
	// same accepted trade.
	EventType EventName
}

// LeaderboardEntry is one bot's standing in an arena:leaderboard payload.
type LeaderboardEntry struct {
	BotID    string
	Rank     int
	TotalPnL float64
	WinRate  float64
}

// LeaderboardEvent carries the full current standings.
type LeaderboardEvent struct {
	Entries []LeaderboardEntry
}

// TournamentEvent reports a round transition.
type TournamentEvent struct {
	Type         string
	Round        int
	TotalRounds  int
}

// EvolutionEvent reports a generational step in bot evolution.
type EvolutionEvent struct {
	Type       string
	Generation int
	Results    map[string]float64
}

// Handler processes one decoded event payload.
type Handler func(payload interface{})

// Stream is the Socket.IO-like abstraction the Orchestrator depends on.
// Connect/Disconnect manage the underlying transport; On registers a
// handler for an event name; Emit is unused by this system (observer-only)
// but kept in the interface since the real arena transport is bidirectional.
type Stream interface {
	Connect(ctx context.Context) error
	Disconnect() error
	On(event EventName, handler Handler)
	Emit(event EventName, payload interface{}) error
	Connected() bool
}
