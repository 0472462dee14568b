// Package persistence defines the optional storage interfaces for
// orchestrator snapshots, discovered patterns, and Shapley attribution
// history. A postgres-backed implementation lives in persistence/postgres;
// wiring it is optional — nothing in the hot path depends on persistence
// succeeding.
package persistence

import (
	"context"
	"time"
)

// TimeRange bounds a history query.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// SnapshotRecord is one persisted Observation Orchestrator snapshot.
type SnapshotRecord struct {
	ID              int64                  `json:"id" db:"id"`
	TakenAt         time.Time              `json:"taken_at" db:"taken_at"`
	TotalTrades     int64                  `json:"total_trades" db:"total_trades"`
	TradesPerMinute float64                `json:"trades_per_minute" db:"trades_per_minute"`
	Symbols         []string               `json:"symbols" db:"symbols"`
	Payload         map[string]interface{} `json:"payload" db:"payload"`
	CreatedAt       time.Time              `json:"created_at" db:"created_at"`
}

// PatternRecord is one persisted discovered trade pattern.
type PatternRecord struct {
	ID            int64     `json:"id" db:"id"`
	Key           string    `json:"key" db:"key"`
	SampleCount   int       `json:"sample_count" db:"sample_count"`
	WinRate       float64   `json:"win_rate" db:"win_rate"`
	Profitability float64   `json:"profitability" db:"profitability"`
	Confidence    float64   `json:"confidence" db:"confidence"`
	ObservedAt    time.Time `json:"observed_at" db:"observed_at"`
}

// AttributionRecord is one persisted per-bot Shapley attribution.
type AttributionRecord struct {
	ID              int64     `json:"id" db:"id"`
	BotID           string    `json:"bot_id" db:"bot_id"`
	SignalQuality   float64   `json:"signal_quality" db:"signal_quality"`
	Timing          float64   `json:"timing" db:"timing"`
	Sizing          float64   `json:"sizing" db:"sizing"`
	ExitQuality     float64   `json:"exit_quality" db:"exit_quality"`
	RegimeAlignment float64   `json:"regime_alignment" db:"regime_alignment"`
	TotalPnL        float64   `json:"total_pnl" db:"total_pnl"`
	Rank            int       `json:"rank" db:"rank"`
	ComputedAt      time.Time `json:"computed_at" db:"computed_at"`
}

// SnapshotRepo persists periodic orchestrator snapshots.
type SnapshotRepo interface {
	Insert(ctx context.Context, s SnapshotRecord) error
	ListRange(ctx context.Context, tr TimeRange) ([]SnapshotRecord, error)
	Latest(ctx context.Context) (*SnapshotRecord, error)
}

// PatternRepo persists discovered trade patterns.
type PatternRepo interface {
	Upsert(ctx context.Context, p PatternRecord) error
	ListHighConfidence(ctx context.Context, minConfidence float64) ([]PatternRecord, error)
}

// AttributionRepo persists per-bot Shapley attribution passes.
type AttributionRepo interface {
	InsertBatch(ctx context.Context, records []AttributionRecord) error
	LatestForBot(ctx context.Context, botID string) (*AttributionRecord, error)
	TopByPnL(ctx context.Context, limit int) ([]AttributionRecord, error)
}
