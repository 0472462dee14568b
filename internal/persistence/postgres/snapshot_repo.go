package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/wargames-arena/marketfeed/internal/persistence"
)

// SnapshotRepo persists orchestrator snapshots (spec.md §4.M).
type SnapshotRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func (r *SnapshotRepo) Insert(ctx context.Context, s persistence.SnapshotRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload, err := json.Marshal(s.Payload)
	if err != nil {
		return fmt.Errorf("marshal snapshot payload: %w", err)
	}

	query := `
		INSERT INTO orchestrator_snapshots (taken_at, total_trades, trades_per_minute, symbols, payload)
		VALUES ($1, $2, $3, $4, $5)`
	_, err = r.db.ExecContext(ctx, query, s.TakenAt, s.TotalTrades, s.TradesPerMinute, pq.Array(s.Symbols), payload)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepo) ListRange(ctx context.Context, tr persistence.TimeRange) ([]persistence.SnapshotRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, taken_at, total_trades, trades_per_minute, symbols, payload, created_at
		FROM orchestrator_snapshots
		WHERE taken_at >= $1 AND taken_at <= $2
		ORDER BY taken_at DESC`
	rows, err := r.db.QueryContext(ctx, query, tr.From, tr.To)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []persistence.SnapshotRecord
	for rows.Next() {
		rec, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SnapshotRepo) Latest(ctx context.Context) (*persistence.SnapshotRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, taken_at, total_trades, trades_per_minute, symbols, payload, created_at
		FROM orchestrator_snapshots ORDER BY taken_at DESC LIMIT 1`
	rec, err := scanSnapshot(r.db.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return &rec, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (persistence.SnapshotRecord, error) {
	var rec persistence.SnapshotRecord
	var payload []byte
	var symbols pq.StringArray
	err := row.Scan(&rec.ID, &rec.TakenAt, &rec.TotalTrades, &rec.TradesPerMinute, &symbols, &payload, &rec.CreatedAt)
	if err != nil {
		return rec, err
	}
	rec.Symbols = symbols
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &rec.Payload); err != nil {
			return rec, fmt.Errorf("unmarshal snapshot payload: %w", err)
		}
	}
	return rec, nil
}
