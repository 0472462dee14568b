package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wargames-arena/marketfeed/internal/persistence"
)

// AttributionRepo persists per-bot Shapley attribution passes (spec.md §4.L).
type AttributionRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func (r *AttributionRepo) InsertBatch(ctx context.Context, records []persistence.AttributionRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attribution batch: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO shapley_attributions
		(bot_id, signal_quality, timing, sizing, exit_quality, regime_alignment, total_pnl, rank, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	for _, rec := range records {
		_, err := tx.ExecContext(ctx, query, rec.BotID, rec.SignalQuality, rec.Timing, rec.Sizing,
			rec.ExitQuality, rec.RegimeAlignment, rec.TotalPnL, rec.Rank, rec.ComputedAt)
		if err != nil {
			return fmt.Errorf("insert attribution for %s: %w", rec.BotID, err)
		}
	}
	return tx.Commit()
}

func (r *AttributionRepo) LatestForBot(ctx context.Context, botID string) (*persistence.AttributionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, bot_id, signal_quality, timing, sizing, exit_quality, regime_alignment, total_pnl, rank, computed_at
		FROM shapley_attributions
		WHERE bot_id = $1
		ORDER BY computed_at DESC LIMIT 1`
	rec, err := scanAttribution(r.db.QueryRowContext(ctx, query, botID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest attribution for %s: %w", botID, err)
	}
	return &rec, nil
}

func (r *AttributionRepo) TopByPnL(ctx context.Context, limit int) ([]persistence.AttributionRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT DISTINCT ON (bot_id) id, bot_id, signal_quality, timing, sizing, exit_quality, regime_alignment, total_pnl, rank, computed_at
		FROM shapley_attributions
		ORDER BY bot_id, computed_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("top attributions: %w", err)
	}
	defer rows.Close()

	var out []persistence.AttributionRecord
	for rows.Next() {
		rec, err := scanAttributionFromRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalPnL > out[j].TotalPnL })
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func scanAttribution(row rowScanner) (persistence.AttributionRecord, error) {
	var rec persistence.AttributionRecord
	err := row.Scan(&rec.ID, &rec.BotID, &rec.SignalQuality, &rec.Timing, &rec.Sizing,
		&rec.ExitQuality, &rec.RegimeAlignment, &rec.TotalPnL, &rec.Rank, &rec.ComputedAt)
	return rec, err
}

func scanAttributionFromRows(rows *sql.Rows) (persistence.AttributionRecord, error) {
	var rec persistence.AttributionRecord
	err := rows.Scan(&rec.ID, &rec.BotID, &rec.SignalQuality, &rec.Timing, &rec.Sizing,
		&rec.ExitQuality, &rec.RegimeAlignment, &rec.TotalPnL, &rec.Rank, &rec.ComputedAt)
	return rec, err
}
