package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/wargames-arena/marketfeed/internal/persistence"
)

// PatternRepo persists discovered trade patterns (spec.md §4.J).
type PatternRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

func (r *PatternRepo) Upsert(ctx context.Context, p persistence.PatternRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO trade_patterns (key, sample_count, win_rate, profitability, confidence, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key) DO UPDATE SET
			sample_count = EXCLUDED.sample_count,
			win_rate = EXCLUDED.win_rate,
			profitability = EXCLUDED.profitability,
			confidence = EXCLUDED.confidence,
			observed_at = EXCLUDED.observed_at`
	_, err := r.db.ExecContext(ctx, query, p.Key, p.SampleCount, p.WinRate, p.Profitability, p.Confidence, p.ObservedAt)
	if err != nil {
		return fmt.Errorf("upsert pattern: %w", err)
	}
	return nil
}

func (r *PatternRepo) ListHighConfidence(ctx context.Context, minConfidence float64) ([]persistence.PatternRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, key, sample_count, win_rate, profitability, confidence, observed_at
		FROM trade_patterns
		WHERE confidence >= $1
		ORDER BY confidence DESC`
	rows, err := r.db.QueryContext(ctx, query, minConfidence)
	if err != nil {
		return nil, fmt.Errorf("list high confidence patterns: %w", err)
	}
	defer rows.Close()

	var out []persistence.PatternRecord
	for rows.Next() {
		var p persistence.PatternRecord
		if err := rows.Scan(&p.ID, &p.Key, &p.SampleCount, &p.WinRate, &p.Profitability, &p.Confidence, &p.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
