// Package postgres implements persistence's repositories against a Postgres
// database via sqlx/lib-pq, grounded on the teacher's infrastructure/db
// connection pattern. Persistence is entirely optional: Manager.Enabled()
// is true only when the config enables it and a database handle is open.
// Neither the orchestrator nor the arenafeed commands call these
// repositories.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/lib/pq"
)

// Config holds the connection settings for the optional persistence layer.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
	Enabled         bool
}

// DefaultConfig mirrors the teacher's conservative pool defaults.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		QueryTimeout:    5 * time.Second,
		Enabled:         false,
	}
}

// Manager owns the pooled connection and the three repositories built on it.
type Manager struct {
	db      *sqlx.DB
	cfg     Config
	Snaps   *SnapshotRepo
	Pattern *PatternRepo
	Attrib  *AttributionRepo
}

// NewManager opens the pool and pings it once. Returns a disabled Manager
// (all repo fields nil) when cfg.Enabled is false, so callers can wire
// persistence unconditionally and just check Enabled() before using it.
func NewManager(cfg Config) (*Manager, error) {
	if !cfg.Enabled {
		return &Manager{cfg: cfg}, nil
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres: DSN required when persistence is enabled")
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return &Manager{
		db:      db,
		cfg:     cfg,
		Snaps:   &SnapshotRepo{db: db, timeout: cfg.QueryTimeout},
		Pattern: &PatternRepo{db: db, timeout: cfg.QueryTimeout},
		Attrib:  &AttributionRepo{db: db, timeout: cfg.QueryTimeout},
	}, nil
}

func (m *Manager) Enabled() bool { return m.cfg.Enabled && m.db != nil }

func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}
