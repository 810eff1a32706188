// Package settings keeps user data that survives reference database updates:
// favourite stops, active alerts and updater bookkeeping.
package settings

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mybus-data/internal/common/db"
	"github.com/mybus-data/internal/common/logger"
)

// DefaultAlertRetention is how long an alert stays active.
const DefaultAlertRetention = time.Hour

var schema = []string{
	`CREATE TABLE IF NOT EXISTS favourite_stops (
		_id TEXT PRIMARY KEY,
		stopName TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS active_alerts (
		_id INTEGER PRIMARY KEY AUTOINCREMENT,
		type INTEGER NOT NULL,
		timeAdded INTEGER NOT NULL,
		stopCode TEXT NOT NULL,
		distanceFrom INTEGER,
		serviceNames TEXT,
		timeTrigger INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS active_alerts_type_index ON active_alerts(type, stopCode)`,
	`CREATE TABLE IF NOT EXISTS sync_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

type Config struct {
	Path           string
	AlertRetention time.Duration
}

type Store struct {
	db        *db.DB
	logger    logger.Logger
	retention time.Duration
	now       func() time.Time
}

// Open opens or creates the settings database at cfg.Path.
func Open(ctx context.Context, cfg Config, log logger.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating settings directory: %w", err)
	}

	conn, err := db.Open(cfg.Path, db.Options{}, log)
	if err != nil {
		return nil, fmt.Errorf("opening settings database: %w", err)
	}

	for _, stmt := range schema {
		if _, err := conn.DB().ExecContext(ctx, stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("creating settings schema: %w", err)
		}
	}

	retention := cfg.AlertRetention
	if retention <= 0 {
		retention = DefaultAlertRetention
	}

	return &Store{
		db:        conn,
		logger:    log,
		retention: retention,
		now:       time.Now,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Vacuum rebuilds the database file to reclaim space. Must not run inside a
// transaction.
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.db.DB().ExecContext(ctx, `VACUUM`); err != nil {
		return fmt.Errorf("vacuuming settings database: %w", err)
	}
	return nil
}

// inTx runs fn in a transaction that first prunes expired alerts.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.pruneExpired(ctx, tx); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
