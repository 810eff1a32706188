package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const lastUpdateCheckKey = "last_update_check"

// LastUpdateCheck returns the time of the last successful database check,
// or the zero time if there has never been one.
func (s *Store) LastUpdateCheck(ctx context.Context) (time.Time, error) {
	var value string
	err := s.db.DB().QueryRowContext(ctx,
		`SELECT value FROM sync_state WHERE key = ?`, lastUpdateCheckKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading last update check: %w", err)
	}

	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing last update check %q: %w", value, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

func (s *Store) SetLastUpdateCheck(ctx context.Context, at time.Time) error {
	_, err := s.db.DB().ExecContext(ctx,
		`INSERT INTO sync_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		lastUpdateCheckKey, strconv.FormatInt(at.UnixMilli(), 10))
	if err != nil {
		return fmt.Errorf("saving last update check: %w", err)
	}
	return nil
}
