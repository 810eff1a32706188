package settings

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mybus-data/pkg/livetimes"
)

type AlertType int

const (
	AlertProximity AlertType = 1
	AlertTime      AlertType = 2
)

func (t AlertType) String() string {
	switch t {
	case AlertProximity:
		return "proximity"
	case AlertTime:
		return "time"
	}
	return "unknown"
}

// Alert is a row of active_alerts. DistanceMetres applies to proximity
// alerts; ServiceNames and TimeTrigger to time alerts.
type Alert struct {
	ID             int64     `json:"id"`
	Type           AlertType `json:"type"`
	TimeAdded      time.Time `json:"time_added"`
	StopCode       string    `json:"stop_code"`
	DistanceMetres int       `json:"distance_metres,omitempty"`
	ServiceNames   []string  `json:"service_names,omitempty"`
	TimeTrigger    int       `json:"time_trigger,omitempty"`
}

// AddProximityAlert replaces any existing proximity alert.
func (s *Store) AddProximityAlert(ctx context.Context, stopCode string, distanceMetres int) error {
	if strings.TrimSpace(stopCode) == "" {
		return ErrEmptyStopCode
	}
	if distanceMetres <= 0 {
		return fmt.Errorf("distance must be positive, got %d", distanceMetres)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM active_alerts WHERE type = ?`, AlertProximity); err != nil {
			return fmt.Errorf("clearing proximity alert: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO active_alerts (type, timeAdded, stopCode, distanceFrom) VALUES (?, ?, ?, ?)`,
			AlertProximity, s.now().UnixMilli(), stopCode, distanceMetres)
		if err != nil {
			return fmt.Errorf("adding proximity alert: %w", err)
		}
		return nil
	})
}

// AddTimeAlert replaces any existing time alert. It fires when one of
// services is due at stopCode within minutes.
func (s *Store) AddTimeAlert(ctx context.Context, stopCode string, services []string, minutes int) error {
	if strings.TrimSpace(stopCode) == "" {
		return ErrEmptyStopCode
	}
	if len(services) == 0 {
		return fmt.Errorf("time alert needs at least one service")
	}
	if minutes < 0 {
		return fmt.Errorf("time trigger must not be negative, got %d", minutes)
	}

	names := append([]string(nil), services...)
	livetimes.SortServiceNames(names)

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM active_alerts WHERE type = ?`, AlertTime); err != nil {
			return fmt.Errorf("clearing time alert: %w", err)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO active_alerts (type, timeAdded, stopCode, serviceNames, timeTrigger) VALUES (?, ?, ?, ?, ?)`,
			AlertTime, s.now().UnixMilli(), stopCode, strings.Join(names, ","), minutes)
		if err != nil {
			return fmt.Errorf("adding time alert: %w", err)
		}
		return nil
	})
}

func (s *Store) RemoveProximityAlert(ctx context.Context, stopCode string) (bool, error) {
	return s.removeAlert(ctx, AlertProximity, stopCode)
}

func (s *Store) RemoveTimeAlert(ctx context.Context, stopCode string) (bool, error) {
	return s.removeAlert(ctx, AlertTime, stopCode)
}

func (s *Store) HasProximityAlert(ctx context.Context, stopCode string) (bool, error) {
	return s.hasAlert(ctx, AlertProximity, stopCode)
}

func (s *Store) HasTimeAlert(ctx context.Context, stopCode string) (bool, error) {
	return s.hasAlert(ctx, AlertTime, stopCode)
}

// Alerts lists the alerts that have not expired, newest first.
func (s *Store) Alerts(ctx context.Context) ([]Alert, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT _id, type, timeAdded, stopCode, distanceFrom, serviceNames, timeTrigger
		FROM active_alerts
		WHERE timeAdded >= ?
		ORDER BY timeAdded DESC, _id DESC`, s.cutoff())
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	alerts := []Alert{}
	for rows.Next() {
		var (
			a        Alert
			added    int64
			distance sql.NullInt64
			services sql.NullString
			trigger  sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &a.Type, &added, &a.StopCode, &distance, &services, &trigger); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		a.TimeAdded = time.UnixMilli(added).UTC()
		a.DistanceMetres = int(distance.Int64)
		a.TimeTrigger = int(trigger.Int64)
		if services.String != "" {
			a.ServiceNames = strings.Split(services.String, ",")
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// PruneExpiredAlerts deletes alerts older than the retention window.
func (s *Store) PruneExpiredAlerts(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	n, err := s.pruneExpired(ctx, tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing prune: %w", err)
	}
	if n > 0 {
		s.logger.Debug("Pruned expired alerts", "count", n)
	}
	return n, nil
}

func (s *Store) removeAlert(ctx context.Context, t AlertType, stopCode string) (bool, error) {
	var removed bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM active_alerts WHERE type = ? AND stopCode = ?`, t, stopCode)
		if err != nil {
			return fmt.Errorf("removing %s alert for %s: %w", t, stopCode, err)
		}
		n, _ := res.RowsAffected()
		removed = n > 0
		return nil
	})
	return removed, err
}

func (s *Store) hasAlert(ctx context.Context, t AlertType, stopCode string) (bool, error) {
	var n int
	err := s.db.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM active_alerts WHERE type = ? AND stopCode = ? AND timeAdded >= ?`,
		t, stopCode, s.cutoff()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking %s alert for %s: %w", t, stopCode, err)
	}
	return n > 0, nil
}

func (s *Store) pruneExpired(ctx context.Context, tx *sql.Tx) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM active_alerts WHERE timeAdded < ?`, s.cutoff())
	if err != nil {
		return 0, fmt.Errorf("pruning expired alerts: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *Store) cutoff() int64 {
	return s.now().Add(-s.retention).UnixMilli()
}
