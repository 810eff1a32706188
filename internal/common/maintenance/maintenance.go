package maintenance

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mybus-data/internal/common/logger"
)

// TaskType names a housekeeping task
type TaskType string

const (
	ExpiredAlerts  TaskType = "expired_alerts"
	StaleDownloads TaskType = "stale_downloads"
	VacuumSettings TaskType = "vacuum_settings"
)

// staleDownloadPattern matches temp files left by an interrupted update.
const staleDownloadPattern = "busstops_*.tmp"

// CleanupResult represents the result of a cleanup task
type CleanupResult struct {
	Task           TaskType      `json:"task"`
	RecordsDeleted int64         `json:"records_deleted"`
	Duration       time.Duration `json:"duration_ns"`
	Success        bool          `json:"success"`
	Error          string        `json:"error,omitempty"`
}

// SettingsStore is the part of the settings database housekeeping touches.
type SettingsStore interface {
	PruneExpiredAlerts(ctx context.Context) (int64, error)
	Vacuum(ctx context.Context) error
}

// Maintenance handles database cleanup and maintenance operations
type Maintenance struct {
	settings    SettingsStore
	downloadDir string
	staleAfter  time.Duration
	logger      logger.Logger
}

// New creates a new Maintenance instance. downloadDir may be empty, in which
// case stale downloads are not looked for.
func New(settings SettingsStore, downloadDir string, logger logger.Logger) *Maintenance {
	return &Maintenance{
		settings:    settings,
		downloadDir: downloadDir,
		staleAfter:  time.Hour,
		logger:      logger,
	}
}

// CleanupExpiredAlerts deletes alerts past their retention window
func (m *Maintenance) CleanupExpiredAlerts(ctx context.Context) (int64, error) {
	n, err := m.settings.PruneExpiredAlerts(ctx)
	if err != nil {
		return 0, fmt.Errorf("pruning expired alerts: %w", err)
	}
	if n > 0 {
		m.logger.Info("Removed expired alerts", "records_deleted", n)
	}
	return n, nil
}

// CleanupStaleDownloads removes temp files older than an hour from the
// download directory. A running update never leaves a file that old.
func (m *Maintenance) CleanupStaleDownloads(ctx context.Context) (int64, error) {
	if m.downloadDir == "" {
		return 0, nil
	}

	matches, err := filepath.Glob(filepath.Join(m.downloadDir, staleDownloadPattern))
	if err != nil {
		return 0, fmt.Errorf("listing downloads: %w", err)
	}

	cutoff := time.Now().Add(-m.staleAfter)
	var removed int64
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		info, err := os.Stat(path)
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			m.logger.Warn("Could not remove stale download", "path", path, "error", err)
			continue
		}
		m.logger.Info("Removed stale download", "path", path, "size_bytes", info.Size())
		removed++
	}
	return removed, nil
}

// VacuumSettingsDatabase reclaims space in the settings database (must be
// called outside a transaction)
func (m *Maintenance) VacuumSettingsDatabase(ctx context.Context) error {
	m.logger.Info("Starting VACUUM of settings database")
	start := time.Now()
	if err := m.settings.Vacuum(ctx); err != nil {
		return err
	}
	m.logger.Info("VACUUM completed", "duration", time.Since(start))
	return nil
}

// RunTask runs a single task and never returns an error, so one failing task
// does not stop the others
func (m *Maintenance) RunTask(ctx context.Context, task TaskType) CleanupResult {
	result := CleanupResult{Task: task}
	start := time.Now()

	var (
		n   int64
		err error
	)
	switch task {
	case ExpiredAlerts:
		n, err = m.CleanupExpiredAlerts(ctx)
	case StaleDownloads:
		n, err = m.CleanupStaleDownloads(ctx)
	case VacuumSettings:
		err = m.VacuumSettingsDatabase(ctx)
	default:
		err = fmt.Errorf("unknown task: %s", task)
	}

	result.Duration = time.Since(start)
	result.RecordsDeleted = n
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Success = true
	return result
}

// RunAll runs every task in order and reports each outcome
func (m *Maintenance) RunAll(ctx context.Context, tasks ...TaskType) []CleanupResult {
	if len(tasks) == 0 {
		tasks = []TaskType{ExpiredAlerts, StaleDownloads, VacuumSettings}
	}

	results := make([]CleanupResult, 0, len(tasks))
	successCount := 0
	for _, task := range tasks {
		result := m.RunTask(ctx, task)
		results = append(results, result)
		if result.Success {
			successCount++
		} else {
			m.logger.Error("Maintenance task failed",
				"task", task,
				"error", result.Error)
		}
	}

	m.logger.Info("Maintenance completed",
		"successful_tasks", successCount,
		"total_tasks", len(tasks))

	return results
}
