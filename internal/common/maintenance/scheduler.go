package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mybus-data/internal/common/logger"
)

// ErrReplaceInProgress is returned by TriggerCleanup while the bus stop
// database is being swapped.
var ErrReplaceInProgress = errors.New("cannot perform cleanup - database replace in progress")

// CleanupScheduler handles periodic maintenance tasks
type CleanupScheduler struct {
	maintenance         *Maintenance
	logger              logger.Logger
	config              SchedulerConfig
	isRunning           bool
	mu                  sync.RWMutex
	cancelFn            context.CancelFunc
	replaceLock         sync.RWMutex // Prevents cleanup while the bus stop database is swapped
	isReplaceInProgress bool
	lastRun             time.Time
}

// SchedulerConfig contains configuration for the cleanup scheduler
type SchedulerConfig struct {
	CleanupInterval time.Duration // How often to prune alerts and stale downloads
	VacuumInterval  time.Duration // How often to VACUUM the settings database
	InitialDelay    time.Duration // Delay before the first cleanup after start
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		CleanupInterval: 10 * time.Minute,
		VacuumInterval:  24 * time.Hour,
		InitialDelay:    1 * time.Minute,
	}
}

// NewCleanupScheduler creates a new cleanup scheduler
func NewCleanupScheduler(maintenance *Maintenance, logger logger.Logger, config SchedulerConfig) *CleanupScheduler {
	defaults := DefaultSchedulerConfig()
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.VacuumInterval <= 0 {
		config.VacuumInterval = defaults.VacuumInterval
	}
	if config.InitialDelay < 0 {
		config.InitialDelay = 0
	}
	return &CleanupScheduler{
		maintenance: maintenance,
		logger:      logger,
		config:      config,
	}
}

// Start begins the cleanup scheduling
func (s *CleanupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cleanup scheduler is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancelFn = cancel
	s.isRunning = true

	s.logger.Info("Starting cleanup scheduler",
		"cleanup_interval", s.config.CleanupInterval,
		"vacuum_interval", s.config.VacuumInterval)

	go s.cleanupLoop(ctx)
	go s.vacuumLoop(ctx)

	return nil
}

// Stop stops the cleanup scheduler
func (s *CleanupScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	s.logger.Info("Stopping cleanup scheduler")

	if s.cancelFn != nil {
		s.cancelFn()
	}

	s.isRunning = false
	s.logger.Info("Cleanup scheduler stopped")
}

// IsRunning returns whether the scheduler is active
func (s *CleanupScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// LockForReplace prevents cleanup operations while the bus stop database is replaced
func (s *CleanupScheduler) LockForReplace() {
	s.replaceLock.Lock()
	s.isReplaceInProgress = true
	s.replaceLock.Unlock()
	s.logger.Debug("Cleanup operations locked for database replace")
}

// UnlockAfterReplace allows cleanup operations to resume
func (s *CleanupScheduler) UnlockAfterReplace() {
	s.replaceLock.Lock()
	s.isReplaceInProgress = false
	s.replaceLock.Unlock()
	s.logger.Debug("Cleanup operations unlocked after database replace")
}

// canPerformCleanup checks if cleanup operations are allowed
func (s *CleanupScheduler) canPerformCleanup() bool {
	s.replaceLock.RLock()
	defer s.replaceLock.RUnlock()
	return !s.isReplaceInProgress
}

func (s *CleanupScheduler) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	initialDelay := time.NewTimer(s.config.InitialDelay)
	defer initialDelay.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Cleanup loop stopping")
			return

		case <-initialDelay.C:
			s.performCleanup(ctx, ExpiredAlerts, StaleDownloads)

		case <-ticker.C:
			s.performCleanup(ctx, ExpiredAlerts, StaleDownloads)
		}
	}
}

func (s *CleanupScheduler) vacuumLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.VacuumInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Vacuum loop stopping")
			return

		case <-ticker.C:
			s.performCleanup(ctx, VacuumSettings)
		}
	}
}

func (s *CleanupScheduler) performCleanup(ctx context.Context, tasks ...TaskType) []CleanupResult {
	if !s.canPerformCleanup() {
		s.logger.Debug("Skipping cleanup - database replace in progress")
		return nil
	}

	results := s.maintenance.RunAll(ctx, tasks...)

	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()

	return results
}

// TriggerCleanup manually runs every task (for testing/manual use)
func (s *CleanupScheduler) TriggerCleanup(ctx context.Context) ([]CleanupResult, error) {
	if !s.canPerformCleanup() {
		return nil, ErrReplaceInProgress
	}

	s.logger.Info("Manual cleanup triggered")
	return s.performCleanup(ctx), nil
}

// Status returns the current status of the cleanup scheduler
func (s *CleanupScheduler) Status() map[string]interface{} {
	s.mu.RLock()
	s.replaceLock.RLock()
	defer s.mu.RUnlock()
	defer s.replaceLock.RUnlock()

	status := map[string]interface{}{
		"is_running":             s.isRunning,
		"is_replace_in_progress": s.isReplaceInProgress,
		"cleanup_interval":       s.config.CleanupInterval.String(),
		"vacuum_interval":        s.config.VacuumInterval.String(),
	}
	if !s.lastRun.IsZero() {
		status["last_run"] = s.lastRun.UTC().Format(time.RFC3339)
	}
	return status
}
