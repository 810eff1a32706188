package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mybus-data/internal/common/logger"
)

type Config struct {
	// CheckInterval is the minimum time between two successful checks.
	CheckInterval time.Duration
	// UnmeteredOnly skips runs while the network is metered.
	UnmeteredOnly bool
	// DownloadDir receives temporary downloads. It should be on the same
	// file system as the live database so the final rename is atomic.
	DownloadDir string
}

// Checker compares the local reference database with the published one and
// replaces it when a newer topology is out.
type Checker struct {
	config     Config
	store      Store
	endpoint   DatabaseEndpoint
	downloader Downloader
	recorder   CheckRecorder
	network    NetworkState
	lock       ReplaceLock
	notifier   Notifier
	logger     logger.Logger
	now        func() time.Time

	// running holds one Run at a time.
	running sync.Mutex
}

func NewChecker(
	config Config,
	store Store,
	endpoint DatabaseEndpoint,
	downloader Downloader,
	recorder CheckRecorder,
	network NetworkState,
	logger logger.Logger,
) *Checker {
	if config.CheckInterval <= 0 {
		config.CheckInterval = 12 * time.Hour
	}
	if network == nil {
		network = StaticNetwork{}
	}
	return &Checker{
		config:     config,
		store:      store,
		endpoint:   endpoint,
		downloader: downloader,
		recorder:   recorder,
		network:    network,
		logger:     logger,
		now:        time.Now,
	}
}

// SetReplaceLock registers a lock taken around every replacement.
func (c *Checker) SetReplaceLock(lock ReplaceLock) {
	c.lock = lock
}

// SetNotifier registers who to tell after a successful replacement.
func (c *Checker) SetNotifier(n Notifier) {
	c.notifier = n
}

// CheckForUpdate asks the endpoint for the current database and compares it
// with the local one. A server database with a different schema name cannot be
// read by this build, so it is reported as up to date.
func (c *Checker) CheckForUpdate(ctx context.Context) (Result, error) {
	schema := c.store.SchemaName()

	remote, err := c.endpoint.DatabaseVersion(ctx, schema)
	if err != nil {
		return Result{}, fmt.Errorf("fetching database version: %w", err)
	}

	if remote.SchemaName != schema {
		c.logger.Info("Server database has a different schema, ignoring",
			"local_schema", schema,
			"remote_schema", remote.SchemaName)
		return Result{Status: StatusUpToDate}, nil
	}

	local, err := c.store.CurrentVersion(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		c.logger.Warn("Local database version unavailable, treating as outdated", "error", err)
		return Result{Status: StatusUpdateAvailable, Version: remote}, nil
	}

	if local.TopologyID == remote.TopologyID {
		return Result{Status: StatusUpToDate}, nil
	}

	c.logger.Info("Newer bus stop database available",
		"local_topology_id", local.TopologyID,
		"remote_topology_id", remote.TopologyID)
	return Result{Status: StatusUpdateAvailable, Version: remote}, nil
}

// Run is one pass of the background updater. It is rate limited by
// CheckInterval and by the metered network preference.
func (c *Checker) Run(ctx context.Context) (Result, error) {
	return c.run(ctx, false)
}

// ForceRun runs a check ignoring the rate limit.
func (c *Checker) ForceRun(ctx context.Context) (Result, error) {
	return c.run(ctx, true)
}

func (c *Checker) run(ctx context.Context, force bool) (Result, error) {
	if !c.running.TryLock() {
		return Result{Status: StatusSkipped, Reason: "check already in progress"}, nil
	}
	defer c.running.Unlock()

	if c.config.UnmeteredOnly && c.network.IsMetered(ctx) {
		c.logger.Debug("Skipping database update check on metered network")
		return Result{Status: StatusSkipped, Reason: "metered network"}, nil
	}

	if !force && c.recorder != nil {
		last, err := c.recorder.LastUpdateCheck(ctx)
		if err != nil {
			c.logger.Warn("Could not read last update check time", "error", err)
		} else if !last.IsZero() && c.now().Sub(last) < c.config.CheckInterval {
			c.logger.Debug("Skipping database update check, checked recently", "last_check", last)
			return Result{Status: StatusSkipped, Reason: "checked recently"}, nil
		}
	}

	result, err := c.CheckForUpdate(ctx)
	if err != nil {
		return Result{}, err
	}

	if result.Status == StatusUpdateAvailable {
		if err := c.update(ctx, result.Version); err != nil {
			return Result{}, err
		}
		result.Status = StatusUpdated
	}

	c.recordCheck(ctx)
	return result, nil
}

func (c *Checker) update(ctx context.Context, version *DatabaseVersion) error {
	path, checksum, err := c.downloader.Download(ctx, version.URL, c.config.DownloadDir)
	if err != nil {
		return fmt.Errorf("downloading database: %w", err)
	}

	replaced := false
	defer func() {
		if !replaced {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				c.logger.Warn("Could not remove downloaded database", "path", path, "error", err)
			}
		}
	}()

	if !strings.EqualFold(checksum, version.Checksum) {
		c.logger.Error("Downloaded database failed checksum verification",
			"expected", version.Checksum,
			"actual", checksum,
			"url", version.URL)
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, version.Checksum, checksum)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if c.lock != nil {
		c.lock.LockForReplace()
		defer c.lock.UnlockAfterReplace()
	}

	if err := c.store.Replace(ctx, path); err != nil {
		return fmt.Errorf("replacing database: %w", err)
	}
	replaced = true

	c.logger.Info("Bus stop database updated", "topology_id", version.TopologyID)

	if c.notifier != nil {
		if err := c.notifier.DatabaseUpdated(ctx, version.SchemaName, version.TopologyID); err != nil {
			c.logger.Warn("Could not send update notification", "error", err)
		}
	}
	return nil
}

func (c *Checker) recordCheck(ctx context.Context) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.SetLastUpdateCheck(ctx, c.now()); err != nil {
		c.logger.Warn("Could not record update check time", "error", err)
	}
}
