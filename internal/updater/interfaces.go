package updater

import (
	"context"
	"time"

	"github.com/mybus-data/internal/busstop"
)

// DatabaseEndpoint reports the latest published reference database.
type DatabaseEndpoint interface {
	DatabaseVersion(ctx context.Context, schemaName string) (*DatabaseVersion, error)
}

// Downloader fetches url into a new file in dir and returns its path and
// lower-case MD5 hex digest. No file is left behind on error.
type Downloader interface {
	Download(ctx context.Context, url string, dir string) (path string, checksum string, err error)
}

// Store is the part of the reference database store the checker drives.
type Store interface {
	SchemaName() string
	CurrentVersion(ctx context.Context) (busstop.VersionInfo, error)
	Replace(ctx context.Context, candidatePath string) error
}

// CheckRecorder persists when the last successful check happened.
type CheckRecorder interface {
	LastUpdateCheck(ctx context.Context) (time.Time, error)
	SetLastUpdateCheck(ctx context.Context, at time.Time) error
}

// NetworkState tells whether the current connection is metered.
type NetworkState interface {
	IsMetered(ctx context.Context) bool
}

// ReplaceLock is held around a database replacement so housekeeping does not
// run against a file that is being swapped.
type ReplaceLock interface {
	LockForReplace()
	UnlockAfterReplace()
}

// Notifier is told when a new database has gone live.
type Notifier interface {
	DatabaseUpdated(ctx context.Context, schemaName, topologyID string) error
}

// StaticNetwork is a NetworkState fixed by configuration.
type StaticNetwork struct {
	Metered bool
}

func (n StaticNetwork) IsMetered(context.Context) bool {
	return n.Metered
}

var _ Store = (*busstop.Store)(nil)
