package busstop

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mybus-data/internal/common/db"
	"github.com/mybus-data/internal/common/logger"
)

var (
	// ErrNotAvailable means there is no readable reference database.
	ErrNotAvailable = errors.New("bus stop database not available")
	// ErrInvalidCandidate means a downloaded database failed verification.
	ErrInvalidCandidate = errors.New("candidate database is not usable")
	// ErrIllegalState means the file system refused to move a verified
	// database into place. Nothing sensible can be done automatically.
	ErrIllegalState = errors.New("bus stop database in illegal state")
	// ErrStopNotFound means no stop has the requested code.
	ErrStopNotFound = errors.New("bus stop not found")
)

type Config struct {
	// Path is where the live reference database lives.
	Path string
	// AssetPath is the database bundled with the installation, used on
	// first run and whenever Path is missing or corrupt.
	AssetPath string
	// SchemaName is the schema this build can read.
	SchemaName string
}

// Store owns the reference database file. Readers share the handle under a
// read lock; extraction and replacement take the write lock, so a reader
// never sees a half-swapped file.
type Store struct {
	config Config
	logger logger.Logger

	mu     sync.RWMutex
	db     *db.DB
	broken error
}

// Open makes sure a readable database exists at cfg.Path, extracting the
// bundled asset if it is missing or corrupt, and opens it.
func Open(ctx context.Context, cfg Config, log logger.Logger) (*Store, error) {
	s := &Store{
		config: cfg,
		logger: log,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDatabase(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// SchemaName returns the schema name this store reads.
func (s *Store) SchemaName() string {
	return s.config.SchemaName
}

// CurrentVersion reads the metadata row of the database in place.
func (s *Store) CurrentVersion(ctx context.Context) (VersionInfo, error) {
	var info VersionInfo
	err := s.withDB(func(conn *sql.DB) error {
		var err error
		info, err = s.readVersion(ctx, conn)
		return err
	})
	return info, err
}

// Replace swaps the database at candidatePath into place. The candidate must
// be complete; it is verified, given its indexes and views, then renamed over
// the current file. If any step before the rename fails the current database
// stays as it was. A failed rename returns ErrIllegalState.
func (s *Store) Replace(ctx context.Context, candidatePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	version, err := s.prepare(ctx, candidatePath)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.swapIn(candidatePath); err != nil {
		return err
	}

	s.logger.Info("Bus stop database replaced",
		"topology_id", version.TopologyID,
		"path", s.config.Path)
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// withDB runs fn with the current handle under the read lock.
func (s *Store) withDB(fn func(conn *sql.DB) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.broken != nil {
		return s.broken
	}
	if s.db == nil {
		return ErrNotAvailable
	}
	return fn(s.db.DB())
}

func (s *Store) readVersion(ctx context.Context, conn *sql.DB) (VersionInfo, error) {
	var (
		topoID   sql.NullString
		updateTS sql.NullInt64
	)
	if err := conn.QueryRowContext(ctx, versionQuery).Scan(&topoID, &updateTS); err != nil {
		return VersionInfo{}, fmt.Errorf("%w: reading database_info: %v", ErrNotAvailable, err)
	}
	if !topoID.Valid || topoID.String == "" {
		return VersionInfo{}, fmt.Errorf("%w: empty topology id", ErrNotAvailable)
	}

	info := VersionInfo{
		TopologyID: topoID.String,
		SchemaName: s.config.SchemaName,
	}
	if updateTS.Valid && updateTS.Int64 > 0 {
		info.UpdatedAt = time.UnixMilli(updateTS.Int64).UTC()
	}
	return info, nil
}

// ensureDatabase must be called with the write lock held.
func (s *Store) ensureDatabase(ctx context.Context) error {
	if _, err := os.Stat(s.config.Path); err == nil {
		conn, err := s.openVerified(ctx, s.config.Path, true)
		if err == nil {
			s.db = conn
			return nil
		}
		s.logger.Warn("Bus stop database unreadable, restoring bundled copy",
			"path", s.config.Path,
			"error", err)
		if err := removeDatabaseFiles(s.config.Path); err != nil {
			return fmt.Errorf("removing corrupt database: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking database file: %w", err)
	}

	if err := s.extractAsset(ctx); err != nil {
		return err
	}

	conn, err := s.openVerified(ctx, s.config.Path, true)
	if err != nil {
		return fmt.Errorf("opening extracted database: %w", err)
	}
	s.db = conn
	return nil
}

// openVerified opens path and checks that its metadata row can be read.
func (s *Store) openVerified(ctx context.Context, path string, readOnly bool) (*db.DB, error) {
	conn, err := db.Open(path, db.Options{ReadOnly: readOnly}, s.logger)
	if err != nil {
		return nil, err
	}
	if _, err := s.readVersion(ctx, conn.DB()); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// extractAsset copies the bundled database next to Path and renames it in.
func (s *Store) extractAsset(ctx context.Context) error {
	s.logger.Info("Extracting bundled bus stop database",
		"asset", s.config.AssetPath,
		"dest", s.config.Path)

	src, err := os.Open(s.config.AssetPath)
	if err != nil {
		return fmt.Errorf("%w: opening bundled asset: %v", ErrNotAvailable, err)
	}
	defer src.Close()

	tempPath, err := copyToTemp(filepath.Dir(s.config.Path), src)
	if err != nil {
		return fmt.Errorf("copying bundled asset: %w", err)
	}
	defer os.Remove(tempPath)

	if _, err := s.prepare(ctx, tempPath); err != nil {
		return fmt.Errorf("preparing bundled asset: %w", err)
	}

	if err := os.Rename(tempPath, s.config.Path); err != nil {
		return fmt.Errorf("%w: moving bundled asset into place: %v", ErrIllegalState, err)
	}
	return nil
}

// prepare verifies a candidate file and builds its views and indexes. The
// candidate is closed again before returning.
func (s *Store) prepare(ctx context.Context, path string) (VersionInfo, error) {
	conn, err := db.Open(path, db.Options{}, s.logger)
	if err != nil {
		return VersionInfo{}, fmt.Errorf("%w: %v", ErrInvalidCandidate, err)
	}
	defer conn.Close()

	version, err := s.readVersion(ctx, conn.DB())
	if err != nil {
		return VersionInfo{}, fmt.Errorf("%w: %v", ErrInvalidCandidate, err)
	}

	for _, stmt := range viewStatements {
		if _, err := conn.DB().ExecContext(ctx, stmt); err != nil {
			return VersionInfo{}, fmt.Errorf("%w: creating views: %v", ErrInvalidCandidate, err)
		}
	}

	for _, stmt := range indexStatements {
		if _, err := conn.DB().ExecContext(ctx, stmt); err != nil {
			if ctx.Err() != nil {
				return VersionInfo{}, ctx.Err()
			}
			s.logger.Warn("Could not create index, reads will be slower",
				"path", path,
				"error", err)
		}
	}

	return version, nil
}

// swapIn must be called with the write lock held.
func (s *Store) swapIn(candidatePath string) error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("Closing old bus stop database", "error", err)
		}
		s.db = nil
	}

	if err := removeSideFiles(s.config.Path); err != nil {
		s.logger.Warn("Removing old database journal files", "error", err)
	}

	if err := os.Rename(candidatePath, s.config.Path); err != nil {
		s.logger.Error("Could not move new bus stop database into place",
			"candidate", candidatePath,
			"path", s.config.Path,
			"error", err)
		if conn, reopenErr := s.openVerified(context.Background(), s.config.Path, true); reopenErr == nil {
			s.db = conn
		} else {
			s.broken = fmt.Errorf("%w: %v", ErrIllegalState, err)
		}
		return fmt.Errorf("%w: renaming %s: %v", ErrIllegalState, candidatePath, err)
	}

	conn, err := s.openVerified(context.Background(), s.config.Path, true)
	if err != nil {
		s.broken = fmt.Errorf("%w: reopening replaced database: %v", ErrIllegalState, err)
		return s.broken
	}
	s.db = conn
	s.broken = nil
	return nil
}

func copyToTemp(dir string, src io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating database directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "busstops_*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := tmp.Name()

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return "", err
	}
	return tempPath, nil
}

var sideFileSuffixes = []string{"-journal", "-wal", "-shm"}

func removeSideFiles(path string) error {
	var errs []error
	for _, suffix := range sideFileSuffixes {
		if err := os.Remove(path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func removeDatabaseFiles(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return removeSideFiles(path)
}
