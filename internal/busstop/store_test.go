package busstop

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"github.com/mybus-data/internal/busstop/busstoptest"
	"github.com/mybus-data/internal/common/logger"
)

type testEnv struct {
	dir   string
	cfg   Config
	store *Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	asset := busstoptest.BuildFile(t, filepath.Join(dir, "assets"), "busstops10.db", busstoptest.DefaultFixture("asset-topo"))

	cfg := Config{
		Path:       filepath.Join(dir, "data", "busstops10.db"),
		AssetPath:  asset,
		SchemaName: "MBE_10",
	}
	store, err := Open(context.Background(), cfg, logger.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return &testEnv{dir: dir, cfg: cfg, store: store}
}

func TestOpenExtractsBundledAsset(t *testing.T) {
	env := newTestEnv(t)

	if _, err := os.Stat(env.cfg.Path); err != nil {
		t.Fatalf("Expected database file to be extracted: %v", err)
	}

	info, err := env.store.CurrentVersion(context.Background())
	if err != nil {
		t.Fatalf("CurrentVersion: %v", err)
	}
	if info.TopologyID != "asset-topo" {
		t.Errorf("Expected asset-topo, got %s", info.TopologyID)
	}
	if info.SchemaName != "MBE_10" {
		t.Errorf("Expected schema MBE_10, got %s", info.SchemaName)
	}
	if info.UpdatedAt.IsZero() {
		t.Error("Expected update time to be read")
	}

	// Views must exist on the extracted copy.
	if _, err := env.store.BusStop(context.Background(), "36232896"); err != nil {
		t.Errorf("Expected extracted database to be queryable: %v", err)
	}
}

func TestOpenRestoresCorruptDatabase(t *testing.T) {
	dir := t.TempDir()
	asset := busstoptest.BuildFile(t, dir, "asset.db", busstoptest.DefaultFixture("asset-topo"))
	path := filepath.Join(dir, "busstops.db")
	if err := os.WriteFile(path, []byte("this is not a sqlite database, not even close"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := Open(context.Background(), Config{Path: path, AssetPath: asset, SchemaName: "MBE_10"}, logger.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	info, err := store.CurrentVersion(context.Background())
	if err != nil {
		t.Fatalf("CurrentVersion: %v", err)
	}
	if info.TopologyID != "asset-topo" {
		t.Errorf("Expected restored asset topology, got %s", info.TopologyID)
	}
}

func TestOpenKeepsExistingDatabase(t *testing.T) {
	dir := t.TempDir()
	asset := busstoptest.BuildFile(t, dir, "asset.db", busstoptest.DefaultFixture("asset-topo"))
	path := busstoptest.BuildFile(t, dir, "busstops.db", busstoptest.DefaultFixture("newer-topo"))

	store, err := Open(context.Background(), Config{Path: path, AssetPath: asset, SchemaName: "MBE_10"}, logger.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	info, err := store.CurrentVersion(context.Background())
	if err != nil {
		t.Fatalf("CurrentVersion: %v", err)
	}
	if info.TopologyID != "newer-topo" {
		t.Errorf("Expected existing database to be kept, got %s", info.TopologyID)
	}
}

func TestOpenWithoutAsset(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(context.Background(), Config{
		Path:      filepath.Join(dir, "busstops.db"),
		AssetPath: filepath.Join(dir, "missing.db"),
	}, logger.Nop())
	if !errors.Is(err, ErrNotAvailable) {
		t.Errorf("Expected ErrNotAvailable, got %v", err)
	}
}

func TestReplace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	fixture := busstoptest.DefaultFixture("new-topo")
	fixture.Stops = append(slices.Clone(fixture.Stops), busstoptest.Stop{
		Code: "36290001", Name: "Newhaven", Latitude: 55.9800, Longitude: -3.1960, Services: []string{"X5"},
	})
	candidate := busstoptest.BuildFile(t, filepath.Join(env.dir, "data"), "download.tmp", fixture)

	if err := env.store.Replace(ctx, candidate); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	info, err := env.store.CurrentVersion(ctx)
	if err != nil {
		t.Fatalf("CurrentVersion: %v", err)
	}
	if info.TopologyID != "new-topo" {
		t.Errorf("Expected new-topo, got %s", info.TopologyID)
	}

	if _, err := os.Stat(candidate); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected candidate to be moved, stat err = %v", err)
	}

	if _, err := env.store.BusStop(ctx, "36290001"); err != nil {
		t.Errorf("Expected new stop to be readable: %v", err)
	}
}

func TestReplaceRejectsInvalidCandidate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	candidate := filepath.Join(env.dir, "data", "garbage.tmp")
	if err := os.WriteFile(candidate, []byte("half a download"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := env.store.Replace(ctx, candidate)
	if !errors.Is(err, ErrInvalidCandidate) {
		t.Fatalf("Expected ErrInvalidCandidate, got %v", err)
	}

	info, err := env.store.CurrentVersion(ctx)
	if err != nil {
		t.Fatalf("Expected old database to remain usable: %v", err)
	}
	if info.TopologyID != "asset-topo" {
		t.Errorf("Expected asset-topo, got %s", info.TopologyID)
	}
}

func TestReplaceRejectsCandidateWithoutMetadata(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	fixture := busstoptest.DefaultFixture("")
	candidate := busstoptest.BuildFile(t, filepath.Join(env.dir, "data"), "empty-topo.tmp", fixture)

	if err := env.store.Replace(ctx, candidate); !errors.Is(err, ErrInvalidCandidate) {
		t.Fatalf("Expected ErrInvalidCandidate, got %v", err)
	}
	if _, err := env.store.BusStop(ctx, "36232896"); err != nil {
		t.Errorf("Expected old database to remain queryable: %v", err)
	}
}

func TestReplaceCancelled(t *testing.T) {
	env := newTestEnv(t)

	candidate := busstoptest.BuildFile(t, filepath.Join(env.dir, "data"), "download.tmp", busstoptest.DefaultFixture("new-topo"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := env.store.Replace(ctx, candidate); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}

	info, err := env.store.CurrentVersion(context.Background())
	if err != nil {
		t.Fatalf("CurrentVersion: %v", err)
	}
	if info.TopologyID != "asset-topo" {
		t.Errorf("Expected untouched database, got %s", info.TopologyID)
	}
}

func TestReadersDuringReplace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	candidate := busstoptest.BuildFile(t, filepath.Join(env.dir, "data"), "download.tmp", busstoptest.DefaultFixture("new-topo"))

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				info, err := env.store.CurrentVersion(ctx)
				if err != nil {
					errs <- err
					return
				}
				if info.TopologyID != "asset-topo" && info.TopologyID != "new-topo" {
					errs <- errors.New("unexpected topology " + info.TopologyID)
					return
				}
			}
		}()
	}

	if err := env.store.Replace(ctx, candidate); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Reader failed during replace: %v", err)
	}
}

func TestClosedStoreIsNotAvailable(t *testing.T) {
	env := newTestEnv(t)
	env.store.Close()

	if _, err := env.store.CurrentVersion(context.Background()); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("Expected ErrNotAvailable after close, got %v", err)
	}
}

func TestReplaceRenameFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	candidate := busstoptest.BuildFile(t, filepath.Join(env.dir, "downloads"), "download.tmp", busstoptest.DefaultFixture("new-topo"))

	// A non-empty directory where the database file should be cannot be
	// renamed over.
	if err := os.Remove(env.cfg.Path); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(env.cfg.Path, "occupied"), 0o755); err != nil {
		t.Fatal(err)
	}

	err := env.store.Replace(ctx, candidate)
	if !errors.Is(err, ErrIllegalState) {
		t.Fatalf("Expected ErrIllegalState, got %v", err)
	}

	if _, err := os.Stat(candidate); err != nil {
		t.Errorf("Expected candidate to be left in place: %v", err)
	}
	if _, err := env.store.CurrentVersion(ctx); !errors.Is(err, ErrIllegalState) {
		t.Errorf("Expected readers to get ErrIllegalState, got %v", err)
	}
	if _, err := env.store.BusStop(ctx, "36232896"); !errors.Is(err, ErrIllegalState) {
		t.Errorf("Expected stop lookups to get ErrIllegalState, got %v", err)
	}

	// Reopening after the file system is repaired restores the bundled copy.
	env.store.Close()
	if err := os.RemoveAll(env.cfg.Path); err != nil {
		t.Fatal(err)
	}
	reopened, err := Open(ctx, env.cfg, logger.Nop())
	if err != nil {
		t.Fatalf("Open after repair: %v", err)
	}
	defer reopened.Close()

	info, err := reopened.CurrentVersion(ctx)
	if err != nil {
		t.Fatalf("CurrentVersion after repair: %v", err)
	}
	if info.TopologyID != "asset-topo" {
		t.Errorf("Expected asset-topo after repair, got %s", info.TopologyID)
	}
}
