package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	brightpath "github.com/brightpath-app/brightpath"
	"github.com/brightpath-app/brightpath/catalog"
	"github.com/brightpath-app/brightpath/database"
	"github.com/brightpath-app/brightpath/storage"
)

// stubFetcher writes a bundle on demand.
type stubFetcher struct {
	files *storage.Store
}

func (f *stubFetcher) Fetch(ctx context.Context, gameID, sourceURL string) (*brightpath.GameFetchResponse, error) {
	path := f.files.BundlePath(gameID)
	if err := os.WriteFile(path, []byte("<html></html>"), 0o644); err != nil {
		return nil, err
	}
	return &brightpath.GameFetchResponse{
		GameID:    gameID,
		LocalPath: path,
		SizeBytes: 13,
		Fetched:   true,
		FetchedAt: time.Now(),
	}, nil
}

func newTestDeps(t *testing.T) *Dependencies {
	t.Helper()

	dir := t.TempDir()
	db, err := database.New(database.Config{Path: filepath.Join(dir, "test.db")})
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	files, err := storage.New(storage.Config{Dir: filepath.Join(dir, "games")})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}

	ctrl, err := catalog.New(catalog.Config{
		KV:      db,
		Files:   files,
		Fetcher: &stubFetcher{files: files},
	})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	if err := ctrl.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	return &Dependencies{DB: db, Files: files, Catalog: ctrl}
}

func TestReconcileClearsDanglingRefs(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()
	logger := logrus.New()

	if err := deps.Catalog.Download(ctx, "1"); err != nil {
		t.Fatalf("Download: %v", err)
	}
	// The bundle file vanishes behind the catalog's back.
	if err := os.Remove(deps.Files.BundlePath("1")); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	result, err := reconcileCatalog(ctx, deps, false, logger)
	if err != nil {
		t.Fatalf("reconcileCatalog: %v", err)
	}
	if result.DanglingCleared != 1 {
		t.Fatalf("dangling cleared = %d, want 1", result.DanglingCleared)
	}

	g, _ := deps.Catalog.Get("1")
	if g.State() != catalog.StateAvailable {
		t.Fatalf("state = %s, want %s", g.State(), catalog.StateAvailable)
	}
}

func TestReconcileRemovesOrphanedBundles(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()
	logger := logrus.New()

	orphan := filepath.Join(deps.Files.Dir(), "stray.html")
	if err := os.WriteFile(orphan, []byte("<html></html>"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	result, err := reconcileCatalog(ctx, deps, false, logger)
	if err != nil {
		t.Fatalf("reconcileCatalog: %v", err)
	}
	if result.OrphansRemoved != 1 {
		t.Fatalf("orphans removed = %d, want 1", result.OrphansRemoved)
	}
	if deps.Files.Exists(orphan) {
		t.Fatal("orphaned bundle still on disk")
	}
}

func TestReconcileKeepsReferencedBundles(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()
	logger := logrus.New()

	if err := deps.Catalog.Download(ctx, "1"); err != nil {
		t.Fatalf("Download: %v", err)
	}
	path := deps.Files.BundlePath("1")

	result, err := reconcileCatalog(ctx, deps, false, logger)
	if err != nil {
		t.Fatalf("reconcileCatalog: %v", err)
	}
	if result.OrphansRemoved != 0 || result.DanglingCleared != 0 {
		t.Fatalf("unexpected changes: %+v", result)
	}
	if !deps.Files.Exists(path) {
		t.Fatal("referenced bundle was removed")
	}
}

func TestReconcileDryRunChangesNothing(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()
	logger := logrus.New()

	orphan := filepath.Join(deps.Files.Dir(), "stray.html")
	if err := os.WriteFile(orphan, []byte("<html></html>"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	result, err := reconcileCatalog(ctx, deps, true, logger)
	if err != nil {
		t.Fatalf("reconcileCatalog: %v", err)
	}
	if result.OrphansRemoved != 1 {
		t.Fatalf("dry run should report the orphan, got %+v", result)
	}
	if !deps.Files.Exists(orphan) {
		t.Fatal("dry run removed a file")
	}
}
