package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brightpath-app/brightpath/perf"
)

// runReconcile reconciles the persisted catalog against the bundle
// directory. Two kinds of drift are handled:
//
//   - dangling refs: descriptors whose LocalRef points at a file that no
//     longer exists; the ref is cleared so the game shows as Available
//   - orphaned bundles: files on disk no descriptor references; they are
//     removed to reclaim space
func runReconcile(cfg Config) error {
	if err := setupLogger(cfg.LogLevel); err != nil {
		return err
	}

	if !cfg.DryRun && !cfg.Force {
		return fmt.Errorf("must specify either --dry-run or --force")
	}
	if cfg.DryRun && cfg.Force {
		return fmt.Errorf("cannot specify both --dry-run and --force")
	}

	logger := log.WithField("command", "reconcile")
	if cfg.DryRun {
		logger.Info("running in DRY RUN mode, no changes will be made")
	}

	ctx := context.Background()
	deps, err := initializeDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	timer := perf.Start("reconcile", logger)
	result, err := reconcileCatalog(ctx, deps, cfg.DryRun, logger)
	timer.StopWithThreshold(5 * time.Second)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"bundles":          result.TotalBundles,
		"dangling_cleared": result.DanglingCleared,
		"orphans_removed":  result.OrphansRemoved,
		"failed":           result.FailedCount,
	}).Info("reconcile summary")

	if cfg.DryRun {
		logger.Info("dry run complete, run with --force to apply changes")
	}
	if result.FailedCount > 0 {
		return fmt.Errorf("reconcile completed with %d failures", result.FailedCount)
	}
	return nil
}

// reconcileResult summarizes a reconcile run.
type reconcileResult struct {
	TotalBundles    int
	DanglingCleared int
	OrphansRemoved  int
	FailedCount     int
}

func reconcileCatalog(ctx context.Context, deps *Dependencies, dryRun bool, logger logrus.FieldLogger) (*reconcileResult, error) {
	result := &reconcileResult{}

	// Pass 1: clear catalog refs whose files are gone.
	referenced := make(map[string]bool)
	for _, g := range deps.Catalog.Games() {
		if g.LocalRef == "" {
			continue
		}
		if deps.Files.Exists(g.LocalRef) {
			referenced[g.LocalRef] = true
			continue
		}

		logger.WithFields(logrus.Fields{
			"game_id":   g.ID,
			"local_ref": g.LocalRef,
		}).Warn("catalog references a missing bundle")

		if dryRun {
			result.DanglingCleared++
			continue
		}
		// Delete with a missing file is idempotent; it clears the ref and
		// persists the catalog.
		if err := deps.Catalog.Delete(ctx, g.ID, true); err != nil {
			logger.WithError(err).WithField("game_id", g.ID).Error("failed to clear dangling ref")
			result.FailedCount++
			continue
		}
		result.DanglingCleared++
	}

	// Pass 2: remove bundles no descriptor points at.
	names, err := deps.Files.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list bundles: %w", err)
	}
	result.TotalBundles = len(names)

	for _, name := range names {
		path := filepath.Join(deps.Files.Dir(), name)
		if referenced[path] {
			continue
		}
		// Skip temp files from in-flight downloads.
		if strings.HasPrefix(name, ".bundle-") {
			continue
		}

		logger.WithField("path", path).Warn("found orphaned bundle")
		if dryRun {
			result.OrphansRemoved++
			continue
		}
		if err := deps.Files.Delete(path); err != nil {
			logger.WithError(err).WithField("path", path).Error("failed to remove orphaned bundle")
			result.FailedCount++
			continue
		}
		result.OrphansRemoved++
	}

	return result, nil
}
