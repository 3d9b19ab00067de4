package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"packsync/core/storage"
	"packsync/feature/reconcile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	snapshotPath   string
	snapshotObject string
	reconcileMode  string
	initialScrape  bool
)

// reconcileCmd runs one reconciliation cycle from a snapshot file.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile seat packs against a scrape snapshot",
	Long: `Reconcile generates candidate packs from a scrape snapshot, diffs them
against the stored active packs, persists the resulting plan, and drives
the POS sync engine over the outcome.

Examples:
  # Full cycle from a snapshot file
  packsync reconcile --snapshot perf-1234.json

  # First scrape of a performance (suppress delists)
  packsync reconcile --snapshot perf-1234.json --initial

  # Persist the diff without touching the POS
  packsync reconcile --snapshot perf-1234.json --mode generation-only

  # Only drain the POS sync queue
  packsync reconcile --mode sync-only

  # Replay an archived snapshot
  packsync reconcile --snapshot-object snapshots/perf-1234/20260829T120000Z.json`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Path to the snapshot JSON file")
	reconcileCmd.Flags().StringVar(&snapshotObject, "snapshot-object", "", "Archived snapshot object name to replay instead of a local file")
	reconcileCmd.Flags().StringVar(&reconcileMode, "mode", string(reconcile.ModeComplete), "Cycle mode: complete, generation-only or sync-only")
	reconcileCmd.Flags().BoolVar(&initialScrape, "initial", false, "Treat this as the performance's first scrape (no delists)")

	RootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	mode := reconcile.Mode(reconcileMode)

	if mode != reconcile.ModeSyncOnly && snapshotPath == "" && snapshotObject == "" {
		return fmt.Errorf("--snapshot or --snapshot-object is required unless --mode sync-only")
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	// The archive is best-effort for writes; a cycle runs fine without it.
	// Replaying an archived snapshot does need it, though.
	var archive *storage.Archive
	if client, err := storage.NewClient(rt.cfg.Storage); err != nil {
		rt.log.Warn("snapshot archive unavailable", zap.Error(err))
	} else {
		archive = storage.NewArchive(client, rt.cfg.Storage.Bucket)
	}

	var snap reconcile.Snapshot
	switch {
	case mode == reconcile.ModeSyncOnly:
	case snapshotObject != "":
		if archive == nil {
			return fmt.Errorf("cannot replay %s: snapshot archive unavailable", snapshotObject)
		}
		if err := archive.Load(ctx, snapshotObject, &snap); err != nil {
			return fmt.Errorf("failed to load archived snapshot: %w", err)
		}
	default:
		raw, err := os.ReadFile(snapshotPath)
		if err != nil {
			return fmt.Errorf("failed to read snapshot: %w", err)
		}
		if err := json.Unmarshal(raw, &snap); err != nil {
			return fmt.Errorf("failed to parse snapshot: %w", err)
		}
	}
	if mode != reconcile.ModeSyncOnly && snap.PerformanceID == "" {
		return fmt.Errorf("snapshot has no performance_id")
	}

	// A replayed snapshot is already archived; do not store it twice.
	var archiver reconcile.Archiver
	if archive != nil && snapshotObject == "" {
		archiver = archive
	}

	result, err := rt.service(archiver).Run(ctx, snap, reconcile.Options{
		Mode:          mode,
		InitialScrape: initialScrape,
	})
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	printCycleResult(rt.log, result)
	return nil
}

// printCycleResult prints a formatted cycle report using logger.
func printCycleResult(l *zap.Logger, result *reconcile.CycleResult) {
	l.Info("Reconciliation report",
		zap.String("operation_id", result.OperationID),
		zap.String("performance_id", result.PerformanceID),
		zap.Int("generated", result.Generated),
		zap.Int("new_packs", result.Diff.NewPacks),
		zap.Int("unchanged", result.Diff.Unchanged),
		zap.Int("repriced", result.Diff.Repriced),
		zap.Int("transformed", result.Diff.Transformed),
		zap.Int("vanished", result.Diff.Vanished),
	)

	if result.Plan != nil {
		l.Info("Persisted plan",
			zap.Int("created", result.Plan.Created),
			zap.Int("repriced", result.Plan.Repriced),
			zap.Int("delisted", result.Plan.Delisted),
			zap.Int("errors", len(result.Plan.Errors)),
		)
		for _, e := range result.Plan.Errors {
			l.Warn("Plan error", zap.String("error", e))
		}
	}

	if result.Sync != nil {
		l.Info("POS sync",
			zap.Int("pushed", result.Sync.Pushed),
			zap.Int("delisted", result.Sync.Delisted),
			zap.Int("failed", result.Sync.Failed),
			zap.Int("skipped", result.Sync.Skipped),
		)
	}

	if result.SnapshotObject != "" {
		l.Info("Snapshot archived", zap.String("object", result.SnapshotObject))
	}
}
