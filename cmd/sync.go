package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	performanceID      string
	performanceEnable  bool
	performanceDisable bool
)

// syncCmd is the parent command for POS sync operations.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Operate the POS sync engine",
}

// syncPerformanceCmd toggles POS visibility for a whole performance.
var syncPerformanceCmd = &cobra.Command{
	Use:   "performance",
	Short: "Enable or disable POS listings for a performance",
	Long: `Enable re-queues every pack of the performance for a fresh push.
Disable delists them all with reason performance_disabled; the next sync
cycle removes the external listings.

Examples:
  packsync sync performance --id perf-1234 --enable
  packsync sync performance --id perf-1234 --disable --yes`,
	RunE: runSyncPerformance,
}

// syncCleanupCmd fails POS operations abandoned by crashed workers.
var syncCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Fail stale in-flight POS operations",
	RunE:  runSyncCleanup,
}

// syncRetriesCmd lists failed packs that still have retry budget.
var syncRetriesCmd = &cobra.Command{
	Use:   "retries",
	Short: "List failed packs awaiting retry",
	RunE:  runSyncRetries,
}

func init() {
	syncPerformanceCmd.Flags().StringVar(&performanceID, "id", "", "Performance identifier")
	syncPerformanceCmd.Flags().BoolVar(&performanceEnable, "enable", false, "Re-queue the performance's packs for POS push")
	syncPerformanceCmd.Flags().BoolVar(&performanceDisable, "disable", false, "Delist the performance's packs from the POS")
	syncPerformanceCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm destructive actions (non-interactive)")

	syncCmd.AddCommand(syncPerformanceCmd)
	syncCmd.AddCommand(syncCleanupCmd)
	syncCmd.AddCommand(syncRetriesCmd)
	RootCmd.AddCommand(syncCmd)
}

func runSyncPerformance(cmd *cobra.Command, args []string) error {
	if performanceID == "" {
		return fmt.Errorf("--id is required")
	}
	if performanceEnable == performanceDisable {
		return fmt.Errorf("exactly one of --enable or --disable is required")
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	if performanceDisable && !confirmDestructiveAction() {
		rt.log.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}

	n, err := rt.engine.SetPerformanceEnabled(context.Background(), performanceID, performanceEnable)
	if err != nil {
		return err
	}

	rt.log.Info("Performance POS visibility updated",
		zap.String("performance_id", performanceID),
		zap.Bool("enabled", performanceEnable),
		zap.Int64("packs", n))

	if performanceDisable {
		rt.log.Info("Run a sync cycle to remove the external listings",
			zap.String("hint", "packsync reconcile --mode sync-only"))
	}
	return nil
}

func runSyncCleanup(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	n, err := rt.engine.CleanupStaleOperations(context.Background())
	if err != nil {
		return err
	}

	rt.log.Info("Stale operation cleanup finished", zap.Int64("failed", n))
	return nil
}

func runSyncRetries(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	packs, err := rt.repo.NeedsRetry(context.Background(), rt.cfg.Sync.MaxSyncAttempts)
	if err != nil {
		return err
	}

	if len(packs) == 0 {
		rt.log.Info("No packs awaiting retry")
		return nil
	}

	for _, p := range packs {
		rt.log.Info("Awaiting retry",
			zap.String("pack_id", p.PackID),
			zap.String("performance_id", p.PerformanceID),
			zap.String("pack_state", string(p.PackState)),
			zap.Int("attempts", p.SyncAttempts),
			zap.String("last_error", p.SyncError))
	}
	return nil
}
