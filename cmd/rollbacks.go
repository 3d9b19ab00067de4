package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	rollbackID    uint
	rollbackNotes string
)

// rollbacksCmd is the parent command for failed-rollback handling.
var rollbacksCmd = &cobra.Command{
	Use:   "rollbacks",
	Short: "Inspect and resolve failed rollback entries",
	Long: `A compensating action that failed during a POS operation is recorded
durably and never retried automatically. These commands list the pending
entries and record the manual resolution.`,
}

// rollbacksListCmd lists unresolved entries.
var rollbacksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List unresolved rollback entries",
	RunE:  runRollbacksList,
}

// rollbacksResolveCmd marks one entry as manually fixed.
var rollbacksResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Mark a rollback entry as manually resolved",
	RunE:  runRollbacksResolve,
}

func init() {
	rollbacksResolveCmd.Flags().UintVar(&rollbackID, "id", 0, "Rollback entry id")
	rollbacksResolveCmd.Flags().StringVar(&rollbackNotes, "notes", "", "What was done to fix it")

	rollbacksCmd.AddCommand(rollbacksListCmd)
	rollbacksCmd.AddCommand(rollbacksResolveCmd)
	RootCmd.AddCommand(rollbacksCmd)
}

func runRollbacksList(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	entries, err := rt.repo.PendingRollbacks(context.Background())
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		rt.log.Info("No unresolved rollbacks")
		return nil
	}

	for _, e := range entries {
		rt.log.Info("Unresolved rollback",
			zap.Uint("id", e.ID),
			zap.String("operation_id", e.OperationID),
			zap.String("pack_id", e.PackID),
			zap.String("step", e.Step),
			zap.String("detail", e.Detail),
			zap.Time("created_at", e.CreatedAt))
	}
	return nil
}

func runRollbacksResolve(cmd *cobra.Command, args []string) error {
	if rollbackID == 0 {
		return fmt.Errorf("--id is required")
	}
	if rollbackNotes == "" {
		return fmt.Errorf("--notes is required: record what was done")
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.repo.ResolveRollback(context.Background(), rollbackID, rollbackNotes); err != nil {
		return err
	}

	rt.log.Info("Rollback resolved", zap.Uint("id", rollbackID))
	return nil
}
