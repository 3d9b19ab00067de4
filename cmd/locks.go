package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// locksCmd is the parent command for lease maintenance.
var locksCmd = &cobra.Command{
	Use:   "locks",
	Short: "Inspect and sweep pack leases",
}

// locksSweepCmd clears leases left behind by dead workers.
var locksSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Clear stale pack leases",
	RunE:  runLocksSweep,
}

// locksHealthCmd reports lease counts.
var locksHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show active and stale lease counts",
	RunE:  runLocksHealth,
}

func init() {
	locksCmd.AddCommand(locksSweepCmd)
	locksCmd.AddCommand(locksHealthCmd)
	RootCmd.AddCommand(locksCmd)
}

func runLocksSweep(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	n, err := rt.locks.SweepStale(context.Background())
	if err != nil {
		return err
	}

	rt.log.Info("Lease sweep finished", zap.Int64("cleared", n))
	return nil
}

func runLocksHealth(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	health, err := rt.locks.Health(context.Background())
	if err != nil {
		return err
	}

	rt.log.Info("Lease health",
		zap.Int64("active", health.ActiveLeases),
		zap.Int64("stale", health.StaleLeases))
	return nil
}
