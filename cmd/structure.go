package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"packsync/feature/packs/generator"
	"packsync/feature/packs/structure"
	"packsync/feature/reconcile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	structureVenueID   string
	structureSnapshots string
)

// structureCmd handles venue numbering-scheme changes.
var structureCmd = &cobra.Command{
	Use:   "structure",
	Short: "Detect and apply venue seat-numbering scheme changes",
	Long: `Compares the numbering scheme visible in fresh seat data against the
recorded one for a venue. When the scheme flipped, every active pack at
the venue is delisted with reason structure_change and packs are rebuilt
per performance under the new scheme.

The snapshots file is a JSON array of scrape snapshots, one per
performance at the venue.

Example:
  packsync structure --venue venue-1234 --snapshots venue-1234.json --yes`,
	RunE: runStructure,
}

func init() {
	structureCmd.Flags().StringVar(&structureVenueID, "venue", "", "Venue identifier")
	structureCmd.Flags().StringVar(&structureSnapshots, "snapshots", "", "Path to the JSON array of performance snapshots")
	structureCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm destructive actions (non-interactive)")

	RootCmd.AddCommand(structureCmd)
}

func runStructure(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if structureVenueID == "" {
		return fmt.Errorf("--venue is required")
	}
	if structureSnapshots == "" {
		return fmt.Errorf("--snapshots is required")
	}

	raw, err := os.ReadFile(structureSnapshots)
	if err != nil {
		return fmt.Errorf("failed to read snapshots: %w", err)
	}
	var snaps []reconcile.Snapshot
	if err := json.Unmarshal(raw, &snaps); err != nil {
		return fmt.Errorf("failed to parse snapshots: %w", err)
	}

	seatsByPerformance := make(map[string][]generator.Seat, len(snaps))
	for _, snap := range snaps {
		if snap.PerformanceID == "" {
			return fmt.Errorf("snapshot has no performance_id")
		}
		seatsByPerformance[snap.PerformanceID] = snap.Seats
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	handler := structure.NewHandler(rt.repo, rt.gen, rt.log)

	// Detect first so the confirmation only fires when packs will move.
	var all []generator.Seat
	for _, seats := range seatsByPerformance {
		all = append(all, seats...)
	}
	change, err := handler.Detect(ctx, structureVenueID, all)
	if err != nil {
		return err
	}
	if change == nil {
		rt.log.Info("No scheme change detected", zap.String("venue_id", structureVenueID))
		return nil
	}

	rt.log.Info("Scheme change detected",
		zap.String("venue_id", change.VenueID),
		zap.String("old", string(change.Old)),
		zap.String("new", string(change.New)))

	if !confirmDestructiveAction() {
		rt.log.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}

	result, err := handler.Apply(ctx, change, seatsByPerformance)
	if err != nil {
		return err
	}

	rt.log.Info("Structure change applied",
		zap.Int64("delisted", result.Delisted),
		zap.Int("created", result.Created),
		zap.Strings("skipped_performances", result.SkippedPerformances))
	return nil
}
