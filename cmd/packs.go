package cmd

import (
	"context"
	"fmt"
	"time"

	"packsync/feature/packs/models"
	"packsync/feature/packs/repository"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	packID        string
	delistBy      string
	delistComment string
	sinceHours    int
)

// packsCmd is the parent command for manual pack operations.
var packsCmd = &cobra.Command{
	Use:   "packs",
	Short: "Inspect and manually operate on seat packs",
}

// packsShowCmd prints one pack and its lineage.
var packsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a pack and the packs derived from it",
	RunE:  runPacksShow,
}

// packsDelistCmd takes a pack off sale by operator decision.
var packsDelistCmd = &cobra.Command{
	Use:   "delist",
	Short: "Manually delist a pack",
	Long: `Manually delists a pack. The pack leaves the active set, any POS
listing is queued for removal, and the operator decision is recorded so
later scrape cycles never re-list it automatically.

Example:
  packsync packs delist --id tm_pk_a1b2c3d4e5f60708 --by jdoe --comment "venue request"`,
	RunE: runPacksDelist,
}

// packsReactivateCmd returns a manually delisted pack to the active set.
var packsReactivateCmd = &cobra.Command{
	Use:   "reactivate",
	Short: "Reactivate a delisted pack",
	RunE:  runPacksReactivate,
}

// packsDelistsCmd lists recent operator delists.
var packsDelistsCmd = &cobra.Command{
	Use:   "delists",
	Short: "List recent manual delists",
	RunE:  runPacksDelists,
}

func init() {
	packsShowCmd.Flags().StringVar(&packID, "id", "", "Pack identifier")
	packsDelistCmd.Flags().StringVar(&packID, "id", "", "Pack identifier")
	packsDelistCmd.Flags().StringVar(&delistBy, "by", "", "Operator name")
	packsDelistCmd.Flags().StringVar(&delistComment, "comment", "", "Why the pack is being delisted")
	packsReactivateCmd.Flags().StringVar(&packID, "id", "", "Pack identifier")
	packsDelistsCmd.Flags().IntVar(&sinceHours, "since-hours", 24, "Look-back window in hours")

	packsCmd.AddCommand(packsShowCmd)
	packsCmd.AddCommand(packsDelistCmd)
	packsCmd.AddCommand(packsReactivateCmd)
	packsCmd.AddCommand(packsDelistsCmd)
	RootCmd.AddCommand(packsCmd)
}

func runPacksShow(cmd *cobra.Command, args []string) error {
	if packID == "" {
		return fmt.Errorf("--id is required")
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx := context.Background()
	pack, err := rt.repo.Get(ctx, packID)
	if err != nil {
		return err
	}
	if pack == nil {
		return fmt.Errorf("pack %s not found", packID)
	}

	rt.log.Info("Pack",
		zap.String("pack_id", pack.PackID),
		zap.String("performance_id", pack.PerformanceID),
		zap.String("row", pack.Row),
		zap.Strings("seats", pack.SeatKeys),
		zap.String("pack_status", string(pack.PackStatus)),
		zap.String("pos_status", string(pack.POSStatus)),
		zap.String("pack_state", string(pack.PackState)),
		zap.String("delist_reason", string(pack.DelistReason)),
		zap.Strings("source_pack_ids", pack.SourcePackIDs),
		zap.String("pos_listing_id", pack.POSListingID),
		zap.Bool("synced_to_pos", pack.SyncedToPOS),
		zap.Int("sync_attempts", pack.SyncAttempts),
		zap.Int("version", pack.Version))

	children, err := rt.repo.ChildPacks(ctx, pack.PackID)
	if err != nil {
		return err
	}
	for _, child := range children {
		rt.log.Info("Derived pack",
			zap.String("pack_id", child.PackID),
			zap.String("pack_state", string(child.PackState)),
			zap.Strings("seats", child.SeatKeys))
	}
	return nil
}

func runPacksDelist(cmd *cobra.Command, args []string) error {
	if packID == "" {
		return fmt.Errorf("--id is required")
	}
	if delistBy == "" {
		return fmt.Errorf("--by is required: record who made the call")
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	holder := "cli-" + uuid.NewString()
	pack, err := rt.locks.SafeUpdate(context.Background(), packID, holder, func(p *models.SeatPack) error {
		if err := repository.ApplyDelistTransition(p, models.DelistReasonManual); err != nil {
			return err
		}
		p.ManuallyDelisted = true
		p.DelistedBy = delistBy
		p.DelistComment = delistComment
		return nil
	})
	if err != nil {
		return err
	}

	rt.log.Info("Pack manually delisted",
		zap.String("pack_id", pack.PackID),
		zap.String("by", delistBy),
		zap.Bool("external_delete_pending", !pack.SyncedToPOS))

	if !pack.SyncedToPOS {
		rt.log.Info("Run a sync cycle to remove the external listing",
			zap.String("hint", "packsync reconcile --mode sync-only"))
	}
	return nil
}

func runPacksReactivate(cmd *cobra.Command, args []string) error {
	if packID == "" {
		return fmt.Errorf("--id is required")
	}

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	holder := "cli-" + uuid.NewString()
	pack, err := rt.locks.SafeUpdate(context.Background(), packID, holder, func(p *models.SeatPack) error {
		if !models.CanTransition(p.PackState, models.PackStateCreate) {
			return fmt.Errorf("pack %s cannot be reactivated from state %s", p.PackID, p.PackState)
		}
		p.PackState = models.PackStateCreate
		p.PackStatus = models.PackStatusActive
		p.DelistReason = ""
		p.POSStatus = models.POSStatusPending
		p.SyncedToPOS = false
		p.SyncAttempts = 0
		p.SyncError = ""
		p.ManuallyDelisted = false
		p.DelistedBy = ""
		p.DelistedAt = nil
		p.DelistComment = ""
		return nil
	})
	if err != nil {
		return err
	}

	rt.log.Info("Pack reactivated, queued for POS push",
		zap.String("pack_id", pack.PackID))
	return nil
}

func runPacksDelists(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	since := time.Now().Add(-time.Duration(sinceHours) * time.Hour)
	packs, err := rt.repo.RecentManualDelists(context.Background(), since)
	if err != nil {
		return err
	}

	if len(packs) == 0 {
		rt.log.Info("No manual delists in window", zap.Int("since_hours", sinceHours))
		return nil
	}

	for _, p := range packs {
		rt.log.Info("Manual delist",
			zap.String("pack_id", p.PackID),
			zap.String("performance_id", p.PerformanceID),
			zap.String("by", p.DelistedBy),
			zap.String("comment", p.DelistComment),
			zap.Timep("at", p.DelistedAt))
	}
	return nil
}
