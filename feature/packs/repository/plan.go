package repository

import (
	"context"
	"fmt"
	"time"

	"packsync/feature/packs/differ"
	"packsync/feature/packs/models"

	"gorm.io/gorm"
)

// ExecuteOptions controls how a comparison is applied to the store.
type ExecuteOptions struct {
	// InitialScrape skips delists: on the very first cycle for a
	// performance the old set is empty noise, not sold inventory.
	InitialScrape bool
}

// ExecuteResult summarizes what an Execute call changed.
type ExecuteResult struct {
	// Created counts inserted packs, including inactive rows revived in
	// place when their seat set reappeared.
	Created int `json:"created"`

	// Repriced counts price-only updates.
	Repriced int `json:"repriced"`

	// Delisted counts packs transitioned out of the active set.
	Delisted int `json:"delisted"`

	// Errors lists per-pack failures; a failure never aborts the rest.
	Errors []string `json:"errors,omitempty"`
}

// Execute applies a comparison to the store. New packs are inserted with
// their origin classification and queued for a POS push; repriced packs are
// queued for a price push; removed packs are transitioned out of the active
// set with their delist reason.
func (r *Repository) Execute(ctx context.Context, cmp *differ.Comparison, opts ExecuteOptions) (*ExecuteResult, error) {
	result := &ExecuteResult{}

	for _, c := range cmp.Creations {
		pack := c.Pack
		pack.PackState = c.Origin
		pack.SourcePackIDs = models.StringList(c.SourcePackIDs)
		pack.POSStatus = models.POSStatusPending
		pack.SyncedToPOS = false

		if err := pack.Validate(); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		// Each pack is inserted on its own so one bad pack never takes
		// the rest of the cycle down with it.
		if err := r.createPack(ctx, pack); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Created++
	}

	for _, u := range cmp.PriceUpdates {
		if err := r.applyPriceUpdate(ctx, u); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Repriced++
	}

	if !opts.InitialScrape {
		for _, removal := range cmp.Removals {
			if err := r.applyRemoval(ctx, removal); err != nil {
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			result.Delisted++
		}
	}

	return result, nil
}

// applyPriceUpdate stores the new price and queues the pack so the price
// rides the next sync pass rather than triggering an out-of-band POS call.
func (r *Repository) applyPriceUpdate(ctx context.Context, u differ.PriceUpdate) error {
	pack, err := r.Get(ctx, u.PackID)
	if err != nil {
		return err
	}
	if pack == nil {
		return fmt.Errorf("repriced pack %s no longer exists", u.PackID)
	}

	pack.SeatPrice = u.NewSeatPrice
	pack.PackPrice = u.NewPackPrice
	pack.POSStatus = models.POSStatusPending
	pack.SyncedToPOS = false

	return r.SaveWithVersion(ctx, pack)
}

// applyRemoval transitions a removed pack out of the active set, unless an
// operator already delisted it by hand.
func (r *Repository) applyRemoval(ctx context.Context, removal differ.Removal) error {
	pack, err := r.Get(ctx, removal.Pack.PackID)
	if err != nil {
		return err
	}
	if pack == nil {
		return fmt.Errorf("removed pack %s no longer exists", removal.Pack.PackID)
	}
	if pack.ManuallyDelisted {
		// Operator decisions outlive snapshots
		return nil
	}

	if err := ApplyDelistTransition(pack, removal.Reason); err != nil {
		return err
	}
	return r.SaveWithVersion(ctx, pack)
}

// ApplyDelistTransition moves a pack into delist (or transformed, when the
// reason says so) and settles its POS bookkeeping: a listed pack goes
// pos-inactive with synced=false since the external delete is still owed, a
// never-pushed pack goes pos-inactive with synced=true.
func ApplyDelistTransition(pack *models.SeatPack, reason models.DelistReason) error {
	target := models.PackStateDelist
	if reason == models.DelistReasonTransformed {
		target = models.PackStateTransformed
	}
	if !models.CanTransition(pack.PackState, target) {
		return fmt.Errorf("pack %s: illegal transition %s -> %s", pack.PackID, pack.PackState, target)
	}

	wasListed := pack.POSStatus == models.POSStatusActive || pack.POSListingID != ""

	pack.PackStatus = models.PackStatusInactive
	pack.PackState = target
	pack.DelistReason = reason
	pack.POSStatus = models.POSStatusInactive
	pack.SyncedToPOS = !wasListed
	now := time.Now().UTC()
	pack.DelistedAt = &now

	return pack.Validate()
}

// BulkDelistForVenue transitions every active, non-manually-delisted pack of
// a venue out of the active set in one statement. Used by the structure
// change handler and the performance POS toggle.
func (r *Repository) BulkDelistForVenue(ctx context.Context, venueID string, reason models.DelistReason) (int64, error) {
	return r.bulkDelist(ctx, "venue_id = ?", venueID, reason)
}

// BulkDelistForPerformance is BulkDelistForVenue scoped to one performance.
func (r *Repository) BulkDelistForPerformance(ctx context.Context, performanceID string, reason models.DelistReason) (int64, error) {
	return r.bulkDelist(ctx, "performance_id = ?", performanceID, reason)
}

func (r *Repository) bulkDelist(ctx context.Context, scope string, scopeArg string, reason models.DelistReason) (int64, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.SeatPack{}).
		Where(scope, scopeArg).
		Where("pack_status = ? AND manually_delisted = ?", models.PackStatusActive, false).
		Updates(map[string]any{
			"pack_status":   models.PackStatusInactive,
			"pack_state":    models.PackStateDelist,
			"delist_reason": reason,
			"pos_status":    models.POSStatusInactive,
			// Listed packs still owe the external delete
			"synced_to_pos": gorm.Expr("(pos_listing_id = '' OR pos_listing_id IS NULL)"),
			"delisted_at":   now,
			"version":       gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to bulk delist (%s): %w", scopeArg, res.Error)
	}
	return res.RowsAffected, nil
}

// MarkPerformancePending queues every active pack of a performance for a
// fresh POS push. Used when POS sync is re-enabled for a performance.
func (r *Repository) MarkPerformancePending(ctx context.Context, performanceID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SeatPack{}).
		Where("performance_id = ? AND pack_status = ?", performanceID, models.PackStatusActive).
		Updates(map[string]any{
			"pos_status":    models.POSStatusPending,
			"synced_to_pos": false,
			"sync_attempts": 0,
			"sync_error":    "",
			"version":       gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark performance %s pending: %w", performanceID, res.Error)
	}
	return res.RowsAffected, nil
}
