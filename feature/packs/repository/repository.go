package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"packsync/feature/packs/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrVersionConflict is returned when a write carries a stale version.
// Callers retry with backoff rather than overwrite.
var ErrVersionConflict = errors.New("pack version conflict")

// Repository is the gorm-backed pack lineage store.
type Repository struct {
	db *gorm.DB
}

// New creates a Repository.
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates the backing tables.
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(&models.SeatPack{}, &models.POSListing{}, &models.FailedRollback{}, &models.VenueScheme{})
}

// Get fetches one pack by id.
func (r *Repository) Get(ctx context.Context, packID string) (*models.SeatPack, error) {
	var pack models.SeatPack
	err := r.db.WithContext(ctx).First(&pack, "pack_id = ?", packID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pack %s: %w", packID, err)
	}
	return &pack, nil
}

// ActivePacks returns every active pack for a performance.
func (r *Repository) ActivePacks(ctx context.Context, performanceID string) ([]*models.SeatPack, error) {
	var packs []*models.SeatPack
	err := r.db.WithContext(ctx).
		Where("performance_id = ? AND pack_status = ?", performanceID, models.PackStatusActive).
		Find(&packs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load active packs for %s: %w", performanceID, err)
	}
	return packs, nil
}

// PacksNeedingSync returns the work queue for the sync engine: unsynced
// pushes and delists below the attempt ceiling, least attempts first.
func (r *Repository) PacksNeedingSync(ctx context.Context, maxAttempts, limit int) ([]*models.SeatPack, error) {
	var packs []*models.SeatPack
	err := r.db.WithContext(ctx).
		Where("synced_to_pos = ? AND sync_attempts < ?", false, maxAttempts).
		Where(
			r.db.Where("pack_status = ? AND pos_status IN ?", models.PackStatusActive,
				[]models.POSStatus{models.POSStatusPending, models.POSStatusFailed}).
				Or("pack_state IN ?", []models.PackState{models.PackStateDelist, models.PackStateTransformed}),
		).
		Order("sync_attempts ASC").
		Limit(limit).
		Find(&packs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load packs needing sync: %w", err)
	}
	return packs, nil
}

// NeedsRetry returns packs whose last POS call failed but that still have
// attempts left.
func (r *Repository) NeedsRetry(ctx context.Context, maxAttempts int) ([]*models.SeatPack, error) {
	var packs []*models.SeatPack
	err := r.db.WithContext(ctx).
		Where("pos_status = ? AND synced_to_pos = ? AND sync_attempts < ?",
			models.POSStatusFailed, false, maxAttempts).
		Order("sync_attempts ASC").
		Find(&packs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load retry packs: %w", err)
	}
	return packs, nil
}

// RecentManualDelists returns packs an operator delisted since the cutoff.
// Manual delists are excluded from automatic re-listing.
func (r *Repository) RecentManualDelists(ctx context.Context, since time.Time) ([]*models.SeatPack, error) {
	var packs []*models.SeatPack
	err := r.db.WithContext(ctx).
		Where("manually_delisted = ? AND delisted_at >= ?", true, since).
		Find(&packs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load manual delists: %w", err)
	}
	return packs, nil
}

// ChildPacks returns the packs that list parentID as a lineage source.
func (r *Repository) ChildPacks(ctx context.Context, parentID string) ([]*models.SeatPack, error) {
	var packs []*models.SeatPack
	err := r.db.WithContext(ctx).
		Where("JSON_CONTAINS(source_pack_ids, JSON_QUOTE(?))", parentID).
		Find(&packs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load children of %s: %w", parentID, err)
	}
	return packs, nil
}

// CreatePacks inserts new packs, skipping any whose id already exists.
// Pack ids are deterministic, so a colliding row is the same seat set
// already tracked, not a caller mistake.
func (r *Repository) CreatePacks(ctx context.Context, packs []*models.SeatPack) error {
	if len(packs) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(packs).Error
	if err != nil {
		return fmt.Errorf("failed to create packs: %w", err)
	}
	return nil
}

// createPack inserts one pack. Vanished packs keep their row, so a seat
// set that reappears on a later scrape collides with its own inactive
// id; that row is revived in place instead of inserted.
func (r *Repository) createPack(ctx context.Context, pack *models.SeatPack) error {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(pack)
	if res.Error != nil {
		return fmt.Errorf("failed to create pack %s: %w", pack.PackID, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return r.revivePack(ctx, pack)
}

// revivePack reactivates the existing row for a reappeared seat set. The
// row keeps its version history and, when it still owes the POS a delete,
// its listing id, so the next push replaces the stale listing.
func (r *Repository) revivePack(ctx context.Context, pack *models.SeatPack) error {
	existing, err := r.Get(ctx, pack.PackID)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("pack %s: conflicting row disappeared", pack.PackID)
	}
	if existing.PackStatus == models.PackStatusActive {
		return fmt.Errorf("pack %s is already active", pack.PackID)
	}
	if existing.ManuallyDelisted {
		// Operator decisions outlive snapshots
		return fmt.Errorf("pack %s was manually delisted", pack.PackID)
	}
	if !models.CanTransition(existing.PackState, models.PackStateCreate) {
		return fmt.Errorf("pack %s: illegal transition %s -> %s",
			pack.PackID, existing.PackState, models.PackStateCreate)
	}

	existing.PackStatus = models.PackStatusActive
	existing.PackState = models.PackStateCreate
	existing.DelistReason = models.DelistReasonNone
	existing.DelistedAt = nil
	existing.SourcePackIDs = pack.SourcePackIDs
	existing.SeatPrice = pack.SeatPrice
	existing.PackPrice = pack.PackPrice
	existing.POSStatus = models.POSStatusPending
	existing.SyncedToPOS = false
	existing.SyncAttempts = 0
	existing.SyncError = ""

	if err := existing.Validate(); err != nil {
		return err
	}
	return r.SaveWithVersion(ctx, existing)
}

// SaveWithVersion persists the pack only if its version is still current,
// incrementing the version on success. A stale version yields
// ErrVersionConflict and the caller's copy is left untouched.
func (r *Repository) SaveWithVersion(ctx context.Context, pack *models.SeatPack) error {
	current := pack.Version
	pack.Version = current + 1

	res := r.db.WithContext(ctx).
		Model(&models.SeatPack{}).
		Where("pack_id = ? AND version = ?", pack.PackID, current).
		Select("*").
		Omit("pack_id", "created_at").
		Updates(pack)
	if res.Error != nil {
		pack.Version = current
		return fmt.Errorf("failed to save pack %s: %w", pack.PackID, res.Error)
	}
	if res.RowsAffected == 0 {
		pack.Version = current
		return fmt.Errorf("pack %s at version %d: %w", pack.PackID, current, ErrVersionConflict)
	}
	return nil
}

// AcquireLease atomically claims the pack for holderID. It returns the
// locked pack, or nil when another holder already has it. Re-acquiring an
// own lease refreshes its timestamp.
func (r *Repository) AcquireLease(ctx context.Context, packID, holderID string) (*models.SeatPack, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.SeatPack{}).
		Where("pack_id = ? AND (locked_by IS NULL OR locked_by = ?)", packID, holderID).
		Updates(map[string]any{"locked_by": holderID, "locked_at": now})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to acquire lease on %s: %w", packID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return r.Get(ctx, packID)
}

// ReleaseLease frees the pack if holderID still owns it.
func (r *Repository) ReleaseLease(ctx context.Context, packID, holderID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.SeatPack{}).
		Where("pack_id = ? AND locked_by = ?", packID, holderID).
		Updates(map[string]any{"locked_by": nil, "locked_at": nil})
	if res.Error != nil {
		return false, fmt.Errorf("failed to release lease on %s: %w", packID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// StaleLeases returns packs whose lease is older than maxAge.
func (r *Repository) StaleLeases(ctx context.Context, maxAge time.Duration) ([]*models.SeatPack, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	var packs []*models.SeatPack
	err := r.db.WithContext(ctx).
		Where("locked_by IS NOT NULL AND locked_at < ?", cutoff).
		Find(&packs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load stale leases: %w", err)
	}
	return packs, nil
}

// ActiveLeaseCount counts currently held leases.
func (r *Repository) ActiveLeaseCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.SeatPack{}).
		Where("locked_by IS NOT NULL").
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count active leases: %w", err)
	}
	return n, nil
}

// SweepStaleLeases force-clears leases older than maxAge and returns how
// many were cleared. A nonzero count is an operational health signal.
func (r *Repository) SweepStaleLeases(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res := r.db.WithContext(ctx).
		Model(&models.SeatPack{}).
		Where("locked_by IS NOT NULL AND locked_at < ?", cutoff).
		Updates(map[string]any{"locked_by": nil, "locked_at": nil})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to sweep stale leases: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// FailStaleOperations marks POS operations stuck in started for longer than
// maxAge as failed, so packs owned by dead processes become schedulable.
func (r *Repository) FailStaleOperations(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	res := r.db.WithContext(ctx).
		Model(&models.SeatPack{}).
		Where("pos_operation_status = ? AND updated_at < ?", models.OperationStarted, cutoff).
		Update("pos_operation_status", models.OperationFailed)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to expire stale operations: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// LogFailedRollback durably records a compensating action that failed.
func (r *Repository) LogFailedRollback(ctx context.Context, entry *models.FailedRollback) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to log failed rollback: %w", err)
	}
	return nil
}

// PendingRollbacks returns failed rollbacks awaiting manual resolution.
func (r *Repository) PendingRollbacks(ctx context.Context) ([]*models.FailedRollback, error) {
	var entries []*models.FailedRollback
	err := r.db.WithContext(ctx).
		Where("resolved_at IS NULL").
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load pending rollbacks: %w", err)
	}
	return entries, nil
}

// ResolveRollback records the manual resolution of a failed rollback.
func (r *Repository) ResolveRollback(ctx context.Context, id uint, notes string) error {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.FailedRollback{}).
		Where("id = ? AND resolved_at IS NULL", id).
		Updates(map[string]any{"resolved_at": now, "resolution_notes": notes})
	if res.Error != nil {
		return fmt.Errorf("failed to resolve rollback %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("rollback %d not found or already resolved", id)
	}
	return nil
}

// SaveListing upserts the local mirror of an external POS listing.
func (r *Repository) SaveListing(ctx context.Context, listing *models.POSListing) error {
	if err := r.db.WithContext(ctx).Save(listing).Error; err != nil {
		return fmt.Errorf("failed to save listing %s: %w", listing.ListingID, err)
	}
	return nil
}

// RemoveListing deletes the local mirror of an external listing.
func (r *Repository) RemoveListing(ctx context.Context, listingID string) error {
	err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Delete(&models.POSListing{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove listing %s: %w", listingID, err)
	}
	return nil
}

// HeldListing reports whether the pack's listing is under an admin hold.
func (r *Repository) HeldListing(ctx context.Context, packID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.POSListing{}).
		Where("pack_id = ? AND admin_hold = ?", packID, true).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check admin hold for %s: %w", packID, err)
	}
	return count > 0, nil
}

// SyncHealth collects the operator-facing counters for /status/sync.
func (r *Repository) SyncHealth(ctx context.Context) (models.SyncHealth, error) {
	var health models.SyncHealth

	counts := []struct {
		dest  *int
		query *gorm.DB
	}{
		{&health.UnsyncedPacks, r.db.Model(&models.SeatPack{}).
			Where("pack_status = ? AND synced_to_pos = ?", models.PackStatusActive, false)},
		{&health.FailedPacks, r.db.Model(&models.SeatPack{}).
			Where("pos_status = ?", models.POSStatusFailed)},
		{&health.PendingPacks, r.db.Model(&models.SeatPack{}).
			Where("pos_status = ?", models.POSStatusPending)},
		{&health.HighRetryPacks, r.db.Model(&models.SeatPack{}).
			Where("sync_attempts >= ? AND synced_to_pos = ?", 3, false)},
		{&health.ActiveLocks, r.db.Model(&models.SeatPack{}).
			Where("locked_by IS NOT NULL")},
		{&health.StaleLocks, r.db.Model(&models.SeatPack{}).
			Where("locked_by IS NOT NULL AND locked_at < ?", time.Now().UTC().Add(-30*time.Minute))},
		{&health.UnresolvedRollbacks, r.db.Model(&models.FailedRollback{}).
			Where("resolved_at IS NULL")},
	}

	for _, c := range counts {
		var n int64
		if err := c.query.WithContext(ctx).Count(&n).Error; err != nil {
			return health, fmt.Errorf("failed to collect sync health: %w", err)
		}
		*c.dest = int(n)
	}

	return health, nil
}

// VenueScheme returns the recorded numbering scheme for a venue, or nil
// when the venue has never been recorded.
func (r *Repository) VenueScheme(ctx context.Context, venueID string) (*models.VenueScheme, error) {
	var record models.VenueScheme
	err := r.db.WithContext(ctx).Where("venue_id = ?", venueID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load scheme for venue %s: %w", venueID, err)
	}
	return &record, nil
}

// SaveVenueScheme upserts the recorded scheme for a venue.
func (r *Repository) SaveVenueScheme(ctx context.Context, venueID, scheme string) error {
	record := models.VenueScheme{VenueID: venueID, Scheme: scheme}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "venue_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"scheme", "updated_at"}),
		}).
		Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to save scheme for venue %s: %w", venueID, err)
	}
	return nil
}

// ActivePerformances lists the distinct performances with active packs at
// a venue.
func (r *Repository) ActivePerformances(ctx context.Context, venueID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.SeatPack{}).
		Where("venue_id = ? AND pack_status = ?", venueID, models.PackStatusActive).
		Distinct().
		Pluck("performance_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list performances for venue %s: %w", venueID, err)
	}
	return ids, nil
}
