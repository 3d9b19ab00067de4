package possync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"packsync/feature/packs/lock"
	"packsync/feature/packs/models"
)

// Store is the persistence surface the engine needs. Implemented by
// repository.Repository.
type Store interface {
	PacksNeedingSync(ctx context.Context, maxAttempts, limit int) ([]*models.SeatPack, error)
	SaveWithVersion(ctx context.Context, pack *models.SeatPack) error
	SaveListing(ctx context.Context, listing *models.POSListing) error
	RemoveListing(ctx context.Context, listingID string) error
	HeldListing(ctx context.Context, packID string) (bool, error)
	LogFailedRollback(ctx context.Context, entry *models.FailedRollback) error
	MarkPerformancePending(ctx context.Context, performanceID string) (int64, error)
	BulkDelistForPerformance(ctx context.Context, performanceID string, reason models.DelistReason) (int64, error)
	FailStaleOperations(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Options tunes the engine's batching and retry behaviour.
type Options struct {
	// BatchSize is how many packs one batch pulls from the queue.
	BatchSize int
	// BatchDelay is the pause between batches.
	BatchDelay time.Duration
	// MaxAttempts is the per-pack retry ceiling. A pack that fails this
	// many times stays failed until something resets its counter.
	MaxAttempts int
	// OperationStaleAge is how long a started operation may sit before
	// cleanup marks it failed.
	OperationStaleAge time.Duration
}

func (o *Options) applyDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.BatchDelay <= 0 {
		o.BatchDelay = time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.OperationStaleAge <= 0 {
		o.OperationStaleAge = time.Hour
	}
}

// CycleReport summarizes one sync cycle.
type CycleReport struct {
	// Pushed counts packs successfully listed on the POS.
	Pushed int `json:"pushed"`
	// Delisted counts packs whose POS listing was confirmed gone.
	Delisted int `json:"delisted"`
	// Failed counts packs whose attempt failed this cycle.
	Failed int `json:"failed"`
	// Skipped counts packs another worker held the lease on.
	Skipped int `json:"skipped"`
	// Errors holds one message per failed pack.
	Errors []string `json:"errors,omitempty"`
}

// Engine drives seat packs through the POS API: new and repriced packs
// get pushed, delisted packs get their external listing removed. Every
// pack is processed under a lease so concurrent cycles never collide.
type Engine struct {
	store    Store
	locks    *lock.Manager
	client   Client
	cfg      Config
	opts     Options
	log      *zap.Logger
	workerID string
}

// NewEngine builds an Engine. A zero Options gets sensible defaults.
func NewEngine(store Store, locks *lock.Manager, client Client, cfg Config, opts Options, log *zap.Logger) *Engine {
	opts.applyDefaults()
	return &Engine{
		store:    store,
		locks:    locks,
		client:   client,
		cfg:      cfg,
		opts:     opts,
		log:      log,
		workerID: "sync-" + uuid.NewString(),
	}
}

// RunCycle drains the sync queue in batches, least-attempted packs
// first. One pack failing never stops the batch, and one batch failing
// never stops the cycle.
func (e *Engine) RunCycle(ctx context.Context) (*CycleReport, error) {
	report := &CycleReport{}
	seen := make(map[string]bool)

	for {
		batch, err := e.store.PacksNeedingSync(ctx, e.opts.MaxAttempts, e.opts.BatchSize)
		if err != nil {
			return report, fmt.Errorf("loading sync queue: %w", err)
		}

		processed := 0
		for _, pack := range batch {
			// A failed pack re-enters the queue with a bumped attempt
			// count; without this guard a cycle could chew its whole
			// retry budget in one run.
			if seen[pack.PackID] {
				continue
			}
			seen[pack.PackID] = true
			processed++
			e.processPack(ctx, pack.PackID, report)
		}

		if processed == 0 || len(batch) < e.opts.BatchSize {
			break
		}
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		case <-time.After(e.opts.BatchDelay):
		}
	}

	e.log.Info("sync cycle finished",
		zap.Int("pushed", report.Pushed),
		zap.Int("delisted", report.Delisted),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped))
	return report, nil
}

func (e *Engine) processPack(ctx context.Context, packID string, report *CycleReport) {
	pack, err := e.locks.Acquire(ctx, packID, e.workerID)
	if err != nil {
		if errors.Is(err, lock.ErrLeaseHeld) {
			report.Skipped++
			return
		}
		report.Failed++
		report.Errors = append(report.Errors, fmt.Sprintf("%s: acquiring lease: %v", packID, err))
		return
	}
	if pack == nil {
		// Deleted between queue read and lease grab.
		report.Skipped++
		return
	}
	defer e.locks.Release(ctx, packID, e.workerID)

	// The operation id makes this attempt traceable through logs and
	// through stale-operation cleanup.
	pack.POSOperationID = uuid.NewString()
	pack.POSOperationStatus = models.OperationStarted
	if err := e.store.SaveWithVersion(ctx, pack); err != nil {
		report.Failed++
		report.Errors = append(report.Errors, fmt.Sprintf("%s: recording operation: %v", packID, err))
		return
	}

	var opErr error
	switch {
	case pack.NeedsDelist():
		opErr = e.delistPack(ctx, pack)
		if opErr == nil {
			report.Delisted++
		}
	case pack.NeedsPush():
		opErr = e.pushPack(ctx, pack)
		if opErr == nil {
			report.Pushed++
		}
	default:
		// The queue and the pack disagree; leave it alone.
		report.Skipped++
		pack.POSOperationStatus = models.OperationCompleted
		_ = e.store.SaveWithVersion(ctx, pack)
		return
	}

	if opErr != nil {
		report.Failed++
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", packID, opErr))
		e.markFailed(ctx, pack, opErr)
	}
}

// pushPack creates the POS listing for a pack and records the result.
// Partial work is undone through the rollback stack when a later step
// fails.
func (e *Engine) pushPack(ctx context.Context, pack *models.SeatPack) error {
	held, err := e.store.HeldListing(ctx, pack.PackID)
	if err != nil {
		return fmt.Errorf("checking admin hold: %w", err)
	}
	if err := ValidateForListing(pack, held); err != nil {
		return fmt.Errorf("rejected before POS call: %w", err)
	}

	// A live listing id means this push is a replacement: the pack was
	// repriced or its performance re-enabled while still listed. The old
	// listing comes down first so the POS never carries two listings for
	// the same seats. A failure here leaves the pack queued; the retry
	// sees the listing already gone and carries on.
	if pack.POSListingID != "" {
		outcome, err := e.client.DeleteListing(ctx, pack.POSListingID)
		if err != nil {
			return fmt.Errorf("replacing listing %s: %w", pack.POSListingID, err)
		}
		if outcome == DeleteNotFound {
			e.log.Warn("replaced listing already gone from POS",
				zap.String("pack_id", pack.PackID),
				zap.String("listing_id", pack.POSListingID))
		}
		if err := e.store.RemoveListing(ctx, pack.POSListingID); err != nil {
			return fmt.Errorf("removing replaced listing record: %w", err)
		}
		pack.POSListingID = ""
	}

	var rollback rollbackStack

	listingID, err := e.client.CreateListing(ctx, BuildPayload(pack, e.cfg))
	if err != nil {
		return err
	}
	rollback.push("delete POS listing", func(ctx context.Context) error {
		_, err := e.client.DeleteListing(ctx, listingID)
		return err
	})

	if err := e.store.SaveListing(ctx, &models.POSListing{
		PackID:    pack.PackID,
		ListingID: listingID,
		Status:    string(models.POSStatusActive),
	}); err != nil {
		e.runRollback(ctx, pack, &rollback)
		return fmt.Errorf("recording listing %s: %w", listingID, err)
	}
	rollback.push("remove local listing record", func(ctx context.Context) error {
		return e.store.RemoveListing(ctx, listingID)
	})

	now := time.Now()
	pack.POSListingID = listingID
	pack.POSStatus = models.POSStatusActive
	pack.SyncedToPOS = true
	pack.SyncError = ""
	pack.LastSyncAttempt = &now
	pack.POSOperationStatus = models.OperationCompleted
	if err := e.store.SaveWithVersion(ctx, pack); err != nil {
		e.runRollback(ctx, pack, &rollback)
		return fmt.Errorf("saving pushed pack: %w", err)
	}

	e.log.Debug("pack pushed to POS",
		zap.String("pack_id", pack.PackID),
		zap.String("listing_id", listingID))
	return nil
}

// delistPack removes a pack's POS listing. Delisting is idempotent: a
// pack that never reached the POS, and a listing the POS already lost,
// both count as done.
func (e *Engine) delistPack(ctx context.Context, pack *models.SeatPack) error {
	if pack.POSListingID != "" {
		outcome, err := e.client.DeleteListing(ctx, pack.POSListingID)
		if err != nil {
			return err
		}
		if outcome == DeleteNotFound {
			e.log.Warn("listing already gone from POS",
				zap.String("pack_id", pack.PackID),
				zap.String("listing_id", pack.POSListingID))
		}
		if err := e.store.RemoveListing(ctx, pack.POSListingID); err != nil {
			return fmt.Errorf("removing listing record: %w", err)
		}
		pack.POSListingID = ""
	}

	now := time.Now()
	pack.POSStatus = models.POSStatusInactive
	pack.SyncedToPOS = true
	pack.SyncError = ""
	pack.LastSyncAttempt = &now
	pack.POSOperationStatus = models.OperationCompleted
	if err := e.store.SaveWithVersion(ctx, pack); err != nil {
		return fmt.Errorf("saving delisted pack: %w", err)
	}

	e.log.Debug("pack delisted from POS", zap.String("pack_id", pack.PackID))
	return nil
}

// markFailed records a failed attempt on the pack. Attempts only move
// forward; past MaxAttempts the pack drops out of the queue until its
// counter is reset.
func (e *Engine) markFailed(ctx context.Context, pack *models.SeatPack, cause error) {
	now := time.Now()
	pack.SyncAttempts++
	pack.SyncError = cause.Error()
	pack.LastSyncAttempt = &now
	pack.POSStatus = models.POSStatusFailed
	pack.POSOperationStatus = models.OperationFailed
	if err := e.store.SaveWithVersion(ctx, pack); err != nil {
		e.log.Error("failed to record sync failure",
			zap.String("pack_id", pack.PackID),
			zap.Error(err))
	}
	if pack.SyncAttempts >= e.opts.MaxAttempts {
		e.log.Warn("pack exceeded retry budget",
			zap.String("pack_id", pack.PackID),
			zap.Int("attempts", pack.SyncAttempts),
			zap.String("error", pack.SyncError))
	}
}

// runRollback executes the compensating actions and persists any that
// failed. Failed compensators are never retried automatically; they
// wait in failed_rollbacks for an operator.
func (e *Engine) runRollback(ctx context.Context, pack *models.SeatPack, stack *rollbackStack) {
	for _, failure := range stack.run(ctx) {
		e.log.Error("rollback step failed",
			zap.String("pack_id", pack.PackID),
			zap.String("operation_id", pack.POSOperationID),
			zap.String("step", failure.Step),
			zap.String("detail", failure.Detail))
		if err := e.store.LogFailedRollback(ctx, &models.FailedRollback{
			OperationID: pack.POSOperationID,
			PackID:      pack.PackID,
			Step:        failure.Step,
			Detail:      failure.Detail,
		}); err != nil {
			e.log.Error("failed to persist rollback failure",
				zap.String("pack_id", pack.PackID),
				zap.Error(err))
		}
	}
}

// SetPerformanceEnabled flips POS visibility for a whole performance.
// Enabling re-queues every pack; disabling delists them with reason
// performance_disabled. Returns the number of packs touched.
func (e *Engine) SetPerformanceEnabled(ctx context.Context, performanceID string, enabled bool) (int64, error) {
	if enabled {
		n, err := e.store.MarkPerformancePending(ctx, performanceID)
		if err != nil {
			return 0, fmt.Errorf("re-queueing performance %s: %w", performanceID, err)
		}
		e.log.Info("performance enabled for POS",
			zap.String("performance_id", performanceID),
			zap.Int64("packs", n))
		return n, nil
	}

	n, err := e.store.BulkDelistForPerformance(ctx, performanceID, models.DelistReasonPerformanceDisabled)
	if err != nil {
		return 0, fmt.Errorf("delisting performance %s: %w", performanceID, err)
	}
	e.log.Info("performance disabled for POS",
		zap.String("performance_id", performanceID),
		zap.Int64("packs", n))
	return n, nil
}

// CleanupStaleOperations fails operations that started but never
// finished, usually after a crashed worker.
func (e *Engine) CleanupStaleOperations(ctx context.Context) (int64, error) {
	n, err := e.store.FailStaleOperations(ctx, e.opts.OperationStaleAge)
	if err != nil {
		return 0, fmt.Errorf("failing stale operations: %w", err)
	}
	if n > 0 {
		e.log.Warn("stale POS operations marked failed", zap.Int64("count", n))
	}
	return n, nil
}
