package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"packsync/core/notify"
	"packsync/feature/packs/differ"
	"packsync/feature/packs/generator"
	"packsync/feature/packs/models"
	"packsync/feature/packs/repository"
	"packsync/feature/possync"
)

// Mode selects which phases a reconciliation run executes.
type Mode string

const (
	// ModeComplete generates, diffs, persists and syncs.
	ModeComplete Mode = "complete"
	// ModeGenerationOnly stops after persisting the diff; nothing is
	// pushed to the POS.
	ModeGenerationOnly Mode = "generation-only"
	// ModeSyncOnly skips generation and only drains the sync queue.
	ModeSyncOnly Mode = "sync-only"
)

// Snapshot is one scrape of a performance's available seats.
type Snapshot struct {
	// PerformanceID and VenueID locate the scrape.
	PerformanceID string `json:"performance_id"`
	VenueID       string `json:"venue_id"`

	// CapturedAt is when the scrape ran.
	CapturedAt time.Time `json:"captured_at"`

	// Seats is the flat list of scraped seats.
	Seats []generator.Seat `json:"seats"`

	// Schemes optionally pins a numbering scheme per section. Sections
	// not listed get the scheme detected from the seat data.
	Schemes map[string]generator.Scheme `json:"schemes,omitempty"`
}

// Options tunes one reconciliation run.
type Options struct {
	// Mode selects the phases to run; empty means complete.
	Mode Mode
	// InitialScrape suppresses delists on a performance's first cycle,
	// when every existing pack would otherwise look vanished.
	InitialScrape bool
}

// CycleResult reports what one reconciliation run did.
type CycleResult struct {
	// OperationID identifies the run in logs and events.
	OperationID string `json:"operation_id"`
	// PerformanceID is the performance reconciled.
	PerformanceID string `json:"performance_id"`
	// SnapshotObject is the archived snapshot's object name, if archived.
	SnapshotObject string `json:"snapshot_object,omitempty"`
	// Generated counts candidate packs built from the snapshot.
	Generated int `json:"generated"`
	// Diff summarizes the comparison against the stored active packs.
	Diff differ.Summary `json:"diff"`
	// Plan reports what was persisted.
	Plan *repository.ExecuteResult `json:"plan,omitempty"`
	// Sync reports the POS cycle that followed.
	Sync *possync.CycleReport `json:"sync,omitempty"`
}

// Store is the slice of the pack repository the service needs.
type Store interface {
	ActivePacks(ctx context.Context, performanceID string) ([]*models.SeatPack, error)
	Execute(ctx context.Context, cmp *differ.Comparison, opts repository.ExecuteOptions) (*repository.ExecuteResult, error)
}

// Syncer drains the POS sync queue. Implemented by possync.Engine.
type Syncer interface {
	RunCycle(ctx context.Context) (*possync.CycleReport, error)
}

// Archiver stores raw snapshots for replay and audit. Implemented by
// storage.Archive.
type Archiver interface {
	Store(ctx context.Context, performanceID string, payload any) (string, error)
}

// Service orchestrates one reconciliation cycle: archive the snapshot,
// generate candidate packs, diff them against the stored active set,
// persist the plan, then drive the POS sync engine.
type Service struct {
	store   Store
	gen     *generator.Generator
	syncer  Syncer
	archive Archiver
	events  notify.Publisher
	log     *zap.Logger
}

// NewService creates a Service. archive may be nil to skip archiving.
func NewService(store Store, gen *generator.Generator, syncer Syncer, archive Archiver, events notify.Publisher, log *zap.Logger) *Service {
	if events == nil {
		events = notify.NopPublisher{}
	}
	return &Service{store: store, gen: gen, syncer: syncer, archive: archive, events: events, log: log}
}

// Run executes one reconciliation cycle for a snapshot.
func (s *Service) Run(ctx context.Context, snap Snapshot, opts Options) (*CycleResult, error) {
	if opts.Mode == "" {
		opts.Mode = ModeComplete
	}
	result := &CycleResult{
		OperationID:   uuid.NewString(),
		PerformanceID: snap.PerformanceID,
	}

	s.events.Publish(ctx, notify.Event{
		Kind:          notify.EventSyncStarted,
		OperationID:   result.OperationID,
		PerformanceID: snap.PerformanceID,
		EmittedAt:     time.Now().UTC(),
	})

	if err := s.run(ctx, snap, opts, result); err != nil {
		s.events.Publish(ctx, notify.Event{
			Kind:          notify.EventSyncFailed,
			OperationID:   result.OperationID,
			PerformanceID: snap.PerformanceID,
			Error:         err.Error(),
			EmittedAt:     time.Now().UTC(),
		})
		return result, err
	}

	s.events.Publish(ctx, notify.Event{
		Kind:          notify.EventSyncCompleted,
		OperationID:   result.OperationID,
		PerformanceID: snap.PerformanceID,
		Counts:        result.counts(),
		EmittedAt:     time.Now().UTC(),
	})
	return result, nil
}

func (s *Service) run(ctx context.Context, snap Snapshot, opts Options, result *CycleResult) error {
	if opts.Mode != ModeSyncOnly {
		s.archiveSnapshot(ctx, snap, result)

		if err := s.reconcile(ctx, snap, opts, result); err != nil {
			return err
		}
	}

	if opts.Mode != ModeGenerationOnly {
		report, err := s.syncer.RunCycle(ctx)
		if err != nil {
			return fmt.Errorf("sync cycle: %w", err)
		}
		result.Sync = report
	}
	return nil
}

func (s *Service) reconcile(ctx context.Context, snap Snapshot, opts Options, result *CycleResult) error {
	generated := s.gen.Generate(snap.PerformanceID, snap.VenueID, snap.Seats, s.schemes(snap))
	result.Generated = len(generated)

	existing, err := s.store.ActivePacks(ctx, snap.PerformanceID)
	if err != nil {
		return fmt.Errorf("loading active packs: %w", err)
	}

	cmp := differ.Diff(existing, generated)
	result.Diff = cmp.Summary

	plan, err := s.store.Execute(ctx, cmp, repository.ExecuteOptions{InitialScrape: opts.InitialScrape})
	if err != nil {
		return fmt.Errorf("persisting plan: %w", err)
	}
	result.Plan = plan

	s.log.Info("reconciliation plan persisted",
		zap.String("operation_id", result.OperationID),
		zap.String("performance_id", snap.PerformanceID),
		zap.Int("generated", result.Generated),
		zap.Int("created", plan.Created),
		zap.Int("repriced", plan.Repriced),
		zap.Int("delisted", plan.Delisted),
		zap.Int("errors", len(plan.Errors)))
	return nil
}

// archiveSnapshot is best-effort. A lost archive never blocks a cycle.
func (s *Service) archiveSnapshot(ctx context.Context, snap Snapshot, result *CycleResult) {
	if s.archive == nil {
		return
	}
	object, err := s.archive.Store(ctx, snap.PerformanceID, snap)
	if err != nil {
		s.log.Warn("snapshot archive failed",
			zap.String("performance_id", snap.PerformanceID),
			zap.Error(err))
		return
	}
	result.SnapshotObject = object
}

// schemes fills in a scheme for every section, detecting from the seat
// data where the snapshot does not pin one.
func (s *Service) schemes(snap Snapshot) map[string]generator.Scheme {
	rows := make(map[string][]int)
	sections := make(map[string]bool)
	for _, seat := range snap.Seats {
		sections[seat.Section] = true
		key := seat.Level + "|" + seat.Zone + "|" + seat.Section + "|" + seat.Row
		rows[key] = append(rows[key], generator.SeatNumber(seat.Label))
	}
	detected := generator.DetectVenueScheme(rows)

	schemes := make(map[string]generator.Scheme, len(sections))
	for section := range sections {
		if pinned, ok := snap.Schemes[section]; ok {
			schemes[section] = pinned
			continue
		}
		schemes[section] = detected
	}
	return schemes
}

func (r *CycleResult) counts() map[string]int {
	counts := map[string]int{
		"generated": r.Generated,
		"new":       r.Diff.NewPacks,
		"unchanged": r.Diff.Unchanged,
		"repriced":  r.Diff.Repriced,
		"vanished":  r.Diff.Vanished,
	}
	if r.Plan != nil {
		counts["created"] = r.Plan.Created
		counts["delisted"] = r.Plan.Delisted
	}
	if r.Sync != nil {
		counts["pushed"] = r.Sync.Pushed
		counts["pos_delisted"] = r.Sync.Delisted
		counts["failed"] = r.Sync.Failed
	}
	return counts
}
