package structure

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"packsync/feature/packs/generator"
	"packsync/feature/packs/models"
)

// Store is the slice of the pack repository the handler needs.
type Store interface {
	VenueScheme(ctx context.Context, venueID string) (*models.VenueScheme, error)
	SaveVenueScheme(ctx context.Context, venueID, scheme string) error
	BulkDelistForVenue(ctx context.Context, venueID string, reason models.DelistReason) (int64, error)
	ActivePerformances(ctx context.Context, venueID string) ([]string, error)
	CreatePacks(ctx context.Context, packs []*models.SeatPack) error
}

// Change describes a detected numbering-scheme flip for a venue.
type Change struct {
	// VenueID is the affected venue.
	VenueID string `json:"venue_id"`
	// Old is the previously recorded scheme.
	Old generator.Scheme `json:"old"`
	// New is the scheme detected from current seat data.
	New generator.Scheme `json:"new"`
}

// Result reports what a structure-change pass did.
type Result struct {
	// Change is nil when the recorded and detected schemes agree.
	Change *Change `json:"change,omitempty"`
	// Delisted counts packs bulk-delisted under the old scheme.
	Delisted int64 `json:"delisted"`
	// Created counts packs regenerated under the new scheme.
	Created int `json:"created"`
	// SkippedPerformances lists performances that had active packs but no
	// fresh seat data to regenerate from.
	SkippedPerformances []string `json:"skipped_performances,omitempty"`
}

// Handler detects venue numbering-scheme changes and rebuilds the venue's
// packs when one lands.
type Handler struct {
	store Store
	gen   *generator.Generator
	log   *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(store Store, gen *generator.Generator, log *zap.Logger) *Handler {
	return &Handler{store: store, gen: gen, log: log}
}

// Detect compares the scheme visible in current seat data against the
// venue's recorded scheme. A venue seen for the first time is recorded and
// reported as unchanged. Only a consecutive/odd_even flip is a change.
func (h *Handler) Detect(ctx context.Context, venueID string, seats []generator.Seat) (*Change, error) {
	current := generator.DetectVenueScheme(rowNumbers(seats))

	recorded, err := h.store.VenueScheme(ctx, venueID)
	if err != nil {
		return nil, err
	}
	if recorded == nil {
		if err := h.store.SaveVenueScheme(ctx, venueID, string(current)); err != nil {
			return nil, err
		}
		h.log.Info("venue scheme recorded",
			zap.String("venue_id", venueID),
			zap.String("scheme", string(current)))
		return nil, nil
	}
	if recorded.Scheme == string(current) {
		return nil, nil
	}
	return &Change{VenueID: venueID, Old: generator.Scheme(recorded.Scheme), New: current}, nil
}

// Apply runs the one-shot rebuild for a venue whose scheme changed: every
// active pack is delisted with reason structure_change, then packs are
// regenerated from current seat data under the new scheme and the new
// scheme is recorded. Seat data is keyed by performance id; performances
// with active packs but no seat data are delisted and left for the next
// scrape to regenerate.
func (h *Handler) Apply(ctx context.Context, change *Change, seatsByPerformance map[string][]generator.Seat) (*Result, error) {
	result := &Result{Change: change}

	performances, err := h.store.ActivePerformances(ctx, change.VenueID)
	if err != nil {
		return nil, err
	}

	delisted, err := h.store.BulkDelistForVenue(ctx, change.VenueID, models.DelistReasonStructureChange)
	if err != nil {
		return nil, fmt.Errorf("delisting venue %s: %w", change.VenueID, err)
	}
	result.Delisted = delisted

	schemes := sectionSchemes(seatsByPerformance, change.New)
	for performanceID, seats := range seatsByPerformance {
		packs := h.gen.Generate(performanceID, change.VenueID, seats, schemes)
		if len(packs) == 0 {
			continue
		}
		if err := h.store.CreatePacks(ctx, packs); err != nil {
			return nil, fmt.Errorf("regenerating performance %s: %w", performanceID, err)
		}
		result.Created += len(packs)
	}

	for _, performanceID := range performances {
		if _, ok := seatsByPerformance[performanceID]; !ok {
			result.SkippedPerformances = append(result.SkippedPerformances, performanceID)
		}
	}
	if len(result.SkippedPerformances) > 0 {
		h.log.Warn("performances delisted without fresh seat data",
			zap.String("venue_id", change.VenueID),
			zap.Strings("performance_ids", result.SkippedPerformances))
	}

	if err := h.store.SaveVenueScheme(ctx, change.VenueID, string(change.New)); err != nil {
		return nil, err
	}

	h.log.Info("venue structure change applied",
		zap.String("venue_id", change.VenueID),
		zap.String("old_scheme", string(change.Old)),
		zap.String("new_scheme", string(change.New)),
		zap.Int64("delisted", delisted),
		zap.Int("created", result.Created))
	return result, nil
}

// Run is Detect followed by Apply when a change is found.
func (h *Handler) Run(ctx context.Context, venueID string, seatsByPerformance map[string][]generator.Seat) (*Result, error) {
	var all []generator.Seat
	for _, seats := range seatsByPerformance {
		all = append(all, seats...)
	}

	change, err := h.Detect(ctx, venueID, all)
	if err != nil {
		return nil, err
	}
	if change == nil {
		return &Result{}, nil
	}
	return h.Apply(ctx, change, seatsByPerformance)
}

// rowNumbers flattens seats into per-row numeric labels for scheme
// detection. Rows are bucketed by full location so detection never mixes
// unrelated rows that share a label.
func rowNumbers(seats []generator.Seat) map[string][]int {
	rows := make(map[string][]int)
	for _, s := range seats {
		key := s.Level + "|" + s.Zone + "|" + s.Section + "|" + s.Row
		rows[key] = append(rows[key], generator.SeatNumber(s.Label))
	}
	return rows
}

// sectionSchemes assigns the detected scheme to every section present in
// the seat data.
func sectionSchemes(seatsByPerformance map[string][]generator.Seat, scheme generator.Scheme) map[string]generator.Scheme {
	schemes := make(map[string]generator.Scheme)
	for _, seats := range seatsByPerformance {
		for _, s := range seats {
			schemes[s.Section] = scheme
		}
	}
	return schemes
}
