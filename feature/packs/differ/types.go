package differ

import "packsync/feature/packs/models"

// Creation is a newly generated pack with its origin classification.
type Creation struct {
	// Pack is the generated pack, state not yet assigned.
	Pack *models.SeatPack `json:"pack"`

	// Origin is how the pack came to be: create, split, merge or shrink.
	Origin models.PackState `json:"origin"`

	// SourcePackIDs lists the removed pack(s) that contributed seats.
	// Empty for pure creations.
	SourcePackIDs []string `json:"source_pack_ids"`
}

// PriceUpdate is a functionally equivalent pack whose price moved: same
// seats, same position, different price.
type PriceUpdate struct {
	// PackID identifies the persisted pack to reprice.
	PackID string `json:"pack_id"`

	// OldPackPrice and NewPackPrice are the pack totals before and after.
	OldPackPrice float64 `json:"old_pack_price"`
	NewPackPrice float64 `json:"new_pack_price"`

	// NewSeatPrice is the new unit price.
	NewSeatPrice float64 `json:"new_seat_price"`
}

// Removal is a previously active pack no longer present in the snapshot.
type Removal struct {
	// Pack is the persisted pack being removed.
	Pack *models.SeatPack `json:"pack"`

	// Reason is transformed when the pack's seats moved into at least one
	// new pack, vanished when they disappeared entirely.
	Reason models.DelistReason `json:"reason"`

	// ChildPackIDs lists the new packs this pack became. Empty for
	// vanished packs.
	ChildPackIDs []string `json:"child_pack_ids"`
}

// Comparison is the categorized diff between the previously persisted active
// packs and a freshly generated set. Every pack of either input lands in
// exactly one category.
type Comparison struct {
	// Creations are packs present only in the new set.
	Creations []Creation `json:"creations"`

	// Unchanged are packs identical in both sets, price included.
	Unchanged []*models.SeatPack `json:"unchanged"`

	// PriceUpdates are packs equal in composition but repriced.
	PriceUpdates []PriceUpdate `json:"price_updates"`

	// Removals are packs present only in the old set.
	Removals []Removal `json:"removals"`

	// Resyncs are surviving packs whose POS status is still pending or
	// failed; the sync engine should retry them this cycle.
	Resyncs []*models.SeatPack `json:"resyncs"`

	// Lineage maps a removed parent pack to the new packs it became.
	Lineage map[string][]string `json:"lineage"`

	// Summary provides aggregate counts.
	Summary Summary `json:"summary"`
}

// Summary provides aggregate counts for a comparison.
type Summary struct {
	// NewPacks counts creations of any origin.
	NewPacks int `json:"new_packs"`

	// Unchanged counts identical packs.
	Unchanged int `json:"unchanged"`

	// Repriced counts functionally equivalent packs.
	Repriced int `json:"repriced"`

	// Transformed and Vanished split the removals by reason.
	Transformed int `json:"transformed"`
	Vanished    int `json:"vanished"`

	// Splits, Merges, Shrinks and Creates split the creations by origin.
	Splits  int `json:"splits"`
	Merges  int `json:"merges"`
	Shrinks int `json:"shrinks"`
	Creates int `json:"creates"`
}
