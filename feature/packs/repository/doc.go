// Package repository is the gorm-backed pack lineage store.
//
// It exposes intention-revealing query methods (PacksNeedingSync,
// StaleLeases, RecentManualDelists) instead of leaking query building to
// callers, and owns the two write disciplines every mutation goes through:
// the per-pack lease (AcquireLease/ReleaseLease, conditional single-row
// updates) and the optimistic version check (SaveWithVersion).
//
// Execute applies a differ.Comparison to the store: inserting creations with
// their lineage, queueing price updates, and transitioning removals through
// the four state dimensions.
package repository
