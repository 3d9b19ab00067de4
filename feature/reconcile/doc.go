// Package reconcile orchestrates a full reconciliation cycle.
//
// One cycle takes a scrape snapshot for a performance and brings the
// stored pack set and the external POS in line with it: the snapshot is
// archived, candidate packs are generated, diffed against the stored
// active packs, the resulting plan is persisted, and the POS sync engine
// drains the queue the plan produced. Progress events go out over the
// notify publisher so upstream callers can follow along.
package reconcile
