// Package possync pushes seat packs to the external point-of-sale API
// and takes them back down.
//
// The Engine drains the sync queue in batches: packs needing a listing
// get validated, pushed, and recorded; packs marked for delisting get
// their POS listing removed. Each pack is processed under an exclusive
// lease, failures are retried with a per-pack attempt budget, and
// partially completed pushes are undone through compensating actions.
// A compensator that itself fails lands in the failed_rollbacks table
// for an operator instead of being retried blindly.
package possync
