// Package lock grants exclusive per-pack leases with stale-lease recovery.
//
// A SeatPack row is the unit of mutual exclusion: only the lease holder may
// mutate its state fields, and the monotonic version counter guards against
// lease-bypassing writers on top of that. SafeUpdate bundles the full write
// discipline: acquire, mutate, validate, save with bounded backoff retries
// on version conflicts, release.
package lock
