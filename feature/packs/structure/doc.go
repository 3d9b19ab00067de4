// Package structure handles venue seat-numbering scheme changes.
//
// A venue that renumbers its rows between consecutive and odd/even makes
// every existing pack structurally wrong: the adjacency rule the packs
// were built under no longer matches the floor. The Handler detects the
// flip by comparing the scheme visible in fresh seat data against the
// recorded one, bulk-delists the venue's active packs with reason
// structure_change, and regenerates packs per performance under the new
// scheme in a single one-shot pass.
package structure
