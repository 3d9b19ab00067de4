// Package generator groups raw scraped seats into sellable packs.
//
// Seats are bucketed per level/zone/section/row, ordered numerically, and
// split into contiguous runs under the row's numbering scheme (consecutive
// or odd/even). Runs become packs per the configured strategy: maximal (one
// pack per run) or exhaustive (every sub-window at least the minimum size).
// Pack identifiers are deterministic over seat composition so two runs on
// the same snapshot always agree.
package generator
