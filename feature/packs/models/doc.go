// Package models defines the persisted pack entities and their state rules.
//
// A SeatPack carries four state dimensions: operational status, POS status,
// lifecycle state and delist reason. Validate enforces the invariants tying
// them together, and CanTransition encodes the allowed lifecycle moves.
// ComputePackID derives the deterministic identity used for diffing.
package models
