// Package differ computes the minimal set of changes between the previously
// persisted active packs and a freshly generated set.
//
// Identifier equality is the cheap first-pass signal: pack ids are
// deterministic over seat composition, so matching ids mean matching seats.
// Packs present on both sides are identical or merely repriced; the rest are
// correlated through shared seat membership to classify each new pack's
// origin (create, shrink, split, merge) and each removed pack's fate
// (transformed, vanished).
package differ
