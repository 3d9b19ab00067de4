package differ

import (
	"sort"

	"packsync/feature/packs/models"
)

// seatRef keys a seat by its zone+row location bucket so overlap correlation
// never crosses unrelated rows that happen to reuse seat keys.
type seatRef struct {
	zone, row, key string
}

// Diff computes the categorized comparison between the currently active
// persisted packs and a freshly generated set for the same performance.
//
// The algorithm runs in five phases:
//  1. build lookup maps, including seat -> owning old pack
//  2. classify packs present in both sets as identical or repriced
//  3. collect removal and creation candidates
//  4. correlate each creation's seats back to source packs and classify
//     its origin (create, shrink, split, merge)
//  5. mark each removal transformed when it sourced a creation, vanished
//     otherwise
func Diff(existing []*models.SeatPack, generated []*models.SeatPack) *Comparison {
	cmp := &Comparison{Lineage: make(map[string][]string)}

	// Phase 1: lookups
	existingByID := make(map[string]*models.SeatPack, len(existing))
	seatOwner := make(map[seatRef]string)
	for _, p := range existing {
		existingByID[p.PackID] = p
		for _, key := range p.SeatKeys {
			seatOwner[seatRef{p.Zone, p.Row, key}] = p.PackID
		}
	}

	generatedByID := make(map[string]*models.SeatPack, len(generated))
	for _, p := range generated {
		generatedByID[p.PackID] = p
	}

	// Phases 2 and 3: partition by identifier presence
	var created []*models.SeatPack
	for _, p := range generated {
		old, ok := existingByID[p.PackID]
		if !ok {
			created = append(created, p)
			continue
		}

		if old.PackPrice == p.PackPrice && old.SeatPrice == p.SeatPrice {
			cmp.Unchanged = append(cmp.Unchanged, old)
		} else {
			cmp.PriceUpdates = append(cmp.PriceUpdates, PriceUpdate{
				PackID:       old.PackID,
				OldPackPrice: old.PackPrice,
				NewPackPrice: p.PackPrice,
				NewSeatPrice: p.SeatPrice,
			})
		}

		// Surviving packs never confirmed by the POS ride this cycle again
		if old.POSStatus == models.POSStatusPending || old.POSStatus == models.POSStatusFailed {
			cmp.Resyncs = append(cmp.Resyncs, old)
		}
	}

	var removed []*models.SeatPack
	for _, p := range existing {
		if _, ok := generatedByID[p.PackID]; !ok {
			removed = append(removed, p)
		}
	}

	// Phase 4: correlate creations to their source packs
	sources := make(map[string][]string, len(created))
	childrenOf := make(map[string][]string)
	for _, p := range created {
		seen := make(map[string]bool)
		var packSources []string
		for _, key := range p.SeatKeys {
			owner, ok := seatOwner[seatRef{p.Zone, p.Row, key}]
			if ok && !seen[owner] {
				seen[owner] = true
				packSources = append(packSources, owner)
			}
		}
		sort.Strings(packSources)
		sources[p.PackID] = packSources
		for _, src := range packSources {
			childrenOf[src] = append(childrenOf[src], p.PackID)
		}
	}

	for _, p := range created {
		packSources := sources[p.PackID]
		origin := models.PackStateCreate
		switch {
		case len(packSources) > 1:
			origin = models.PackStateMerge
		case len(packSources) == 1:
			if len(childrenOf[packSources[0]]) > 1 {
				origin = models.PackStateSplit
			} else {
				origin = models.PackStateShrink
			}
		}

		cmp.Creations = append(cmp.Creations, Creation{
			Pack:          p,
			Origin:        origin,
			SourcePackIDs: packSources,
		})
	}

	// Phase 5: removals are transformed only when they sourced a creation
	for _, p := range removed {
		children := childrenOf[p.PackID]
		reason := models.DelistReasonVanished
		if len(children) > 0 {
			reason = models.DelistReasonTransformed
			cmp.Lineage[p.PackID] = children
		}
		cmp.Removals = append(cmp.Removals, Removal{
			Pack:         p,
			Reason:       reason,
			ChildPackIDs: children,
		})
	}

	cmp.Summary = summarize(cmp)
	return cmp
}

func summarize(cmp *Comparison) Summary {
	s := Summary{
		NewPacks:  len(cmp.Creations),
		Unchanged: len(cmp.Unchanged),
		Repriced:  len(cmp.PriceUpdates),
	}

	for _, c := range cmp.Creations {
		switch c.Origin {
		case models.PackStateSplit:
			s.Splits++
		case models.PackStateMerge:
			s.Merges++
		case models.PackStateShrink:
			s.Shrinks++
		default:
			s.Creates++
		}
	}

	for _, r := range cmp.Removals {
		if r.Reason == models.DelistReasonTransformed {
			s.Transformed++
		} else {
			s.Vanished++
		}
	}

	return s
}
