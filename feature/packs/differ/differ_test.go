package differ

import (
	"strconv"
	"testing"

	"packsync/feature/packs/generator"
	"packsync/feature/packs/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var gen = generator.New(generator.Config{Source: "tm", Prefix: "tm", MinPackSize: 1})

func seats(row string, price float64, numbers ...int) []generator.Seat {
	out := make([]generator.Seat, len(numbers))
	for i, n := range numbers {
		out[i] = generator.Seat{
			Key:       row + "-" + strconv.Itoa(n),
			Label:     strconv.Itoa(n),
			Row:       row,
			Section:   "floor",
			Zone:      "orchestra",
			Level:     "main",
			Price:     price,
			Available: true,
		}
	}
	return out
}

// persisted marks generated packs as already stored and active.
func persisted(packs []*models.SeatPack) []*models.SeatPack {
	for _, p := range packs {
		p.POSStatus = models.POSStatusActive
		p.SyncedToPOS = true
	}
	return packs
}

func TestDiffShrink(t *testing.T) {
	// Row A 1-6 available, then seats 4-6 sell
	old := persisted(gen.Generate("perf-1", "v1", seats("A", 50, 1, 2, 3, 4, 5, 6), nil))
	fresh := gen.Generate("perf-1", "v1", seats("A", 50, 1, 2, 3), nil)

	cmp := Diff(old, fresh)

	require.Len(t, cmp.Creations, 1)
	assert.Equal(t, models.PackStateShrink, cmp.Creations[0].Origin)
	assert.Equal(t, []string{old[0].PackID}, cmp.Creations[0].SourcePackIDs)

	require.Len(t, cmp.Removals, 1)
	assert.Equal(t, models.DelistReasonTransformed, cmp.Removals[0].Reason)
	assert.Equal(t, []string{cmp.Creations[0].Pack.PackID}, cmp.Removals[0].ChildPackIDs)

	assert.Equal(t, 1, cmp.Summary.Shrinks)
	assert.Equal(t, 1, cmp.Summary.Transformed)
}

func TestDiffOddEvenSplit(t *testing.T) {
	schemes := map[string]generator.Scheme{"floor": generator.SchemeOddEven}

	// Row B 2,4,6,8 as one pack, then seat 6 sells
	old := persisted(gen.Generate("perf-1", "v1", seats("B", 40, 2, 4, 6, 8), schemes))
	require.Len(t, old, 1)
	fresh := gen.Generate("perf-1", "v1", seats("B", 40, 2, 4, 8), schemes)
	require.Len(t, fresh, 2)

	cmp := Diff(old, fresh)

	require.Len(t, cmp.Creations, 2)
	for _, c := range cmp.Creations {
		assert.Equal(t, models.PackStateSplit, c.Origin)
		assert.Equal(t, []string{old[0].PackID}, c.SourcePackIDs)
	}

	require.Len(t, cmp.Removals, 1)
	assert.Equal(t, models.DelistReasonTransformed, cmp.Removals[0].Reason)
	assert.Len(t, cmp.Removals[0].ChildPackIDs, 2)
	assert.Len(t, cmp.Lineage[old[0].PackID], 2)
}

func TestDiffMerge(t *testing.T) {
	// Two packs (1,2) and (4,5) become one pack when seat 3 frees up
	old := persisted(gen.Generate("perf-1", "v1", seats("C", 30, 1, 2, 4, 5), nil))
	require.Len(t, old, 2)
	fresh := gen.Generate("perf-1", "v1", seats("C", 30, 1, 2, 3, 4, 5), nil)
	require.Len(t, fresh, 1)

	cmp := Diff(old, fresh)

	require.Len(t, cmp.Creations, 1)
	assert.Equal(t, models.PackStateMerge, cmp.Creations[0].Origin)
	assert.Len(t, cmp.Creations[0].SourcePackIDs, 2)

	require.Len(t, cmp.Removals, 2)
	for _, r := range cmp.Removals {
		assert.Equal(t, models.DelistReasonTransformed, r.Reason)
	}
}

func TestDiffPureCreateAndVanish(t *testing.T) {
	old := persisted(gen.Generate("perf-1", "v1", seats("A", 50, 1, 2), nil))
	fresh := gen.Generate("perf-1", "v1", seats("D", 50, 10, 11), nil)

	cmp := Diff(old, fresh)

	require.Len(t, cmp.Creations, 1)
	assert.Equal(t, models.PackStateCreate, cmp.Creations[0].Origin)
	assert.Empty(t, cmp.Creations[0].SourcePackIDs)

	require.Len(t, cmp.Removals, 1)
	assert.Equal(t, models.DelistReasonVanished, cmp.Removals[0].Reason)
	assert.Empty(t, cmp.Removals[0].ChildPackIDs)
	assert.Empty(t, cmp.Lineage)
}

func TestDiffIdenticalAndRepriced(t *testing.T) {
	old := persisted(gen.Generate("perf-1", "v1", seats("A", 50, 1, 2, 3), nil))

	t.Run("Identical", func(t *testing.T) {
		fresh := gen.Generate("perf-1", "v1", seats("A", 50, 1, 2, 3), nil)
		cmp := Diff(old, fresh)
		assert.Len(t, cmp.Unchanged, 1)
		assert.Empty(t, cmp.Creations)
		assert.Empty(t, cmp.Removals)
		assert.Empty(t, cmp.PriceUpdates)
	})

	t.Run("Repriced", func(t *testing.T) {
		fresh := gen.Generate("perf-1", "v1", seats("A", 60, 1, 2, 3), nil)
		cmp := Diff(old, fresh)
		require.Len(t, cmp.PriceUpdates, 1)
		assert.Equal(t, old[0].PackID, cmp.PriceUpdates[0].PackID)
		assert.Equal(t, 150.0, cmp.PriceUpdates[0].OldPackPrice)
		assert.Equal(t, 180.0, cmp.PriceUpdates[0].NewPackPrice)
		assert.Equal(t, 60.0, cmp.PriceUpdates[0].NewSeatPrice)
		// Repriced packs never re-enter lineage classification
		assert.Empty(t, cmp.Creations)
		assert.Empty(t, cmp.Removals)
	})
}

func TestDiffResyncs(t *testing.T) {
	old := persisted(gen.Generate("perf-1", "v1", seats("A", 50, 1, 2, 3), nil))
	old[0].POSStatus = models.POSStatusFailed
	fresh := gen.Generate("perf-1", "v1", seats("A", 50, 1, 2, 3), nil)

	cmp := Diff(old, fresh)

	require.Len(t, cmp.Resyncs, 1)
	assert.Equal(t, old[0].PackID, cmp.Resyncs[0].PackID)
}

func TestDiffVanishNextToTransform(t *testing.T) {
	// Row A shrinks, row B disappears entirely. B must stay vanished even
	// though another pack in the same cycle transformed.
	old := persisted(gen.Generate("perf-1", "v1",
		append(seats("A", 50, 1, 2, 3, 4), seats("B", 50, 1, 2)...), nil))
	require.Len(t, old, 2)
	fresh := gen.Generate("perf-1", "v1", seats("A", 50, 1, 2), nil)

	cmp := Diff(old, fresh)

	reasons := make(map[string]models.DelistReason)
	for _, r := range cmp.Removals {
		reasons[r.Pack.Row] = r.Reason
	}
	assert.Equal(t, models.DelistReasonTransformed, reasons["A"])
	assert.Equal(t, models.DelistReasonVanished, reasons["B"])
}

func TestDiffPartitionCompleteness(t *testing.T) {
	old := persisted(gen.Generate("perf-1", "v1",
		append(seats("A", 50, 1, 2, 3, 4, 5, 6), seats("B", 40, 1, 2)...), nil))
	fresh := gen.Generate("perf-1", "v1",
		append(seats("A", 55, 1, 2, 3), seats("C", 20, 7, 8)...), nil)

	cmp := Diff(old, fresh)

	categorized := make(map[string]int)
	for _, c := range cmp.Creations {
		categorized[c.Pack.PackID]++
	}
	for _, p := range cmp.Unchanged {
		categorized[p.PackID]++
	}
	for _, u := range cmp.PriceUpdates {
		categorized[u.PackID]++
	}
	for _, r := range cmp.Removals {
		categorized[r.Pack.PackID]++
	}

	// Every input pack lands in exactly one category
	for _, p := range old {
		assert.Equal(t, 1, categorized[p.PackID], "old pack %s", p.PackID)
	}
	for _, p := range fresh {
		assert.Equal(t, 1, categorized[p.PackID], "new pack %s", p.PackID)
	}
}
