package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validPack() *SeatPack {
	return &SeatPack{
		PackID:        "tm_pk_0011223344556677",
		Source:        "tm",
		PerformanceID: "perf-1",
		Zone:          "orchestra",
		Row:           "A",
		SeatKeys:      StringList{"A-1", "A-2", "A-3"},
		PackSize:      3,
		SeatPrice:     50,
		PackPrice:     150,
		PackStatus:    PackStatusActive,
		POSStatus:     POSStatusPending,
		PackState:     PackStateCreate,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SeatPack)
		wantErr string
	}{
		{"Valid", func(p *SeatPack) {}, ""},
		{
			"TransformedMustBeInactive",
			func(p *SeatPack) {
				p.PackState = PackStateTransformed
				p.DelistReason = DelistReasonTransformed
				p.PackStatus = PackStatusActive
				p.POSStatus = POSStatusInactive
			},
			"must be inactive",
		},
		{
			"DelistRequiresReason",
			func(p *SeatPack) {
				p.PackState = PackStateDelist
				p.PackStatus = PackStatusInactive
				p.POSStatus = POSStatusInactive
				p.DelistReason = DelistReasonNone
			},
			"requires a delist reason",
		},
		{
			"InactiveCannotBeListed",
			func(p *SeatPack) {
				p.PackStatus = PackStatusInactive
				p.POSStatus = POSStatusActive
			},
			"cannot still be listed",
		},
		{
			"SizeMatchesSeats",
			func(p *SeatPack) { p.PackSize = 5 },
			"does not match",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPack()
			tt.mutate(p)
			err := p.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to PackState
		want     bool
	}{
		{PackStateCreate, PackStateSplit, true},
		{PackStateCreate, PackStateShrink, true},
		{PackStateCreate, PackStateDelist, true},
		{PackStateSplit, PackStateTransformed, true},
		{PackStateDelist, PackStateCreate, true}, // manual re-enable
		{PackStateTransformed, PackStateCreate, false},
		{PackStateTransformed, PackStateDelist, false},
		{PackStateShrink, PackStateMerge, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestComputePackID(t *testing.T) {
	t.Run("Deterministic", func(t *testing.T) {
		a := ComputePackID("tm", "tm", "perf-1", "main", "orch", "A", []string{"A-1", "A-2"})
		b := ComputePackID("tm", "tm", "perf-1", "main", "orch", "A", []string{"A-2", "A-1"})
		assert.Equal(t, a, b, "seat order must not affect identity")
		assert.Regexp(t, `^tm_pk_[0-9a-f]{16}$`, a)
	})

	t.Run("CompositionSensitive", func(t *testing.T) {
		a := ComputePackID("tm", "tm", "perf-1", "main", "orch", "A", []string{"A-1", "A-2"})
		b := ComputePackID("tm", "tm", "perf-1", "main", "orch", "A", []string{"A-1", "A-3"})
		assert.NotEqual(t, a, b)
	})

	t.Run("LocationSensitive", func(t *testing.T) {
		a := ComputePackID("tm", "tm", "perf-1", "main", "orch", "A", []string{"A-1"})
		b := ComputePackID("tm", "tm", "perf-1", "main", "orch", "B", []string{"A-1"})
		assert.NotEqual(t, a, b)
	})
}

func TestNeedsPushAndDelist(t *testing.T) {
	p := validPack()
	assert.True(t, p.NeedsPush())
	assert.False(t, p.NeedsDelist())

	p.POSStatus = POSStatusActive
	assert.False(t, p.NeedsPush())

	p.PackState = PackStateDelist
	p.DelistReason = DelistReasonVanished
	p.PackStatus = PackStatusInactive
	p.POSStatus = POSStatusPending
	assert.True(t, p.NeedsDelist())
	assert.False(t, p.NeedsPush())
}

func TestStringListScan(t *testing.T) {
	var l StringList
	assert.NoError(t, l.Scan([]byte(`["A-1","A-2"]`)))
	assert.Equal(t, StringList{"A-1", "A-2"}, l)

	assert.NoError(t, l.Scan(nil))
	assert.Empty(t, l)

	v, err := StringList(nil).Value()
	assert.NoError(t, err)
	assert.Equal(t, []byte("[]"), v)
}
