package possync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packsync/feature/packs/models"
)

func TestBuildPayload(t *testing.T) {
	pack := pendingPack("pack-1")
	payload := BuildPayload(pack, Config{Currency: "EUR", DeliveryType: "mobile"})

	assert.Equal(t, "pack-1", payload.ExternalID)
	assert.Equal(t, "perf-1", payload.EventID)
	assert.Equal(t, "orchestra", payload.Section)
	assert.Equal(t, "A", payload.Row)
	assert.Equal(t, []string{"A-1", "A-2"}, payload.Seats)
	assert.Equal(t, 2, payload.TicketCount)
	assert.Equal(t, 50.0, payload.UnitCost)
	assert.Equal(t, "EUR", payload.Currency)
	assert.Equal(t, "mobile", payload.DeliveryType)

	// The seat slice must be a copy, not a view of the pack.
	payload.Seats[0] = "Z-9"
	assert.Equal(t, "A-1", pack.SeatKeys[0])
}

func TestValidateForListing(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.SeatPack)
		held    bool
		wantErr string
	}{
		{name: "Valid", mutate: func(*models.SeatPack) {}},
		{
			name:    "Inactive",
			mutate:  func(p *models.SeatPack) { p.PackStatus = models.PackStatusInactive },
			wantErr: "not active",
		},
		{
			name:    "ManuallyDelisted",
			mutate:  func(p *models.SeatPack) { p.ManuallyDelisted = true },
			wantErr: "manually delisted",
		},
		{
			name:    "AdminHeld",
			mutate:  func(*models.SeatPack) {},
			held:    true,
			wantErr: "admin hold",
		},
		{
			name:    "EmptySeats",
			mutate:  func(p *models.SeatPack) { p.SeatKeys = nil; p.PackSize = 0 },
			wantErr: "no seats",
		},
		{
			name:    "SizeMismatch",
			mutate:  func(p *models.SeatPack) { p.PackSize = 5 },
			wantErr: "does not match",
		},
		{
			name:    "ZeroPrice",
			mutate:  func(p *models.SeatPack) { p.SeatPrice = 0 },
			wantErr: "zero price",
		},
		{
			name:    "MissingRow",
			mutate:  func(p *models.SeatPack) { p.Row = "" },
			wantErr: "missing row or zone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pack := pendingPack("pack-1")
			tt.mutate(pack)

			err := ValidateForListing(pack, tt.held)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
