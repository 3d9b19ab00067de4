package possync

import (
	"fmt"

	"packsync/feature/packs/models"
)

// BuildPayload maps a seat pack onto the POS listing shape. The pack id
// rides along as externalId so listings stay traceable both ways.
func BuildPayload(pack *models.SeatPack, cfg Config) ListingPayload {
	return ListingPayload{
		ExternalID:   pack.PackID,
		EventID:      pack.PerformanceID,
		VenueID:      pack.VenueID,
		Section:      pack.Zone,
		Row:          pack.Row,
		Seats:        append([]string(nil), pack.SeatKeys...),
		TicketCount:  pack.PackSize,
		UnitCost:     pack.SeatPrice,
		Currency:     cfg.Currency,
		DeliveryType: cfg.DeliveryType,
	}
}

// ValidateForListing rejects packs that would produce a broken or
// misleading POS listing. Failing here costs nothing; failing on the
// POS side costs an API round trip and a retry slot.
func ValidateForListing(pack *models.SeatPack, adminHeld bool) error {
	if pack.PackStatus != models.PackStatusActive {
		return fmt.Errorf("pack %s is not active", pack.PackID)
	}
	if pack.ManuallyDelisted {
		return fmt.Errorf("pack %s was manually delisted", pack.PackID)
	}
	if adminHeld {
		return fmt.Errorf("pack %s has an admin hold on its listing", pack.PackID)
	}
	if pack.PackSize <= 0 {
		return fmt.Errorf("pack %s has no seats", pack.PackID)
	}
	if len(pack.SeatKeys) == 0 {
		return fmt.Errorf("pack %s has an empty seat list", pack.PackID)
	}
	if pack.PackSize != len(pack.SeatKeys) {
		return fmt.Errorf("pack %s size %d does not match its %d seats", pack.PackID, pack.PackSize, len(pack.SeatKeys))
	}
	if pack.SeatPrice <= 0 || pack.PackPrice <= 0 {
		return fmt.Errorf("pack %s has a zero price", pack.PackID)
	}
	if pack.Row == "" || pack.Zone == "" {
		return fmt.Errorf("pack %s is missing row or zone", pack.PackID)
	}
	return nil
}
