package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StringList is a JSON-encoded list column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
}

// SeatPack is a contiguous group of seats in one row sold as a single
// inventory unit. The seat set is immutable once created; any change in
// composition is a delist of the old pack plus a creation of a new one.
type SeatPack struct {
	// PackID is the deterministic identifier derived from the pack's
	// source, location and seat composition.
	PackID string `gorm:"primaryKey;size:64" json:"pack_id"`

	// Source identifies the scrape source the seats came from.
	Source string `gorm:"size:64;index" json:"source"`

	// PerformanceID is the performance the seats belong to.
	PerformanceID string `gorm:"size:64;index" json:"performance_id"`

	// VenueID is the venue hosting the performance.
	VenueID string `gorm:"size:64;index" json:"venue_id"`

	// Level, Zone and Row locate the pack inside the venue.
	Level string `gorm:"size:64" json:"level"`
	Zone  string `gorm:"size:64" json:"zone"`
	Row   string `gorm:"size:32" json:"row"`

	// SeatKeys is the ordered seat-id set.
	SeatKeys StringList `gorm:"type:json" json:"seat_keys"`

	// FirstSeat and LastSeat are the boundary seat labels.
	FirstSeat string `gorm:"size:32" json:"first_seat"`
	LastSeat  string `gorm:"size:32" json:"last_seat"`

	// PackSize is the number of seats in the pack.
	PackSize int `json:"pack_size"`

	// SeatPrice is the unit price per seat; PackPrice is the pack total
	// after any venue markup.
	SeatPrice float64 `json:"seat_price"`
	PackPrice float64 `json:"pack_price"`

	// PackStatus is the operational status in our system.
	PackStatus PackStatus `gorm:"size:16;index" json:"pack_status"`

	// POSStatus is the state as last known in the external POS.
	POSStatus POSStatus `gorm:"size:16;index" json:"pos_status"`

	// PackState is the lifecycle state.
	PackState PackState `gorm:"size:16" json:"pack_state"`

	// DelistReason is set when PackState is delist or transformed.
	DelistReason DelistReason `gorm:"size:32" json:"delist_reason"`

	// SourcePackIDs references the pack(s) this pack originated from.
	// Empty for pure creations.
	SourcePackIDs StringList `gorm:"type:json" json:"source_pack_ids"`

	// POSListingID is the external inventory identifier, once pushed.
	POSListingID string `gorm:"size:64" json:"pos_listing_id"`

	// Sync bookkeeping.
	SyncedToPOS     bool       `json:"synced_to_pos"`
	SyncAttempts    int        `json:"sync_attempts"`
	LastSyncAttempt *time.Time `json:"last_sync_attempt"`
	SyncError       string     `gorm:"size:1024" json:"sync_error"`

	// Version is the optimistic lock counter, incremented on every
	// successful write.
	Version int `json:"version"`

	// LockedBy and LockedAt form the exclusive lease. Nil LockedBy means
	// unlocked; at most one holder exists at any time.
	LockedBy *string    `gorm:"size:64;index" json:"locked_by"`
	LockedAt *time.Time `json:"locked_at"`

	// POSOperationID and POSOperationStatus track the in-flight POS
	// operation so a process dying mid-operation can be detected.
	POSOperationID     string `gorm:"size:64" json:"pos_operation_id"`
	POSOperationStatus string `gorm:"size:16" json:"pos_operation_status"`

	// Manual delist audit trail.
	ManuallyDelisted bool       `json:"manually_delisted"`
	DelistedBy       string     `gorm:"size:64" json:"delisted_by"`
	DelistedAt       *time.Time `json:"delisted_at"`
	DelistComment    string     `gorm:"size:512" json:"delist_comment"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name.
func (SeatPack) TableName() string { return "seat_packs" }

// IsLocked reports whether a lease is currently held.
func (p *SeatPack) IsLocked() bool { return p.LockedBy != nil && *p.LockedBy != "" }

// NeedsPush reports whether the POS should receive a create call for this pack.
func (p *SeatPack) NeedsPush() bool {
	if p.SyncedToPOS || p.PackStatus != PackStatusActive {
		return false
	}
	switch p.PackState {
	case PackStateCreate, PackStateSplit, PackStateMerge, PackStateShrink:
		return p.POSStatus == POSStatusPending || p.POSStatus == POSStatusFailed
	}
	return false
}

// NeedsDelist reports whether the POS should receive a delete call for this
// pack. A delisted pack goes pos-inactive in the store immediately; the
// unsynced flag records that the external listing still has to come down.
func (p *SeatPack) NeedsDelist() bool {
	if p.SyncedToPOS {
		return false
	}
	return p.PackState == PackStateDelist || p.PackState == PackStateTransformed
}

// POSListing mirrors a listing created in the external POS, including any
// manual admin hold applied to pause sale.
type POSListing struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// PackID links back to the pack the listing was created for.
	PackID string `gorm:"size:64;index" json:"pack_id"`

	// ListingID is the external inventory identifier.
	ListingID string `gorm:"size:64;uniqueIndex" json:"listing_id"`

	// Status is the listing status as reported by the POS.
	Status string `gorm:"size:32" json:"status"`

	// AdminHold pauses sale without delisting, e.g. after a split.
	AdminHold       bool       `json:"admin_hold"`
	AdminHoldAt     *time.Time `json:"admin_hold_at"`
	AdminHoldReason string     `gorm:"size:256" json:"admin_hold_reason"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name.
func (POSListing) TableName() string { return "pos_listings" }

// FailedRollback is a durable record of a compensating action that itself
// failed. These are never retried automatically; an operator resolves them
// by hand and records the outcome.
type FailedRollback struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// OperationID is the POS operation the rollback belonged to.
	OperationID string `gorm:"size:64;index" json:"operation_id"`

	// PackID is the pack being processed when the rollback failed.
	PackID string `gorm:"size:64;index" json:"pack_id"`

	// Step names the compensating action that failed.
	Step string `gorm:"size:128" json:"step"`

	// Detail holds the failure error text.
	Detail string `gorm:"size:1024" json:"detail"`

	// ResolvedAt and ResolutionNotes record the manual fix.
	ResolvedAt      *time.Time `json:"resolved_at"`
	ResolutionNotes string     `gorm:"size:1024" json:"resolution_notes"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName pins the table name.
func (FailedRollback) TableName() string { return "failed_rollbacks" }

// VenueScheme records the last seat-numbering scheme observed for a venue.
// A change between runs means every pack built under the old scheme is
// structurally wrong and must be rebuilt.
type VenueScheme struct {
	// VenueID identifies the venue.
	VenueID string `gorm:"primaryKey;size:64" json:"venue_id"`

	// Scheme is the recorded numbering scheme, consecutive or odd_even.
	Scheme string `gorm:"size:32" json:"scheme"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name.
func (VenueScheme) TableName() string { return "venue_schemes" }

// SyncHealth is the operator-facing summary served on /status/sync.
type SyncHealth struct {
	// UnsyncedPacks counts active packs not yet confirmed in the POS.
	UnsyncedPacks int `json:"unsynced_packs"`

	// FailedPacks counts packs whose POS status is failed.
	FailedPacks int `json:"failed_packs"`

	// PendingPacks counts packs queued for a push or delist.
	PendingPacks int `json:"pending_packs"`

	// HighRetryPacks counts packs close to the permanent-failure threshold.
	HighRetryPacks int `json:"high_retry_packs"`

	// ActiveLocks counts currently held pack leases.
	ActiveLocks int `json:"active_locks"`

	// StaleLocks counts leases past the stale age, awaiting sweep.
	StaleLocks int `json:"stale_locks"`

	// UnresolvedRollbacks counts failed compensating actions awaiting manual resolution.
	UnresolvedRollbacks int `json:"unresolved_rollbacks"`
}
