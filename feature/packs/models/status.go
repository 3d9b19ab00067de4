package models

import "fmt"

// PackStatus says whether the pack currently exists in our system.
type PackStatus string

const (
	PackStatusActive   PackStatus = "active"
	PackStatusInactive PackStatus = "inactive"
)

// POSStatus is the pack's state as last known in the external POS.
type POSStatus string

const (
	POSStatusActive      POSStatus = "active"
	POSStatusInactive    POSStatus = "inactive"
	POSStatusPending     POSStatus = "pending"
	POSStatusFailed      POSStatus = "failed"
	POSStatusSuspended   POSStatus = "suspended"
	POSStatusUnderReview POSStatus = "under_review"
)

// PackState records how the pack came to be or what became of it.
// Transformed is terminal.
type PackState string

const (
	PackStateCreate      PackState = "create"
	PackStateSplit       PackState = "split"
	PackStateMerge       PackState = "merge"
	PackStateShrink      PackState = "shrink"
	PackStateDelist      PackState = "delist"
	PackStateTransformed PackState = "transformed"
)

// DelistReason explains a delist or transformed state.
type DelistReason string

const (
	DelistReasonNone                DelistReason = ""
	DelistReasonManual              DelistReason = "manual_delist"
	DelistReasonPerformanceDisabled DelistReason = "performance_disabled"
	DelistReasonTransformed         DelistReason = "transformed"
	DelistReasonVanished            DelistReason = "vanished"
	DelistReasonStructureChange     DelistReason = "structure_change"
	DelistReasonAdminHold           DelistReason = "admin_hold"
)

// POS operation statuses used for crash detection and recovery.
const (
	OperationStarted   = "started"
	OperationCompleted = "completed"
	OperationFailed    = "failed"
)

// stateTransitions lists the allowed lifecycle moves. A delisted pack may be
// manually re-enabled, which re-enters the lifecycle as a fresh create.
var stateTransitions = map[PackState][]PackState{
	PackStateCreate:      {PackStateSplit, PackStateMerge, PackStateShrink, PackStateDelist, PackStateTransformed},
	PackStateSplit:       {PackStateDelist, PackStateTransformed},
	PackStateMerge:       {PackStateDelist, PackStateTransformed},
	PackStateShrink:      {PackStateDelist, PackStateTransformed},
	PackStateDelist:      {PackStateCreate},
	PackStateTransformed: {},
}

// CanTransition reports whether moving from one lifecycle state to another
// is allowed.
func CanTransition(from, to PackState) bool {
	for _, allowed := range stateTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Validate checks the structural invariants every stored pack must satisfy.
func (p *SeatPack) Validate() error {
	if p.PackState == PackStateTransformed && p.PackStatus != PackStatusInactive {
		return fmt.Errorf("pack %s: transformed pack must be inactive", p.PackID)
	}

	if (p.PackState == PackStateDelist || p.PackState == PackStateTransformed) && p.DelistReason == DelistReasonNone {
		return fmt.Errorf("pack %s: state %s requires a delist reason", p.PackID, p.PackState)
	}

	if p.PackStatus == PackStatusInactive && p.POSStatus == POSStatusActive {
		return fmt.Errorf("pack %s: inactive pack cannot still be listed in POS", p.PackID)
	}

	if p.PackSize != len(p.SeatKeys) {
		return fmt.Errorf("pack %s: size %d does not match %d seats", p.PackID, p.PackSize, len(p.SeatKeys))
	}

	return nil
}
