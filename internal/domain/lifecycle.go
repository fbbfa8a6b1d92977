package domain

// SideEffect is an action applied to a dispatch when it enters a state.
type SideEffect string

const (
	// EffectStampDeparture sets ActualDeparture when it is still unset.
	EffectStampDeparture SideEffect = "STAMP_DEPARTURE"
	// EffectStampArrival sets ActualArrival and CompletedAt.
	EffectStampArrival SideEffect = "STAMP_ARRIVAL"
	// EffectRecordActuals overwrites distance and duration with supplied actuals.
	EffectRecordActuals SideEffect = "RECORD_ACTUALS"
	// EffectStampCancelled sets CancelledAt and records the reason.
	EffectStampCancelled SideEffect = "STAMP_CANCELLED"
)

// Transition is one row of the dispatch lifecycle table. Empty resource
// statuses leave the linked entity untouched.
type Transition struct {
	From     DispatchStatus
	To       DispatchStatus
	Vehicle  VehicleStatus
	Driver   DriverStatus
	Shipment ShipmentStatus
	Order    OrderStatus
	Effects  []SideEffect
}

// HasEffect reports whether the transition carries the given side effect.
func (t Transition) HasEffect(e SideEffect) bool {
	for _, eff := range t.Effects {
		if eff == e {
			return true
		}
	}
	return false
}

// onEnter lists what entering a state does, regardless of the source state.
var onEnter = map[DispatchStatus]Transition{
	DispatchStatusScheduled: {},
	DispatchStatusAssigned: {
		Vehicle: VehicleStatusInTransit,
		Driver:  DriverStatusOnDuty,
		Effects: []SideEffect{EffectStampDeparture},
	},
	DispatchStatusInTransit: {
		Vehicle:  VehicleStatusInTransit,
		Driver:   DriverStatusDriving,
		Shipment: ShipmentStatusInTransit,
		Effects:  []SideEffect{EffectStampDeparture},
	},
	DispatchStatusDelayed: {},
	DispatchStatusCompleted: {
		Vehicle:  VehicleStatusAvailable,
		Driver:   DriverStatusOnDuty,
		Shipment: ShipmentStatusDelivered,
		Effects:  []SideEffect{EffectStampArrival, EffectRecordActuals},
	},
	DispatchStatusCancelled: {
		Vehicle:  VehicleStatusAvailable,
		Driver:   DriverStatusAvailable,
		Shipment: ShipmentStatusCancelled,
		Order:    OrderStatusConfirmed,
		Effects:  []SideEffect{EffectStampCancelled},
	},
}

// allowed is the lifecycle graph. COMPLETED and CANCELLED have no exits.
var allowed = map[DispatchStatus][]DispatchStatus{
	DispatchStatusPlanning:  {DispatchStatusScheduled, DispatchStatusCancelled},
	DispatchStatusScheduled: {DispatchStatusAssigned, DispatchStatusCancelled},
	DispatchStatusAssigned:  {DispatchStatusInTransit, DispatchStatusCancelled},
	DispatchStatusInTransit: {DispatchStatusCompleted, DispatchStatusDelayed, DispatchStatusCancelled},
	DispatchStatusDelayed:   {DispatchStatusInTransit, DispatchStatusCompleted, DispatchStatusCancelled},
}

// DispatchStatuses lists every lifecycle state.
func DispatchStatuses() []DispatchStatus {
	return []DispatchStatus{
		DispatchStatusPlanning,
		DispatchStatusScheduled,
		DispatchStatusAssigned,
		DispatchStatusInTransit,
		DispatchStatusDelayed,
		DispatchStatusCompleted,
		DispatchStatusCancelled,
	}
}

// Valid reports whether s is a known lifecycle state.
func (s DispatchStatus) Valid() bool {
	for _, st := range DispatchStatuses() {
		if st == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s DispatchStatus) IsTerminal() bool {
	return s == DispatchStatusCompleted || s == DispatchStatusCancelled
}

// CanTransitionTo reports whether from -> to is in the lifecycle table.
func (s DispatchStatus) CanTransitionTo(to DispatchStatus) bool {
	for _, next := range allowed[s] {
		if next == to {
			return true
		}
	}
	return false
}

// LookupTransition returns the table row for from -> to.
func LookupTransition(from, to DispatchStatus) (Transition, bool) {
	if !from.CanTransitionTo(to) {
		return Transition{}, false
	}
	t := onEnter[to]
	t.From = from
	t.To = to
	return t, true
}
