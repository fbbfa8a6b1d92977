package domain

import "time"

// DispatchStatus represents a state of the dispatch lifecycle.
type DispatchStatus string

const (
	DispatchStatusPlanning  DispatchStatus = "PLANNING"
	DispatchStatusScheduled DispatchStatus = "SCHEDULED"
	DispatchStatusAssigned  DispatchStatus = "ASSIGNED"
	DispatchStatusInTransit DispatchStatus = "IN_TRANSIT"
	DispatchStatusDelayed   DispatchStatus = "DELAYED"
	DispatchStatusCompleted DispatchStatus = "COMPLETED"
	DispatchStatusCancelled DispatchStatus = "CANCELLED"
)

// Dispatch is one vehicle/driver assignment covering one or more orders.
type Dispatch struct {
	ID                 string
	DispatchNumber     string
	CustomerID         string
	VehicleID          string
	DriverID           string
	OriginAddress      string
	DestinationAddress string
	Distance           float64 // km
	EstimatedDuration  float64 // hours
	PlannedDeparture   time.Time
	ActualDeparture    time.Time
	EstimatedArrival   time.Time
	ActualArrival      time.Time
	CompletedAt        time.Time
	CancelledAt        time.Time
	TotalWeight        float64
	TotalVolume        float64
	TotalValue         float64
	Cost               CostBreakdown
	Status             DispatchStatus
	Priority           Priority
	Route              *RoutePlan
	Instructions       string
	Requirements       string
	Notes              string
	CancelReason       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CostBreakdown holds the priced components of a dispatch.
type CostBreakdown struct {
	BaseRate      float64 `json:"base_rate"`
	FuelSurcharge float64 `json:"fuel_surcharge"`
	TollFees      float64 `json:"toll_fees"`
	TotalAmount   float64 `json:"total_amount"`
}
