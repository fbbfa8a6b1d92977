package domain

import "time"

// ShipmentStatus represents the current status of a shipment.
type ShipmentStatus string

const (
	ShipmentStatusScheduled ShipmentStatus = "SCHEDULED"
	ShipmentStatusInTransit ShipmentStatus = "IN_TRANSIT"
	ShipmentStatusDelivered ShipmentStatus = "DELIVERED"
	ShipmentStatusCancelled ShipmentStatus = "CANCELLED"
)

// IsTerminal reports whether the shipment can no longer change.
func (s ShipmentStatus) IsTerminal() bool {
	return s == ShipmentStatusDelivered || s == ShipmentStatusCancelled
}

// Shipment is the per-order slice of a dispatch.
type Shipment struct {
	ID                 string
	ShipmentNumber     string
	OrderID            string
	DispatchID         string
	VehicleID          string
	DriverID           string
	OriginAddress      string
	DestinationAddress string
	Weight             float64
	Volume             float64
	Value              float64
	Sequence           int // 1..N within the dispatch
	Status             ShipmentStatus
	EstimatedDeparture time.Time
	EstimatedArrival   time.Time
	ActualDeparture    time.Time
	ActualArrival      time.Time
	CurrentLocation    *Coordinates
	LocationUpdatedAt  time.Time
	CreatedAt          time.Time
}
