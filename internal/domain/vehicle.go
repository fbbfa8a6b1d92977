package domain

import "time"

// VehicleStatus represents the current status of a vehicle.
type VehicleStatus string

const (
	VehicleStatusAvailable   VehicleStatus = "AVAILABLE"
	VehicleStatusInTransit   VehicleStatus = "IN_TRANSIT"
	VehicleStatusMaintenance VehicleStatus = "MAINTENANCE"
	VehicleStatusOffline     VehicleStatus = "OFFLINE"
)

// Vehicle represents a fleet vehicle. Capacity and cost fields are owned by
// fleet management; dispatching only reads them and moves Status.
type Vehicle struct {
	ID              string
	PlateNumber     string
	Type            string // vehicle class, keys the anomaly policy overrides
	MaxLoad         float64
	MaxVolume       float64
	Status          VehicleStatus
	DailyRate       float64
	MaintenanceCost float64
	FuelLevel       float64 // percent
	DriverID        string  // regular driver, optional
	Location        *Coordinates
	CreatedAt       time.Time
}

// Covers reports whether the vehicle can carry the given cargo.
func (v *Vehicle) Covers(weight, volume float64) bool {
	return weight <= v.MaxLoad && volume <= v.MaxVolume
}
