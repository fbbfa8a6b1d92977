package domain

import "time"

// DriverStatus represents the current status of a driver.
type DriverStatus string

const (
	DriverStatusAvailable DriverStatus = "AVAILABLE"
	DriverStatusOnDuty    DriverStatus = "ON_DUTY"
	DriverStatusDriving   DriverStatus = "DRIVING"
	DriverStatusOffDuty   DriverStatus = "OFF_DUTY"
	DriverStatusOnLeave   DriverStatus = "ON_LEAVE"
)

// Driver represents a driver in the fleet.
type Driver struct {
	ID             string
	DriverNumber   string
	Name           string
	Phone          string
	Status         DriverStatus
	Rating         float64 // 0-5
	AccidentCount  int
	ViolationCount int
	DrivingYears   int
	CreatedAt      time.Time
}
