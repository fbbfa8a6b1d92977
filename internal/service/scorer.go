package service

import (
	"math"

	"fleet/internal/domain"
)

// Score weights.
const (
	distanceWeight = 0.4
	vehicleWeight  = 0.3
	driverWeight   = 0.3
)

// Score is the breakdown of a candidate's suitability, each part 0-100.
type Score struct {
	Distance float64 `json:"distance"`
	Vehicle  float64 `json:"vehicle"`
	Driver   float64 `json:"driver"`
	Total    float64 `json:"total"`
}

// FleetScorer rates vehicle and driver pairs for an order.
type FleetScorer struct{}

// Score rates a pair given the distance from the vehicle's last known
// location to the order's origin.
func (FleetScorer) Score(v *domain.Vehicle, d *domain.Driver, distanceKm float64) Score {
	s := Score{
		Distance: math.Max(0, 100-distanceKm),
		Vehicle:  VehicleScore(v),
		Driver:   DriverScore(d),
	}
	s.Total = distanceWeight*s.Distance + vehicleWeight*s.Vehicle + driverWeight*s.Driver
	return s
}

// VehicleScore favours cheap, fuelled vehicles.
func VehicleScore(v *domain.Vehicle) float64 {
	score := 50.0
	if v.MaintenanceCost < 1000 {
		score += 10
	}
	if v.FuelLevel > 50 {
		score += 10
	}
	if v.DailyRate < 1000 {
		score += 10
	}
	return math.Min(score, 100)
}

// DriverScore favours well rated, clean and experienced drivers.
func DriverScore(d *domain.Driver) float64 {
	score := 50 + d.Rating*10
	if d.AccidentCount == 0 {
		score += 10
	}
	if d.ViolationCount == 0 {
		score += 10
	}
	if d.DrivingYears > 5 {
		score += 10
	}
	return math.Min(score, 100)
}
