package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleet/internal/domain"
	"fleet/internal/service"
)

// FleetHandler serves vehicle, driver and order availability.
type FleetHandler struct {
	dispatchService *service.DispatchService
}

// NewFleetHandler creates a new FleetHandler.
func NewFleetHandler(dispatchService *service.DispatchService) *FleetHandler {
	return &FleetHandler{dispatchService: dispatchService}
}

// MatchRequest is the HTTP request body for finding a vehicle for an order.
type MatchRequest struct {
	OrderID       string    `json:"order_id"`
	ScheduledTime time.Time `json:"scheduled_time,omitempty"`
}

// VehicleResponse is the HTTP representation of a vehicle.
type VehicleResponse struct {
	ID          string              `json:"id"`
	PlateNumber string              `json:"plate_number"`
	Type        string              `json:"type"`
	MaxLoad     float64             `json:"max_load"`
	MaxVolume   float64             `json:"max_volume"`
	Status      string              `json:"status"`
	FuelLevel   float64             `json:"fuel_level"`
	Location    *domain.Coordinates `json:"location,omitempty"`
}

// DriverResponse is the HTTP representation of a driver.
type DriverResponse struct {
	ID           string  `json:"id"`
	DriverNumber string  `json:"driver_number,omitempty"`
	Name         string  `json:"name"`
	Phone        string  `json:"phone,omitempty"`
	Status       string  `json:"status"`
	Rating       float64 `json:"rating"`
	DrivingYears int     `json:"driving_years"`
}

// OrderResponse is the HTTP representation of an order.
type OrderResponse struct {
	ID                 string  `json:"id"`
	OrderNumber        string  `json:"order_number,omitempty"`
	CustomerID         string  `json:"customer_id"`
	OriginAddress      string  `json:"origin_address"`
	DestinationAddress string  `json:"destination_address"`
	CargoWeight        float64 `json:"cargo_weight"`
	CargoVolume        float64 `json:"cargo_volume"`
	CargoValue         float64 `json:"cargo_value"`
	ExpectedTime       string  `json:"expected_time,omitempty"`
	Priority           string  `json:"priority"`
	Status             string  `json:"status"`
}

// AvailableVehicleResponse pairs a vehicle with the driver it would go out with.
type AvailableVehicleResponse struct {
	Vehicle VehicleResponse `json:"vehicle"`
	Driver  DriverResponse  `json:"driver"`
}

// MatchResponse is the HTTP response for a vehicle match.
type MatchResponse struct {
	Vehicle    VehicleResponse `json:"vehicle"`
	Driver     DriverResponse  `json:"driver"`
	DistanceKm float64         `json:"distance_km"`
	Score      service.Score   `json:"score"`
}

// AvailableVehicles handles GET /v1/fleet/available-vehicles
func (h *FleetHandler) AvailableVehicles(c *gin.Context) {
	pairs, err := h.dispatchService.AvailableVehicles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]AvailableVehicleResponse, 0, len(pairs))
	for _, p := range pairs {
		resp = append(resp, AvailableVehicleResponse{
			Vehicle: toVehicleResponse(p.Vehicle),
			Driver:  toDriverResponse(p.Driver),
		})
	}
	respondJSON(c, http.StatusOK, gin.H{"vehicles": resp, "count": len(resp)})
}

// AvailableOrders handles GET /v1/fleet/available-orders
func (h *FleetHandler) AvailableOrders(c *gin.Context) {
	orders, err := h.dispatchService.AvailableOrders(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}
	respondJSON(c, http.StatusOK, gin.H{"orders": resp, "count": len(resp)})
}

// Match handles POST /v1/fleet/match
func (h *FleetHandler) Match(c *gin.Context) {
	var req MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	scheduled := req.ScheduledTime
	if scheduled.IsZero() {
		scheduled = time.Now()
	}

	m, err := h.dispatchService.FindOptimalVehicle(c.Request.Context(), req.OrderID, scheduled)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, MatchResponse{
		Vehicle:    toVehicleResponse(m.Vehicle),
		Driver:     toDriverResponse(m.Driver),
		DistanceKm: m.DistanceKm,
		Score:      m.Score,
	})
}

func toVehicleResponse(v *domain.Vehicle) VehicleResponse {
	return VehicleResponse{
		ID:          v.ID,
		PlateNumber: v.PlateNumber,
		Type:        v.Type,
		MaxLoad:     v.MaxLoad,
		MaxVolume:   v.MaxVolume,
		Status:      string(v.Status),
		FuelLevel:   v.FuelLevel,
		Location:    v.Location,
	}
}

func toDriverResponse(d *domain.Driver) DriverResponse {
	return DriverResponse{
		ID:           d.ID,
		DriverNumber: d.DriverNumber,
		Name:         d.Name,
		Phone:        d.Phone,
		Status:       string(d.Status),
		Rating:       d.Rating,
		DrivingYears: d.DrivingYears,
	}
}

func toOrderResponse(o *domain.Order) OrderResponse {
	return OrderResponse{
		ID:                 o.ID,
		OrderNumber:        o.OrderNumber,
		CustomerID:         o.CustomerID,
		OriginAddress:      o.OriginAddress,
		DestinationAddress: o.DestinationAddress,
		CargoWeight:        o.CargoWeight,
		CargoVolume:        o.CargoVolume,
		CargoValue:         o.CargoValue,
		ExpectedTime:       formatTime(o.ExpectedTime),
		Priority:           string(o.Priority),
		Status:             string(o.Status),
	}
}
