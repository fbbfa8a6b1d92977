package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"fleet/internal/domain"
	"fleet/internal/service"
)

const dayLayout = "2006-01-02"

// DispatchHandler handles HTTP requests for dispatches.
type DispatchHandler struct {
	dispatchService *service.DispatchService
}

// NewDispatchHandler creates a new DispatchHandler.
func NewDispatchHandler(dispatchService *service.DispatchService) *DispatchHandler {
	return &DispatchHandler{dispatchService: dispatchService}
}

// CreateDispatchRequest is the HTTP request body for creating a dispatch.
type CreateDispatchRequest struct {
	OrderIDs           []string  `json:"order_ids"`
	VehicleID          string    `json:"vehicle_id"`
	DriverID           string    `json:"driver_id"`
	CustomerID         string    `json:"customer_id,omitempty"`
	PlannedDeparture   time.Time `json:"planned_departure"`
	OriginAddress      string    `json:"origin_address"`
	DestinationAddress string    `json:"destination_address"`
	Priority           string    `json:"priority,omitempty"` // LOW, NORMAL, HIGH, URGENT
	TotalWeight        *float64  `json:"total_weight,omitempty"`
	TotalVolume        *float64  `json:"total_volume,omitempty"`
	TotalValue         *float64  `json:"total_value,omitempty"`
	Instructions       string    `json:"instructions,omitempty"`
	Requirements       string    `json:"requirements,omitempty"`
	Notes              string    `json:"notes,omitempty"`
}

// TransitionRequest is the HTTP request body for changing a dispatch status.
type TransitionRequest struct {
	Status         string   `json:"status"`
	ActualDistance *float64 `json:"actual_distance,omitempty"`
	ActualDuration *float64 `json:"actual_duration,omitempty"`
	Reason         string   `json:"reason,omitempty"`
}

// OptimizeRequest is the HTTP request body for a day's batch dispatch.
type OptimizeRequest struct {
	Date string `json:"date"` // YYYY-MM-DD, defaults to today
}

// RouteRequest is the HTTP request body for planning a multi-order route.
type RouteRequest struct {
	OrderIDs  []string `json:"order_ids"`
	VehicleID string   `json:"vehicle_id"`
}

// DispatchResponse is the HTTP representation of a dispatch.
type DispatchResponse struct {
	ID                 string               `json:"id"`
	DispatchNumber     string               `json:"dispatch_number"`
	CustomerID         string               `json:"customer_id"`
	VehicleID          string               `json:"vehicle_id"`
	DriverID           string               `json:"driver_id"`
	OriginAddress      string               `json:"origin_address"`
	DestinationAddress string               `json:"destination_address"`
	Distance           float64              `json:"distance"`
	EstimatedDuration  float64              `json:"estimated_duration"`
	PlannedDeparture   string               `json:"planned_departure"`
	ActualDeparture    string               `json:"actual_departure,omitempty"`
	EstimatedArrival   string               `json:"estimated_arrival,omitempty"`
	ActualArrival      string               `json:"actual_arrival,omitempty"`
	CompletedAt        string               `json:"completed_at,omitempty"`
	CancelledAt        string               `json:"cancelled_at,omitempty"`
	CancelReason       string               `json:"cancel_reason,omitempty"`
	TotalWeight        float64              `json:"total_weight"`
	TotalVolume        float64              `json:"total_volume"`
	TotalValue         float64              `json:"total_value"`
	Cost               domain.CostBreakdown `json:"cost"`
	Status             string               `json:"status"`
	Priority           string               `json:"priority"`
	Route              *domain.RoutePlan    `json:"route,omitempty"`
	Instructions       string               `json:"instructions,omitempty"`
	Requirements       string               `json:"requirements,omitempty"`
	Notes              string               `json:"notes,omitempty"`
	Shipments          []ShipmentResponse   `json:"shipments,omitempty"`
}

// ShipmentResponse is the HTTP representation of a shipment.
type ShipmentResponse struct {
	ID                 string              `json:"id"`
	ShipmentNumber     string              `json:"shipment_number"`
	OrderID            string              `json:"order_id"`
	DispatchID         string              `json:"dispatch_id"`
	Sequence           int                 `json:"sequence"`
	Status             string              `json:"status"`
	OriginAddress      string              `json:"origin_address"`
	DestinationAddress string              `json:"destination_address"`
	Weight             float64             `json:"weight"`
	Volume             float64             `json:"volume"`
	Value              float64             `json:"value"`
	EstimatedDeparture string              `json:"estimated_departure"`
	EstimatedArrival   string              `json:"estimated_arrival"`
	ActualDeparture    string              `json:"actual_departure,omitempty"`
	ActualArrival      string              `json:"actual_arrival,omitempty"`
	CurrentLocation    *domain.Coordinates `json:"current_location,omitempty"`
}

// ListDispatchesResponse is the HTTP response for listing dispatches.
type ListDispatchesResponse struct {
	Dispatches []DispatchResponse `json:"dispatches"`
	Pagination service.Pagination `json:"pagination"`
}

// RouteResponse is the HTTP response for a planned route.
type RouteResponse struct {
	Waypoints         []domain.Waypoint `json:"waypoints"`
	TotalDistance     float64           `json:"total_distance"`
	EstimatedDuration int               `json:"estimated_duration"` // minutes
	TotalWeight       float64           `json:"total_weight"`
	TotalVolume       float64           `json:"total_volume"`
}

// CreateDispatch handles POST /v1/dispatches
func (h *DispatchHandler) CreateDispatch(c *gin.Context) {
	var req CreateDispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	priority := domain.Priority(req.Priority)
	if req.Priority != "" && !priority.Valid() {
		respondBadRequest(c, "invalid priority")
		return
	}

	result, err := h.dispatchService.CreateDispatch(c.Request.Context(), service.CreateDispatchRequest{
		OrderIDs:           req.OrderIDs,
		VehicleID:          req.VehicleID,
		DriverID:           req.DriverID,
		CustomerID:         req.CustomerID,
		PlannedDeparture:   req.PlannedDeparture,
		OriginAddress:      req.OriginAddress,
		DestinationAddress: req.DestinationAddress,
		Priority:           priority,
		TotalWeight:        req.TotalWeight,
		TotalVolume:        req.TotalVolume,
		TotalValue:         req.TotalValue,
		Instructions:       req.Instructions,
		Requirements:       req.Requirements,
		Notes:              req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toDispatchResponse(result.Dispatch, result.Shipments))
}

// GetDispatch handles GET /v1/dispatches/:id
func (h *DispatchHandler) GetDispatch(c *gin.Context) {
	detail, err := h.dispatchService.GetDispatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDispatchResponse(detail.Dispatch, detail.Shipments))
}

// ListDispatches handles GET /v1/dispatches
func (h *DispatchHandler) ListDispatches(c *gin.Context) {
	from, to, ok := timeRange(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.dispatchService.ListDispatches(c.Request.Context(), service.ListDispatchesRequest{
		Status:    domain.DispatchStatus(c.Query("status")),
		VehicleID: c.Query("vehicle_id"),
		DriverID:  c.Query("driver_id"),
		From:      from,
		To:        to,
		Page:      page,
		Limit:     limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := ListDispatchesResponse{
		Dispatches: make([]DispatchResponse, 0, len(result.Dispatches)),
		Pagination: result.Pagination,
	}
	for _, d := range result.Dispatches {
		resp.Dispatches = append(resp.Dispatches, toDispatchResponse(d, nil))
	}
	respondJSON(c, http.StatusOK, resp)
}

// Transition handles POST /v1/dispatches/:id/transitions
func (h *DispatchHandler) Transition(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	d, err := h.dispatchService.TransitionDispatch(c.Request.Context(), service.TransitionRequest{
		DispatchID:     c.Param("id"),
		To:             domain.DispatchStatus(req.Status),
		ActualDistance: req.ActualDistance,
		ActualDuration: req.ActualDuration,
		Reason:         req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDispatchResponse(d, nil))
}

// Optimize handles POST /v1/dispatches/optimize
func (h *DispatchHandler) Optimize(c *gin.Context) {
	var req OptimizeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body")
			return
		}
	}

	day := time.Now()
	if req.Date != "" {
		parsed, err := time.ParseInLocation(dayLayout, req.Date, time.Local)
		if err != nil {
			respondBadRequest(c, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	results, err := h.dispatchService.OptimizeDispatch(c.Request.Context(), day)
	if err != nil {
		respondError(c, err)
		return
	}

	dispatched := 0
	for _, r := range results {
		if r.Status == service.OptimizeDispatched {
			dispatched++
		}
	}
	respondJSON(c, http.StatusOK, gin.H{
		"date":       day.Format(dayLayout),
		"total":      len(results),
		"dispatched": dispatched,
		"results":    results,
	})
}

// OptimizeRoute handles POST /v1/dispatches/route
func (h *DispatchHandler) OptimizeRoute(c *gin.Context) {
	var req RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	summary, err := h.dispatchService.OptimizeRoute(c.Request.Context(), req.OrderIDs, req.VehicleID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, RouteResponse{
		Waypoints:         summary.Plan.Waypoints,
		TotalDistance:     summary.Plan.TotalDistanceKm,
		EstimatedDuration: summary.Plan.EstimatedMinutes,
		TotalWeight:       summary.TotalWeight,
		TotalVolume:       summary.TotalVolume,
	})
}

// Statistics handles GET /v1/dispatches/statistics
func (h *DispatchHandler) Statistics(c *gin.Context) {
	from, to, ok := timeRange(c)
	if !ok {
		return
	}

	stats, err := h.dispatchService.Statistics(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, stats)
}

// timeRange reads the optional from/to query parameters. It writes the
// error response itself when a value is malformed.
func timeRange(c *gin.Context) (from, to time.Time, ok bool) {
	var err error
	if from, err = parseTimeParam(c.Query("from")); err != nil {
		respondBadRequest(c, "from must be RFC3339 or YYYY-MM-DD")
		return from, to, false
	}
	if to, err = parseTimeParam(c.Query("to")); err != nil {
		respondBadRequest(c, "to must be RFC3339 or YYYY-MM-DD")
		return from, to, false
	}
	return from, to, true
}

func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.ParseInLocation(dayLayout, v, time.Local)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func toDispatchResponse(d *domain.Dispatch, shipments []*domain.Shipment) DispatchResponse {
	resp := DispatchResponse{
		ID:                 d.ID,
		DispatchNumber:     d.DispatchNumber,
		CustomerID:         d.CustomerID,
		VehicleID:          d.VehicleID,
		DriverID:           d.DriverID,
		OriginAddress:      d.OriginAddress,
		DestinationAddress: d.DestinationAddress,
		Distance:           d.Distance,
		EstimatedDuration:  d.EstimatedDuration,
		PlannedDeparture:   formatTime(d.PlannedDeparture),
		ActualDeparture:    formatTime(d.ActualDeparture),
		EstimatedArrival:   formatTime(d.EstimatedArrival),
		ActualArrival:      formatTime(d.ActualArrival),
		CompletedAt:        formatTime(d.CompletedAt),
		CancelledAt:        formatTime(d.CancelledAt),
		CancelReason:       d.CancelReason,
		TotalWeight:        d.TotalWeight,
		TotalVolume:        d.TotalVolume,
		TotalValue:         d.TotalValue,
		Cost:               d.Cost,
		Status:             string(d.Status),
		Priority:           string(d.Priority),
		Route:              d.Route,
		Instructions:       d.Instructions,
		Requirements:       d.Requirements,
		Notes:              d.Notes,
	}
	for _, s := range shipments {
		resp.Shipments = append(resp.Shipments, toShipmentResponse(s))
	}
	return resp
}

func toShipmentResponse(s *domain.Shipment) ShipmentResponse {
	return ShipmentResponse{
		ID:                 s.ID,
		ShipmentNumber:     s.ShipmentNumber,
		OrderID:            s.OrderID,
		DispatchID:         s.DispatchID,
		Sequence:           s.Sequence,
		Status:             string(s.Status),
		OriginAddress:      s.OriginAddress,
		DestinationAddress: s.DestinationAddress,
		Weight:             s.Weight,
		Volume:             s.Volume,
		Value:              s.Value,
		EstimatedDeparture: formatTime(s.EstimatedDeparture),
		EstimatedArrival:   formatTime(s.EstimatedArrival),
		ActualDeparture:    formatTime(s.ActualDeparture),
		ActualArrival:      formatTime(s.ActualArrival),
		CurrentLocation:    s.CurrentLocation,
	}
}
