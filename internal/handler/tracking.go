package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fleet/internal/domain"
	"fleet/internal/service"
)

// TrackingHandler handles HTTP requests for shipment tracking.
type TrackingHandler struct {
	trackingService *service.TrackingService
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(trackingService *service.TrackingService) *TrackingHandler {
	return &TrackingHandler{trackingService: trackingService}
}

// BatchRequest is the HTTP request body for a batch of location reports.
type BatchRequest struct {
	ShipmentID string                  `json:"shipment_id"`
	DeviceID   string                  `json:"device_id,omitempty"`
	Locations  []domain.LocationReport `json:"locations"`
}

// BatchResponse is the HTTP response for a processed batch.
type BatchResponse struct {
	Total      int                     `json:"total"`
	Successful int                     `json:"successful"`
	Failed     int                     `json:"failed"`
	Errors     []service.ItemFailure   `json:"errors,omitempty"`
	Statistics service.BatchStatistics `json:"statistics"`
	Alerts     []AlertResponse         `json:"alerts"`
}

// AlertResponse is the HTTP representation of a tracking alert.
type AlertResponse struct {
	ID          string              `json:"id"`
	ShipmentID  string              `json:"shipment_id"`
	Type        string              `json:"type"`
	Severity    string              `json:"severity"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Location    *domain.Coordinates `json:"location,omitempty"`
	Status      string              `json:"status"`
	TriggeredAt string              `json:"triggered_at"`
}

// LogResponse is the HTTP representation of a stored location report.
type LogResponse struct {
	ID         string   `json:"id"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Speed      float64  `json:"speed"`
	Heading    float64  `json:"heading"`
	Altitude   *float64 `json:"altitude,omitempty"`
	Accuracy   *float64 `json:"accuracy,omitempty"`
	Address    string   `json:"address,omitempty"`
	Timestamp  string   `json:"timestamp"`
	ReceivedAt string   `json:"received_at"`
	DeviceID   string   `json:"device_id,omitempty"`
}

// IngestBatch handles POST /v1/tracking/batch
func (h *TrackingHandler) IngestBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	result, err := h.trackingService.IngestBatch(c.Request.Context(), service.IngestRequest{
		ShipmentID: req.ShipmentID,
		Reports:    req.Locations,
		DeviceID:   req.DeviceID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	resp := BatchResponse{
		Total:      result.Total,
		Successful: result.Successful,
		Failed:     result.Failed,
		Errors:     result.Errors,
		Statistics: result.Statistics,
		Alerts:     make([]AlertResponse, 0, len(result.Alerts)),
	}
	for _, a := range result.Alerts {
		resp.Alerts = append(resp.Alerts, toAlertResponse(a))
	}
	respondJSON(c, http.StatusOK, resp)
}

// ListAlerts handles GET /v1/tracking/shipments/:id/alerts
func (h *TrackingHandler) ListAlerts(c *gin.Context) {
	alerts, err := h.trackingService.ListAlerts(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]AlertResponse, 0, len(alerts))
	for _, a := range alerts {
		resp = append(resp, toAlertResponse(a))
	}
	respondJSON(c, http.StatusOK, gin.H{"alerts": resp, "count": len(resp)})
}

// ListLogs handles GET /v1/tracking/shipments/:id/logs
func (h *TrackingHandler) ListLogs(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondBadRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	logs, err := h.trackingService.ListLogs(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]LogResponse, 0, len(logs))
	for _, l := range logs {
		resp = append(resp, LogResponse{
			ID:         l.ID,
			Latitude:   l.Latitude,
			Longitude:  l.Longitude,
			Speed:      l.Speed,
			Heading:    l.Heading,
			Altitude:   l.Altitude,
			Accuracy:   l.Accuracy,
			Address:    l.Address,
			Timestamp:  formatTime(l.Timestamp),
			ReceivedAt: formatTime(l.ReceivedAt),
			DeviceID:   l.DeviceID,
		})
	}
	respondJSON(c, http.StatusOK, gin.H{"logs": resp, "count": len(resp)})
}

func toAlertResponse(a *domain.TrackingAlert) AlertResponse {
	return AlertResponse{
		ID:          a.ID,
		ShipmentID:  a.ShipmentID,
		Type:        string(a.Type),
		Severity:    string(a.Severity),
		Title:       a.Title,
		Description: a.Description,
		Location:    a.Location,
		Status:      string(a.Status),
		TriggeredAt: formatTime(a.TriggeredAt),
	}
}
