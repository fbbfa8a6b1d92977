package domain

import "time"

// LocationReport is a raw GPS sample as submitted by a device.
type LocationReport struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Speed     float64  `json:"speed"`
	Heading   float64  `json:"heading"`
	Altitude  *float64 `json:"altitude,omitempty"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Address   string   `json:"address,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// TrackingSample is a normalized location report.
type TrackingSample struct {
	Latitude  float64
	Longitude float64
	Speed     float64 // km/h, 0-300
	Heading   float64 // degrees, [0, 360)
	Altitude  *float64
	Accuracy  *float64
	Address   string
	Timestamp time.Time
}

// Coordinates returns the sample position.
func (s TrackingSample) Coordinates() Coordinates {
	return Coordinates{Lat: s.Latitude, Lng: s.Longitude}
}

// TrackingLog is one stored location report. Immutable once written.
type TrackingLog struct {
	ID         string
	ShipmentID string
	Latitude   float64
	Longitude  float64
	Speed      float64
	Heading    float64
	Altitude   *float64
	Accuracy   *float64
	Address    string
	Timestamp  time.Time
	ReceivedAt time.Time
	DeviceID   string
}

// AlertType classifies tracking alerts.
type AlertType string

const AlertTypeDataAnomaly AlertType = "DATA_ANOMALY"

// Severity ranks tracking alerts.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// AlertStatus is the handling state of an alert.
type AlertStatus string

const AlertStatusActive AlertStatus = "ACTIVE"

// TrackingAlert is raised when a batch shows anomalous telemetry.
type TrackingAlert struct {
	ID          string
	ShipmentID  string
	Type        AlertType
	Severity    Severity
	Title       string
	Description string
	Location    *Coordinates
	Status      AlertStatus
	TriggeredAt time.Time
}
