package service

import (
	"context"
	"fmt"
	"time"

	"fleet/internal/domain"
	"fleet/internal/logger"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationDispatchAssigned  NotificationType = "DISPATCH_ASSIGNED"
	NotificationDispatchDeparted  NotificationType = "DISPATCH_DEPARTED"
	NotificationDispatchDelayed   NotificationType = "DISPATCH_DELAYED"
	NotificationDispatchCompleted NotificationType = "DISPATCH_COMPLETED"
	NotificationDispatchCancelled NotificationType = "DISPATCH_CANCELLED"
	NotificationTrackingAlert     NotificationType = "TRACKING_ALERT"
)

// Notification represents a notification to be sent.
type Notification struct {
	Type        NotificationType
	RecipientID string // Driver or customer ID
	Title       string
	Message     string
	Data        map[string]any
	CreatedAt   time.Time
}

// NotificationService handles notification delivery.
type NotificationService struct {
	log logger.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(log logger.Logger) *NotificationService {
	return &NotificationService{log: log}
}

// NotifyDispatchCreated tells the driver about a new assignment.
func (s *NotificationService) NotifyDispatchCreated(ctx context.Context, d *domain.Dispatch, driver *domain.Driver) {
	s.send(ctx, Notification{
		Type:        NotificationDispatchAssigned,
		RecipientID: driver.ID,
		Title:       "New Dispatch",
		Message: fmt.Sprintf("Dispatch %s from %s to %s, departure %s",
			d.DispatchNumber, d.OriginAddress, d.DestinationAddress, d.PlannedDeparture.Format(time.RFC3339)),
		Data: map[string]any{
			"dispatch_id": d.ID,
			"vehicle_id":  d.VehicleID,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyDispatchTransition tells the customer about a status change they
// care about. Other changes are not announced.
func (s *NotificationService) NotifyDispatchTransition(ctx context.Context, d *domain.Dispatch, from domain.DispatchStatus) {
	var typ NotificationType
	var message string

	switch d.Status {
	case domain.DispatchStatusInTransit:
		if from == domain.DispatchStatusDelayed {
			return
		}
		typ, message = NotificationDispatchDeparted, "Your shipment is on its way"
	case domain.DispatchStatusDelayed:
		typ, message = NotificationDispatchDelayed, "Your shipment is delayed"
	case domain.DispatchStatusCompleted:
		typ, message = NotificationDispatchCompleted, "Your shipment has been delivered"
	case domain.DispatchStatusCancelled:
		typ, message = NotificationDispatchCancelled, "Your shipment has been cancelled"
		if d.CancelReason != "" {
			message += ": " + d.CancelReason
		}
	default:
		return
	}

	if d.CustomerID == "" {
		return // No one to notify
	}

	s.send(ctx, Notification{
		Type:        typ,
		RecipientID: d.CustomerID,
		Title:       "Dispatch " + d.DispatchNumber,
		Message:     message,
		Data: map[string]any{
			"dispatch_id": d.ID,
			"from":        from,
			"to":          d.Status,
		},
		CreatedAt: time.Now(),
	})
}

// NotifyAlert tells the driver of a shipment about a HIGH severity alert.
func (s *NotificationService) NotifyAlert(ctx context.Context, shipment *domain.Shipment, alert *domain.TrackingAlert) {
	if alert.Severity != domain.SeverityHigh || shipment.DriverID == "" {
		return
	}
	s.send(ctx, Notification{
		Type:        NotificationTrackingAlert,
		RecipientID: shipment.DriverID,
		Title:       alert.Title,
		Message:     alert.Description,
		Data: map[string]any{
			"shipment_id": shipment.ID,
			"alert_id":    alert.ID,
		},
		CreatedAt: time.Now(),
	})
}

// send delivers a notification. Delivery channels are outside this service;
// notifications are written to the log.
func (s *NotificationService) send(ctx context.Context, n Notification) {
	s.log.Infof(ctx, "[NOTIFICATION] type=%s recipient=%s title=%q message=%q",
		n.Type, n.RecipientID, n.Title, n.Message)
}
