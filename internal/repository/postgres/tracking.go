package postgres

import (
	"context"
	"database/sql"

	"fleet/internal/domain"
)

// TrackingRepository is a PostgreSQL implementation of repository.TrackingRepository.
type TrackingRepository struct {
	q Querier
}

// NewTrackingRepository creates a new PostgreSQL tracking repository.
func NewTrackingRepository(db *sql.DB) *TrackingRepository {
	return &TrackingRepository{q: db}
}

// InsertLog persists one tracking log.
func (r *TrackingRepository) InsertLog(ctx context.Context, l *domain.TrackingLog) error {
	query := `
		INSERT INTO tracking_logs (id, shipment_id, latitude, longitude, speed, heading,
			altitude, accuracy, address, ts, received_at, device_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.q.ExecContext(ctx, query,
		l.ID,
		l.ShipmentID,
		l.Latitude,
		l.Longitude,
		l.Speed,
		l.Heading,
		nullFloatPtr(l.Altitude),
		nullFloatPtr(l.Accuracy),
		nullString(l.Address),
		l.Timestamp,
		l.ReceivedAt,
		nullString(l.DeviceID),
	)
	return err
}

// ListLogs returns the latest logs of a shipment, newest first.
func (r *TrackingRepository) ListLogs(ctx context.Context, shipmentID string, limit int) ([]*domain.TrackingLog, error) {
	query := `
		SELECT id, shipment_id, latitude, longitude, speed, heading, altitude, accuracy,
			COALESCE(address, ''), ts, received_at, COALESCE(device_id, '')
		FROM tracking_logs WHERE shipment_id = $1
		ORDER BY ts DESC, id LIMIT $2
	`
	rows, err := r.q.QueryContext(ctx, query, shipmentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*domain.TrackingLog
	for rows.Next() {
		var l domain.TrackingLog
		var altitude, accuracy sql.NullFloat64
		if err := rows.Scan(
			&l.ID,
			&l.ShipmentID,
			&l.Latitude,
			&l.Longitude,
			&l.Speed,
			&l.Heading,
			&altitude,
			&accuracy,
			&l.Address,
			&l.Timestamp,
			&l.ReceivedAt,
			&l.DeviceID,
		); err != nil {
			return nil, err
		}
		l.Altitude = floatPtr(altitude)
		l.Accuracy = floatPtr(accuracy)
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

// InsertAlerts persists alerts raised for one batch.
func (r *TrackingRepository) InsertAlerts(ctx context.Context, alerts []*domain.TrackingAlert) error {
	query := `
		INSERT INTO tracking_alerts (id, shipment_id, type, severity, title, description,
			lat, lng, status, triggered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for _, a := range alerts {
		var lat, lng sql.NullFloat64
		if a.Location != nil {
			lat = sql.NullFloat64{Float64: a.Location.Lat, Valid: true}
			lng = sql.NullFloat64{Float64: a.Location.Lng, Valid: true}
		}
		if _, err := r.q.ExecContext(ctx, query,
			a.ID,
			a.ShipmentID,
			a.Type,
			a.Severity,
			a.Title,
			a.Description,
			lat,
			lng,
			a.Status,
			a.TriggeredAt,
		); err != nil {
			return err
		}
	}
	return nil
}

// ListAlerts returns the alerts of a shipment, newest first.
func (r *TrackingRepository) ListAlerts(ctx context.Context, shipmentID string) ([]*domain.TrackingAlert, error) {
	query := `
		SELECT id, shipment_id, type, severity, title, description, lat, lng, status, triggered_at
		FROM tracking_alerts WHERE shipment_id = $1
		ORDER BY triggered_at DESC, id
	`
	rows, err := r.q.QueryContext(ctx, query, shipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []*domain.TrackingAlert
	for rows.Next() {
		var a domain.TrackingAlert
		var lat, lng sql.NullFloat64
		if err := rows.Scan(
			&a.ID,
			&a.ShipmentID,
			&a.Type,
			&a.Severity,
			&a.Title,
			&a.Description,
			&lat,
			&lng,
			&a.Status,
			&a.TriggeredAt,
		); err != nil {
			return nil, err
		}
		if lat.Valid && lng.Valid {
			a.Location = &domain.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
		}
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}
