package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fleet/internal/domain"
	"fleet/internal/repository"
)

// ShipmentRepository is a PostgreSQL implementation of repository.ShipmentRepository.
type ShipmentRepository struct {
	q Querier
}

// NewShipmentRepository creates a new PostgreSQL shipment repository.
func NewShipmentRepository(db *sql.DB) *ShipmentRepository {
	return &ShipmentRepository{q: db}
}

const shipmentColumns = `id, shipment_number, order_id, dispatch_id, vehicle_id, driver_id,
	origin_address, destination_address, weight, volume, value, sequence, status,
	estimated_departure, estimated_arrival, actual_departure, actual_arrival,
	current_lat, current_lng, location_updated_at, created_at`

func scanShipment(row rowScanner) (*domain.Shipment, error) {
	var s domain.Shipment
	var estDep, estArr, actDep, actArr, locAt sql.NullTime
	var lat, lng sql.NullFloat64
	err := row.Scan(
		&s.ID,
		&s.ShipmentNumber,
		&s.OrderID,
		&s.DispatchID,
		&s.VehicleID,
		&s.DriverID,
		&s.OriginAddress,
		&s.DestinationAddress,
		&s.Weight,
		&s.Volume,
		&s.Value,
		&s.Sequence,
		&s.Status,
		&estDep,
		&estArr,
		&actDep,
		&actArr,
		&lat,
		&lng,
		&locAt,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.EstimatedDeparture = estDep.Time
	s.EstimatedArrival = estArr.Time
	s.ActualDeparture = actDep.Time
	s.ActualArrival = actArr.Time
	s.LocationUpdatedAt = locAt.Time
	if lat.Valid && lng.Valid {
		s.CurrentLocation = &domain.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &s, nil
}

// CreateBatch persists the shipments of one dispatch.
func (r *ShipmentRepository) CreateBatch(ctx context.Context, shipments []*domain.Shipment) error {
	query := `
		INSERT INTO shipments (id, shipment_number, order_id, dispatch_id, vehicle_id, driver_id,
			origin_address, destination_address, weight, volume, value, sequence, status,
			estimated_departure, estimated_arrival, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	for _, s := range shipments {
		_, err := r.q.ExecContext(ctx, query,
			s.ID,
			s.ShipmentNumber,
			s.OrderID,
			s.DispatchID,
			s.VehicleID,
			s.DriverID,
			s.OriginAddress,
			s.DestinationAddress,
			s.Weight,
			s.Volume,
			s.Value,
			s.Sequence,
			s.Status,
			nullTime(s.EstimatedDeparture),
			nullTime(s.EstimatedArrival),
			s.CreatedAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetByID retrieves a shipment by ID.
func (r *ShipmentRepository) GetByID(ctx context.Context, id string) (*domain.Shipment, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipments WHERE id = $1`

	s, err := scanShipment(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

// ListByDispatch returns the shipments of a dispatch by sequence.
func (r *ShipmentRepository) ListByDispatch(ctx context.Context, dispatchID string) ([]*domain.Shipment, error) {
	query := `SELECT ` + shipmentColumns + ` FROM shipments WHERE dispatch_id = $1 ORDER BY sequence`
	rows, err := r.q.QueryContext(ctx, query, dispatchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shipments []*domain.Shipment
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		shipments = append(shipments, s)
	}
	return shipments, rows.Err()
}

// UpdateStatusByDispatch moves the non-terminal shipments of a dispatch to status.
func (r *ShipmentRepository) UpdateStatusByDispatch(ctx context.Context, dispatchID string, status domain.ShipmentStatus, departure, arrival time.Time) error {
	query := `
		UPDATE shipments SET status = $1,
			actual_departure = COALESCE(actual_departure, $2),
			actual_arrival = COALESCE($3, actual_arrival)
		WHERE dispatch_id = $4 AND status NOT IN ('DELIVERED', 'CANCELLED')
	`
	_, err := r.q.ExecContext(ctx, query, status, nullTime(departure), nullTime(arrival), dispatchID)
	return err
}

// UpdateLocation records the latest known position of a shipment.
func (r *ShipmentRepository) UpdateLocation(ctx context.Context, id string, at domain.Coordinates, ts time.Time) error {
	query := `UPDATE shipments SET current_lat = $1, current_lng = $2, location_updated_at = $3 WHERE id = $4`

	res, err := r.q.ExecContext(ctx, query, at.Lat, at.Lng, ts, id)
	if err != nil {
		return err
	}
	return expectRows(res, 1, repository.ErrNotFound)
}
