package postgres

import (
	"context"
	"database/sql"
	"errors"

	"fleet/internal/domain"
	"fleet/internal/repository"
)

// VehicleRepository is a PostgreSQL implementation of repository.VehicleRepository.
type VehicleRepository struct {
	q Querier
}

// NewVehicleRepository creates a new PostgreSQL vehicle repository.
func NewVehicleRepository(db *sql.DB) *VehicleRepository {
	return &VehicleRepository{q: db}
}

const vehicleColumns = `id, plate_number, type, max_load, max_volume, status, daily_rate,
	maintenance_cost, fuel_level, driver_id, lat, lng, created_at`

func scanVehicle(row rowScanner) (*domain.Vehicle, error) {
	var v domain.Vehicle
	var driverID sql.NullString
	var lat, lng sql.NullFloat64
	err := row.Scan(
		&v.ID,
		&v.PlateNumber,
		&v.Type,
		&v.MaxLoad,
		&v.MaxVolume,
		&v.Status,
		&v.DailyRate,
		&v.MaintenanceCost,
		&v.FuelLevel,
		&driverID,
		&lat,
		&lng,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.DriverID = driverID.String
	if lat.Valid && lng.Valid {
		v.Location = &domain.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &v, nil
}

// GetByID retrieves a vehicle by ID.
func (r *VehicleRepository) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = $1`

	v, err := scanVehicle(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

// ListByStatus returns every vehicle in the given status.
func (r *VehicleRepository) ListByStatus(ctx context.Context, status domain.VehicleStatus) ([]*domain.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE status = $1 ORDER BY id`
	rows, err := r.q.QueryContext(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []*domain.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

// UpdateStatusIf moves the vehicle from one status to another.
func (r *VehicleRepository) UpdateStatusIf(ctx context.Context, id string, from, to domain.VehicleStatus, driverID string) error {
	query := `UPDATE vehicles SET status = $1, driver_id = COALESCE($2, driver_id)
		WHERE id = $3 AND status = $4`

	res, err := r.q.ExecContext(ctx, query, to, nullString(driverID), id, from)
	if err != nil {
		return err
	}
	return expectRows(res, 1, repository.ErrStatusConflict)
}

// UpdateStatus sets the vehicle status unconditionally.
func (r *VehicleRepository) UpdateStatus(ctx context.Context, id string, status domain.VehicleStatus) error {
	query := `UPDATE vehicles SET status = $1 WHERE id = $2`

	res, err := r.q.ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}
	return expectRows(res, 1, repository.ErrNotFound)
}
