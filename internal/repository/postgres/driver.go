package postgres

import (
	"context"
	"database/sql"
	"errors"

	"fleet/internal/domain"
	"fleet/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

const driverColumns = `id, driver_number, name, COALESCE(phone, ''), status, rating,
	accident_count, violation_count, driving_years, created_at`

func scanDriver(row rowScanner) (*domain.Driver, error) {
	var d domain.Driver
	err := row.Scan(
		&d.ID,
		&d.DriverNumber,
		&d.Name,
		&d.Phone,
		&d.Status,
		&d.Rating,
		&d.AccidentCount,
		&d.ViolationCount,
		&d.DrivingYears,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE id = $1`

	d, err := scanDriver(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// ListByStatus returns every driver in the given status.
func (r *DriverRepository) ListByStatus(ctx context.Context, status domain.DriverStatus) ([]*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE status = $1 ORDER BY id`
	rows, err := r.q.QueryContext(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

// UpdateStatusIf moves the driver from one status to another.
func (r *DriverRepository) UpdateStatusIf(ctx context.Context, id string, from, to domain.DriverStatus) error {
	query := `UPDATE drivers SET status = $1 WHERE id = $2 AND status = $3`

	res, err := r.q.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return err
	}
	return expectRows(res, 1, repository.ErrStatusConflict)
}

// UpdateStatus sets the driver status unconditionally.
func (r *DriverRepository) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	query := `UPDATE drivers SET status = $1 WHERE id = $2`

	result, err := r.q.ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}
	return expectRows(result, 1, repository.ErrNotFound)
}
