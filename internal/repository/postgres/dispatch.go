package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fleet/internal/domain"
	"fleet/internal/repository"
)

// DispatchRepository is a PostgreSQL implementation of repository.DispatchRepository.
type DispatchRepository struct {
	q Querier
}

// NewDispatchRepository creates a new PostgreSQL dispatch repository.
func NewDispatchRepository(db *sql.DB) *DispatchRepository {
	return &DispatchRepository{q: db}
}

const dispatchColumns = `id, dispatch_number, COALESCE(customer_id, ''), vehicle_id, driver_id,
	origin_address, destination_address, distance, estimated_duration,
	planned_departure, actual_departure, estimated_arrival, actual_arrival, completed_at, cancelled_at,
	total_weight, total_volume, total_value, base_rate, fuel_surcharge, toll_fees, total_amount,
	status, priority, route, COALESCE(instructions, ''), COALESCE(requirements, ''), COALESCE(notes, ''),
	COALESCE(cancel_reason, ''), created_at, updated_at`

// dateRange keeps the created_at bounds at $1 and $2; zero bounds are open.
const dateRange = `($1::timestamptz IS NULL OR d.created_at >= $1) AND ($2::timestamptz IS NULL OR d.created_at <= $2)`

func scanDispatch(row rowScanner) (*domain.Dispatch, error) {
	var d domain.Dispatch
	var planned, actualDep, estArr, actualArr, completed, cancelled sql.NullTime
	var route []byte
	err := row.Scan(
		&d.ID,
		&d.DispatchNumber,
		&d.CustomerID,
		&d.VehicleID,
		&d.DriverID,
		&d.OriginAddress,
		&d.DestinationAddress,
		&d.Distance,
		&d.EstimatedDuration,
		&planned,
		&actualDep,
		&estArr,
		&actualArr,
		&completed,
		&cancelled,
		&d.TotalWeight,
		&d.TotalVolume,
		&d.TotalValue,
		&d.Cost.BaseRate,
		&d.Cost.FuelSurcharge,
		&d.Cost.TollFees,
		&d.Cost.TotalAmount,
		&d.Status,
		&d.Priority,
		&route,
		&d.Instructions,
		&d.Requirements,
		&d.Notes,
		&d.CancelReason,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.PlannedDeparture = planned.Time
	d.ActualDeparture = actualDep.Time
	d.EstimatedArrival = estArr.Time
	d.ActualArrival = actualArr.Time
	d.CompletedAt = completed.Time
	d.CancelledAt = cancelled.Time

	if len(route) > 0 {
		var plan domain.RoutePlan
		if err := json.Unmarshal(route, &plan); err != nil {
			return nil, fmt.Errorf("decode route of dispatch %s: %w", d.ID, err)
		}
		d.Route = &plan
	}
	return &d, nil
}

// Create persists a new dispatch.
func (r *DispatchRepository) Create(ctx context.Context, d *domain.Dispatch) error {
	query := `
		INSERT INTO dispatches (id, dispatch_number, customer_id, vehicle_id, driver_id,
			origin_address, destination_address, distance, estimated_duration,
			planned_departure, estimated_arrival, total_weight, total_volume, total_value,
			base_rate, fuel_surcharge, toll_fees, total_amount, status, priority, route,
			instructions, requirements, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
	`

	var route []byte
	if d.Route != nil {
		var err error
		if route, err = json.Marshal(d.Route); err != nil {
			return fmt.Errorf("encode route: %w", err)
		}
	}

	_, err := r.q.ExecContext(ctx, query,
		d.ID,
		d.DispatchNumber,
		nullString(d.CustomerID),
		d.VehicleID,
		d.DriverID,
		d.OriginAddress,
		d.DestinationAddress,
		d.Distance,
		d.EstimatedDuration,
		nullTime(d.PlannedDeparture),
		nullTime(d.EstimatedArrival),
		d.TotalWeight,
		d.TotalVolume,
		d.TotalValue,
		d.Cost.BaseRate,
		d.Cost.FuelSurcharge,
		d.Cost.TollFees,
		d.Cost.TotalAmount,
		d.Status,
		d.Priority,
		route,
		nullString(d.Instructions),
		nullString(d.Requirements),
		nullString(d.Notes),
		d.CreatedAt,
		d.UpdatedAt,
	)
	return err
}

// GetByID retrieves a dispatch by ID.
func (r *DispatchRepository) GetByID(ctx context.Context, id string) (*domain.Dispatch, error) {
	query := `SELECT ` + dispatchColumns + ` FROM dispatches WHERE id = $1`

	d, err := scanDispatch(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// List returns one page of dispatches matching filter, newest first.
func (r *DispatchRepository) List(ctx context.Context, f repository.DispatchFilter) ([]*domain.Dispatch, int, error) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.VehicleID != "" {
		add("vehicle_id = $%d", f.VehicleID)
	}
	if f.DriverID != "" {
		add("driver_id = $%d", f.DriverID)
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at <= $%d", f.To)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM dispatches`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM dispatches%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		dispatchColumns, where, len(args)+1, len(args)+2)
	rows, err := r.q.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var dispatches []*domain.Dispatch
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, 0, err
		}
		dispatches = append(dispatches, d)
	}
	return dispatches, total, rows.Err()
}

// UpdateIf writes the lifecycle fields of d when its stored status still equals from.
func (r *DispatchRepository) UpdateIf(ctx context.Context, d *domain.Dispatch, from domain.DispatchStatus) error {
	query := `
		UPDATE dispatches SET status = $1, actual_departure = $2, actual_arrival = $3,
			completed_at = $4, cancelled_at = $5, distance = $6, estimated_duration = $7,
			cancel_reason = $8, updated_at = $9
		WHERE id = $10 AND status = $11
	`

	res, err := r.q.ExecContext(ctx, query,
		d.Status,
		nullTime(d.ActualDeparture),
		nullTime(d.ActualArrival),
		nullTime(d.CompletedAt),
		nullTime(d.CancelledAt),
		d.Distance,
		d.EstimatedDuration,
		nullString(d.CancelReason),
		d.UpdatedAt,
		d.ID,
		from,
	)
	if err != nil {
		return err
	}
	return expectRows(res, 1, repository.ErrStatusConflict)
}

// Stats aggregates dispatches created in [from, to].
func (r *DispatchRepository) Stats(ctx context.Context, from, to time.Time, top int) (*repository.DispatchStats, error) {
	lo, hi := nullTime(from), nullTime(to)
	var s repository.DispatchStats

	countQuery := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE d.status = 'COMPLETED'),
			COUNT(*) FILTER (WHERE d.status = 'IN_TRANSIT')
		FROM dispatches d WHERE ` + dateRange
	if err := r.q.QueryRowContext(ctx, countQuery, lo, hi).Scan(&s.Total, &s.Completed, &s.InTransit); err != nil {
		return nil, err
	}

	shipmentQuery := `SELECT COUNT(*) FROM shipments s JOIN dispatches d ON d.id = s.dispatch_id WHERE ` + dateRange
	if err := r.q.QueryRowContext(ctx, shipmentQuery, lo, hi).Scan(&s.Shipments); err != nil {
		return nil, err
	}

	var err error
	if s.TopVehicles, err = r.topBy(ctx, "vehicle_id", lo, hi, top); err != nil {
		return nil, err
	}
	if s.TopDrivers, err = r.topBy(ctx, "driver_id", lo, hi, top); err != nil {
		return nil, err
	}
	return &s, nil
}

// topBy counts dispatches per column; column is one of a fixed set of names.
func (r *DispatchRepository) topBy(ctx context.Context, column string, lo, hi sql.NullTime, limit int) ([]repository.CountByID, error) {
	query := fmt.Sprintf(`SELECT d.%[1]s, COUNT(*) FROM dispatches d WHERE %[2]s
		GROUP BY d.%[1]s ORDER BY COUNT(*) DESC, d.%[1]s LIMIT $3`, column, dateRange)

	rows, err := r.q.QueryContext(ctx, query, lo, hi, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.CountByID
	for rows.Next() {
		var c repository.CountByID
		if err := rows.Scan(&c.ID, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
