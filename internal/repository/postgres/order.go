package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"fleet/internal/domain"
	"fleet/internal/repository"
)

// OrderRepository is a PostgreSQL implementation of repository.OrderRepository.
type OrderRepository struct {
	q Querier
}

// NewOrderRepository creates a new PostgreSQL order repository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{q: db}
}

const orderColumns = `id, order_number, customer_id, origin_address, destination_address,
	cargo_weight, cargo_volume, cargo_value, expected_time, priority, status, created_at`

// withoutLiveShipment excludes orders already carried by a non-cancelled shipment.
const withoutLiveShipment = `NOT EXISTS (
	SELECT 1 FROM shipments s WHERE s.order_id = o.id AND s.status <> 'CANCELLED')`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var expected sql.NullTime
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.CustomerID,
		&o.OriginAddress,
		&o.DestinationAddress,
		&o.CargoWeight,
		&o.CargoVolume,
		&o.CargoValue,
		&expected,
		&o.Priority,
		&o.Status,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if expected.Valid {
		o.ExpectedTime = expected.Time
	}
	return &o, nil
}

// GetByID retrieves an order by ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return o, nil
}

// GetByIDs retrieves the orders that exist among ids.
func (r *OrderRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ANY($1)`
	return r.list(ctx, query, pq.Array(ids))
}

// UpdateStatusIf moves every order in ids from one status to another.
func (r *OrderRepository) UpdateStatusIf(ctx context.Context, ids []string, from, to domain.OrderStatus) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE orders SET status = $1 WHERE id = ANY($2) AND status = $3`

	res, err := r.q.ExecContext(ctx, query, to, pq.Array(ids), from)
	if err != nil {
		return err
	}
	return expectRows(res, int64(len(ids)), repository.ErrStatusConflict)
}

// UpdateStatus sets the status of every order in ids.
func (r *OrderRepository) UpdateStatus(ctx context.Context, ids []string, status domain.OrderStatus) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE orders SET status = $1 WHERE id = ANY($2)`
	_, err := r.q.ExecContext(ctx, query, status, pq.Array(ids))
	return err
}

// ListAvailable returns CONFIRMED orders without a live shipment.
func (r *OrderRepository) ListAvailable(ctx context.Context) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o
		WHERE o.status = $1 AND ` + withoutLiveShipment + `
		ORDER BY o.expected_time ASC NULLS LAST, o.id`
	return r.list(ctx, query, domain.OrderStatusConfirmed)
}

// ListPendingBetween returns CONFIRMED orders without a live shipment
// expected in [from, to), most urgent first.
func (r *OrderRepository) ListPendingBetween(ctx context.Context, from, to time.Time) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o
		WHERE o.status = $1 AND o.expected_time >= $2 AND o.expected_time < $3 AND ` + withoutLiveShipment + `
		ORDER BY CASE o.priority WHEN 'URGENT' THEN 3 WHEN 'HIGH' THEN 2 WHEN 'NORMAL' THEN 1 ELSE 0 END DESC,
			o.expected_time ASC, o.id`
	return r.list(ctx, query, domain.OrderStatusConfirmed, from, to)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
