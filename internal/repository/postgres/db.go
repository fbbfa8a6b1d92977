package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fleet/internal/repository"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)

	_ repository.Transactor = (*TxManager)(nil)
)

// NewRepositories builds the full repository set on q.
func NewRepositories(q Querier) repository.Repositories {
	return repository.Repositories{
		Orders:     &OrderRepository{q: q},
		Vehicles:   &VehicleRepository{q: q},
		Drivers:    &DriverRepository{q: q},
		Dispatches: &DispatchRepository{q: q},
		Shipments:  &ShipmentRepository{q: q},
		Tracking:   &TrackingRepository{q: q},
	}
}

// TxManager runs units of work in database transactions.
type TxManager struct {
	db *sql.DB
}

// NewTxManager creates a TxManager.
func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTx begins a transaction, hands fn repositories bound to it and
// commits when fn succeeds. Any error rolls the transaction back.
func (m *TxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) (err error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, NewRepositories(tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// expectRows maps a zero-row conditional update to want.
func expectRows(res sql.Result, n int64, want error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected < n {
		return want
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nullFloatPtr(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
