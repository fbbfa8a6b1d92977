package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id                  TEXT PRIMARY KEY,
		order_number        TEXT NOT NULL UNIQUE,
		customer_id         TEXT NOT NULL,
		origin_address      TEXT NOT NULL,
		destination_address TEXT NOT NULL,
		cargo_weight        DOUBLE PRECISION NOT NULL DEFAULT 0,
		cargo_volume        DOUBLE PRECISION NOT NULL DEFAULT 0,
		cargo_value         DOUBLE PRECISION NOT NULL DEFAULT 0,
		expected_time       TIMESTAMPTZ,
		priority            TEXT NOT NULL DEFAULT 'NORMAL',
		status              TEXT NOT NULL,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS drivers (
		id              TEXT PRIMARY KEY,
		driver_number   TEXT NOT NULL UNIQUE,
		name            TEXT NOT NULL,
		phone           TEXT,
		status          TEXT NOT NULL,
		rating          DOUBLE PRECISION NOT NULL DEFAULT 0,
		accident_count  INTEGER NOT NULL DEFAULT 0,
		violation_count INTEGER NOT NULL DEFAULT 0,
		driving_years   INTEGER NOT NULL DEFAULT 0,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS vehicles (
		id               TEXT PRIMARY KEY,
		plate_number     TEXT NOT NULL UNIQUE,
		type             TEXT NOT NULL DEFAULT '',
		max_load         DOUBLE PRECISION NOT NULL,
		max_volume       DOUBLE PRECISION NOT NULL,
		status           TEXT NOT NULL,
		daily_rate       DOUBLE PRECISION NOT NULL DEFAULT 0,
		maintenance_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
		fuel_level       DOUBLE PRECISION NOT NULL DEFAULT 0,
		driver_id        TEXT REFERENCES drivers(id),
		lat              DOUBLE PRECISION,
		lng              DOUBLE PRECISION,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS dispatches (
		id                  TEXT PRIMARY KEY,
		dispatch_number     TEXT NOT NULL UNIQUE,
		customer_id         TEXT,
		vehicle_id          TEXT NOT NULL REFERENCES vehicles(id),
		driver_id           TEXT NOT NULL REFERENCES drivers(id),
		origin_address      TEXT NOT NULL,
		destination_address TEXT NOT NULL,
		distance            DOUBLE PRECISION NOT NULL DEFAULT 0,
		estimated_duration  DOUBLE PRECISION NOT NULL DEFAULT 0,
		planned_departure   TIMESTAMPTZ,
		actual_departure    TIMESTAMPTZ,
		estimated_arrival   TIMESTAMPTZ,
		actual_arrival      TIMESTAMPTZ,
		completed_at        TIMESTAMPTZ,
		cancelled_at        TIMESTAMPTZ,
		total_weight        DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_volume        DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_value         DOUBLE PRECISION NOT NULL DEFAULT 0,
		base_rate           DOUBLE PRECISION NOT NULL DEFAULT 0,
		fuel_surcharge      DOUBLE PRECISION NOT NULL DEFAULT 0,
		toll_fees           DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_amount        DOUBLE PRECISION NOT NULL DEFAULT 0,
		status              TEXT NOT NULL,
		priority            TEXT NOT NULL DEFAULT 'NORMAL',
		route               JSONB,
		instructions        TEXT,
		requirements        TEXT,
		notes               TEXT,
		cancel_reason       TEXT,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS shipments (
		id                  TEXT PRIMARY KEY,
		shipment_number     TEXT NOT NULL UNIQUE,
		order_id            TEXT NOT NULL REFERENCES orders(id),
		dispatch_id         TEXT NOT NULL REFERENCES dispatches(id),
		vehicle_id          TEXT NOT NULL,
		driver_id           TEXT NOT NULL,
		origin_address      TEXT NOT NULL,
		destination_address TEXT NOT NULL,
		weight              DOUBLE PRECISION NOT NULL DEFAULT 0,
		volume              DOUBLE PRECISION NOT NULL DEFAULT 0,
		value               DOUBLE PRECISION NOT NULL DEFAULT 0,
		sequence            INTEGER NOT NULL,
		status              TEXT NOT NULL,
		estimated_departure TIMESTAMPTZ,
		estimated_arrival   TIMESTAMPTZ,
		actual_departure    TIMESTAMPTZ,
		actual_arrival      TIMESTAMPTZ,
		current_lat         DOUBLE PRECISION,
		current_lng         DOUBLE PRECISION,
		location_updated_at TIMESTAMPTZ,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (dispatch_id, sequence)
	)`,
	`CREATE TABLE IF NOT EXISTS tracking_logs (
		id          TEXT PRIMARY KEY,
		shipment_id TEXT NOT NULL REFERENCES shipments(id),
		latitude    DOUBLE PRECISION NOT NULL,
		longitude   DOUBLE PRECISION NOT NULL,
		speed       DOUBLE PRECISION NOT NULL,
		heading     DOUBLE PRECISION NOT NULL,
		altitude    DOUBLE PRECISION,
		accuracy    DOUBLE PRECISION,
		address     TEXT,
		ts          TIMESTAMPTZ NOT NULL,
		received_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		device_id   TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS tracking_alerts (
		id           TEXT PRIMARY KEY,
		shipment_id  TEXT NOT NULL REFERENCES shipments(id),
		type         TEXT NOT NULL,
		severity     TEXT NOT NULL,
		title        TEXT NOT NULL,
		description  TEXT NOT NULL,
		lat          DOUBLE PRECISION,
		lng          DOUBLE PRECISION,
		status       TEXT NOT NULL,
		triggered_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_shipments_order ON shipments(order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_dispatches_created ON dispatches(created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_tracking_logs_shipment_ts ON tracking_logs(shipment_id, ts DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_tracking_alerts_shipment ON tracking_alerts(shipment_id, triggered_at DESC)`,
}

// InitSchema creates the tables used by the repositories when missing.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit: %w", err)
	}
	return nil
}
