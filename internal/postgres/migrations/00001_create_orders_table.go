package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(UpOrdersTable, DownOrdersTable)
}

func UpOrdersTable(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS btree_gist;`,
		`CREATE TYPE order_status AS ENUM
('created', 'paid', 'shipped', 'successful', 'canceled');`,
		`CREATE TABLE orders
(
    id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    order_id TEXT NOT NULL UNIQUE,
    customer_name TEXT NOT NULL,
    contact TEXT NOT NULL,
    sku TEXT NOT NULL,
    start_at TIMESTAMPTZ NOT NULL,
    end_at TIMESTAMPTZ NOT NULL,
    buffer_hours INT NOT NULL DEFAULT 0,
    status order_status NOT NULL DEFAULT 'created',
    locker_code TEXT,
    idempotency_token TEXT UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT orders_time_range_chk CHECK (start_at < end_at),
    CONSTRAINT orders_shipped_needs_locker_chk CHECK (
        status <> 'shipped' OR (locker_code IS NOT NULL AND locker_code <> '')
    )
);`,
		// Buffer-padded occupancy as a generated half-open range; the
		// exclusion constraint is the last line of defense against
		// double-booking if the advisory-lock discipline is ever bypassed.
		`ALTER TABLE orders ADD COLUMN occupied TSTZRANGE GENERATED ALWAYS AS (
    tstzrange(start_at - make_interval(hours => buffer_hours),
              end_at + make_interval(hours => buffer_hours), '[)')
) STORED;`,
		`ALTER TABLE orders ADD CONSTRAINT orders_no_overlap_excl
    EXCLUDE USING gist (sku WITH =, occupied WITH &&)
    WHERE (status <> 'canceled');`,
		`CREATE INDEX orders_sku_start_idx ON orders (sku, start_at);`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func DownOrdersTable(ctx context.Context, tx *sql.Tx) error {
	for _, stmt := range []string{
		`DROP TABLE orders;`,
		`DROP TYPE order_status;`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
