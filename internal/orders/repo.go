package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the Postgres store adapter. The schema (orders table, status
// enum, exclusion constraint) is owned by internal/postgres/migrations.
type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `order_id, customer_name, contact, sku, start_at, end_at,
	buffer_hours, status, coalesce(locker_code, ''), coalesce(idempotency_token, ''),
	created_at, updated_at`

func (r *Repo) WithTx(ctx context.Context, sku string, fn func(tx Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return &StoreError{Op: "begin", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if sku != "" {
		// Serializes concurrent creates per SKU; released at commit/rollback.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, sku); err != nil {
			return &StoreError{Op: "lock sku", Err: err}
		}
	}
	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return classifyPgError("commit", err)
	}
	return nil
}

func (r *Repo) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id=$1`, orderID)
	return scanOrder(row)
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders(order_id, customer_name, contact, sku, start_at, end_at,
		                   buffer_hours, status, locker_code, idempotency_token)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,nullif($9,''),nullif($10,''))
		RETURNING created_at, updated_at`,
		o.OrderID, o.CustomerName, o.Contact, o.SKU, o.StartAt, o.EndAt,
		o.BufferHours, string(o.Status), o.LockerCode, o.IdempotencyToken,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return classifyPgError("insert order", err)
	}
	return nil
}

func (t *pgTx) UpdateOrder(ctx context.Context, o *Order) error {
	err := t.tx.QueryRow(ctx, `
		UPDATE orders
		SET customer_name=$2, contact=$3, sku=$4, start_at=$5, end_at=$6,
		    buffer_hours=$7, status=$8, locker_code=nullif($9,''), updated_at=now()
		WHERE order_id=$1
		RETURNING updated_at`,
		o.OrderID, o.CustomerName, o.Contact, o.SKU, o.StartAt, o.EndAt,
		o.BufferHours, string(o.Status), o.LockerCode,
	).Scan(&o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return classifyPgError("update order", err)
	}
	return nil
}

func (t *pgTx) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	// Row stays locked until the transaction ends; a concurrent
	// transition on the same order waits here and re-reads the
	// committed status.
	row := t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id=$1 FOR UPDATE`, orderID)
	return scanOrder(row)
}

func (t *pgTx) GetByIdempotencyToken(ctx context.Context, token string) (*Order, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE idempotency_token=$1`, token)
	return scanOrder(row)
}

func (t *pgTx) ListActiveForSKU(ctx context.Context, sku string, horizon time.Time) ([]Order, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE sku=$1
		  AND status <> 'canceled'
		  AND end_at + buffer_hours * interval '1 hour' > $2
		ORDER BY start_at`, sku, horizon)
	if err != nil {
		return nil, &StoreError{Op: "list active", Err: err}
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "list active", Err: err}
	}
	return out, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var status string
	err := row.Scan(&o.OrderID, &o.CustomerName, &o.Contact, &o.SKU, &o.StartAt, &o.EndAt,
		&o.BufferHours, &status, &o.LockerCode, &o.IdempotencyToken, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &StoreError{Op: "scan order", Err: err}
	}
	o.Status = Status(status)
	return &o, nil
}

// classifyPgError maps SQLSTATEs onto the domain taxonomy. The exclusion
// constraint is the backstop behind the advisory lock; hitting it means
// a genuinely conflicting insert lost the race at commit time.
func classifyPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23P01": // exclusion_violation: overlapping reservation
			return &ConflictError{ConflictingOrders: []string{"existing reservation"}}
		case "23505": // unique_violation: order_id or idempotency_token
			return &StoreError{Op: op, Retryable: true, Err: err}
		case "40001", "40P01": // serialization failure / deadlock
			return &StoreError{Op: op, Retryable: true, Err: err}
		}
	}
	return &StoreError{Op: op, Err: err}
}
