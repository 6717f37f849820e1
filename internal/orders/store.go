package orders

import (
	"context"
	"time"
)

// Store is the transactional adapter the lifecycle manager runs on.
// Mutations happen inside WithTx; the Tx passed to fn sees its own
// uncommitted writes and commits iff fn returns nil.
type Store interface {
	// WithTx runs fn in one transaction. sku may be empty; when set,
	// the store takes a per-SKU serialization lock (advisory lock or
	// equivalent) before fn runs, so two overlapping creates for the
	// same SKU can never both observe "available".
	WithTx(ctx context.Context, sku string, fn func(tx Tx) error) error

	GetOrder(ctx context.Context, orderID string) (*Order, error)
}

type Tx interface {
	InsertOrder(ctx context.Context, o *Order) error
	UpdateOrder(ctx context.Context, o *Order) error
	// GetOrder locks the order's row until the transaction ends, so a
	// guard checked against the returned snapshot stays true through
	// the write.
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	// GetByIdempotencyToken returns the order previously created with
	// this token, or ErrNotFound.
	GetByIdempotencyToken(ctx context.Context, token string) (*Order, error)
	// ListActiveForSKU returns all non-canceled orders for the SKU
	// whose occupied range ends after the horizon.
	ListActiveForSKU(ctx context.Context, sku string, horizon time.Time) ([]Order, error)
}
