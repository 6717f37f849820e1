package orders

import "time"

type Order struct {
	OrderID          string     `json:"order_id"`
	CustomerName     string     `json:"customer_name"`
	Contact          string     `json:"contact"`
	SKU              string     `json:"sku"`
	StartAt          time.Time  `json:"start_at"`
	EndAt            time.Time  `json:"end_at"`
	BufferHours      int        `json:"buffer_hours"`
	Status           Status     `json:"status"`
	LockerCode       string     `json:"locker_code,omitempty"`
	IdempotencyToken string     `json:"idempotency_token,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TimeRange is a half-open [Start, End) reservation window.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r TimeRange) Duration() time.Duration { return r.End.Sub(r.Start) }

// Overlaps reports whether two half-open ranges intersect.
// Back-to-back ranges (r.End == o.Start) do not overlap.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// Occupied is the order's window padded by its buffer hours. Conflict
// checks run against this, not the raw rental window.
func (o *Order) Occupied() TimeRange {
	pad := time.Duration(o.BufferHours) * time.Hour
	return TimeRange{Start: o.StartAt.Add(-pad), End: o.EndAt.Add(pad)}
}

// CreateInput carries every field the create path accepts.
type CreateInput struct {
	CustomerName     string
	Contact          string
	SKU              string
	StartAt          time.Time
	EndAt            time.Time
	BufferHours      *int
	IdempotencyToken string
}

// UpdatePatch is a partial order mutation; nil fields are left untouched.
type UpdatePatch struct {
	CustomerName *string
	Contact      *string
	SKU          *string
	StartAt      *time.Time
	EndAt        *time.Time
	LockerCode   *string
}

func (p UpdatePatch) Empty() bool {
	return p.CustomerName == nil && p.Contact == nil && p.SKU == nil &&
		p.StartAt == nil && p.EndAt == nil && p.LockerCode == nil
}
