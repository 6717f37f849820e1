package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventPublisher receives a serialized envelope per successful mutation.
// The kafka producer satisfies this; tests pass nil or a recorder.
type EventPublisher interface {
	Publish(key, value []byte)
}

// Service owns the order lifecycle. All mutations go through the Store
// in single transactions; the create path additionally holds the
// per-SKU lock for its availability-check-then-insert window.
type Service struct {
	Store    Store
	SKUs     SKUSet
	Events   EventPublisher
	Logger   *zap.SugaredLogger
	Producer string

	// DefaultBufferHours pads bookings when the input does not say.
	DefaultBufferHours int

	// Now is swappable in tests.
	Now func() time.Time
}

func NewService(store Store, skus SKUSet, logger *zap.SugaredLogger) *Service {
	return &Service{Store: store, SKUs: skus, Logger: logger, Now: time.Now}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

const createRetryBackoff = 50 * time.Millisecond

// Create validates the input, checks availability under the SKU lock and
// inserts. A repeated idempotency token returns the original order.
// Transient serialization failures are retried once.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Order, error) {
	if verr := s.validateCreate(in); verr != nil {
		return nil, verr
	}

	buffer := s.DefaultBufferHours
	if in.BufferHours != nil {
		buffer = *in.BufferHours
	}
	order := &Order{
		OrderID:          "ord-" + uuid.NewString(),
		CustomerName:     in.CustomerName,
		Contact:          in.Contact,
		SKU:              NormalizeSKU(in.SKU),
		StartAt:          in.StartAt.UTC(),
		EndAt:            in.EndAt.UTC(),
		BufferHours:      buffer,
		Status:           StatusCreated,
		IdempotencyToken: in.IdempotencyToken,
	}

	var idempotent bool
	attempt := func() error {
		return s.Store.WithTx(ctx, order.SKU, func(tx Tx) error {
			if order.IdempotencyToken != "" {
				existing, err := tx.GetByIdempotencyToken(ctx, order.IdempotencyToken)
				if err == nil {
					*order = *existing
					idempotent = true
					return nil
				}
				if !errors.Is(err, ErrNotFound) {
					return err
				}
			}

			active, err := tx.ListActiveForSKU(ctx, order.SKU, s.now())
			if err != nil {
				return err
			}
			res := CheckAvailability(active, order.Occupied())
			if !res.Available {
				return &ConflictError{
					SKU:               order.SKU,
					ConflictingOrders: res.ConflictingOrders,
					Suggested:         res.Suggested,
				}
			}
			return tx.InsertOrder(ctx, order)
		})
	}

	err := attempt()
	var serr *StoreError
	if errors.As(err, &serr) && serr.Retryable {
		select {
		case <-time.After(createRetryBackoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		err = attempt()
	}
	if err != nil {
		return nil, err
	}

	if idempotent {
		s.Logger.Infow("order_create_idempotent", "order_id", order.OrderID, "token", order.IdempotencyToken)
		return order, nil
	}
	s.Logger.Infow("order_created", "order_id", order.OrderID, "sku", order.SKU,
		"start_at", order.StartAt, "end_at", order.EndAt)
	s.emit(EventOrderCreated, order, StatusCreated)
	return order, nil
}

// TransitionExtra carries event-specific fields.
type TransitionExtra struct {
	LockerCode string
}

// Transition applies a lifecycle event atomically: guard check and
// status write share one transaction on the order's row.
func (s *Service) Transition(ctx context.Context, orderID string, ev Event, extra TransitionExtra) (*Order, error) {
	var out *Order
	var from Status
	err := s.Store.WithTx(ctx, "", func(tx Tx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		from = order.Status
		to, ok := NextStatus(order.Status, ev)
		if !ok {
			return fmt.Errorf("%w: cannot %s an order in status %s", ErrInvalidTransition, ev, order.Status)
		}
		if ev == EventShip {
			if extra.LockerCode != "" {
				order.LockerCode = extra.LockerCode
			}
			if order.LockerCode == "" {
				return fmt.Errorf("%w: locker code is required before shipping", ErrInvalidTransition)
			}
		}
		order.Status = to
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("order_transitioned", "order_id", out.OrderID, "event", ev,
		"from", from, "to", out.Status)
	s.emit(eventTypeFor(ev), out, from)
	return out, nil
}

// Query is read-only and never mutates.
func (s *Service) Query(ctx context.Context, orderID string) (*Order, error) {
	return s.Store.GetOrder(ctx, orderID)
}

// Update patches a non-terminal order. A changed SKU or interval
// re-runs the availability check under the target SKU's lock.
func (s *Service) Update(ctx context.Context, orderID string, patch UpdatePatch) (*Order, error) {
	if patch.Empty() {
		return nil, &ValidationError{Fields: []string{"patch"}}
	}
	newSKU := ""
	if patch.SKU != nil {
		newSKU = NormalizeSKU(*patch.SKU)
		if !s.SKUs.Contains(newSKU) {
			return nil, &ValidationError{Fields: []string{"sku"}}
		}
	}

	var out *Order
	err := s.Store.WithTx(ctx, newSKU, func(tx Tx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status.Terminal() {
			return fmt.Errorf("%w: %s is %s", ErrTerminalOrder, order.OrderID, order.Status)
		}

		rebook := false
		if patch.CustomerName != nil {
			order.CustomerName = *patch.CustomerName
		}
		if patch.Contact != nil {
			order.Contact = *patch.Contact
		}
		if patch.LockerCode != nil {
			order.LockerCode = *patch.LockerCode
		}
		if newSKU != "" && newSKU != order.SKU {
			order.SKU = newSKU
			rebook = true
		}
		if patch.StartAt != nil {
			order.StartAt = patch.StartAt.UTC()
			rebook = true
		}
		if patch.EndAt != nil {
			order.EndAt = patch.EndAt.UTC()
			rebook = true
		}
		if patch.StartAt != nil && order.StartAt.Before(s.now()) {
			return &ValidationError{Fields: []string{"start_time"}}
		}
		if !order.StartAt.Before(order.EndAt) {
			return &ValidationError{Fields: []string{"end_time"}}
		}

		if rebook {
			active, err := tx.ListActiveForSKU(ctx, order.SKU, s.now())
			if err != nil {
				return err
			}
			others := active[:0]
			for _, o := range active {
				if o.OrderID != order.OrderID {
					others = append(others, o)
				}
			}
			res := CheckAvailability(others, order.Occupied())
			if !res.Available {
				return &ConflictError{
					SKU:               order.SKU,
					ConflictingOrders: res.ConflictingOrders,
					Suggested:         res.Suggested,
				}
			}
		}
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Infow("order_updated", "order_id", out.OrderID)
	return out, nil
}

// SuggestSlots lists free windows of the requested duration within
// ±windowDays around the expected range. The window never starts in the
// past and windowDays is clamped to [0, 7].
func (s *Service) SuggestSlots(ctx context.Context, sku string, expectedStart time.Time, expectedEnd *time.Time, windowDays int) ([]TimeRange, TimeRange, error) {
	sku = NormalizeSKU(sku)
	if !s.SKUs.Contains(sku) {
		return nil, TimeRange{}, &ValidationError{Fields: []string{"sku"}}
	}
	start := expectedStart.UTC()
	end := start.Add(3 * time.Hour) // default rental slot
	if expectedEnd != nil {
		end = expectedEnd.UTC()
		if !start.Before(end) {
			return nil, TimeRange{}, &ValidationError{Fields: []string{"end_time"}}
		}
	}
	if windowDays < 0 {
		windowDays = 0
	}
	if windowDays > 7 {
		windowDays = 7
	}
	pad := time.Duration(windowDays) * 24 * time.Hour
	window := TimeRange{Start: start.Add(-pad), End: end.Add(pad)}
	if now := s.now(); window.Start.Before(now) {
		window.Start = now
	}
	if !window.Start.Before(window.End) {
		return nil, window, nil
	}

	var slots []TimeRange
	err := s.Store.WithTx(ctx, "", func(tx Tx) error {
		active, err := tx.ListActiveForSKU(ctx, sku, window.Start)
		if err != nil {
			return err
		}
		slots = FreeSlots(active, window, end.Sub(start))
		return nil
	})
	if err != nil {
		return nil, window, err
	}
	return slots, window, nil
}

func (s *Service) validateCreate(in CreateInput) *ValidationError {
	var missing []string
	if in.CustomerName == "" {
		missing = append(missing, "customer_name")
	}
	if in.Contact == "" {
		missing = append(missing, "contact")
	}
	if in.SKU == "" || !s.SKUs.Contains(NormalizeSKU(in.SKU)) {
		missing = append(missing, "sku")
	}
	switch {
	case in.StartAt.IsZero():
		missing = append(missing, "start_time")
	case in.StartAt.Before(s.now()):
		// Rentals start in the future; no booking into the past.
		missing = append(missing, "start_time")
	}
	switch {
	case in.EndAt.IsZero():
		missing = append(missing, "end_time")
	case !in.StartAt.IsZero() && !in.StartAt.Before(in.EndAt):
		missing = append(missing, "end_time")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

func eventTypeFor(ev Event) string {
	switch ev {
	case EventMarkPaid:
		return EventOrderPaid
	case EventShip:
		return EventOrderShipped
	case EventComplete:
		return EventOrderCompleted
	case EventCancel:
		return EventOrderCanceled
	}
	return ""
}

func (s *Service) emit(eventType string, o *Order, from Status) {
	if s.Events == nil || eventType == "" {
		return
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.now().UTC(),
		Producer:      s.Producer,
		CorrelationID: o.OrderID,
	}
	var payload any
	if eventType == EventOrderCreated {
		payload = OrderCreatedPayload{
			OrderID: o.OrderID, CustomerName: o.CustomerName, Contact: o.Contact,
			SKU: o.SKU, StartAt: o.StartAt, EndAt: o.EndAt,
		}
	} else {
		payload = OrderTransitionedPayload{
			OrderID: o.OrderID, Contact: o.Contact,
			FromStatus: from, ToStatus: o.Status, LockerCode: o.LockerCode,
		}
	}
	env.Payload = mustJSON(payload)
	s.Events.Publish(PartitionKey(o.OrderID), mustJSON(env))
}
