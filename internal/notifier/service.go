package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "rental-agent/internal/kafka"
	"rental-agent/internal/orders"
	"rental-agent/internal/redisx"
)

// Service consumes lifecycle events and notifies customers. Delivery of
// the notification is at-least-once; the Redis dedup by event_id keeps
// replays quiet.
type Service struct {
	Redis       *redis.Client
	Logger      *zap.SugaredLogger
	ServiceName string
}

func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return err
		}
		s.Logger.Infow("notify_order_created",
			"order_id", p.OrderID, "contact", p.Contact, "sku", p.SKU,
			"start_at", p.StartAt, "end_at", p.EndAt)
	case orders.EventOrderPaid, orders.EventOrderShipped, orders.EventOrderCompleted, orders.EventOrderCanceled:
		p, err := kafkax.UnwrapPayload[orders.OrderTransitionedPayload](env.Payload)
		if err != nil {
			return err
		}
		fields := []any{"order_id", p.OrderID, "contact", p.Contact, "to", p.ToStatus}
		if p.ToStatus == orders.StatusShipped {
			fields = append(fields, "locker_code", p.LockerCode)
		}
		s.Logger.Infow("notify_order_transitioned", fields...)
	default:
		// unknown event versions pass through silently
	}
	return nil
}
