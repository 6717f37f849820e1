package redisx

import "time"

const (
	// Conversation session state: session:{session_id} -> session JSON
	KeySession = "session:%s"

	// Order status cache: order_status:{order_id} -> order JSON
	KeyOrderStatus = "order_status:%s"

	// Notifier dedup by event_id: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
