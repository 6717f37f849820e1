package orders

// One topic for the whole lifecycle; consumers filter on event_type.
const TopicOrderEvents = "rental.order.events"

// Partition key = order_id so all events of one order stay ordered.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
