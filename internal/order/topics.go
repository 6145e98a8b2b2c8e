package order

const (
	TopicOrderCreated  = "order.created"
	TopicOrderCancelled = "order.cancelled"
	TopicStatusChanged = "order.status.changed"
)

// Partition key = order id, so one order's events keep their relative order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
