package enums

// OutboxEventType enumerates the domain events the outbox publishes.
type OutboxEventType string

const (
	EventOrderCreated   OutboxEventType = "order.created"
	EventOrderPaid      OutboxEventType = "order.paid"
	EventOrderCancelled OutboxEventType = "order.cancelled"
	EventOrderRefunded  OutboxEventType = "order.refunded"
	EventOrderExpired   OutboxEventType = "order.expired"
	EventOrderRedeemed  OutboxEventType = "order.redeemed"
)

// OutboxAggregateType names the aggregate an event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
)
