package enums

// OutboxEventType enumerates the domain events the core emits.
type OutboxEventType string

const (
	EventOrderCreated      OutboxEventType = "order.created"
	EventOrderConfirmed    OutboxEventType = "order.confirmed"
	EventOrderCanceled     OutboxEventType = "order.canceled"
	EventCoinsSettled      OutboxEventType = "coins.settled"
	EventRoomUnlocked      OutboxEventType = "room.unlocked"
	EventRoomExpired       OutboxEventType = "room.expired"
	EventCheckoutConverted OutboxEventType = "checkout.converted"
)

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
	AggregateRoom  OutboxAggregateType = "room"
	AggregateUser  OutboxAggregateType = "user"
)
