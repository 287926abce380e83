package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder    OutboxAggregateType = "order"
	AggregateWebOrder OutboxAggregateType = "web_order"
	AggregateDelivery OutboxAggregateType = "delivery"
)

func (a OutboxAggregateType) IsValid() bool {
	switch a {
	case AggregateOrder, AggregateWebOrder, AggregateDelivery:
		return true
	}
	return false
}

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	if a := OutboxAggregateType(value); a.IsValid() {
		return a, nil
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType is the durable event name written to outbox_events.
type OutboxEventType string

const (
	EventOrderCreated          OutboxEventType = "order_created"
	EventOrderStatusChanged    OutboxEventType = "order_status_changed"
	EventOrderItemsUpdated     OutboxEventType = "order_items_updated"
	EventOrderDeleted          OutboxEventType = "order_deleted"
	EventWebOrderImported      OutboxEventType = "web_order_imported"
	EventDeliveryCreated       OutboxEventType = "delivery_created"
	EventDeliveryStatusChanged OutboxEventType = "delivery_status_changed"
)

// eventOwners maps every event to the aggregate whose changes it reports.
var eventOwners = map[OutboxEventType]OutboxAggregateType{
	EventOrderCreated:          AggregateOrder,
	EventOrderStatusChanged:    AggregateOrder,
	EventOrderItemsUpdated:     AggregateOrder,
	EventOrderDeleted:          AggregateOrder,
	EventWebOrderImported:      AggregateWebOrder,
	EventDeliveryCreated:       AggregateDelivery,
	EventDeliveryStatusChanged: AggregateDelivery,
}

func (e OutboxEventType) IsValid() bool {
	_, ok := eventOwners[e]
	return ok
}

// Aggregate is the aggregate type that emits e, or "" for unknown events.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return eventOwners[e]
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	if e := OutboxEventType(value); e.IsValid() {
		return e, nil
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
