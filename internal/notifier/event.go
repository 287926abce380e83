package notifier

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cafepos-backend/pkg/instance"
)

// Type names a notifier event. The set is closed.
type Type string

const (
	OrderCreated          Type = "order.created"
	OrderStatusChanged    Type = "order.status_changed"
	OrderUpdated          Type = "order.updated"
	OrderDeleted          Type = "order.deleted"
	WebOrderImported      Type = "weborder.imported"
	WebOrderProjected     Type = "weborder.projected"
	DeliveryCreated       Type = "delivery.created"
	DeliveryStatusChanged Type = "delivery.status_changed"
)

var knownTypes = []Type{
	OrderCreated,
	OrderStatusChanged,
	OrderUpdated,
	OrderDeleted,
	WebOrderImported,
	WebOrderProjected,
	DeliveryCreated,
	DeliveryStatusChanged,
}

// IsValid reports whether t belongs to the closed event set.
func (t Type) IsValid() bool {
	for _, candidate := range knownTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// Types returns every event type.
func Types() []Type {
	out := make([]Type, len(knownTypes))
	copy(out, knownTypes)
	return out
}

// OrderSnapshot is the order state carried by order events.
type OrderSnapshot struct {
	ID              string    `json:"id"`
	SequenceNumber  int64     `json:"sequenceNumber"`
	FulfillmentType string    `json:"fulfillmentType"`
	Status          string    `json:"status"`
	StatusTag       string    `json:"statusTag,omitempty"`
	Source          string    `json:"source,omitempty"`
	Total           string    `json:"total"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// StatusChange describes a move between two statuses.
type StatusChange struct {
	From string `json:"from"`
	To   string `json:"to"`
	Tag  string `json:"tag,omitempty"`
}

// DeliverySnapshot is the delivery state carried by delivery events.
type DeliverySnapshot struct {
	ID      string `json:"id"`
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Driver  string `json:"driver,omitempty"`
}

// WebOrderRef identifies the external order touched by an adapter event.
type WebOrderRef struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Event is a single notification. It is JSON safe so it can cross process
// boundaries through a Broadcaster.
type Event struct {
	ID         string            `json:"id"`
	Type       Type              `json:"type"`
	Origin     string            `json:"origin"`
	OccurredAt time.Time         `json:"occurredAt"`
	Order      *OrderSnapshot    `json:"order,omitempty"`
	Change     *StatusChange     `json:"change,omitempty"`
	Delivery   *DeliverySnapshot `json:"delivery,omitempty"`
	WebOrder   *WebOrderRef      `json:"webOrder,omitempty"`
}

// Validate checks that the payload matches the event type.
func (e Event) Validate() error {
	if !e.Type.IsValid() {
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	switch e.Type {
	case OrderCreated, OrderUpdated, OrderDeleted:
		if e.Order == nil {
			return fmt.Errorf("%s requires an order snapshot", e.Type)
		}
	case OrderStatusChanged:
		if e.Order == nil || e.Change == nil {
			return fmt.Errorf("%s requires an order snapshot and a change", e.Type)
		}
	case WebOrderImported, WebOrderProjected:
		if e.WebOrder == nil {
			return fmt.Errorf("%s requires a web order reference", e.Type)
		}
	case DeliveryCreated:
		if e.Delivery == nil {
			return fmt.Errorf("%s requires a delivery snapshot", e.Type)
		}
	case DeliveryStatusChanged:
		if e.Delivery == nil || e.Change == nil {
			return fmt.Errorf("%s requires a delivery snapshot and a change", e.Type)
		}
	}
	return nil
}

// Remote reports whether the event was raised by another process and reached
// this one through a relay. Handlers with side effects skip remote events;
// the raising process already ran them.
func (e Event) Remote() bool {
	return e.Origin != "" && e.Origin != instance.GetID()
}

func newEvent(t Type) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		Origin:     instance.GetID(),
		OccurredAt: time.Now().UTC(),
	}
}

// NewOrderEvent builds order.created, order.updated or order.deleted.
func NewOrderEvent(t Type, order OrderSnapshot) Event {
	e := newEvent(t)
	e.Order = &order
	return e
}

// NewOrderStatusChanged builds order.status_changed.
func NewOrderStatusChanged(order OrderSnapshot, change StatusChange) Event {
	e := newEvent(OrderStatusChanged)
	e.Order = &order
	e.Change = &change
	return e
}

// NewWebOrderEvent builds weborder.imported or weborder.projected.
func NewWebOrderEvent(t Type, ref WebOrderRef) Event {
	e := newEvent(t)
	e.WebOrder = &ref
	return e
}

// NewDeliveryCreated builds delivery.created.
func NewDeliveryCreated(delivery DeliverySnapshot) Event {
	e := newEvent(DeliveryCreated)
	e.Delivery = &delivery
	return e
}

// NewDeliveryStatusChanged builds delivery.status_changed.
func NewDeliveryStatusChanged(delivery DeliverySnapshot, change StatusChange) Event {
	e := newEvent(DeliveryStatusChanged)
	e.Delivery = &delivery
	e.Change = &change
	return e
}
