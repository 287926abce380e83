package payloads

import (
	"github.com/angelmondragon/cafepos-backend/pkg/enums"
)

// OrderCreatedEvent is emitted once per canonical order insert.
type OrderCreatedEvent struct {
	OrderID         string                `json:"order_id"`
	SequenceNumber  int64                 `json:"sequence_number"`
	FulfillmentType enums.FulfillmentType `json:"fulfillment_type"`
	Status          enums.OrderStatus     `json:"status"`
	Source          string                `json:"source"`
	Total           string                `json:"total"`
	ItemCount       int                   `json:"item_count"`
}

// OrderStatusChangedEvent records an accepted transition.
type OrderStatusChangedEvent struct {
	OrderID string            `json:"order_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
	Tag     *string           `json:"tag,omitempty"`
}

// OrderItemsUpdatedEvent records a line item edit on a pending order.
type OrderItemsUpdatedEvent struct {
	OrderID   string `json:"order_id"`
	Total     string `json:"total"`
	ItemCount int    `json:"item_count"`
}

// OrderDeletedEvent is emitted when an order leaves the listing.
type OrderDeletedEvent struct {
	OrderID string            `json:"order_id"`
	Status  enums.OrderStatus `json:"status"`
}

// WebOrderImportedEvent links a queued web order to its canonical order.
type WebOrderImportedEvent struct {
	WebOrderID string `json:"web_order_id"`
	OrderID    string `json:"order_id"`
	Total      string `json:"total"`
}

// DeliveryCreatedEvent is emitted when a delivery record is opened.
type DeliveryCreatedEvent struct {
	DeliveryID string `json:"delivery_id"`
	OrderID    string `json:"order_id"`
}

// DeliveryStatusChangedEvent records a delivery status update.
type DeliveryStatusChangedEvent struct {
	DeliveryID string               `json:"delivery_id"`
	OrderID    string               `json:"order_id"`
	From       enums.DeliveryStatus `json:"from"`
	To         enums.DeliveryStatus `json:"to"`
	Driver     *string              `json:"driver,omitempty"`
}
