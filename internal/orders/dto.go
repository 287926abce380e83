package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cafepos-backend/internal/notifier"
	"github.com/angelmondragon/cafepos-backend/pkg/db/models"
	"github.com/angelmondragon/cafepos-backend/pkg/enums"
)

// SourceLocal marks orders keyed in at the counter.
const SourceLocal = "local"

// CustomerInput is the customer block of a draft.
type CustomerInput struct {
	Name    string  `json:"name" validate:"required,max=120"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=40"`
	Address *string `json:"address,omitempty" validate:"omitempty,max=255"`
}

// LineItemInput is one requested item.
type LineItemInput struct {
	Name      string          `json:"name" validate:"required,max=120"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Notes     *string         `json:"notes,omitempty" validate:"omitempty,max=280"`
}

// Draft is the input to Create. ID and Source are only set by importers.
type Draft struct {
	FulfillmentType enums.FulfillmentType `json:"fulfillmentType" validate:"required,enum"`
	Customer        CustomerInput         `json:"customer"`
	LineItems       []LineItemInput       `json:"lineItems"`

	ID     string `json:"-"`
	Source string `json:"-"`
}

// StatusInput is the body of a status change request.
type StatusInput struct {
	Status enums.OrderStatus `json:"status" validate:"required,enum"`
	Tag    *string           `json:"statusTag,omitempty" validate:"omitempty,max=40"`
}

// ItemsInput replaces the line items of a pending order.
type ItemsInput struct {
	LineItems []LineItemInput `json:"lineItems"`
}

type CustomerDTO struct {
	Name    string  `json:"name"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
}

type LineItemDTO struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice string  `json:"unitPrice"`
	LineTotal string  `json:"lineTotal"`
	Notes     *string `json:"notes,omitempty"`
}

// OrderDTO is the API shape of an order.
type OrderDTO struct {
	ID              string        `json:"id"`
	SequenceNumber  int64         `json:"sequenceNumber"`
	DisplayNumber   string        `json:"displayNumber"`
	FulfillmentType string        `json:"fulfillmentType"`
	Status          string        `json:"status"`
	StatusTag       *string       `json:"statusTag,omitempty"`
	Source          string        `json:"source"`
	Customer        CustomerDTO   `json:"customer"`
	LineItems       []LineItemDTO `json:"lineItems"`
	Total           string        `json:"total"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// OrderList is a page of orders.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// DisplayNumber renders a sequence number the way tickets print it.
func DisplayNumber(seq int64) string {
	return fmt.Sprintf("#%06d", seq)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FromModel maps a persisted order into its API shape.
func FromModel(order *models.Order) OrderDTO {
	items := make([]LineItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, LineItemDTO{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: money(item.UnitPrice),
			LineTotal: money(item.LineTotal),
			Notes:     item.Notes,
		})
	}
	return OrderDTO{
		ID:              order.ID,
		SequenceNumber:  order.SequenceNumber,
		DisplayNumber:   DisplayNumber(order.SequenceNumber),
		FulfillmentType: string(order.FulfillmentType),
		Status:          string(order.Status),
		StatusTag:       order.StatusTag,
		Source:          order.Source,
		Customer: CustomerDTO{
			Name:    order.Customer.Name,
			Phone:   order.Customer.Phone,
			Address: order.Customer.Address,
		},
		LineItems: items,
		Total:     money(order.Total),
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
}

// FromModels maps a slice of orders.
func FromModels(orders []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(orders))
	for i := range orders {
		out = append(out, FromModel(&orders[i]))
	}
	return out
}

// Snapshot is the notifier view of an order.
func Snapshot(order *models.Order) notifier.OrderSnapshot {
	snap := notifier.OrderSnapshot{
		ID:              order.ID,
		SequenceNumber:  order.SequenceNumber,
		FulfillmentType: string(order.FulfillmentType),
		Status:          string(order.Status),
		Source:          order.Source,
		Total:           money(order.Total),
		UpdatedAt:       order.UpdatedAt,
	}
	if order.StatusTag != nil {
		snap.StatusTag = *order.StatusTag
	}
	return snap
}
