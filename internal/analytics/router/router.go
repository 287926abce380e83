package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/cafepos-backend/internal/analytics/types"
	"github.com/angelmondragon/cafepos-backend/internal/analytics/writer"
	"github.com/angelmondragon/cafepos-backend/pkg/enums"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
	"github.com/angelmondragon/cafepos-backend/pkg/outbox/payloads"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers BigQuery rows produced by the router.
type Writer interface {
	InsertOrderEvent(ctx context.Context, row types.OrderEventRow) error
}

type rowBuilder func(row *types.OrderEventRow, payload any)

type handlerEntry struct {
	factory func() any
	build   rowBuilder
}

// Router maps each outbox event type onto an order_events row.
type Router struct {
	writer   Writer
	handlers map[enums.OutboxEventType]handlerEntry
	logg     *logger.Logger
}

// NewRouter wires the row builders for every order lifecycle event.
func NewRouter(w Writer, logg *logger.Logger) (*Router, error) {
	if w == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	entries := map[enums.OutboxEventType]handlerEntry{
		enums.EventOrderCreated: {
			factory: func() any { return &payloads.OrderCreatedEvent{} },
			build: func(row *types.OrderEventRow, p any) {
				ev := p.(*payloads.OrderCreatedEvent)
				row.OrderID = strPtr(ev.OrderID)
				row.Source = strPtr(ev.Source)
				row.Fulfillment = strPtr(string(ev.FulfillmentType))
				row.ToStatus = strPtr(string(ev.Status))
				row.Total = strPtr(ev.Total)
				row.ItemCount = int64Ptr(ev.ItemCount)
			},
		},
		enums.EventOrderStatusChanged: {
			factory: func() any { return &payloads.OrderStatusChangedEvent{} },
			build: func(row *types.OrderEventRow, p any) {
				ev := p.(*payloads.OrderStatusChangedEvent)
				row.OrderID = strPtr(ev.OrderID)
				row.FromStatus = strPtr(string(ev.From))
				row.ToStatus = strPtr(string(ev.To))
				row.StatusTag = ev.Tag
			},
		},
		enums.EventOrderItemsUpdated: {
			factory: func() any { return &payloads.OrderItemsUpdatedEvent{} },
			build: func(row *types.OrderEventRow, p any) {
				ev := p.(*payloads.OrderItemsUpdatedEvent)
				row.OrderID = strPtr(ev.OrderID)
				row.Total = strPtr(ev.Total)
				row.ItemCount = int64Ptr(ev.ItemCount)
			},
		},
		enums.EventOrderDeleted: {
			factory: func() any { return &payloads.OrderDeletedEvent{} },
			build: func(row *types.OrderEventRow, p any) {
				ev := p.(*payloads.OrderDeletedEvent)
				row.OrderID = strPtr(ev.OrderID)
				row.FromStatus = strPtr(string(ev.Status))
			},
		},
		enums.EventWebOrderImported: {
			factory: func() any { return &payloads.WebOrderImportedEvent{} },
			build: func(row *types.OrderEventRow, p any) {
				ev := p.(*payloads.WebOrderImportedEvent)
				row.OrderID = strPtr(ev.OrderID)
				row.WebOrderID = strPtr(ev.WebOrderID)
				row.Total = strPtr(ev.Total)
			},
		},
		enums.EventDeliveryCreated: {
			factory: func() any { return &payloads.DeliveryCreatedEvent{} },
			build: func(row *types.OrderEventRow, p any) {
				ev := p.(*payloads.DeliveryCreatedEvent)
				row.OrderID = strPtr(ev.OrderID)
				row.DeliveryID = strPtr(ev.DeliveryID)
			},
		},
		enums.EventDeliveryStatusChanged: {
			factory: func() any { return &payloads.DeliveryStatusChangedEvent{} },
			build: func(row *types.OrderEventRow, p any) {
				ev := p.(*payloads.DeliveryStatusChangedEvent)
				row.OrderID = strPtr(ev.OrderID)
				row.DeliveryID = strPtr(ev.DeliveryID)
				row.FromStatus = strPtr(string(ev.From))
				row.ToStatus = strPtr(string(ev.To))
			},
		},
	}

	return &Router{writer: w, handlers: entries, logg: logg}, nil
}

// Handle decodes the envelope payload and writes the resulting row.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	entry, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	payload := entry.factory()
	if err := envelope.Decode(payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}

	raw, err := writer.EncodeJSON(envelope.Payload)
	if err != nil {
		return err
	}
	row := types.OrderEventRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		AggregateType: string(envelope.AggregateType),
		AggregateID:   envelope.AggregateID,
		OccurredAt:    envelope.OccurredAt.UTC(),
		ActorStaffID:  envelope.ActorStaffID,
		Payload:       raw,
	}
	entry.build(&row, payload)
	if row.OrderID == nil {
		row.OrderID = strPtr(envelope.OrderID)
	}

	if err := r.writer.InsertOrderEvent(ctx, row); err != nil {
		return err
	}
	r.logg.Debug(ctx, "analytics.row_written")
	return nil
}

func strPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func int64Ptr(value int) *int64 {
	v := int64(value)
	return &v
}
