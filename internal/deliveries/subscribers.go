package deliveries

import (
	"context"

	"github.com/angelmondragon/cafepos-backend/internal/notifier"
	"github.com/angelmondragon/cafepos-backend/pkg/enums"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
)

type subscriber interface {
	Subscribe(t notifier.Type, handler notifier.Handler) notifier.Unsubscribe
}

// RegisterCascade cancels open deliveries when their order is cancelled or
// deleted. Relayed events are ignored.
func RegisterCascade(bus subscriber, svc Service, logg *logger.Logger) notifier.Unsubscribe {
	if logg == nil {
		logg = logger.Nop()
	}
	cancel := func(ctx context.Context, orderID string) {
		if _, err := svc.CancelForOrder(ctx, orderID); err != nil {
			logg.Error(logg.WithOrderID(ctx, orderID), "delivery.cascade_failed", err)
		}
	}
	offChanged := bus.Subscribe(notifier.OrderStatusChanged, func(ctx context.Context, event notifier.Event) {
		if event.Remote() || event.Order == nil || event.Change == nil || event.Change.To != string(enums.OrderStatusCancelled) {
			return
		}
		cancel(ctx, event.Order.ID)
	})
	offDeleted := bus.Subscribe(notifier.OrderDeleted, func(ctx context.Context, event notifier.Event) {
		if event.Remote() || event.Order == nil {
			return
		}
		cancel(ctx, event.Order.ID)
	})
	return func() {
		offChanged()
		offDeleted()
	}
}

// RegisterAutoCreate opens a delivery for every delivery order created in
// this process.
func RegisterAutoCreate(bus subscriber, svc Service, logg *logger.Logger) notifier.Unsubscribe {
	if logg == nil {
		logg = logger.Nop()
	}
	return bus.Subscribe(notifier.OrderCreated, func(ctx context.Context, event notifier.Event) {
		if event.Remote() || event.Order == nil || event.Order.FulfillmentType != string(enums.FulfillmentDelivery) {
			return
		}
		if _, err := svc.CreateFromOrder(ctx, event.Order.ID); err != nil {
			logg.Error(logg.WithOrderID(ctx, event.Order.ID), "delivery.autocreate_failed", err)
		}
	})
}
