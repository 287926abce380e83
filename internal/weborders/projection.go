package weborders

import (
	"context"

	"github.com/angelmondragon/cafepos-backend/internal/notifier"
	"github.com/angelmondragon/cafepos-backend/pkg/enums"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
)

type subscriber interface {
	Subscribe(t notifier.Type, handler notifier.Handler) notifier.Unsubscribe
}

type projector interface {
	ProjectStatusToWeb(ctx context.Context, orderID string, status enums.OrderStatus) error
}

// RegisterProjection mirrors canonical status changes onto web orders.
func RegisterProjection(bus subscriber, svc projector, logg *logger.Logger) notifier.Unsubscribe {
	if logg == nil {
		logg = logger.Nop()
	}
	return bus.Subscribe(notifier.OrderStatusChanged, func(ctx context.Context, event notifier.Event) {
		if event.Remote() || event.Order == nil || event.Change == nil || event.Change.From == event.Change.To {
			return
		}
		if err := svc.ProjectStatusToWeb(ctx, event.Order.ID, enums.OrderStatus(event.Change.To)); err != nil {
			logg.Error(logg.WithOrderID(ctx, event.Order.ID), "weborders.projection.failed", err)
		}
	})
}
