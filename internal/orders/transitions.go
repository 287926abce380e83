package orders

import (
	"context"

	"github.com/angelmondragon/cafepos-backend/pkg/db/models"
	"github.com/angelmondragon/cafepos-backend/pkg/enums"
)

var forward = map[enums.OrderStatus]enums.OrderStatus{
	enums.OrderStatusPending:   enums.OrderStatusPreparing,
	enums.OrderStatusPreparing: enums.OrderStatusReady,
	enums.OrderStatusReady:     enums.OrderStatusDelivered,
}

// CanTransition reports whether an order may move from one status to
// another. Same-status moves are handled by the caller as no-ops.
func CanTransition(from, to enums.OrderStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == enums.OrderStatusCancelled {
		return true
	}
	return forward[from] == to
}

// ForwardPath lists the statuses an order passes through on its way from one
// status to another, ending with to. It is nil when to is not ahead of from.
// Cancellation is always a single step.
func ForwardPath(from, to enums.OrderStatus) []enums.OrderStatus {
	if from == to || from.IsTerminal() {
		return nil
	}
	if to == enums.OrderStatusCancelled {
		return []enums.OrderStatus{to}
	}
	var path []enums.OrderStatus
	for next, ok := forward[from]; ok; next, ok = forward[next] {
		path = append(path, next)
		if next == to {
			return path
		}
	}
	return nil
}

// StatusChanger is the part of Service that Advance drives.
type StatusChanger interface {
	Get(ctx context.Context, id string) (*models.Order, error)
	UpdateStatusWithTag(ctx context.Context, id string, status enums.OrderStatus, tag *string) (*models.Order, error)
}

// Advance moves an order to status one legal step at a time, so every
// intermediate status is recorded and announced. The tag lands on the last
// step. A target that is not ahead of the current status goes straight to
// UpdateStatusWithTag and gets its usual answer.
func Advance(ctx context.Context, store StatusChanger, id string, to enums.OrderStatus, tag *string) (*models.Order, error) {
	current, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	path := ForwardPath(current.Status, to)
	if len(path) == 0 {
		return store.UpdateStatusWithTag(ctx, id, to, tag)
	}

	order := current
	for i, step := range path {
		var stepTag *string
		if i == len(path)-1 {
			stepTag = tag
		}
		order, err = store.UpdateStatusWithTag(ctx, id, step, stepTag)
		if err != nil {
			return nil, err
		}
	}
	return order, nil
}
