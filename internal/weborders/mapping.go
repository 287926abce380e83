package weborders

import (
	"fmt"

	"github.com/angelmondragon/cafepos-backend/pkg/enums"
)

// ToCanonical maps an external status onto the order lifecycle. ready and
// out-for-delivery both land on ready; the distinction is not kept.
func ToCanonical(status enums.WebOrderStatus) (enums.OrderStatus, error) {
	switch status {
	case enums.WebOrderStatusPending:
		return enums.OrderStatusPending, nil
	case enums.WebOrderStatusAccepted, enums.WebOrderStatusPreparing:
		return enums.OrderStatusPreparing, nil
	case enums.WebOrderStatusReady, enums.WebOrderStatusOutForDelivery:
		return enums.OrderStatusReady, nil
	case enums.WebOrderStatusDelivered:
		return enums.OrderStatusDelivered, nil
	case enums.WebOrderStatusCancelled:
		return enums.OrderStatusCancelled, nil
	}
	return "", fmt.Errorf("unmapped web order status %q", status)
}

// ToWeb maps a canonical status back to the external vocabulary. accepted
// and out-for-delivery are never produced.
func ToWeb(status enums.OrderStatus) (enums.WebOrderStatus, error) {
	switch status {
	case enums.OrderStatusPending:
		return enums.WebOrderStatusPending, nil
	case enums.OrderStatusPreparing:
		return enums.WebOrderStatusPreparing, nil
	case enums.OrderStatusReady:
		return enums.WebOrderStatusReady, nil
	case enums.OrderStatusDelivered:
		return enums.WebOrderStatusDelivered, nil
	case enums.OrderStatusCancelled:
		return enums.WebOrderStatusCancelled, nil
	}
	return "", fmt.Errorf("unmapped order status %q", status)
}
