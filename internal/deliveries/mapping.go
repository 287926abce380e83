package deliveries

import (
	"fmt"

	"github.com/angelmondragon/cafepos-backend/pkg/enums"
)

// TagOutForDelivery is the sub-status left on a ready order while its
// delivery is on the road.
const TagOutForDelivery = "out-for-delivery"

// ToOrderStatus maps a delivery status onto the owning order. The returned
// tag is nil unless the order needs a sub-status.
func ToOrderStatus(status enums.DeliveryStatus) (enums.OrderStatus, *string, error) {
	switch status {
	case enums.DeliveryStatusPreparing:
		return enums.OrderStatusPreparing, nil, nil
	case enums.DeliveryStatusOutForDelivery:
		tag := TagOutForDelivery
		return enums.OrderStatusReady, &tag, nil
	case enums.DeliveryStatusDelivered:
		return enums.OrderStatusDelivered, nil, nil
	case enums.DeliveryStatusCancelled:
		return enums.OrderStatusCancelled, nil, nil
	}
	return "", nil, fmt.Errorf("unmapped delivery status %q", status)
}

func isTerminal(status enums.DeliveryStatus) bool {
	return status == enums.DeliveryStatusDelivered || status == enums.DeliveryStatusCancelled
}
