package enums

import "fmt"

// DeliveryStatus tracks a delivery record.
type DeliveryStatus string

const (
	DeliveryStatusPreparing      DeliveryStatus = "preparing"
	DeliveryStatusOutForDelivery DeliveryStatus = "out-for-delivery"
	DeliveryStatusDelivered      DeliveryStatus = "delivered"
	DeliveryStatusCancelled      DeliveryStatus = "cancelled"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusPreparing,
	DeliveryStatusOutForDelivery,
	DeliveryStatusDelivered,
	DeliveryStatusCancelled,
}

func (s DeliveryStatus) String() string {
	return string(s)
}

func (s DeliveryStatus) IsValid() bool {
	for _, candidate := range validDeliveryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// DeliveryStatuses returns every delivery status.
func DeliveryStatuses() []DeliveryStatus {
	out := make([]DeliveryStatus, len(validDeliveryStatuses))
	copy(out, validDeliveryStatuses)
	return out
}

func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	for _, candidate := range validDeliveryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}
