package enums

import "fmt"

// WebOrderStatus is the status vocabulary of the external ordering channel.
type WebOrderStatus string

const (
	WebOrderStatusPending        WebOrderStatus = "web-pending"
	WebOrderStatusAccepted       WebOrderStatus = "accepted"
	WebOrderStatusPreparing      WebOrderStatus = "preparing"
	WebOrderStatusReady          WebOrderStatus = "ready"
	WebOrderStatusOutForDelivery WebOrderStatus = "out-for-delivery"
	WebOrderStatusDelivered      WebOrderStatus = "delivered"
	WebOrderStatusCancelled      WebOrderStatus = "cancelled"
)

var validWebOrderStatuses = []WebOrderStatus{
	WebOrderStatusPending,
	WebOrderStatusAccepted,
	WebOrderStatusPreparing,
	WebOrderStatusReady,
	WebOrderStatusOutForDelivery,
	WebOrderStatusDelivered,
	WebOrderStatusCancelled,
}

func (s WebOrderStatus) String() string {
	return string(s)
}

func (s WebOrderStatus) IsValid() bool {
	for _, candidate := range validWebOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// WebOrderStatuses returns every external status.
func WebOrderStatuses() []WebOrderStatus {
	out := make([]WebOrderStatus, len(validWebOrderStatuses))
	copy(out, validWebOrderStatuses)
	return out
}

func ParseWebOrderStatus(value string) (WebOrderStatus, error) {
	for _, candidate := range validWebOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid web order status %q", value)
}
