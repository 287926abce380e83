package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/angelmondragon/cafepos-backend/pkg/enums"
)

// Envelope is one order, delivery or web order event as it arrives from the
// relay. OrderID is the message ordering key and is empty for events that
// are not about an order.
type Envelope struct {
	EventID       string
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	OrderID       string
	OccurredAt    time.Time
	ActorStaffID  *string
	Payload       json.RawMessage
}

var ErrEmptyPayload = errors.New("empty payload")

// Decode unmarshals the event payload into v.
func (e Envelope) Decode(v any) error {
	if len(bytes.TrimSpace(e.Payload)) == 0 {
		return ErrEmptyPayload
	}
	return json.Unmarshal(e.Payload, v)
}
