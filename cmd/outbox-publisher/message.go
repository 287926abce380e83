package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/cafepos-backend/pkg/db/models"
	"github.com/angelmondragon/cafepos-backend/pkg/enums"
	"github.com/angelmondragon/cafepos-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/cafepos-backend/pkg/outbox/registry"
)

// sender publishes to one topic. Resume clears the pause Pub/Sub puts on an
// ordering key after a failed publish.
type sender interface {
	Publish(context.Context, *gcppubsub.Message) ack
	Resume(orderingKey string)
}

type ack interface {
	Get(context.Context) (string, error)
}

func (r *Relay) send(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	s := r.topics(topic)
	if s == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	msg := buildMessage(row, resolved)
	sendCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := s.Publish(sendCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	if _, err := result.Get(sendCtx); err != nil {
		if msg.OrderingKey != "" {
			s.Resume(msg.OrderingKey)
		}
		return err
	}
	return nil
}

func buildMessage(row models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(row.EventType),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID,
		"created_at":     row.CreatedAt.Format(time.RFC3339Nano),
	}
	key := orderKey(row, resolved)
	if key != "" {
		attrs["order_id"] = key
	}
	if to := statusAttr(resolved.Payload); to != "" {
		attrs["status"] = to
	}
	return &gcppubsub.Message{
		Data:        row.Payload,
		Attributes:  attrs,
		OrderingKey: key,
	}
}

// orderKey is the canonical order a row is about. Delivery and web order
// events carry it in their payload.
func orderKey(row models.OutboxEvent, resolved *registry.ResolvedEvent) string {
	switch p := resolved.Payload.(type) {
	case *payloads.DeliveryCreatedEvent:
		return p.OrderID
	case *payloads.DeliveryStatusChangedEvent:
		return p.OrderID
	case *payloads.WebOrderImportedEvent:
		return p.OrderID
	}
	if row.AggregateType == enums.AggregateOrder {
		return row.AggregateID
	}
	return ""
}

func statusAttr(payload interface{}) string {
	switch p := payload.(type) {
	case *payloads.OrderStatusChangedEvent:
		return string(p.To)
	case *payloads.DeliveryStatusChangedEvent:
		return string(p.To)
	case *payloads.OrderCreatedEvent:
		return string(p.Status)
	}
	return ""
}

// orderedSender keeps one publisher per topic for the life of the relay.
func (r *Relay) orderedSender(topic string) sender {
	if s, ok := r.senders[topic]; ok {
		return s
	}
	p := r.broker.Publisher(topic)
	if p == nil {
		return nil
	}
	p.EnableMessageOrdering = true
	r.senders[topic] = gcpSender{p}
	return r.senders[topic]
}

type gcpSender struct {
	p *gcppubsub.Publisher
}

func (s gcpSender) Publish(ctx context.Context, msg *gcppubsub.Message) ack {
	return gcpAck{s.p.Publish(ctx, msg)}
}

func (s gcpSender) Resume(key string) { s.p.ResumePublish(key) }

type gcpAck struct {
	res *gcppubsub.PublishResult
}

func (a gcpAck) Get(ctx context.Context) (string, error) {
	if a.res == nil {
		return "", errors.New("publish result is nil")
	}
	return a.res.Get(ctx)
}
