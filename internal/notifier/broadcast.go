package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/angelmondragon/cafepos-backend/pkg/logger"
)

const (
	attrEventType = "event_type"
	attrOrigin    = "origin"
)

const publishTimeout = 10 * time.Second

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type publishFunc func(ctx context.Context, msg *pubsub.Message) publishResult

// PubSubBroadcaster publishes events on the sync topic. Broadcast hands the
// message to the client's batcher and returns; the server ack is awaited in
// the background and failures are only logged.
type PubSubBroadcaster struct {
	publish publishFunc
	timeout time.Duration
	logg    *logger.Logger
}

func NewPubSubBroadcaster(publisher *pubsub.Publisher, logg *logger.Logger) (*PubSubBroadcaster, error) {
	if publisher == nil {
		return nil, errors.New("sync publisher required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &PubSubBroadcaster{
		publish: func(ctx context.Context, msg *pubsub.Message) publishResult {
			return publisher.Publish(ctx, msg)
		},
		timeout: publishTimeout,
		logg:    logg,
	}, nil
}

func (b *PubSubBroadcaster) Broadcast(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	// the request that raised the event may finish before the ack arrives
	ctx = context.WithoutCancel(ctx)
	result := b.publish(ctx, &pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			attrEventType: string(event.Type),
			attrOrigin:    event.Origin,
		},
	})
	go b.await(ctx, event, result)
	return nil
}

func (b *PubSubBroadcaster) await(ctx context.Context, event Event, result publishResult) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if _, err := result.Get(ctx); err != nil {
		logCtx := b.logg.WithFields(ctx, map[string]any{"event_type": string(event.Type), "event_id": event.ID})
		b.logg.Error(logCtx, "notifier.broadcast.failed", err)
	}
}

type amqpPublisher interface {
	Publish(ctx context.Context, body []byte, headers map[string]any) error
}

// AMQPBroadcaster publishes events on the RabbitMQ fanout exchange.
type AMQPBroadcaster struct {
	client amqpPublisher
}

func NewAMQPBroadcaster(client amqpPublisher) (*AMQPBroadcaster, error) {
	if client == nil {
		return nil, errors.New("rabbitmq client required")
	}
	return &AMQPBroadcaster{client: client}, nil
}

func (b *AMQPBroadcaster) Broadcast(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return b.client.Publish(ctx, body, map[string]any{
		attrEventType: string(event.Type),
		attrOrigin:    event.Origin,
	})
}

// Source yields raw remote event bodies until ctx ends.
type Source interface {
	Run(ctx context.Context, fn func(ctx context.Context, body []byte)) error
}

// PubSubSource reads the sync subscription.
type PubSubSource struct {
	sub *pubsub.Subscriber
}

func NewPubSubSource(sub *pubsub.Subscriber) (*PubSubSource, error) {
	if sub == nil {
		return nil, errors.New("sync subscription required")
	}
	return &PubSubSource{sub: sub}, nil
}

func (s *PubSubSource) Run(ctx context.Context, fn func(ctx context.Context, body []byte)) error {
	return s.sub.Receive(ctx, func(innerCtx context.Context, msg *pubsub.Message) {
		fn(innerCtx, msg.Data)
		msg.Ack()
	})
}

type amqpConsumer interface {
	Consume(ctx context.Context, consumer string) (<-chan amqp.Delivery, error)
}

// AMQPSource reads from an exclusive queue bound to the fanout exchange.
type AMQPSource struct {
	client   amqpConsumer
	consumer string
}

func NewAMQPSource(client amqpConsumer, consumer string) (*AMQPSource, error) {
	if client == nil {
		return nil, errors.New("rabbitmq client required")
	}
	return &AMQPSource{client: client, consumer: consumer}, nil
}

func (s *AMQPSource) Run(ctx context.Context, fn func(ctx context.Context, body []byte)) error {
	deliveries, err := s.client.Consume(ctx, s.consumer)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			fn(ctx, d.Body)
		}
	}
}

// Relay republishes remote events on the local bus, dropping echoes of
// events this process published itself.
type Relay struct {
	source Source
	bus    *Bus
	self   string
	logg   *logger.Logger
}

func NewRelay(source Source, bus *Bus, self string, logg *logger.Logger) (*Relay, error) {
	if source == nil {
		return nil, errors.New("relay source required")
	}
	if bus == nil {
		return nil, errors.New("notifier bus required")
	}
	if self == "" {
		return nil, errors.New("instance id required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Relay{source: source, bus: bus, self: self, logg: logg}, nil
}

// Run blocks until ctx is cancelled or the source fails.
func (r *Relay) Run(ctx context.Context) error {
	r.logg.Info(ctx, "notifier.relay.start")
	err := r.source.Run(ctx, r.handle)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (r *Relay) handle(ctx context.Context, body []byte) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		r.logg.Warn(ctx, fmt.Sprintf("notifier.relay.decode_failed: %v", err))
		return
	}
	if event.Origin == r.self {
		return
	}
	r.bus.Deliver(r.logg.WithField(ctx, "event_origin", event.Origin), event)
}
