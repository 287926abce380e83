package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/cafepos-backend/internal/auth"
	"github.com/angelmondragon/cafepos-backend/internal/deliveries"
	"github.com/angelmondragon/cafepos-backend/internal/notifier"
	"github.com/angelmondragon/cafepos-backend/internal/orders"
	"github.com/angelmondragon/cafepos-backend/internal/weborders"
	"github.com/angelmondragon/cafepos-backend/pkg/config"
	"github.com/angelmondragon/cafepos-backend/pkg/db"
	"github.com/angelmondragon/cafepos-backend/pkg/instance"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
	"github.com/angelmondragon/cafepos-backend/pkg/metrics"
	"github.com/angelmondragon/cafepos-backend/pkg/outbox"
	"github.com/angelmondragon/cafepos-backend/pkg/pubsub"
	"github.com/angelmondragon/cafepos-backend/pkg/rabbitmq"
	"github.com/angelmondragon/cafepos-backend/pkg/redis"
)

const feedClientTimeout = 30 * time.Second

// Params carries the connections a process has already opened. Redis is
// required only when sequence numbers come from Redis. Registerer may be nil.
type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Redis      *redis.Client
	Registerer prometheus.Registerer
	HTTPClient *http.Client
}

// Services is the assembled order reconciliation core of one process.
type Services struct {
	Bus        *notifier.Bus
	Orders     orders.Service
	WebOrders  weborders.Service
	Deliveries deliveries.Service
	Auth       auth.Service
	Metrics    *metrics.SyncMetrics

	// Fetcher is nil when no web order feed is configured.
	Fetcher *weborders.Fetcher
	// Relay is nil when events stay in process.
	Relay *notifier.Relay

	subscriptions []notifier.Unsubscribe
	closers       []func() error
}

// Build wires the services onto a shared notifier bus and dials the
// configured broadcast transport.
func Build(ctx context.Context, p Params) (*Services, error) {
	if p.Config == nil {
		return nil, errors.New("config required")
	}
	if p.DB == nil {
		return nil, errors.New("db client required")
	}
	cfg := p.Config
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}

	s := &Services{Metrics: metrics.NewSyncMetrics(p.Registerer)}

	link, err := dialLink(ctx, cfg, logg)
	if err != nil {
		return nil, err
	}
	if link != nil {
		s.closers = append(s.closers, link.close)
	}

	busOpts := []notifier.Option{notifier.WithMetrics(s.Metrics)}
	if link != nil {
		busOpts = append(busOpts, notifier.WithBroadcaster(link.broadcaster))
	}
	s.Bus = notifier.NewBus(logg, busOpts...)

	if link != nil {
		s.Relay, err = notifier.NewRelay(link.source, s.Bus, instance.GetID(), logg)
		if err != nil {
			return nil, s.fail(err)
		}
	}

	conn := p.DB.DB()
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	sequencer, err := buildSequencer(cfg.Sequence, p.Redis)
	if err != nil {
		return nil, s.fail(err)
	}

	s.Orders, err = orders.NewService(orders.Deps{
		Repo:      orders.NewRepository(conn),
		Tx:        p.DB,
		Outbox:    emitter,
		Sequencer: sequencer,
		Notifier:  s.Bus,
		Metrics:   s.Metrics,
		Logger:    logg,
	})
	if err != nil {
		return nil, s.fail(fmt.Errorf("build orders service: %w", err))
	}

	s.WebOrders, err = weborders.NewService(weborders.Deps{
		Repo:     weborders.NewRepository(conn),
		Tx:       p.DB,
		Outbox:   emitter,
		Orders:   s.Orders,
		Notifier: s.Bus,
		Metrics:  s.Metrics,
		Logger:   logg,
	})
	if err != nil {
		return nil, s.fail(fmt.Errorf("build web orders service: %w", err))
	}

	s.Deliveries, err = deliveries.NewService(deliveries.Deps{
		Repo:     deliveries.NewRepository(conn),
		Tx:       p.DB,
		Outbox:   emitter,
		Orders:   s.Orders,
		Notifier: s.Bus,
		Logger:   logg,
	})
	if err != nil {
		return nil, s.fail(fmt.Errorf("build deliveries service: %w", err))
	}

	s.Auth, err = auth.NewService(auth.ServiceParams{
		StaffRepo:      auth.NewRepository(conn),
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return nil, s.fail(fmt.Errorf("build auth service: %w", err))
	}

	if cfg.WebOrders.FeedURL != "" {
		client := p.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: feedClientTimeout}
		}
		s.Fetcher, err = weborders.NewFetcher(cfg.WebOrders, s.WebOrders, client, s.Metrics, logg)
		if err != nil {
			return nil, s.fail(fmt.Errorf("build web order fetcher: %w", err))
		}
	}

	s.subscriptions = append(s.subscriptions, deliveries.RegisterCascade(s.Bus, s.Deliveries, logg))
	if cfg.FeatureFlags.AutoDeliveries {
		s.subscriptions = append(s.subscriptions, deliveries.RegisterAutoCreate(s.Bus, s.Deliveries, logg))
	}
	if cfg.FeatureFlags.ProjectToWeb {
		s.subscriptions = append(s.subscriptions, weborders.RegisterProjection(s.Bus, s.WebOrders, logg))
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"broadcast":       cfg.Broadcast.Mode(),
		"sequence_source": cfg.Sequence.Source,
		"web_feed":        s.Fetcher != nil,
		"auto_deliveries": cfg.FeatureFlags.AutoDeliveries,
		"project_to_web":  cfg.FeatureFlags.ProjectToWeb,
	}), "app.services_ready")
	return s, nil
}

// Close detaches bus subscribers and closes the broadcast transport.
func (s *Services) Close() error {
	if s == nil {
		return nil
	}
	for _, unsubscribe := range s.subscriptions {
		unsubscribe()
	}
	s.subscriptions = nil

	var err error
	for _, closeFn := range s.closers {
		err = multierr.Append(err, closeFn())
	}
	s.closers = nil
	return err
}

func (s *Services) fail(err error) error {
	return multierr.Append(err, s.Close())
}

func buildSequencer(cfg config.SequenceConfig, client *redis.Client) (orders.Sequencer, error) {
	if !cfg.UseRedis() {
		return orders.NewDBSequencer(cfg.Name), nil
	}
	if client == nil {
		return nil, errors.New("redis client required for redis order sequence")
	}
	return orders.NewRedisSequencer(client, cfg.Name)
}

// link is a cross-process event transport: the outbound broadcaster and the
// inbound source feeding the relay.
type link struct {
	broadcaster notifier.Broadcaster
	source      notifier.Source
	close       func() error
}

func dialLink(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*link, error) {
	switch cfg.Broadcast.Mode() {
	case config.BroadcastPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, fmt.Errorf("dial pubsub: %w", err)
		}
		broadcaster, err := notifier.NewPubSubBroadcaster(client.SyncPublisher(), logg)
		if err != nil {
			return nil, multierr.Append(err, client.Close())
		}
		source, err := notifier.NewPubSubSource(client.SyncSubscription())
		if err != nil {
			return nil, multierr.Append(err, client.Close())
		}
		return &link{broadcaster: broadcaster, source: source, close: client.Close}, nil
	case config.BroadcastRabbitMQ:
		client, err := rabbitmq.New(ctx, cfg.RabbitMQ, logg)
		if err != nil {
			return nil, fmt.Errorf("dial rabbitmq: %w", err)
		}
		broadcaster, err := notifier.NewAMQPBroadcaster(client)
		if err != nil {
			return nil, multierr.Append(err, client.Close())
		}
		source, err := notifier.NewAMQPSource(client, "cafepos-"+instance.GetID())
		if err != nil {
			return nil, multierr.Append(err, client.Close())
		}
		return &link{broadcaster: broadcaster, source: source, close: client.Close}, nil
	default:
		return nil, nil
	}
}
