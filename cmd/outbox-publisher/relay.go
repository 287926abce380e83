package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/cafepos-backend/pkg/config"
	"github.com/angelmondragon/cafepos-backend/pkg/db/models"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
	"github.com/angelmondragon/cafepos-backend/pkg/metrics"
	"github.com/angelmondragon/cafepos-backend/pkg/outbox/registry"
)

const (
	fallbackBatch       = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackMaxAttempts = 10
	publishTimeout      = 15 * time.Second
	errorBackoffCap     = 10 * time.Second
	pollJitter          = 250 * time.Millisecond
)

type store interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type broker interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type rowLedger interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type resolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type RelayParams struct {
	Config   config.OutboxConfig
	Logger   *logger.Logger
	Store    store
	Broker   broker
	Ledger   rowLedger
	Registry resolver
	Metrics  *metrics.OutboxMetrics
	// Topics overrides how a topic name becomes a sender. Tests use it.
	Topics func(topic string) sender
}

// Relay moves committed outbox rows for orders, deliveries and web orders
// onto Pub/Sub. Every message about one order carries that order's id as its
// ordering key. Rows that cannot be decoded or that run out of attempts are
// parked with attempt_count at the limit.
type Relay struct {
	logg        *logger.Logger
	store       store
	broker      broker
	ledger      rowLedger
	registry    resolver
	metrics     *metrics.OutboxMetrics
	topics      func(topic string) sender
	senders     map[string]sender
	batch       int
	maxAttempts int
	poll        time.Duration
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.Store == nil:
		return nil, errors.New("database client is required")
	case p.Broker == nil:
		return nil, errors.New("pubsub client is required")
	case p.Ledger == nil:
		return nil, errors.New("outbox repository is required")
	case p.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	r := &Relay{
		logg:        p.Logger,
		store:       p.Store,
		broker:      p.Broker,
		ledger:      p.Ledger,
		registry:    p.Registry,
		metrics:     p.Metrics,
		topics:      p.Topics,
		senders:     make(map[string]sender),
		batch:       positiveOr(p.Config.BatchSize, fallbackBatch),
		maxAttempts: positiveOr(p.Config.MaxAttempts, fallbackMaxAttempts),
		poll:        fallbackPoll,
	}
	if p.Config.PollIntervalMS > 0 {
		r.poll = time.Duration(p.Config.PollIntervalMS) * time.Millisecond
	}
	if r.topics == nil {
		r.topics = r.orderedSender
	}
	return r, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run drains until ctx ends. A full batch is followed immediately by the next
// one, an empty batch waits one poll interval, and a failing batch backs off
// exponentially up to errorBackoffCap.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.ready(ctx); err != nil {
		return err
	}

	idle := retry.WithJitter(pollJitter, retry.NewConstant(r.poll))
	failing := r.errorBackoff()
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox.relay.stopped")
			return err
		}

		drained, err := r.drain(ctx)
		wait := time.Duration(0)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox.relay.drain_failed", err)
			wait, _ = failing.Next()
		case drained:
			failing = r.errorBackoff()
			continue
		default:
			failing = r.errorBackoff()
			wait, _ = idle.Next()
		}
		if err := pause(ctx, wait); err != nil {
			return err
		}
	}
}

func (r *Relay) ready(ctx context.Context) error {
	checks := []struct {
		name string
		ping func(context.Context) error
	}{{"database", r.store.Ping}, {"pubsub", r.broker.Ping}}
	for _, c := range checks {
		if err := c.ping(ctx); err != nil {
			r.logg.Error(ctx, c.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", c.name, err)
		}
	}
	return nil
}

func (r *Relay) errorBackoff() retry.Backoff {
	b := retry.NewExponential(r.poll)
	b = retry.WithCappedDuration(errorBackoffCap, b)
	return retry.WithJitter(pollJitter, b)
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
