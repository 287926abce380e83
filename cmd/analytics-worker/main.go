package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/cafepos-backend/internal/analytics/router"
	"github.com/angelmondragon/cafepos-backend/internal/analytics/worker"
	"github.com/angelmondragon/cafepos-backend/internal/analytics/writer"
	"github.com/angelmondragon/cafepos-backend/pkg/bigquery"
	"github.com/angelmondragon/cafepos-backend/pkg/config"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
	"github.com/angelmondragon/cafepos-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/cafepos-backend/pkg/pubsub"
	"github.com/angelmondragon/cafepos-backend/pkg/redis"
)

const serviceKind = "analytics-worker"

// The analytics worker streams order, delivery and web order events from the
// analytics subscription into the BigQuery order events table.
func main() {
	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: serviceKind})

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind
	if !cfg.FeatureFlags.AnalyticsEnabled {
		logg.Warn(context.Background(), "analytics disabled, exiting")
		return
	}
	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"table":       cfg.BigQuery.OrderEventsTable,
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "analytics worker failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logg.Error(ctx, "analytics worker shutdown", err)
			}
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	closers = append(closers, redisClient.Close)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	closers = append(closers, pubsubClient.Close)

	table := writer.OrderEventsTable(cfg.BigQuery.OrderEventsTable)
	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg, table)
	if err != nil {
		return fmt.Errorf("bigquery: %w", err)
	}
	closers = append(closers, bqClient.Close)

	subscription := pubsubClient.AnalyticsSubscription()
	if subscription == nil {
		return errors.New("analytics subscription not configured")
	}

	seen, err := idempotency.NewManager(redisClient, cfg.Outbox.IdempotencyTTL)
	if err != nil {
		return fmt.Errorf("idempotency: %w", err)
	}
	sink, err := writer.New(bqClient, writer.Config{OrderEventsTable: table.Name})
	if err != nil {
		return fmt.Errorf("writer: %w", err)
	}
	routes, err := router.NewRouter(sink, logg)
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}
	service, err := worker.NewService(subscription, routes, seen, logg)
	if err != nil {
		return fmt.Errorf("worker: %w", err)
	}

	logg.Info(ctx, "analytics worker ready")
	return service.Run(ctx)
}
