package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/stockyard-backend/internal/analytics/router"
	"github.com/angelmondragon/stockyard-backend/internal/analytics/worker"
	"github.com/angelmondragon/stockyard-backend/internal/analytics/writer"
	"github.com/angelmondragon/stockyard-backend/pkg/bigquery"
	"github.com/angelmondragon/stockyard-backend/pkg/config"
	"github.com/angelmondragon/stockyard-backend/pkg/idempotency"
	"github.com/angelmondragon/stockyard-backend/pkg/instance"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
	"github.com/angelmondragon/stockyard-backend/pkg/pubsub"
	"github.com/angelmondragon/stockyard-backend/pkg/redis"
)

const serviceKind = "analytics-worker"

func main() {
	boot := logger.New(logger.Options{ServiceName: serviceKind})
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		boot.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg := logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instance":    instance.GetID(),
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "analytics worker stopped", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "analytics worker shut down")
}

// run wires the funnel pipeline: subscription, replay guard, router, writer.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logg.Error(ctx, "shutdown close failed", err)
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

	bq, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		return fmt.Errorf("bigquery: %w", err)
	}
	closers = append(closers, bq.Close)

	subscription := pubsubClient.AnalyticsSubscription()
	if subscription == nil {
		return errors.New("analytics subscription not configured")
	}

	guard, err := idempotency.NewGuard(redisClient, worker.GuardScope, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return err
	}
	funnelWriter, err := writer.New(bq, writer.Config{FunnelTable: cfg.BigQuery.FunnelTable})
	if err != nil {
		return fmt.Errorf("funnel writer: %w", err)
	}
	routes, err := router.NewRouter(funnelWriter, logg, nil)
	if err != nil {
		return fmt.Errorf("funnel router: %w", err)
	}
	svc, err := worker.NewService(subscription, routes, guard, logg)
	if err != nil {
		return err
	}

	logg.Info(ctx, "analytics worker ready")
	return svc.Run(ctx)
}
