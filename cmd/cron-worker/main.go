package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/stockyard-backend/internal/cron"
	"github.com/angelmondragon/stockyard-backend/internal/fallback"
	"github.com/angelmondragon/stockyard-backend/internal/inquiries"
	"github.com/angelmondragon/stockyard-backend/internal/intake"
	"github.com/angelmondragon/stockyard-backend/internal/payments"
	"github.com/angelmondragon/stockyard-backend/internal/warehouses"
	"github.com/angelmondragon/stockyard-backend/pkg/config"
	"github.com/angelmondragon/stockyard-backend/pkg/db"
	"github.com/angelmondragon/stockyard-backend/pkg/instance"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
	"github.com/angelmondragon/stockyard-backend/pkg/metrics"
	"github.com/angelmondragon/stockyard-backend/pkg/migrate"
	"github.com/angelmondragon/stockyard-backend/pkg/outbox"
	"github.com/angelmondragon/stockyard-backend/pkg/razorpay"
	"github.com/angelmondragon/stockyard-backend/pkg/redis"
)

const serviceKind = "cron-worker"

type options struct {
	once        bool
	metricsAddr string
}

func main() {
	var opts options
	flag.BoolVar(&opts.once, "once", false, "run a single cycle and exit")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9102)")
	flag.Parse()

	boot := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		boot.Warn(context.Background(), ".env file not found, relying on environment")
	}
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
		"once":        opts.once,
	})

	if err := run(ctx, cfg, logg, opts); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer closeQuietly(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer closeQuietly(ctx, logg, "redis", redisClient.Close)

	gateway, err := razorpay.NewClient(cfg.Gateway, logg)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}

	jobs, err := buildRegistry(cfg, logg, dbClient, redisClient, gateway)
	if err != nil {
		return fmt.Errorf("cron jobs: %w", err)
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron"), 0)
	if err != nil {
		return err
	}
	scheduler, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Reconcile.CronInterval,
	})
	if err != nil {
		return err
	}

	if opts.once {
		logg.Info(ctx, "running single cron cycle")
		return scheduler.RunOnce(ctx)
	}
	if opts.metricsAddr != "" {
		go serveMetrics(ctx, logg, opts.metricsAddr)
	}
	logg.Info(ctx, "starting cron worker")
	return scheduler.Run(ctx)
}

func closeQuietly(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(ctx, "error closing "+name, err)
	}
}

func serveMetrics(ctx context.Context, logg *logger.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "metrics listener stopped", err)
	}
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, gateway *razorpay.Client) (*cron.Registry, error) {
	gormDB := dbClient.DB()
	outboxRepo := outbox.NewRepository(gormDB)
	orderRepo := payments.NewRepository(gormDB)
	bookingMetrics := metrics.NewBookingMetrics(prometheus.DefaultRegisterer)

	warehouseService, err := warehouses.NewService(warehouses.NewRepository(gormDB), redisClient, warehouses.DefaultCacheTTL, logg)
	if err != nil {
		return nil, err
	}
	intakeService, err := intake.NewService(intake.NewRepository(gormDB), warehouseService, intake.NewValidator(time.Now), logg)
	if err != nil {
		return nil, err
	}
	fallbackHandler, err := fallback.NewHandler(fallback.HandlerParams{
		Inquiries:  inquiries.NewRepository(gormDB),
		Orders:     orderRepo,
		Drafts:     intakeService,
		Warehouses: warehouseService,
		Tx:         dbClient,
		Outbox:     outbox.NewService(outboxRepo, logg),
		Metrics:    bookingMetrics,
		Logger:     logg,
	})
	if err != nil {
		return nil, err
	}

	staleOrders, err := cron.NewStaleOrderJob(cron.StaleOrderJobParams{
		Logger:    logg,
		Orders:    orderRepo,
		Gateway:   gateway,
		Fallback:  fallbackHandler,
		Metrics:   bookingMetrics,
		TTL:       cfg.Reconcile.StaleOrderTTL,
		BatchSize: cfg.Reconcile.SweepBatchSize,
	})
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:       logg,
		Repository:   outboxRepo,
		Retention:    cfg.Outbox.Retention,
		DLQRetention: cfg.Outbox.DLQRetention,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(staleOrders, retention)
}
