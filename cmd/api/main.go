package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/stockyard-backend/api/routes"
	"github.com/angelmondragon/stockyard-backend/internal/analytics"
	"github.com/angelmondragon/stockyard-backend/internal/bookings"
	"github.com/angelmondragon/stockyard-backend/internal/fallback"
	"github.com/angelmondragon/stockyard-backend/internal/inquiries"
	"github.com/angelmondragon/stockyard-backend/internal/intake"
	"github.com/angelmondragon/stockyard-backend/internal/payments"
	"github.com/angelmondragon/stockyard-backend/internal/staff"
	"github.com/angelmondragon/stockyard-backend/internal/warehouses"
	razorpaywebhook "github.com/angelmondragon/stockyard-backend/internal/webhooks/razorpay"
	"github.com/angelmondragon/stockyard-backend/pkg/auth/session"
	"github.com/angelmondragon/stockyard-backend/pkg/bigquery"
	"github.com/angelmondragon/stockyard-backend/pkg/config"
	"github.com/angelmondragon/stockyard-backend/pkg/db"
	"github.com/angelmondragon/stockyard-backend/pkg/idempotency"
	"github.com/angelmondragon/stockyard-backend/pkg/instance"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
	"github.com/angelmondragon/stockyard-backend/pkg/metrics"
	"github.com/angelmondragon/stockyard-backend/pkg/migrate"
	"github.com/angelmondragon/stockyard-backend/pkg/outbox"
	"github.com/angelmondragon/stockyard-backend/pkg/razorpay"
	"github.com/angelmondragon/stockyard-backend/pkg/redis"
)

const (
	webhookGuardScope = "razorpay-webhook"
	shutdownTimeout   = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT.AccessTokenTTL())
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	bookingMetrics := metrics.NewBookingMetrics(registry)

	gateway, err := razorpay.NewClient(cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	bookingRepo := bookings.NewRepository(gormDB)
	orderRepo := payments.NewRepository(gormDB)
	inquiryRepo := inquiries.NewRepository(gormDB)

	warehouseService, err := warehouses.NewService(warehouses.NewRepository(gormDB), redisClient, warehouses.DefaultCacheTTL, logg)
	if err != nil {
		fatal(logg, "failed to create warehouse service", err)
	}

	validator := intake.NewValidator(time.Now)
	intakeService, err := intake.NewService(intake.NewRepository(gormDB), warehouseService, validator, logg)
	if err != nil {
		fatal(logg, "failed to create intake service", err)
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Repository: orderRepo,
		Drafts:     intakeService,
		Warehouses: warehouseService,
		Gateway:    gateway,
		Bookings:   bookingRepo,
		Tx:         dbClient,
		Outbox:     outboxService,
		Booking:    cfg.Booking,
		GatewayCfg: cfg.Gateway,
		Metrics:    bookingMetrics,
		Logger:     logg,
	})
	if err != nil {
		fatal(logg, "failed to create payment service", err)
	}

	coordinator, err := bookings.NewCoordinator(bookings.CoordinatorParams{
		Orders:    orderRepo,
		Bookings:  bookingRepo,
		Tx:        dbClient,
		Outbox:    outboxService,
		KeySecret: cfg.Gateway.KeySecret,
		Metrics:   bookingMetrics,
		Logger:    logg,
	})
	if err != nil {
		fatal(logg, "failed to create booking coordinator", err)
	}

	fallbackHandler, err := fallback.NewHandler(fallback.HandlerParams{
		Inquiries:  inquiryRepo,
		Orders:     orderRepo,
		Drafts:     intakeService,
		Warehouses: warehouseService,
		Tx:         dbClient,
		Outbox:     outboxService,
		Metrics:    bookingMetrics,
		Logger:     logg,
	})
	if err != nil {
		fatal(logg, "failed to create fallback handler", err)
	}

	staffRepo := staff.NewRepository(gormDB)
	staffService, err := staff.NewService(staff.ServiceParams{
		Repo:           staffRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		fatal(logg, "failed to create staff service", err)
	}

	inquiryManager, err := inquiries.NewManager(inquiryRepo, routes.StaffIdentity(), logg, inquiries.Options{
		Tx:         dbClient,
		Outbox:     outboxService,
		Bookings:   bookingRepo,
		Staff:      staffRepo,
		Warehouses: warehouseService,
		Validator:  validator,
	})
	if err != nil {
		fatal(logg, "failed to create inquiry manager", err)
	}

	webhookService, err := razorpaywebhook.NewService(razorpaywebhook.ServiceParams{
		Bookings: coordinator,
		Fallback: fallbackHandler,
		Logger:   logg,
	})
	if err != nil {
		fatal(logg, "failed to create webhook service", err)
	}
	webhookGuard, err := idempotency.NewGuard(redisClient, webhookGuardScope, cfg.Eventing.WebhookGuardTTL)
	if err != nil {
		fatal(logg, "failed to create webhook guard", err)
	}

	deps := routes.Dependencies{
		DB:             dbClient,
		Redis:          redisClient,
		Sessions:       sessionManager,
		Intake:         intakeService,
		Payments:       paymentService,
		Bookings:       coordinator,
		Fallback:       fallbackHandler,
		Warehouses:     warehouseService,
		Inquiries:      inquiryManager,
		Staff:          staffService,
		Webhooks:       webhookService,
		WebhookGuard:   webhookGuard,
		Metrics:        bookingMetrics,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}

	// The funnel report is optional; the route answers 503 without BigQuery.
	bqClient, err := bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		logg.Warn(context.Background(), "bigquery unavailable, funnel report disabled")
	} else {
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery", err)
			}
		}()
		analyticsService, err := analytics.NewService(bqClient)
		if err != nil {
			fatal(logg, "failed to create analytics service", err)
		}
		deps.Analytics = analyticsService
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := instance.GetID()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server stopped")
	}
}

func fatal(logg *logger.Logger, msg string, err error) {
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
