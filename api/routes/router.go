package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/stockyard-backend/api/controllers"
	analyticscontrollers "github.com/angelmondragon/stockyard-backend/api/controllers/analytics"
	inquirycontrollers "github.com/angelmondragon/stockyard-backend/api/controllers/inquiries"
	webhookcontrollers "github.com/angelmondragon/stockyard-backend/api/controllers/webhooks"
	"github.com/angelmondragon/stockyard-backend/api/middleware"
	"github.com/angelmondragon/stockyard-backend/internal/analytics"
	"github.com/angelmondragon/stockyard-backend/internal/bookings"
	"github.com/angelmondragon/stockyard-backend/internal/fallback"
	"github.com/angelmondragon/stockyard-backend/internal/inquiries"
	"github.com/angelmondragon/stockyard-backend/internal/intake"
	"github.com/angelmondragon/stockyard-backend/internal/payments"
	"github.com/angelmondragon/stockyard-backend/internal/staff"
	"github.com/angelmondragon/stockyard-backend/internal/warehouses"
	"github.com/angelmondragon/stockyard-backend/pkg/auth/session"
	"github.com/angelmondragon/stockyard-backend/pkg/config"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
	"github.com/angelmondragon/stockyard-backend/pkg/metrics"
	"github.com/angelmondragon/stockyard-backend/pkg/redis"
)

type webhookGuard interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type counterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(policy, dimension, subject string) string
}

// Dependencies are the services and infrastructure the HTTP surface is built from.
// Leave interface fields unset rather than assigning typed nil pointers.
type Dependencies struct {
	DB       controllers.Pinger
	Redis    *redis.Client
	Sessions session.AccessSessionChecker

	Intake         intake.Service
	Payments       payments.Service
	Bookings       bookings.Coordinator
	Fallback       fallback.Handler
	Warehouses     warehouses.Service
	Inquiries      inquiries.Manager
	Staff          staff.Service
	Analytics      analytics.Service
	Webhooks       webhookcontrollers.RazorpayWebhookService
	WebhookGuard   webhookGuard
	Metrics        *metrics.BookingMetrics
	MetricsHandler http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var (
		limiter redis.IdempotencyStore
		counter counterStore
	)
	if deps.Redis != nil {
		limiter = deps.Redis
		counter = deps.Redis
	}

	intakePolicy := middleware.NewRateLimitPolicy(
		"intake",
		cfg.RateLimit.IntakeWindow,
		cfg.RateLimit.IntakeIPLimit,
		cfg.RateLimit.IntakeEmailLimit,
	)
	loginPolicy := middleware.NewRateLimitPolicy(
		"login",
		cfg.RateLimit.LoginWindow,
		cfg.RateLimit.LoginIPLimit,
		cfg.RateLimit.LoginEmailLimit,
	)

	pingers := map[string]controllers.Pinger{}
	if deps.DB != nil {
		pingers["db"] = deps.DB
	}
	if deps.Redis != nil {
		pingers["redis"] = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pingers))
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(limiter, logg))

		r.Route("/bookings/drafts", func(r chi.Router) {
			r.With(middleware.RateLimit(intakePolicy, counter, logg)).Post("/", controllers.CreateBookingDraft(deps.Intake, logg))
			r.Post("/{draftId}/payment-order", controllers.CreatePaymentOrder(deps.Payments, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/confirm", controllers.ConfirmPayment(deps.Bookings, logg))
			r.Post("/fallback", controllers.RecordPaymentFallback(deps.Fallback, logg))
			r.Get("/orders/{orderId}", controllers.PaymentOrderStatus(deps.Payments, logg))
		})

		r.Get("/warehouses/{warehouseId}/summary", controllers.WarehouseSummary(deps.Warehouses, logg))
		r.With(middleware.RateLimit(intakePolicy, counter, logg)).Post("/inquiries", inquirycontrollers.Contact(deps.Inquiries, logg))
		r.With(middleware.RateLimit(loginPolicy, counter, logg)).Post("/auth/staff/login", controllers.StaffLogin(deps.Staff, logg))

		r.Post("/webhooks/razorpay", webhookcontrollers.RazorpayWebhook(deps.Webhooks, cfg.Gateway.WebhookSecret, deps.WebhookGuard, deps.Metrics, logg))
	})

	r.Route("/api/staff", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
		r.Use(middleware.RequireRole(logg, enums.StaffRoleStaff, enums.StaffRoleAdmin))

		r.Post("/auth/logout", controllers.StaffLogout(deps.Staff, logg))
		r.Route("/inquiries", func(r chi.Router) {
			r.Get("/", inquirycontrollers.List(deps.Inquiries, logg))
			r.Get("/{inquiryId}", inquirycontrollers.Get(deps.Inquiries, logg))
			r.Patch("/{inquiryId}/status", inquirycontrollers.UpdateStatus(deps.Inquiries, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
		r.Use(middleware.RequireRole(logg, enums.StaffRoleAdmin))
		r.Use(middleware.Idempotency(limiter, logg))

		r.Route("/inquiries/{inquiryId}", func(r chi.Router) {
			r.Post("/allocate", inquirycontrollers.Allocate(deps.Inquiries, logg))
			r.Post("/unassign", inquirycontrollers.Unassign(deps.Inquiries, logg))
			r.Delete("/", inquirycontrollers.Delete(deps.Inquiries, logg))
		})
		r.Get("/analytics/funnel", analyticscontrollers.BookingFunnel(deps.Analytics, logg))
	})

	return r
}
