package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/stockyard-backend/internal/fallback"
	"github.com/angelmondragon/stockyard-backend/internal/payments"
	"github.com/angelmondragon/stockyard-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
	"github.com/angelmondragon/stockyard-backend/pkg/metrics"
	"github.com/angelmondragon/stockyard-backend/pkg/razorpay"
)

const (
	defaultStaleOrderTTL = 30 * time.Minute
	defaultSweepBatch    = 100
)

type staleOrderReader interface {
	ListStaleCreated(ctx context.Context, cutoff time.Time, after payments.StaleCursor, limit int) ([]models.PaymentOrder, error)
}

type gatewayOrderFetcher interface {
	FetchOrder(ctx context.Context, orderID string) (*razorpay.Order, error)
}

type orderFailureRecorder interface {
	RecordOrderFailure(ctx context.Context, orderID, reason string) (*fallback.Result, error)
}

// StaleOrderJobParams configure the abandoned payment order sweep.
type StaleOrderJobParams struct {
	Logger    *logger.Logger
	Orders    staleOrderReader
	Gateway   gatewayOrderFetcher
	Fallback  orderFailureRecorder
	Metrics   *metrics.BookingMetrics
	TTL       time.Duration
	BatchSize int
}

// NewStaleOrderJob builds the job that turns abandoned payment orders into
// fallback inquiries once the gateway confirms they were never paid.
func NewStaleOrderJob(params StaleOrderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("payment order reader required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if params.Fallback == nil {
		return nil, fmt.Errorf("fallback handler required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultStaleOrderTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &staleOrderJob{
		logg:     params.Logger,
		orders:   params.Orders,
		gateway:  params.Gateway,
		fallback: params.Fallback,
		metrics:  params.Metrics,
		ttl:      ttl,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type staleOrderJob struct {
	logg     *logger.Logger
	orders   staleOrderReader
	gateway  gatewayOrderFetcher
	fallback orderFailureRecorder
	metrics  *metrics.BookingMetrics
	ttl      time.Duration
	batch    int
	now      func() time.Time

	// resume skips past rows a previous full batch left created, such as
	// orders paid at the gateway whose webhook has not landed.
	resume payments.StaleCursor
}

func (j *staleOrderJob) Name() string { return "stale-payment-orders" }

func (j *staleOrderJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	after := j.resume
	stale, err := j.orders.ListStaleCreated(ctx, cutoff, after, j.batch)
	if err != nil {
		return fmt.Errorf("list stale payment orders: %w", err)
	}
	if len(stale) == j.batch {
		last := stale[len(stale)-1]
		j.resume = payments.StaleCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	} else {
		j.resume = payments.StaleCursor{}
	}

	var (
		errs           []error
		failed, paid   int
		alreadySettled int
	)
	for _, order := range stale {
		orderCtx := j.logg.WithOrderID(ctx, order.OrderID)

		start := time.Now()
		remote, err := j.gateway.FetchOrder(orderCtx, order.OrderID)
		j.metrics.ObserveGatewayCall("fetch_order", gatewayOutcome(err), time.Since(start))
		if err != nil {
			errs = append(errs, fmt.Errorf("fetch order %s: %w", order.OrderID, err))
			continue
		}
		if remote.Status == razorpay.OrderStatusPaid {
			// the capture webhook owns confirmation
			paid++
			j.logg.Warn(orderCtx, "stale payment order is paid at the gateway; awaiting webhook")
			continue
		}

		_, err = j.fallback.RecordOrderFailure(orderCtx, order.OrderID, fallback.ReasonPaymentTimeout)
		switch {
		case err == nil:
			failed++
		case pkgerrors.Is(err, pkgerrors.CodeStateConflict), pkgerrors.Is(err, pkgerrors.CodeOrderNotFound):
			alreadySettled++
		default:
			errs = append(errs, fmt.Errorf("fail order %s: %w", order.OrderID, err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":          cutoff,
		"resumed":         !after.IsZero(),
		"scanned":         len(stale),
		"failed":          failed,
		"paid_at_gateway": paid,
		"already_settled": alreadySettled,
		"errors":          len(errs),
	})
	j.logg.Info(logCtx, "stale payment order sweep complete")
	return multierr.Combine(errs...)
}

func gatewayOutcome(err error) string {
	if err != nil {
		return metrics.OutcomeError
	}
	return metrics.OutcomeOK
}
