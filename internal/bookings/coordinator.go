package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockyard-backend/internal/payments"
	pkgdb "github.com/angelmondragon/stockyard-backend/pkg/db"
	"github.com/angelmondragon/stockyard-backend/pkg/db/models"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
	"github.com/angelmondragon/stockyard-backend/pkg/metrics"
	"github.com/angelmondragon/stockyard-backend/pkg/outbox"
	"github.com/angelmondragon/stockyard-backend/pkg/outbox/payloads"
)

const maxNumberAttempts = 3

var errLostRace = errors.New("payment order no longer awaiting confirmation")

type paymentOrderStore interface {
	FindByOrderID(ctx context.Context, orderID string) (*models.PaymentOrder, error)
	MarkConfirmedTx(tx *gorm.DB, orderID string) (bool, error)
}

type bookingStore interface {
	CreateTx(tx *gorm.DB, booking *models.Booking) error
	FindByOrderPayment(ctx context.Context, orderID, paymentID string) (*models.Booking, error)
	FindByOrderID(ctx context.Context, orderID string) (*models.Booking, error)
}

type numberAllocator interface {
	Next() (string, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ConfirmParams struct {
	OrderID   string
	PaymentID string
	Signature string
}

// Result is a confirmed booking. Replayed is set when the booking already existed.
type Result struct {
	Booking  *models.Booking
	Replayed bool
}

// Coordinator turns a verified successful payment into exactly one confirmed booking.
type Coordinator interface {
	Confirm(ctx context.Context, params ConfirmParams) (*Result, error)
	ConfirmWebhook(ctx context.Context, hook *payments.VerifiedWebhook) (*Result, error)
}

type CoordinatorParams struct {
	Orders    paymentOrderStore
	Bookings  bookingStore
	Numbers   numberAllocator
	Tx        txRunner
	Outbox    outboxEmitter
	KeySecret string
	Metrics   *metrics.BookingMetrics
	Logger    *logger.Logger
	Now       func() time.Time
}

type coordinator struct {
	orders    paymentOrderStore
	bookings  bookingStore
	numbers   numberAllocator
	tx        txRunner
	outbox    outboxEmitter
	keySecret string
	metrics   *metrics.BookingMetrics
	logg      *logger.Logger
	now       func() time.Time
}

func NewCoordinator(params CoordinatorParams) (Coordinator, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("payment order store required")
	}
	if params.Bookings == nil {
		return nil, fmt.Errorf("booking store required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if strings.TrimSpace(params.KeySecret) == "" {
		return nil, fmt.Errorf("gateway key secret required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	numbers := params.Numbers
	if numbers == nil {
		numbers = NewNumberAllocator(now)
	}
	return &coordinator{
		orders:    params.Orders,
		bookings:  params.Bookings,
		numbers:   numbers,
		tx:        params.Tx,
		outbox:    params.Outbox,
		keySecret: params.KeySecret,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       now,
	}, nil
}

func (c *coordinator) Confirm(ctx context.Context, params ConfirmParams) (*Result, error) {
	orderID := strings.TrimSpace(params.OrderID)
	paymentID := strings.TrimSpace(params.PaymentID)
	if orderID == "" || paymentID == "" || strings.TrimSpace(params.Signature) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orderId, paymentId and signature are required")
	}
	ctx = c.withOrder(ctx, orderID)

	res, err := c.confirm(ctx, metrics.PathClientCallback, orderID, paymentID, func() bool {
		return payments.VerifySignature(orderID, paymentID, params.Signature, c.keySecret)
	})
	c.observe(metrics.PathClientCallback, res, err)
	return res, err
}

func (c *coordinator) ConfirmWebhook(ctx context.Context, hook *payments.VerifiedWebhook) (*Result, error) {
	if hook == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "verified webhook required")
	}
	if hook.OrderID() == "" || hook.PaymentID() == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook is missing order or payment id")
	}
	ctx = c.withOrder(ctx, hook.OrderID())

	// the webhook body signature was checked when hook was built
	res, err := c.confirm(ctx, metrics.PathWebhook, hook.OrderID(), hook.PaymentID(), nil)
	c.observe(metrics.PathWebhook, res, err)
	return res, err
}

func (c *coordinator) confirm(ctx context.Context, path, orderID, paymentID string, verify func() bool) (*Result, error) {
	order, err := c.orders.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "payment order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment order")
	}
	if order.Status == enums.PaymentOrderStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "payment order is no longer payable")
	}

	if existing, err := c.findPair(ctx, orderID, paymentID); err != nil {
		return nil, err
	} else if existing != nil {
		return &Result{Booking: existing, Replayed: true}, nil
	}

	if verify != nil && !verify() {
		c.metrics.IncSignatureFailure(path)
		if c.logg != nil {
			c.logg.Warn(c.logg.WithField(ctx, "payment_id", paymentID), "payment signature mismatch")
		}
		return nil, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "payment signature could not be verified")
	}

	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		booking, err := c.insert(ctx, path, order, paymentID)
		if err == nil {
			if c.logg != nil {
				logCtx := c.logg.WithFields(ctx, map[string]any{
					"booking_id":     booking.ID.String(),
					"booking_number": *booking.BookingNumber,
					"path":           path,
				})
				c.logg.Info(logCtx, "booking confirmed")
			}
			return &Result{Booking: booking}, nil
		}

		lostRace := errors.Is(err, errLostRace)
		if !lostRace && !pkgdb.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "confirm booking")
		}

		res, resolveErr := c.resolve(ctx, orderID, paymentID)
		if resolveErr != nil || res != nil {
			return res, resolveErr
		}
		if lostRace {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment order changed during confirmation")
		}
		// nothing else claims the order, so the collision was on the booking number
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "could not allocate a unique booking number")
}

func (c *coordinator) insert(ctx context.Context, path string, order *models.PaymentOrder, paymentID string) (*models.Booking, error) {
	number, err := c.numbers.Next()
	if err != nil {
		return nil, err
	}
	confirmedAt := c.now().UTC()
	booking := &models.Booking{
		ID:             uuid.New(),
		BookingNumber:  &number,
		BookingDraftID: order.BookingDraftID,
		OrderID:        order.OrderID,
		PaymentID:      paymentID,
		WarehouseID:    order.WarehouseID,
		Status:         enums.BookingStatusConfirmed,
		ConfirmedAt:    &confirmedAt,
	}

	err = c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := c.orders.MarkConfirmedTx(tx, order.OrderID)
		if err != nil {
			return err
		}
		if !moved {
			return errLostRace
		}
		if err := c.bookings.CreateTx(tx, booking); err != nil {
			return err
		}
		return c.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBookingConfirmed,
			AggregateType: enums.AggregateBooking,
			AggregateID:   booking.ID,
			OccurredAt:    confirmedAt,
			Data: payloads.BookingConfirmedEvent{
				BookingID:      booking.ID,
				BookingNumber:  number,
				BookingDraftID: booking.BookingDraftID,
				WarehouseID:    booking.WarehouseID,
				OrderID:        booking.OrderID,
				PaymentID:      booking.PaymentID,
				ConfirmedAt:    confirmedAt,
				Source:         path,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// resolve decides the outcome after a rolled-back attempt. A nil result and nil
// error mean nothing else holds the order.
func (c *coordinator) resolve(ctx context.Context, orderID, paymentID string) (*Result, error) {
	existing, err := c.findPair(ctx, orderID, paymentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &Result{Booking: existing, Replayed: true}, nil
	}

	other, err := c.bookings.FindByOrderID(ctx, orderID)
	switch {
	case err == nil:
		if c.logg != nil {
			logCtx := c.logg.WithFields(ctx, map[string]any{
				"payment_id":           paymentID,
				"confirmed_payment_id": other.PaymentID,
			})
			c.logg.Warn(logCtx, "order already confirmed for a different payment")
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment order already confirmed with another payment")
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload booking")
	}

	order, err := c.orders.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload payment order")
	}
	if order.Status == enums.PaymentOrderStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "payment order is no longer payable")
	}
	return nil, nil
}

func (c *coordinator) findPair(ctx context.Context, orderID, paymentID string) (*models.Booking, error) {
	booking, err := c.bookings.FindByOrderPayment(ctx, orderID, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load booking")
	}
	if booking.Status != enums.BookingStatusConfirmed {
		return nil, nil
	}
	return booking, nil
}

func (c *coordinator) observe(path string, res *Result, err error) {
	switch {
	case err == nil && res != nil && res.Replayed:
		c.metrics.ObserveConfirmation(path, metrics.OutcomeReplayed)
	case err == nil:
		c.metrics.ObserveConfirmation(path, metrics.OutcomeConfirmed)
	case pkgerrors.Is(err, pkgerrors.CodeSignatureInvalid):
		c.metrics.ObserveConfirmation(path, metrics.OutcomeSignatureInvalid)
	case pkgerrors.Is(err, pkgerrors.CodeOrderNotFound):
		c.metrics.ObserveConfirmation(path, metrics.OutcomeOrderNotFound)
	case pkgerrors.Is(err, pkgerrors.CodeConflict):
		c.metrics.ObserveConfirmation(path, metrics.OutcomeConflict)
	default:
		c.metrics.ObserveConfirmation(path, metrics.OutcomeError)
	}
}

func (c *coordinator) withOrder(ctx context.Context, orderID string) context.Context {
	if c.logg == nil {
		return ctx
	}
	return c.logg.WithOrderID(ctx, orderID)
}
