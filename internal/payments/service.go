package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockyard-backend/internal/warehouses"
	"github.com/angelmondragon/stockyard-backend/pkg/config"
	"github.com/angelmondragon/stockyard-backend/pkg/db/models"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
	"github.com/angelmondragon/stockyard-backend/pkg/metrics"
	"github.com/angelmondragon/stockyard-backend/pkg/outbox"
	"github.com/angelmondragon/stockyard-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/stockyard-backend/pkg/razorpay"
)

const (
	gatewayOpCreateOrder = "create_order"
	defaultRetryBackoff  = 250 * time.Millisecond

	// FailureSuperseded marks a created order replaced by a newer one for the same draft.
	FailureSuperseded = "superseded"
)

type paymentOrderRepository interface {
	CreateTx(tx *gorm.DB, order *models.PaymentOrder) error
	FindByOrderID(ctx context.Context, orderID string) (*models.PaymentOrder, error)
	FailCreatedForDraftTx(tx *gorm.DB, draftID uuid.UUID, reason string) ([]models.PaymentOrder, error)
	DraftSettled(ctx context.Context, draftID uuid.UUID) (bool, error)
	DraftSettledTx(tx *gorm.DB, draftID uuid.UUID) (bool, error)
}

func errDraftSettled() error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "booking draft is already confirmed or handed to sales")
}

type draftLookup interface {
	GetDraft(ctx context.Context, id uuid.UUID) (*models.BookingDraft, error)
}

type warehouseLookup interface {
	GetWarehouseSummary(ctx context.Context, id uuid.UUID) (*warehouses.Summary, error)
}

type gatewayClient interface {
	CreateOrder(ctx context.Context, params razorpay.CreateOrderParams) (*razorpay.Order, error)
	KeyID() string
}

type bookingLookup interface {
	FindByOrderID(ctx context.Context, orderID string) (*models.Booking, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OrderResult is what the client needs to open the gateway checkout.
type OrderResult struct {
	OrderID          string              `json:"orderId"`
	PaymentOrderID   uuid.UUID           `json:"paymentOrderId"`
	BookingDraftID   uuid.UUID           `json:"bookingDraftId"`
	Amount           int64               `json:"amount"`
	DisplayAmount    string              `json:"displayAmount"`
	Currency         string              `json:"currency"`
	GatewayPublicKey string              `json:"gatewayPublicKey"`
	Warehouse        *warehouses.Summary `json:"warehouse"`
}

// OrderStatus reports a payment order together with the booking it produced, if any.
type OrderStatus struct {
	OrderID        string                   `json:"orderId"`
	BookingDraftID uuid.UUID                `json:"bookingDraftId"`
	Status         enums.PaymentOrderStatus `json:"status"`
	FailureReason  *string                  `json:"failureReason,omitempty"`
	BookingStatus  enums.BookingStatus      `json:"bookingStatus"`
	BookingID      *uuid.UUID               `json:"bookingId,omitempty"`
	BookingNumber  *string                  `json:"bookingNumber,omitempty"`
}

type Service interface {
	CreateOrder(ctx context.Context, draftID uuid.UUID) (*OrderResult, error)
	GetOrderStatus(ctx context.Context, orderID string) (*OrderStatus, error)
}

type ServiceParams struct {
	Repository   paymentOrderRepository
	Drafts       draftLookup
	Warehouses   warehouseLookup
	Gateway      gatewayClient
	Bookings     bookingLookup
	Tx           txRunner
	Outbox       outboxEmitter
	Booking      config.BookingConfig
	GatewayCfg   config.GatewayConfig
	Metrics      *metrics.BookingMetrics
	Logger       *logger.Logger
	RetryBackoff time.Duration
}

type service struct {
	repo       paymentOrderRepository
	drafts     draftLookup
	warehouses warehouseLookup
	gateway    gatewayClient
	bookings   bookingLookup
	tx         txRunner
	outbox     outboxEmitter
	fee        config.BookingConfig
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	metrics    *metrics.BookingMetrics
	logg       *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("payment order repository required")
	}
	if params.Drafts == nil {
		return nil, fmt.Errorf("draft lookup required")
	}
	if params.Warehouses == nil {
		return nil, fmt.Errorf("warehouse lookup required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if params.Bookings == nil {
		return nil, fmt.Errorf("booking lookup required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Booking.FeeMinorUnits <= 0 {
		return nil, fmt.Errorf("booking fee must be positive")
	}
	backoff := params.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	maxRetries := params.GatewayCfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &service{
		repo:       params.Repository,
		drafts:     params.Drafts,
		warehouses: params.Warehouses,
		gateway:    params.Gateway,
		bookings:   params.Bookings,
		tx:         params.Tx,
		outbox:     params.Outbox,
		fee:        params.Booking,
		timeout:    params.GatewayCfg.Timeout,
		maxRetries: maxRetries,
		backoff:    backoff,
		metrics:    params.Metrics,
		logg:       params.Logger,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, draftID uuid.UUID) (*OrderResult, error) {
	if draftID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking draft id required")
	}
	draft, err := s.drafts.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}
	summary, err := s.warehouses.GetWarehouseSummary(ctx, draft.WarehouseID)
	if err != nil {
		return nil, err
	}
	settled, err := s.repo.DraftSettled(ctx, draft.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check booking draft state")
	}
	if settled {
		return nil, errDraftSettled()
	}

	params := razorpay.CreateOrderParams{
		AmountMinorUnits: s.fee.FeeMinorUnits,
		Currency:         s.fee.Currency,
		Receipt:          draft.ID.String(),
		Notes: map[string]string{
			"booking_draft_id": draft.ID.String(),
			"warehouse_id":     draft.WarehouseID.String(),
		},
	}
	gwOrder, err := s.createGatewayOrder(ctx, params)
	if err != nil {
		s.logError(ctx, "gateway order creation failed", err, draftID)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment gateway unavailable").
			WithDetails(map[string]any{"retryable": true})
	}

	row := &models.PaymentOrder{
		ID:               uuid.New(),
		OrderID:          gwOrder.ID,
		BookingDraftID:   draft.ID,
		WarehouseID:      draft.WarehouseID,
		WarehouseName:    summary.Name,
		AmountMinorUnits: s.fee.FeeMinorUnits,
		Currency:         s.fee.Currency,
		Status:           enums.PaymentOrderStatusCreated,
	}
	var superseded []models.PaymentOrder
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		// the draft may have settled while the gateway call was in flight
		settled, err := s.repo.DraftSettledTx(tx, draft.ID)
		if err != nil {
			return err
		}
		if settled {
			return errDraftSettled()
		}
		superseded, err = s.repo.FailCreatedForDraftTx(tx, draft.ID, FailureSuperseded)
		if err != nil {
			return err
		}
		for _, old := range superseded {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentOrderFailed,
				AggregateType: enums.AggregatePaymentOrder,
				AggregateID:   old.ID,
				Data: payloads.PaymentOrderFailedEvent{
					PaymentOrderID: old.ID,
					OrderID:        old.OrderID,
					BookingDraftID: old.BookingDraftID,
					Reason:         FailureSuperseded,
				},
			}); err != nil {
				return err
			}
		}
		if err := s.repo.CreateTx(tx, row); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentOrderCreated,
			AggregateType: enums.AggregatePaymentOrder,
			AggregateID:   row.ID,
			Data: payloads.PaymentOrderCreatedEvent{
				PaymentOrderID:   row.ID,
				OrderID:          row.OrderID,
				BookingDraftID:   row.BookingDraftID,
				WarehouseID:      row.WarehouseID,
				AmountMinorUnits: row.AmountMinorUnits,
				Currency:         row.Currency,
			},
		})
	})
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist payment order")
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, row.OrderID)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"booking_draft_id": draft.ID.String(),
			"superseded":       len(superseded),
		})
		s.logg.Info(logCtx, "payment order created")
	}

	return &OrderResult{
		OrderID:          row.OrderID,
		PaymentOrderID:   row.ID,
		BookingDraftID:   draft.ID,
		Amount:           row.AmountMinorUnits,
		DisplayAmount:    DisplayAmount(row.AmountMinorUnits),
		Currency:         row.Currency,
		GatewayPublicKey: s.gateway.KeyID(),
		Warehouse:        summary,
	}, nil
}

// createGatewayOrder retries transient failures only. A rejection from the
// gateway is returned on the first attempt.
func (s *service) createGatewayOrder(ctx context.Context, params razorpay.CreateOrderParams) (*razorpay.Order, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			wait := s.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if s.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		}
		started := time.Now()
		order, err := s.gateway.CreateOrder(callCtx, params)
		cancel()

		if err == nil {
			s.metrics.ObserveGatewayCall(gatewayOpCreateOrder, metrics.OutcomeOK, time.Since(started))
			return order, nil
		}
		s.metrics.ObserveGatewayCall(gatewayOpCreateOrder, metrics.OutcomeError, time.Since(started))
		lastErr = err
		if !razorpay.IsTransient(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (s *service) GetOrderStatus(ctx context.Context, orderID string) (*OrderStatus, error) {
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "payment order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment order")
	}

	status := &OrderStatus{
		OrderID:        order.OrderID,
		BookingDraftID: order.BookingDraftID,
		Status:         order.Status,
		FailureReason:  order.FailureReason,
		BookingStatus:  enums.BookingStatusPendingPayment,
	}

	booking, err := s.bookings.FindByOrderID(ctx, orderID)
	switch {
	case err == nil:
		status.BookingStatus = booking.Status
		status.BookingID = &booking.ID
		status.BookingNumber = booking.BookingNumber
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load booking")
	}
	return status, nil
}

func (s *service) logError(ctx context.Context, msg string, err error, draftID uuid.UUID) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithField(ctx, "booking_draft_id", draftID.String())
	s.logg.Error(logCtx, msg, err)
}

// DisplayAmount renders minor units as a major-unit string with two decimals.
func DisplayAmount(minorUnits int64) string {
	return decimal.New(minorUnits, -2).StringFixed(2)
}
