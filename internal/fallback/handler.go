// Package fallback converts abandoned or failed payment attempts into sales inquiries.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockyard-backend/internal/warehouses"
	pkgdb "github.com/angelmondragon/stockyard-backend/pkg/db"
	"github.com/angelmondragon/stockyard-backend/pkg/db/models"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
	"github.com/angelmondragon/stockyard-backend/pkg/metrics"
	"github.com/angelmondragon/stockyard-backend/pkg/outbox"
	"github.com/angelmondragon/stockyard-backend/pkg/outbox/payloads"
)

const (
	ReasonUserCancelled  = "user_cancelled"
	ReasonPaymentFailed  = "payment_failed"
	ReasonPaymentTimeout = "payment_timeout"

	maxReasonLen = 500
)

type inquiryStore interface {
	FindByDraftID(ctx context.Context, draftID uuid.UUID) (*models.Inquiry, error)
	CreateTx(tx *gorm.DB, inquiry *models.Inquiry) error
}

type paymentOrderStore interface {
	FindByOrderID(ctx context.Context, orderID string) (*models.PaymentOrder, error)
	FailCreatedForDraftTx(tx *gorm.DB, draftID uuid.UUID, reason string) ([]models.PaymentOrder, error)
	HasConfirmedForDraftTx(tx *gorm.DB, draftID uuid.UUID) (bool, error)
}

type draftLookup interface {
	GetDraft(ctx context.Context, id uuid.UUID) (*models.BookingDraft, error)
}

type warehouseLookup interface {
	GetWarehouseSummary(ctx context.Context, id uuid.UUID) (*warehouses.Summary, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Result carries the fallback inquiry. Replayed is set when it already existed.
type Result struct {
	Inquiry  *models.Inquiry
	Replayed bool
}

type Handler interface {
	RecordFallback(ctx context.Context, draftID uuid.UUID, reason string) (*Result, error)
	RecordOrderFailure(ctx context.Context, orderID, reason string) (*Result, error)
}

type HandlerParams struct {
	Inquiries  inquiryStore
	Orders     paymentOrderStore
	Drafts     draftLookup
	Warehouses warehouseLookup
	Tx         txRunner
	Outbox     outboxEmitter
	Metrics    *metrics.BookingMetrics
	Logger     *logger.Logger
	Now        func() time.Time
}

type handler struct {
	inquiries  inquiryStore
	orders     paymentOrderStore
	drafts     draftLookup
	warehouses warehouseLookup
	tx         txRunner
	outbox     outboxEmitter
	metrics    *metrics.BookingMetrics
	logg       *logger.Logger
	now        func() time.Time
}

func NewHandler(params HandlerParams) (Handler, error) {
	if params.Inquiries == nil {
		return nil, fmt.Errorf("inquiry store required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("payment order store required")
	}
	if params.Drafts == nil {
		return nil, fmt.Errorf("draft lookup required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &handler{
		inquiries:  params.Inquiries,
		orders:     params.Orders,
		drafts:     params.Drafts,
		warehouses: params.Warehouses,
		tx:         params.Tx,
		outbox:     params.Outbox,
		metrics:    params.Metrics,
		logg:       params.Logger,
		now:        now,
	}, nil
}

func (h *handler) RecordFallback(ctx context.Context, draftID uuid.UUID, reason string) (*Result, error) {
	res, err := h.recordFallback(ctx, draftID, reason)
	switch {
	case err == nil && res.Replayed:
		h.metrics.ObserveFallback(metrics.OutcomeReplayed)
	case err == nil:
		h.metrics.ObserveFallback(metrics.OutcomeCreated)
	case pkgerrors.Is(err, pkgerrors.CodeStateConflict):
		h.metrics.ObserveFallback(metrics.OutcomeConflict)
	default:
		h.metrics.ObserveFallback(metrics.OutcomeError)
	}
	return res, err
}

func (h *handler) recordFallback(ctx context.Context, draftID uuid.UUID, reason string) (*Result, error) {
	if draftID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "booking draft id required")
	}
	reason = normalizeReason(reason)
	if h.logg != nil {
		ctx = h.logg.WithField(ctx, "booking_draft_id", draftID.String())
	}

	existing, err := h.existing(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// an order created after the inquiry must not stay payable
		var failed []models.PaymentOrder
		err := h.tx.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			failed, err = h.failOpenOrdersTx(ctx, tx, draftID, reason)
			return err
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "fail open payment orders")
		}
		if len(failed) > 0 && h.logg != nil {
			h.logg.Info(h.logg.WithField(ctx, "failed_orders", len(failed)), "failed payment orders opened after fallback")
		}
		return existing, nil
	}

	draft, err := h.drafts.GetDraft(ctx, draftID)
	if err != nil {
		return nil, err
	}

	inquiry := h.buildInquiry(ctx, draft, reason)
	var failed []models.PaymentOrder
	err = h.tx.WithTx(ctx, func(tx *gorm.DB) error {
		confirmed, err := h.orders.HasConfirmedForDraftTx(tx, draftID)
		if err != nil {
			return err
		}
		if confirmed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "booking draft already has a confirmed payment")
		}
		failed, err = h.failOpenOrdersTx(ctx, tx, draftID, reason)
		if err != nil {
			return err
		}
		if err := h.inquiries.CreateTx(tx, inquiry); err != nil {
			return err
		}
		return h.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInquiryCreated,
			AggregateType: enums.AggregateInquiry,
			AggregateID:   inquiry.ID,
			Data: payloads.InquiryCreatedEvent{
				InquiryID:      inquiry.ID,
				Source:         inquiry.Source,
				BookingDraftID: inquiry.BookingDraftID,
				WarehouseID:    inquiry.WarehouseID,
				FallbackReason: reason,
			},
		})
	})
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
			return nil, err
		}
		if pkgdb.IsUniqueViolation(err, "") {
			// a concurrent fallback for the same draft committed first
			if existing, findErr := h.existing(ctx, draftID); findErr == nil && existing != nil {
				return existing, nil
			}
		}
		if h.logg != nil {
			h.logg.Error(ctx, "fallback inquiry not saved", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInquiryNotSaved, err, "save fallback inquiry")
	}

	if h.logg != nil {
		logCtx := h.logg.WithInquiryID(ctx, inquiry.ID.String())
		logCtx = h.logg.WithFields(logCtx, map[string]any{
			"reason":        reason,
			"failed_orders": len(failed),
		})
		h.logg.Info(logCtx, "fallback inquiry created")
	}
	return &Result{Inquiry: inquiry}, nil
}

func (h *handler) failOpenOrdersTx(ctx context.Context, tx *gorm.DB, draftID uuid.UUID, reason string) ([]models.PaymentOrder, error) {
	failed, err := h.orders.FailCreatedForDraftTx(tx, draftID, reason)
	if err != nil {
		return nil, err
	}
	for _, order := range failed {
		if err := h.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentOrderFailed,
			AggregateType: enums.AggregatePaymentOrder,
			AggregateID:   order.ID,
			Data: payloads.PaymentOrderFailedEvent{
				PaymentOrderID: order.ID,
				OrderID:        order.OrderID,
				BookingDraftID: order.BookingDraftID,
				Reason:         reason,
			},
		}); err != nil {
			return nil, err
		}
	}
	return failed, nil
}

func (h *handler) RecordOrderFailure(ctx context.Context, orderID, reason string) (*Result, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := h.orders.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeOrderNotFound, "payment order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment order")
	}
	if h.logg != nil {
		ctx = h.logg.WithOrderID(ctx, orderID)
	}
	return h.RecordFallback(ctx, order.BookingDraftID, reason)
}

func (h *handler) existing(ctx context.Context, draftID uuid.UUID) (*Result, error) {
	inquiry, err := h.inquiries.FindByDraftID(ctx, draftID)
	if err == nil {
		return &Result{Inquiry: inquiry, Replayed: true}, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeInquiryNotSaved, err, "lookup fallback inquiry")
}

func (h *handler) buildInquiry(ctx context.Context, draft *models.BookingDraft, reason string) *models.Inquiry {
	now := h.now().UTC()
	draftID := draft.ID
	warehouseID := draft.WarehouseID
	method := draft.PreferredContactMethod

	inquiry := &models.Inquiry{
		ID:                     uuid.New(),
		Source:                 enums.InquirySourcePaymentFallback,
		BookingDraftID:         &draftID,
		WarehouseID:            &warehouseID,
		FullName:               draft.FullName,
		Email:                  draft.Email,
		Phone:                  draft.Phone,
		CompanyName:            draft.CompanyName,
		PreferredContactMethod: &method,
		PreferredContactTime:   optional(draft.PreferredContactTime),
		Message:                optional(draft.Message),
		Status:                 enums.InquiryStatusNew,
		AllocationStatus:       enums.AllocationStatusUnallocated,
		FallbackReason:         &reason,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	// the warehouse name is a convenience copy; the id is what matters
	if h.warehouses != nil {
		summary, err := h.warehouses.GetWarehouseSummary(ctx, warehouseID)
		if err == nil {
			inquiry.WarehouseName = &summary.Name
		} else if h.logg != nil {
			h.logg.Warn(h.logg.WithField(ctx, "error", err.Error()), "warehouse summary unavailable for fallback inquiry")
		}
	}
	return inquiry
}

func normalizeReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ReasonUserCancelled
	}
	if len(reason) <= maxReasonLen {
		return reason
	}
	// cut on a rune boundary so the stored text stays valid UTF-8
	cut := maxReasonLen
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
