package razorpaywebhook

import (
	"context"
	"fmt"

	"github.com/angelmondragon/stockyard-backend/internal/bookings"
	"github.com/angelmondragon/stockyard-backend/internal/fallback"
	"github.com/angelmondragon/stockyard-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
)

const (
	EventPaymentCaptured = "payment.captured"
	EventOrderPaid       = "order.paid"
	EventPaymentFailed   = "payment.failed"
)

type bookingConfirmer interface {
	ConfirmWebhook(ctx context.Context, hook *payments.VerifiedWebhook) (*bookings.Result, error)
}

type failureRecorder interface {
	RecordOrderFailure(ctx context.Context, orderID, reason string) (*fallback.Result, error)
}

type ServiceParams struct {
	Bookings bookingConfirmer
	Fallback failureRecorder
	Logger   *logger.Logger
}

type Service struct {
	bookings bookingConfirmer
	fallback failureRecorder
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Bookings == nil {
		return nil, fmt.Errorf("booking confirmer required")
	}
	if params.Fallback == nil {
		return nil, fmt.Errorf("fallback handler required")
	}
	return &Service{bookings: params.Bookings, fallback: params.Fallback, logg: params.Logger}, nil
}

// HandleEvent applies a verified gateway event. A nil return acknowledges the
// delivery; an error asks the gateway to retry it.
func (s *Service) HandleEvent(ctx context.Context, hook *payments.VerifiedWebhook) error {
	if hook == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "verified webhook required")
	}
	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"webhook_event": hook.Event(),
			"order_id":      hook.OrderID(),
		})
	}

	var err error
	switch hook.Event() {
	case EventPaymentCaptured, EventOrderPaid:
		_, err = s.bookings.ConfirmWebhook(ctx, hook)
	case EventPaymentFailed:
		if hook.OrderID() == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "webhook is missing order id")
		}
		if s.logg != nil && hook.FailureReason() != "" {
			ctx = s.logg.WithField(ctx, "gateway_reason", hook.FailureReason())
		}
		_, err = s.fallback.RecordOrderFailure(ctx, hook.OrderID(), fallback.ReasonPaymentFailed)
	default:
		return nil
	}
	if err == nil {
		return nil
	}

	// Outcomes the gateway cannot change by redelivering are acknowledged.
	switch {
	case pkgerrors.Is(err, pkgerrors.CodeOrderNotFound),
		pkgerrors.Is(err, pkgerrors.CodeConflict),
		pkgerrors.Is(err, pkgerrors.CodeStateConflict),
		pkgerrors.Is(err, pkgerrors.CodeValidation):
		if s.logg != nil {
			s.logg.Warn(ctx, fmt.Sprintf("razorpay webhook acknowledged without effect: %v", err))
		}
		return nil
	}
	return err
}
