package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/stockyard-backend/api/responses"
	"github.com/angelmondragon/stockyard-backend/api/validators"
	"github.com/angelmondragon/stockyard-backend/internal/bookings"
	"github.com/angelmondragon/stockyard-backend/internal/fallback"
	"github.com/angelmondragon/stockyard-backend/internal/payments"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
)

type paymentConfirmer interface {
	Confirm(ctx context.Context, params bookings.ConfirmParams) (*bookings.Result, error)
}

type fallbackRecorder interface {
	RecordFallback(ctx context.Context, draftID uuid.UUID, reason string) (*fallback.Result, error)
}

type orderStatusReader interface {
	GetOrderStatus(ctx context.Context, orderID string) (*payments.OrderStatus, error)
}

type confirmPaymentRequest struct {
	OrderID   string `json:"orderId" validate:"required,max=64"`
	PaymentID string `json:"paymentId" validate:"required,max=64"`
	Signature string `json:"signature" validate:"required,max=256"`
}

type fallbackRequest struct {
	DraftID string `json:"draftId" validate:"required,uuid"`
	Reason  string `json:"reason" validate:"omitempty,max=64"`
}

// ConfirmPayment handles the checkout widget's success callback.
func ConfirmPayment(svc paymentConfirmer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "booking service unavailable"))
			return
		}

		var payload confirmPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Confirm(r.Context(), bookings.ConfirmParams{
			OrderID:   payload.OrderID,
			PaymentID: payload.PaymentID,
			Signature: payload.Signature,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newBookingResponse(result))
	}
}

// RecordPaymentFallback turns a dismissed or failed checkout into a follow-up
// inquiry. A repeated call returns the same inquiry.
func RecordPaymentFallback(svc fallbackRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "fallback service unavailable"))
			return
		}

		var payload fallbackRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		draftID, err := validators.ParseUUID(payload.DraftID, "draftId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RecordFallback(r.Context(), draftID, strings.TrimSpace(payload.Reason))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, fallbackResponse{
			InquiryID: result.Inquiry.ID,
			Status:    result.Inquiry.Status,
			Replayed:  result.Replayed,
		})
	}
}

// PaymentOrderStatus reports where an order stands, for clients polling after checkout.
func PaymentOrderStatus(svc orderStatusReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
		if orderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "orderId is required"))
			return
		}

		status, err := svc.GetOrderStatus(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

type bookingResponse struct {
	BookingID     uuid.UUID           `json:"bookingId"`
	BookingNumber *string             `json:"bookingNumber"`
	OrderID       string              `json:"orderId"`
	PaymentID     string              `json:"paymentId"`
	WarehouseID   uuid.UUID           `json:"warehouseId"`
	Status        enums.BookingStatus `json:"status"`
	ConfirmedAt   *time.Time          `json:"confirmedAt,omitempty"`
	Replayed      bool                `json:"replayed"`
}

func newBookingResponse(result *bookings.Result) bookingResponse {
	b := result.Booking
	return bookingResponse{
		BookingID:     b.ID,
		BookingNumber: b.BookingNumber,
		OrderID:       b.OrderID,
		PaymentID:     b.PaymentID,
		WarehouseID:   b.WarehouseID,
		Status:        b.Status,
		ConfirmedAt:   b.ConfirmedAt,
		Replayed:      result.Replayed,
	}
}

type fallbackResponse struct {
	InquiryID uuid.UUID           `json:"inquiryId"`
	Status    enums.InquiryStatus `json:"status"`
	Replayed  bool                `json:"replayed"`
}
