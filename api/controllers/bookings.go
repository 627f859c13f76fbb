package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/stockyard-backend/api/responses"
	"github.com/angelmondragon/stockyard-backend/api/validators"
	"github.com/angelmondragon/stockyard-backend/internal/intake"
	"github.com/angelmondragon/stockyard-backend/internal/payments"
	"github.com/angelmondragon/stockyard-backend/pkg/db/models"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
)

type draftCreator interface {
	ValidateAndCreateDraft(ctx context.Context, input intake.DraftInput) (*models.BookingDraft, error)
}

type paymentOrderCreator interface {
	CreateOrder(ctx context.Context, draftID uuid.UUID) (*payments.OrderResult, error)
}

// CreateBookingDraft validates the public booking form and stores a draft.
func CreateBookingDraft(svc draftCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "intake service unavailable"))
			return
		}

		var input intake.DraftInput
		if err := validators.DecodeJSON(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		draft, err := svc.ValidateAndCreateDraft(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newDraftResponse(draft))
	}
}

// CreatePaymentOrder opens a gateway order for the draft's booking fee.
func CreatePaymentOrder(svc paymentOrderCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		draftID, err := validators.ParseUUID(chi.URLParam(r, "draftId"), "draftId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CreateOrder(r.Context(), draftID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

type draftResponse struct {
	ID                     uuid.UUID           `json:"id"`
	WarehouseID            uuid.UUID           `json:"warehouseId"`
	FullName               string              `json:"fullName"`
	Email                  string              `json:"email"`
	Phone                  string              `json:"phone"`
	CompanyName            string              `json:"companyName"`
	PreferredContactMethod enums.ContactMethod `json:"preferredContactMethod"`
	PreferredContactTime   string              `json:"preferredContactTime,omitempty"`
	PreferredStartDate     string              `json:"preferredStartDate"`
	Message                string              `json:"message,omitempty"`
	CreatedAt              time.Time           `json:"createdAt"`
}

func newDraftResponse(draft *models.BookingDraft) draftResponse {
	return draftResponse{
		ID:                     draft.ID,
		WarehouseID:            draft.WarehouseID,
		FullName:               draft.FullName,
		Email:                  draft.Email,
		Phone:                  draft.Phone,
		CompanyName:            draft.CompanyName,
		PreferredContactMethod: draft.PreferredContactMethod,
		PreferredContactTime:   draft.PreferredContactTime,
		PreferredStartDate:     draft.PreferredStartDate.Format(intake.DateLayout),
		Message:                draft.Message,
		CreatedAt:              draft.CreatedAt,
	}
}
