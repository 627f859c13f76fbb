package inquiries

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/stockyard-backend/api/middleware"
	"github.com/angelmondragon/stockyard-backend/api/responses"
	"github.com/angelmondragon/stockyard-backend/api/validators"
	inquirysvc "github.com/angelmondragon/stockyard-backend/internal/inquiries"
	"github.com/angelmondragon/stockyard-backend/internal/intake"
	"github.com/angelmondragon/stockyard-backend/pkg/db/models"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
)

const (
	defaultListLimit = 25
	maxListLimit     = 100
	allocatedToMe    = "me"
)

type contactCreator interface {
	CreateDirect(ctx context.Context, input intake.ContactInput) (*models.Inquiry, error)
}

// Service is the slice of the inquiry manager the staff and admin routes use.
type Service interface {
	Allocate(ctx context.Context, params inquirysvc.AllocateParams) (*models.Inquiry, error)
	Unassign(ctx context.Context, inquiryID uuid.UUID) (*models.Inquiry, error)
	UpdateStatus(ctx context.Context, params inquirysvc.UpdateStatusParams) (*models.Inquiry, error)
	Delete(ctx context.Context, inquiryID uuid.UUID) error
	List(ctx context.Context, params inquirysvc.ListParams) (*inquirysvc.ListResult, error)
	Get(ctx context.Context, inquiryID uuid.UUID) (*models.Inquiry, error)
}

// Contact records a direct inquiry from the public contact form.
func Contact(svc contactCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inquiry service unavailable"))
			return
		}

		var input intake.ContactInput
		if err := validators.DecodeJSON(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		inquiry, err := svc.CreateDirect(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, contactResponse{
			ID:        inquiry.ID,
			Status:    inquiry.Status,
			CreatedAt: inquiry.CreatedAt,
		})
	}
}

// List returns a page of inquiries. allocatedTo=me resolves to the caller.
func List(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inquiry service unavailable"))
			return
		}

		params, err := parseListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]inquiryResponse, 0, len(result.Items))
		for i := range result.Items {
			items = append(items, newInquiryResponse(&result.Items[i]))
		}
		responses.WriteSuccess(w, listResponse{Items: items, Cursor: result.Cursor})
	}
}

func Get(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := inquiryID(w, r, svc, logg)
		if !ok {
			return
		}
		inquiry, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newInquiryResponse(inquiry))
	}
}

// UpdateStatus moves an inquiry along its follow-up lifecycle.
func UpdateStatus(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := inquiryID(w, r, svc, logg)
		if !ok {
			return
		}

		var payload statusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseInquiryStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid fields: status").
				WithDetails(map[string]string{"status": "is not a known inquiry status"}))
			return
		}

		inquiry, err := svc.UpdateStatus(r.Context(), inquirysvc.UpdateStatusParams{
			InquiryID:          id,
			Status:             status,
			Notes:              payload.Notes,
			InvalidationReason: payload.InvalidationReason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newInquiryResponse(inquiry))
	}
}

func Allocate(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := inquiryID(w, r, svc, logg)
		if !ok {
			return
		}

		var payload allocateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		inquiry, err := svc.Allocate(r.Context(), inquirysvc.AllocateParams{
			InquiryID:   id,
			StaffID:     payload.StaffID,
			AllocatedBy: middleware.StaffIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newInquiryResponse(inquiry))
	}
}

func Unassign(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := inquiryID(w, r, svc, logg)
		if !ok {
			return
		}
		inquiry, err := svc.Unassign(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newInquiryResponse(inquiry))
	}
}

func Delete(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := inquiryID(w, r, svc, logg)
		if !ok {
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": id, "deleted": true})
	}
}

func inquiryID(w http.ResponseWriter, r *http.Request, svc Service, logg *logger.Logger) (uuid.UUID, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inquiry service unavailable"))
		return uuid.Nil, false
	}
	id, err := validators.ParseUUID(chi.URLParam(r, "inquiryId"), "inquiryId")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return uuid.Nil, false
	}
	return id, true
}

func parseListParams(r *http.Request) (inquirysvc.ListParams, error) {
	q := r.URL.Query()
	details := map[string]string{}
	var params inquirysvc.ListParams

	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		if status, err := enums.ParseInquiryStatus(raw); err != nil {
			details["status"] = "is not a known inquiry status"
		} else {
			params.Status = &status
		}
	}
	if raw := strings.TrimSpace(q.Get("allocationStatus")); raw != "" {
		if status, err := enums.ParseAllocationStatus(raw); err != nil {
			details["allocationStatus"] = "must be allocated or unallocated"
		} else {
			params.AllocationStatus = &status
		}
	}
	if raw := strings.TrimSpace(q.Get("source")); raw != "" {
		if source, err := enums.ParseInquirySource(raw); err != nil {
			details["source"] = "is not a known inquiry source"
		} else {
			params.Source = &source
		}
	}
	if raw := strings.TrimSpace(q.Get("allocatedTo")); raw != "" {
		if strings.EqualFold(raw, allocatedToMe) {
			raw = middleware.StaffIDFromContext(r.Context())
		}
		params.AllocatedTo = &raw
	}
	if len(details) > 0 {
		return inquirysvc.ListParams{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid query parameters").WithDetails(details)
	}

	limit, err := validators.ParseQueryInt(r, "limit", defaultListLimit, 1, maxListLimit)
	if err != nil {
		return inquirysvc.ListParams{}, err
	}
	params.Limit = limit
	params.Cursor = strings.TrimSpace(q.Get("cursor"))
	return params, nil
}
