package intake

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockyard-backend/internal/warehouses"
	"github.com/angelmondragon/stockyard-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
)

type draftRepository interface {
	Create(ctx context.Context, draft *models.BookingDraft) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.BookingDraft, error)
}

type warehouseLookup interface {
	GetWarehouseSummary(ctx context.Context, id uuid.UUID) (*warehouses.Summary, error)
}

// Service turns a valid intake form into a persisted booking draft.
type Service interface {
	ValidateAndCreateDraft(ctx context.Context, input DraftInput) (*models.BookingDraft, error)
	GetDraft(ctx context.Context, id uuid.UUID) (*models.BookingDraft, error)
}

type service struct {
	repo       draftRepository
	warehouses warehouseLookup
	validator  *Validator
	logg       *logger.Logger
}

func NewService(repo draftRepository, warehouses warehouseLookup, validator *Validator, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("draft repository required")
	}
	if warehouses == nil {
		return nil, fmt.Errorf("warehouse lookup required")
	}
	if validator == nil {
		validator = NewValidator(nil)
	}
	return &service{repo: repo, warehouses: warehouses, validator: validator, logg: logg}, nil
}

func (s *service) ValidateAndCreateDraft(ctx context.Context, input DraftInput) (*models.BookingDraft, error) {
	fields, err := s.validator.Validate(input)
	if err != nil {
		return nil, err
	}

	if _, err := s.warehouses.GetWarehouseSummary(ctx, fields.WarehouseID); err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid fields: warehouseId").
				WithDetails(map[string]string{"warehouseId": "does not match a listed warehouse"})
		}
		return nil, err
	}

	draft := &models.BookingDraft{
		ID:                     uuid.New(),
		WarehouseID:            fields.WarehouseID,
		FullName:               fields.FullName,
		Email:                  fields.Email,
		Phone:                  fields.Phone,
		CompanyName:            fields.CompanyName,
		PreferredContactMethod: fields.PreferredContactMethod,
		PreferredContactTime:   fields.PreferredContactTime,
		PreferredStartDate:     fields.PreferredStartDate,
		Message:                fields.Message,
	}
	if err := s.repo.Create(ctx, draft); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save booking draft")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"booking_draft_id": draft.ID.String(),
			"warehouse_id":     draft.WarehouseID.String(),
		})
		s.logg.Info(logCtx, "booking draft created")
	}
	return draft, nil
}

func (s *service) GetDraft(ctx context.Context, id uuid.UUID) (*models.BookingDraft, error) {
	draft, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking draft not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup booking draft")
	}
	return draft, nil
}
