package inquiries

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockyard-backend/internal/intake"
	"github.com/angelmondragon/stockyard-backend/internal/warehouses"
	"github.com/angelmondragon/stockyard-backend/pkg/db/models"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
	"github.com/angelmondragon/stockyard-backend/pkg/outbox"
	"github.com/angelmondragon/stockyard-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/stockyard-backend/pkg/pagination"
)

type inquiryStore interface {
	CreateTx(tx *gorm.DB, inquiry *models.Inquiry) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Inquiry, error)
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*models.Inquiry, error)
	AllocateTx(tx *gorm.DB, id uuid.UUID, staffID, allocatedBy string, at time.Time) (bool, error)
	UnassignTx(tx *gorm.DB, id uuid.UUID, at time.Time) (bool, error)
	UpdateStatusTx(tx *gorm.DB, change statusChange) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	List(ctx context.Context, q listQuery) ([]models.Inquiry, *pagination.Cursor, error)
}

type bookingLookup interface {
	HasConfirmedForDraft(ctx context.Context, draftID uuid.UUID) (bool, error)
}

type staffDirectory interface {
	Exists(ctx context.Context, staffID string) (bool, error)
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

type AllocateParams struct {
	InquiryID   uuid.UUID
	StaffID     string
	AllocatedBy string
}

type UpdateStatusParams struct {
	InquiryID          uuid.UUID
	Status             enums.InquiryStatus
	Notes              *string
	InvalidationReason *string
}

type ListParams struct {
	Status           *enums.InquiryStatus
	AllocationStatus *enums.AllocationStatus
	Source           *enums.InquirySource
	AllocatedTo      *string
	Cursor           string
	Limit            int
}

type ListResult struct {
	Items  []models.Inquiry `json:"items"`
	Cursor string           `json:"cursor"`
}

// Manager is the staff-facing inquiry lifecycle.
type Manager interface {
	Allocate(ctx context.Context, params AllocateParams) (*models.Inquiry, error)
	Unassign(ctx context.Context, inquiryID uuid.UUID) (*models.Inquiry, error)
	UpdateStatus(ctx context.Context, params UpdateStatusParams) (*models.Inquiry, error)
	Delete(ctx context.Context, inquiryID uuid.UUID) error
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Get(ctx context.Context, inquiryID uuid.UUID) (*models.Inquiry, error)
	CreateDirect(ctx context.Context, input intake.ContactInput) (*models.Inquiry, error)
}

// Options carries the optional collaborators of a Manager.
type Options struct {
	Tx         txRunner
	Outbox     outboxEmitter
	Bookings   bookingLookup
	Staff      staffDirectory
	Warehouses warehouseLookup
	Validator  *intake.Validator
	Now        func() time.Time
}

type manager struct {
	repo       inquiryStore
	identity   IdentityProvider
	tx         txRunner
	outbox     outboxEmitter
	bookings   bookingLookup
	staff      staffDirectory
	warehouses warehouseLookup
	validator  *intake.Validator
	now        func() time.Time
	logg       *logger.Logger
}

func NewManager(repo inquiryStore, identity IdentityProvider, logg *logger.Logger, opts Options) (Manager, error) {
	if repo == nil {
		return nil, fmt.Errorf("inquiry repository required")
	}
	if identity == nil {
		return nil, fmt.Errorf("identity provider required")
	}
	if opts.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if opts.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if opts.Bookings == nil {
		return nil, fmt.Errorf("booking lookup required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	validator := opts.Validator
	if validator == nil {
		validator = intake.NewValidator(now)
	}
	return &manager{
		repo:       repo,
		identity:   identity,
		tx:         opts.Tx,
		outbox:     opts.Outbox,
		bookings:   opts.Bookings,
		staff:      opts.Staff,
		warehouses: opts.Warehouses,
		validator:  validator,
		now:        now,
		logg:       logg,
	}, nil
}

func (m *manager) Allocate(ctx context.Context, params AllocateParams) (*models.Inquiry, error) {
	caller, err := m.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if params.InquiryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inquiry id required")
	}
	staffID := strings.TrimSpace(params.StaffID)
	if staffID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "staffId required")
	}
	allocatedBy := strings.TrimSpace(params.AllocatedBy)
	if allocatedBy == "" {
		allocatedBy = caller.StaffID
	}
	if allocatedBy != caller.StaffID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "allocatedBy must be the calling admin")
	}
	if m.staff != nil {
		ok, err := m.staff.Exists(ctx, staffID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup staff member")
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid fields: staffId").
				WithDetails(map[string]string{"staffId": "does not match a staff member"})
		}
	}

	at := m.now().UTC()
	err = m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := m.repo.AllocateTx(tx, params.InquiryID, staffID, allocatedBy, at)
		if err != nil {
			return err
		}
		if !ok {
			return explainMiss(tx, m.repo, params.InquiryID, "inquiry is already allocated")
		}
		return m.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInquiryAllocated,
			AggregateType: enums.AggregateInquiry,
			AggregateID:   params.InquiryID,
			Actor:         actorRef(caller),
			OccurredAt:    at,
			Data: payloads.InquiryAllocatedEvent{
				InquiryID:        params.InquiryID,
				AllocationStatus: enums.AllocationStatusAllocated,
				AllocatedTo:      staffID,
				AllocatedBy:      allocatedBy,
			},
		})
	})
	if err != nil {
		return nil, asDomainError(err, "allocate inquiry")
	}

	m.logInfo(ctx, params.InquiryID, "inquiry allocated", map[string]any{"allocated_to": staffID})
	return m.Get(ctx, params.InquiryID)
}

func (m *manager) Unassign(ctx context.Context, inquiryID uuid.UUID) (*models.Inquiry, error) {
	caller, err := m.requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if inquiryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inquiry id required")
	}

	at := m.now().UTC()
	err = m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := m.repo.UnassignTx(tx, inquiryID, at)
		if err != nil {
			return err
		}
		if !ok {
			return explainMiss(tx, m.repo, inquiryID, "inquiry is not allocated")
		}
		return m.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInquiryAllocated,
			AggregateType: enums.AggregateInquiry,
			AggregateID:   inquiryID,
			Actor:         actorRef(caller),
			OccurredAt:    at,
			Data: payloads.InquiryAllocatedEvent{
				InquiryID:        inquiryID,
				AllocationStatus: enums.AllocationStatusUnallocated,
				AllocatedBy:      caller.StaffID,
			},
		})
	})
	if err != nil {
		return nil, asDomainError(err, "unassign inquiry")
	}

	m.logInfo(ctx, inquiryID, "inquiry unassigned", nil)
	return m.Get(ctx, inquiryID)
}

func (m *manager) UpdateStatus(ctx context.Context, params UpdateStatusParams) (*models.Inquiry, error) {
	caller, err := m.caller(ctx)
	if err != nil {
		return nil, err
	}
	if params.InquiryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inquiry id required")
	}
	if !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid fields: status").
			WithDetails(map[string]string{"status": "must be one of new, contacted, in_progress, completed, closed"})
	}

	current, err := m.Get(ctx, params.InquiryID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() && (current.AllocatedTo == nil || *current.AllocatedTo != caller.StaffID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "inquiry is not allocated to you")
	}
	if !CanTransition(current.Status, params.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "status transition not allowed").
			WithDetails(map[string]any{
				"from":    current.Status,
				"to":      params.Status,
				"allowed": NextStatuses(current.Status),
			})
	}

	at := m.now().UTC()
	err = m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := m.repo.UpdateStatusTx(tx, statusChange{
			ID:                 current.ID,
			From:               current.Status,
			To:                 params.Status,
			Notes:              trimmed(params.Notes),
			InvalidationReason: trimmed(params.InvalidationReason),
			At:                 at,
		})
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "inquiry status changed concurrently").
				WithDetails(map[string]any{"expected": current.Status})
		}
		return m.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInquiryStatusChanged,
			AggregateType: enums.AggregateInquiry,
			AggregateID:   current.ID,
			Actor:         actorRef(caller),
			OccurredAt:    at,
			Data: payloads.InquiryStatusChangedEvent{
				InquiryID: current.ID,
				From:      current.Status,
				To:        params.Status,
				ChangedBy: caller.StaffID,
			},
		})
	})
	if err != nil {
		return nil, asDomainError(err, "update inquiry status")
	}

	m.logInfo(ctx, current.ID, "inquiry status changed", map[string]any{
		"from": string(current.Status),
		"to":   string(params.Status),
	})
	return m.Get(ctx, current.ID)
}

func (m *manager) Delete(ctx context.Context, inquiryID uuid.UUID) error {
	if _, err := m.requireAdmin(ctx); err != nil {
		return err
	}
	current, err := m.Get(ctx, inquiryID)
	if err != nil {
		return err
	}
	if current.BookingDraftID != nil {
		confirmed, err := m.bookings.HasConfirmedForDraft(ctx, *current.BookingDraftID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check confirmed booking")
		}
		if confirmed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "inquiry belongs to a confirmed booking")
		}
	}

	deleted, err := m.repo.Delete(ctx, inquiryID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete inquiry")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "inquiry not found")
	}
	m.logInfo(ctx, inquiryID, "inquiry deleted", nil)
	return nil
}

func (m *manager) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if _, err := m.caller(ctx); err != nil {
		return nil, err
	}
	query := listQuery{
		Status:           params.Status,
		AllocationStatus: params.AllocationStatus,
		Source:           params.Source,
		AllocatedTo:      params.AllocatedTo,
		Limit:            params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.Decode(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := m.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list inquiries")
	}
	cursor := ""
	if next != nil {
		cursor = next.Encode()
	}
	if rows == nil {
		rows = []models.Inquiry{}
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (m *manager) Get(ctx context.Context, inquiryID uuid.UUID) (*models.Inquiry, error) {
	if inquiryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inquiry id required")
	}
	inquiry, err := m.repo.FindByID(ctx, inquiryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inquiry not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inquiry")
	}
	return inquiry, nil
}

// CreateDirect records a lead from the public contact form. It needs no identity.
func (m *manager) CreateDirect(ctx context.Context, input intake.ContactInput) (*models.Inquiry, error) {
	fields, err := m.validator.ValidateContact(input)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	inquiry := &models.Inquiry{
		ID:                     uuid.New(),
		Source:                 enums.InquirySourceDirectContact,
		WarehouseID:            fields.WarehouseID,
		FullName:               fields.FullName,
		Email:                  fields.Email,
		Phone:                  fields.Phone,
		CompanyName:            fields.CompanyName,
		PreferredContactMethod: fields.PreferredContactMethod,
		PreferredContactTime:   nonEmpty(fields.PreferredContactTime),
		Message:                nonEmpty(fields.Message),
		Status:                 enums.InquiryStatusNew,
		AllocationStatus:       enums.AllocationStatusUnallocated,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if fields.WarehouseID != nil && m.warehouses != nil {
		summary, err := m.warehouses.GetWarehouseSummary(ctx, *fields.WarehouseID)
		switch {
		case err == nil:
			inquiry.WarehouseName = &summary.Name
		case pkgerrors.Is(err, pkgerrors.CodeNotFound):
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid fields: warehouseId").
				WithDetails(map[string]string{"warehouseId": "does not match a listed warehouse"})
		default:
			return nil, err
		}
	}

	err = m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := m.repo.CreateTx(tx, inquiry); err != nil {
			return err
		}
		return m.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInquiryCreated,
			AggregateType: enums.AggregateInquiry,
			AggregateID:   inquiry.ID,
			OccurredAt:    now,
			Data: payloads.InquiryCreatedEvent{
				InquiryID:   inquiry.ID,
				Source:      inquiry.Source,
				WarehouseID: inquiry.WarehouseID,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save inquiry")
	}

	m.logInfo(ctx, inquiry.ID, "direct inquiry created", nil)
	return inquiry, nil
}

func (m *manager) caller(ctx context.Context) (Identity, error) {
	id, err := m.identity.Identity(ctx)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return Identity{}, err
		}
		return Identity{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "resolve identity")
	}
	if strings.TrimSpace(id.StaffID) == "" || !id.Role.IsValid() {
		return Identity{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "staff identity required")
	}
	return id, nil
}

func (m *manager) requireAdmin(ctx context.Context) (Identity, error) {
	id, err := m.caller(ctx)
	if err != nil {
		return Identity{}, err
	}
	if !id.IsAdmin() {
		return Identity{}, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return id, nil
}

// explainMiss turns a conditional update that matched nothing into not found or a state conflict.
func explainMiss(tx *gorm.DB, repo inquiryStore, inquiryID uuid.UUID, conflict string) error {
	if _, err := repo.FindByIDTx(tx, inquiryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "inquiry not found")
		}
		return err
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, conflict)
}

func (m *manager) logInfo(ctx context.Context, inquiryID uuid.UUID, msg string, fields map[string]any) {
	if m.logg == nil {
		return
	}
	logCtx := m.logg.WithInquiryID(ctx, inquiryID.String())
	if len(fields) > 0 {
		logCtx = m.logg.WithFields(logCtx, fields)
	}
	m.logg.Info(logCtx, msg)
}

func asDomainError(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func actorRef(id Identity) *outbox.ActorRef {
	return &outbox.ActorRef{StaffID: id.StaffID, Role: string(id.Role)}
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	return &v
}

func nonEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
