package inquiries

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockyard-backend/pkg/db/models"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
	"github.com/angelmondragon/stockyard-backend/pkg/pagination"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type listQuery struct {
	Status           *enums.InquiryStatus
	AllocationStatus *enums.AllocationStatus
	Source           *enums.InquirySource
	AllocatedTo      *string
	Cursor           *pagination.Cursor
	Limit            int
}

// statusChange is applied only while the row still holds From.
type statusChange struct {
	ID                 uuid.UUID
	From               enums.InquiryStatus
	To                 enums.InquiryStatus
	Notes              *string
	InvalidationReason *string
	At                 time.Time
}

func (r *Repository) CreateTx(tx *gorm.DB, inquiry *models.Inquiry) error {
	if inquiry.ID == uuid.Nil {
		inquiry.ID = uuid.New()
	}
	return tx.Create(inquiry).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Inquiry, error) {
	return r.FindByIDTx(r.db.WithContext(ctx), id)
}

func (r *Repository) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*models.Inquiry, error) {
	var row models.Inquiry
	if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) FindByDraftID(ctx context.Context, draftID uuid.UUID) (*models.Inquiry, error) {
	var row models.Inquiry
	if err := r.db.WithContext(ctx).Where("booking_draft_id = ?", draftID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// AllocateTx assigns an unallocated inquiry. It reports false when the inquiry
// was already allocated or no longer exists.
func (r *Repository) AllocateTx(tx *gorm.DB, id uuid.UUID, staffID, allocatedBy string, at time.Time) (bool, error) {
	res := tx.Model(&models.Inquiry{}).
		Where("id = ? AND allocation_status = ?", id, enums.AllocationStatusUnallocated).
		Updates(map[string]any{
			"allocation_status": enums.AllocationStatusAllocated,
			"allocated_to":      staffID,
			"allocated_by":      allocatedBy,
			"allocated_at":      at,
			"updated_at":        at,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *Repository) UnassignTx(tx *gorm.DB, id uuid.UUID, at time.Time) (bool, error) {
	res := tx.Model(&models.Inquiry{}).
		Where("id = ? AND allocation_status = ?", id, enums.AllocationStatusAllocated).
		Updates(map[string]any{
			"allocation_status": enums.AllocationStatusUnallocated,
			"allocated_to":      nil,
			"allocated_by":      nil,
			"allocated_at":      nil,
			"updated_at":        at,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *Repository) UpdateStatusTx(tx *gorm.DB, change statusChange) (bool, error) {
	updates := map[string]any{
		"status":     change.To,
		"updated_at": change.At,
	}
	if change.Notes != nil {
		updates["notes"] = *change.Notes
	}
	if change.InvalidationReason != nil {
		updates["invalidation_reason"] = *change.InvalidationReason
	}
	res := tx.Model(&models.Inquiry{}).
		Where("id = ? AND status = ?", change.ID, change.From).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Inquiry{})
	return res.RowsAffected == 1, res.Error
}

func (r *Repository) List(ctx context.Context, q listQuery) ([]models.Inquiry, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.Inquiry{})
	if q.Status != nil {
		query = query.Where("status = ?", *q.Status)
	}
	if q.AllocationStatus != nil {
		query = query.Where("allocation_status = ?", *q.AllocationStatus)
	}
	if q.Source != nil {
		query = query.Where("source = ?", *q.Source)
	}
	if q.AllocatedTo != nil {
		query = query.Where("allocated_to = ?", *q.AllocatedTo)
	}

	var rows []models.Inquiry
	if err := query.Scopes(pagination.After(q.Cursor, q.Limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Page(rows, q.Limit, func(row models.Inquiry) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return page, next, nil
}
