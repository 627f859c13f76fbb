package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockyard-backend/pkg/db/models"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
)

// Repository persists gateway payment orders.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateTx(tx *gorm.DB, order *models.PaymentOrder) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	return tx.Create(order).Error
}

func (r *Repository) FindByOrderID(ctx context.Context, orderID string) (*models.PaymentOrder, error) {
	return r.FindByOrderIDTx(r.db.WithContext(ctx), orderID)
}

func (r *Repository) FindByOrderIDTx(tx *gorm.DB, orderID string) (*models.PaymentOrder, error) {
	var row models.PaymentOrder
	if err := tx.Where("order_id = ?", orderID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// MarkConfirmedTx moves a created order to confirmed. It returns false when the
// order was no longer in created, which means another writer got there first.
func (r *Repository) MarkConfirmedTx(tx *gorm.DB, orderID string) (bool, error) {
	res := tx.Model(&models.PaymentOrder{}).
		Where("order_id = ? AND status = ?", orderID, enums.PaymentOrderStatusCreated).
		Updates(map[string]any{
			"status":     enums.PaymentOrderStatusConfirmed,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FailCreatedForDraftTx marks every still-created order of the draft as failed and
// returns the rows it changed.
func (r *Repository) FailCreatedForDraftTx(tx *gorm.DB, draftID uuid.UUID, reason string) ([]models.PaymentOrder, error) {
	var pending []models.PaymentOrder
	if err := tx.Where("booking_draft_id = ? AND status = ?", draftID, enums.PaymentOrderStatusCreated).
		Order("created_at ASC").
		Find(&pending).Error; err != nil {
		return nil, err
	}

	failed := make([]models.PaymentOrder, 0, len(pending))
	for _, order := range pending {
		res := tx.Model(&models.PaymentOrder{}).
			Where("id = ? AND status = ?", order.ID, enums.PaymentOrderStatusCreated).
			Updates(map[string]any{
				"status":         enums.PaymentOrderStatusFailed,
				"failure_reason": reason,
				"updated_at":     time.Now().UTC(),
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			order.Status = enums.PaymentOrderStatusFailed
			order.FailureReason = &reason
			failed = append(failed, order)
		}
	}
	return failed, nil
}

// HasConfirmedForDraftTx reports whether any order of the draft already confirmed.
func (r *Repository) HasConfirmedForDraftTx(tx *gorm.DB, draftID uuid.UUID) (bool, error) {
	var count int64
	err := tx.Model(&models.PaymentOrder{}).
		Where("booking_draft_id = ? AND status = ?", draftID, enums.PaymentOrderStatusConfirmed).
		Count(&count).Error
	return count > 0, err
}

// DraftSettled reports whether the draft is already closed, either by a
// confirmed order or by a payment fallback inquiry.
func (r *Repository) DraftSettled(ctx context.Context, draftID uuid.UUID) (bool, error) {
	return r.DraftSettledTx(r.db.WithContext(ctx), draftID)
}

func (r *Repository) DraftSettledTx(tx *gorm.DB, draftID uuid.UUID) (bool, error) {
	confirmed, err := r.HasConfirmedForDraftTx(tx, draftID)
	if err != nil || confirmed {
		return confirmed, err
	}
	var count int64
	err = tx.Model(&models.Inquiry{}).
		Where("booking_draft_id = ? AND source = ?", draftID, enums.InquirySourcePaymentFallback).
		Count(&count).Error
	return count > 0, err
}

// StaleCursor resumes a stale order scan after the row it names.
type StaleCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

func (c StaleCursor) IsZero() bool { return c.ID == uuid.Nil }

// ListStaleCreated returns orders still awaiting payment that were created before
// cutoff, oldest first, starting after the cursor.
func (r *Repository) ListStaleCreated(ctx context.Context, cutoff time.Time, after StaleCursor, limit int) ([]models.PaymentOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	q := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.PaymentOrderStatusCreated, cutoff)
	if !after.IsZero() {
		q = q.Where("(created_at > ? OR (created_at = ? AND id > ?))", after.CreatedAt, after.CreatedAt, after.ID)
	}
	var rows []models.PaymentOrder
	err := q.Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
