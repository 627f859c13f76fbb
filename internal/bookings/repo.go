package bookings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockyard-backend/pkg/db/models"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateTx(tx *gorm.DB, booking *models.Booking) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	return tx.Create(booking).Error
}

// FindByOrderPayment returns the booking recorded for the (order, payment) pair.
func (r *Repository) FindByOrderPayment(ctx context.Context, orderID, paymentID string) (*models.Booking, error) {
	var row models.Booking
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND payment_id = ?", orderID, paymentID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) FindByOrderID(ctx context.Context, orderID string) (*models.Booking, error) {
	var row models.Booking
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var row models.Booking
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// HasConfirmedForDraft reports whether the draft already produced a confirmed booking.
func (r *Repository) HasConfirmedForDraft(ctx context.Context, draftID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("booking_draft_id = ? AND status = ?", draftID, enums.BookingStatusConfirmed).
		Count(&count).Error
	return count > 0, err
}
