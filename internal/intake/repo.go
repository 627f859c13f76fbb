package intake

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockyard-backend/pkg/db/models"
)

// Repository persists booking drafts. Drafts are insert-only.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, draft *models.BookingDraft) error {
	if draft.ID == uuid.Nil {
		draft.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(draft).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.BookingDraft, error) {
	return r.FindByIDTx(r.db.WithContext(ctx), id)
}

// FindByIDTx reads a draft through tx so callers can load it inside their own transaction.
func (r *Repository) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*models.BookingDraft, error) {
	var draft models.BookingDraft
	if err := tx.Where("id = ?", id).First(&draft).Error; err != nil {
		return nil, err
	}
	return &draft, nil
}
