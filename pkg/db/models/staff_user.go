package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockyard-backend/pkg/enums"
)

// StaffUser is a back-office account allowed to work inquiries.
type StaffUser struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string          `gorm:"type:text;not null;uniqueIndex"`
	DisplayName  string          `gorm:"type:text;not null"`
	Role         enums.StaffRole `gorm:"type:staff_role;not null"`
	PasswordHash string          `gorm:"type:text;not null"`
	LastLoginAt  *time.Time      `gorm:"type:timestamptz"`
	CreatedAt    time.Time       `gorm:"type:timestamptz;default:now()"`
}
