package models

import (
	"time"

	"github.com/google/uuid"
)

// Warehouse is the read-only catalog listing a booking refers to.
type Warehouse struct {
	ID                     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name                   string    `gorm:"type:text;not null"`
	Address                *string   `gorm:"type:text"`
	City                   *string   `gorm:"type:text"`
	MonthlyPriceMinorUnits *int64    `gorm:"type:bigint"`
	Currency               *string   `gorm:"type:char(3)"`
	CreatedAt              time.Time `gorm:"type:timestamptz;default:now()"`
}
