package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockyard-backend/pkg/enums"
)

// BookingDraft is a validated intent to book, captured before any payment order.
type BookingDraft struct {
	ID                     uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	WarehouseID            uuid.UUID           `gorm:"type:uuid;not null"`
	FullName               string              `gorm:"type:text;not null"`
	Email                  string              `gorm:"type:text;not null"`
	Phone                  string              `gorm:"type:text;not null"`
	CompanyName            string              `gorm:"type:text;not null"`
	PreferredContactMethod enums.ContactMethod `gorm:"type:contact_method;not null"`
	PreferredContactTime   string              `gorm:"type:text"`
	PreferredStartDate     time.Time           `gorm:"type:date;not null"`
	Message                string              `gorm:"type:text"`
	CreatedAt              time.Time           `gorm:"type:timestamptz;default:now()"`
}
