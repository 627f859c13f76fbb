package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockyard-backend/pkg/enums"
)

// Inquiry is a follow-up lead worked by staff.
// BookingDraftID is only set for payment fallback inquiries and is unique.
type Inquiry struct {
	ID                     uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Source                 enums.InquirySource    `gorm:"type:inquiry_source;not null"`
	BookingDraftID         *uuid.UUID             `gorm:"type:uuid;uniqueIndex:ux_inquiries_booking_draft"`
	WarehouseID            *uuid.UUID             `gorm:"type:uuid"`
	WarehouseName          *string                `gorm:"type:text"`
	FullName               string                 `gorm:"type:text;not null"`
	Email                  string                 `gorm:"type:text;not null"`
	Phone                  string                 `gorm:"type:text;not null"`
	CompanyName            string                 `gorm:"type:text;not null"`
	PreferredContactMethod *enums.ContactMethod   `gorm:"type:contact_method"`
	PreferredContactTime   *string                `gorm:"type:text"`
	Message                *string                `gorm:"type:text"`
	Status                 enums.InquiryStatus    `gorm:"type:inquiry_status;not null;default:'new'"`
	AllocationStatus       enums.AllocationStatus `gorm:"type:allocation_status;not null;default:'unallocated'"`
	AllocatedTo            *string                `gorm:"type:text"`
	AllocatedBy            *string                `gorm:"type:text"`
	AllocatedAt            *time.Time             `gorm:"type:timestamptz"`
	Notes                  *string                `gorm:"type:text"`
	InvalidationReason     *string                `gorm:"type:text"`
	FallbackReason         *string                `gorm:"type:text"`
	CreatedAt              time.Time              `gorm:"type:timestamptz;default:now()"`
	UpdatedAt              time.Time              `gorm:"type:timestamptz;default:now()"`
}
