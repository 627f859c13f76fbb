package inquiries

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockyard-backend/pkg/db/models"
	"github.com/angelmondragon/stockyard-backend/pkg/enums"
)

type inquiryResponse struct {
	ID                     uuid.UUID              `json:"id"`
	Source                 enums.InquirySource    `json:"source"`
	BookingDraftID         *uuid.UUID             `json:"bookingDraftId,omitempty"`
	WarehouseID            *uuid.UUID             `json:"warehouseId,omitempty"`
	WarehouseName          *string                `json:"warehouseName,omitempty"`
	FullName               string                 `json:"fullName"`
	Email                  string                 `json:"email"`
	Phone                  string                 `json:"phone"`
	CompanyName            string                 `json:"companyName"`
	PreferredContactMethod *enums.ContactMethod   `json:"preferredContactMethod,omitempty"`
	PreferredContactTime   *string                `json:"preferredContactTime,omitempty"`
	Message                *string                `json:"message,omitempty"`
	Status                 enums.InquiryStatus    `json:"status"`
	AllocationStatus       enums.AllocationStatus `json:"allocationStatus"`
	AllocatedTo            *string                `json:"allocatedTo,omitempty"`
	AllocatedBy            *string                `json:"allocatedBy,omitempty"`
	AllocatedAt            *time.Time             `json:"allocatedAt,omitempty"`
	Notes                  *string                `json:"notes,omitempty"`
	InvalidationReason     *string                `json:"invalidationReason,omitempty"`
	FallbackReason         *string                `json:"fallbackReason,omitempty"`
	CreatedAt              time.Time              `json:"createdAt"`
	UpdatedAt              time.Time              `json:"updatedAt"`
}

func newInquiryResponse(m *models.Inquiry) inquiryResponse {
	return inquiryResponse{
		ID:                     m.ID,
		Source:                 m.Source,
		BookingDraftID:         m.BookingDraftID,
		WarehouseID:            m.WarehouseID,
		WarehouseName:          m.WarehouseName,
		FullName:               m.FullName,
		Email:                  m.Email,
		Phone:                  m.Phone,
		CompanyName:            m.CompanyName,
		PreferredContactMethod: m.PreferredContactMethod,
		PreferredContactTime:   m.PreferredContactTime,
		Message:                m.Message,
		Status:                 m.Status,
		AllocationStatus:       m.AllocationStatus,
		AllocatedTo:            m.AllocatedTo,
		AllocatedBy:            m.AllocatedBy,
		AllocatedAt:            m.AllocatedAt,
		Notes:                  m.Notes,
		InvalidationReason:     m.InvalidationReason,
		FallbackReason:         m.FallbackReason,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
}

// contactResponse is what the public contact form gets back.
type contactResponse struct {
	ID        uuid.UUID           `json:"id"`
	Status    enums.InquiryStatus `json:"status"`
	CreatedAt time.Time           `json:"createdAt"`
}

type listResponse struct {
	Items  []inquiryResponse `json:"items"`
	Cursor string            `json:"cursor,omitempty"`
}

type statusRequest struct {
	Status             string  `json:"status" validate:"required"`
	Notes              *string `json:"notes" validate:"omitempty,max=4000"`
	InvalidationReason *string `json:"invalidationReason" validate:"omitempty,max=500"`
}

type allocateRequest struct {
	StaffID string `json:"staffId" validate:"required,uuid"`
}
