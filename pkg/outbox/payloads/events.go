package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockyard-backend/pkg/enums"
)

// PaymentOrderCreatedEvent is emitted once the gateway order is persisted.
type PaymentOrderCreatedEvent struct {
	PaymentOrderID   uuid.UUID `json:"payment_order_id"`
	OrderID          string    `json:"order_id"`
	BookingDraftID   uuid.UUID `json:"booking_draft_id"`
	WarehouseID      uuid.UUID `json:"warehouse_id"`
	AmountMinorUnits int64     `json:"amount_minor_units"`
	Currency         string    `json:"currency"`
}

// PaymentOrderFailedEvent reports an order that was abandoned, failed or timed out.
type PaymentOrderFailedEvent struct {
	PaymentOrderID uuid.UUID `json:"payment_order_id"`
	OrderID        string    `json:"order_id"`
	BookingDraftID uuid.UUID `json:"booking_draft_id"`
	Reason         string    `json:"reason"`
}

// BookingConfirmedEvent carries what the notification service needs to email the tenant.
type BookingConfirmedEvent struct {
	BookingID      uuid.UUID `json:"booking_id"`
	BookingNumber  string    `json:"booking_number"`
	BookingDraftID uuid.UUID `json:"booking_draft_id"`
	WarehouseID    uuid.UUID `json:"warehouse_id"`
	OrderID        string    `json:"order_id"`
	PaymentID      string    `json:"payment_id"`
	ConfirmedAt    time.Time `json:"confirmed_at"`
	Source         string    `json:"source"`
}

// InquiryCreatedEvent is emitted for both direct contact and payment fallback inquiries.
type InquiryCreatedEvent struct {
	InquiryID      uuid.UUID           `json:"inquiry_id"`
	Source         enums.InquirySource `json:"source"`
	BookingDraftID *uuid.UUID          `json:"booking_draft_id,omitempty"`
	WarehouseID    *uuid.UUID          `json:"warehouse_id,omitempty"`
	FallbackReason string              `json:"fallback_reason,omitempty"`
}

// InquiryAllocatedEvent tracks allocation and unassignment.
type InquiryAllocatedEvent struct {
	InquiryID        uuid.UUID              `json:"inquiry_id"`
	AllocationStatus enums.AllocationStatus `json:"allocation_status"`
	AllocatedTo      string                 `json:"allocated_to,omitempty"`
	AllocatedBy      string                 `json:"allocated_by,omitempty"`
}

// InquiryStatusChangedEvent records one lifecycle transition.
type InquiryStatusChangedEvent struct {
	InquiryID uuid.UUID           `json:"inquiry_id"`
	From      enums.InquiryStatus `json:"from"`
	To        enums.InquiryStatus `json:"to"`
	ChangedBy string              `json:"changed_by"`
}
