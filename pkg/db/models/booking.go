package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockyard-backend/pkg/enums"
)

// Booking is a confirmed, fee-paid reservation.
// BookingNumber is set iff Status is confirmed.
type Booking struct {
	ID             uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	BookingNumber  *string             `gorm:"type:text;uniqueIndex:ux_bookings_booking_number"`
	BookingDraftID uuid.UUID           `gorm:"type:uuid;not null"`
	OrderID        string              `gorm:"column:order_id;type:text;not null;uniqueIndex:ux_bookings_order;uniqueIndex:ux_bookings_order_payment,priority:1"`
	PaymentID      string              `gorm:"column:payment_id;type:text;not null;uniqueIndex:ux_bookings_order_payment,priority:2"`
	WarehouseID    uuid.UUID           `gorm:"type:uuid;not null"`
	Status         enums.BookingStatus `gorm:"type:booking_status;not null"`
	ConfirmedAt    *time.Time          `gorm:"type:timestamptz"`
	CreatedAt      time.Time           `gorm:"type:timestamptz;default:now()"`
}
