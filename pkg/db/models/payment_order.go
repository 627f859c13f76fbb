package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockyard-backend/pkg/enums"
)

// PaymentOrder is one gateway payment attempt for a booking draft.
type PaymentOrder struct {
	ID               uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          string                   `gorm:"column:order_id;type:text;not null;uniqueIndex:ux_payment_orders_order_id"`
	BookingDraftID   uuid.UUID                `gorm:"type:uuid;not null"`
	WarehouseID      uuid.UUID                `gorm:"type:uuid;not null"`
	WarehouseName    string                   `gorm:"type:text"`
	AmountMinorUnits int64                    `gorm:"type:bigint;not null"`
	Currency         string                   `gorm:"type:char(3);not null"`
	Status           enums.PaymentOrderStatus `gorm:"type:payment_order_status;not null;default:'created'"`
	FailureReason    *string                  `gorm:"type:text"`
	CreatedAt        time.Time                `gorm:"type:timestamptz;default:now()"`
	UpdatedAt        time.Time                `gorm:"type:timestamptz;default:now()"`
}
