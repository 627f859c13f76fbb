// Package dbtest opens throwaway sqlite databases that mirror the Postgres
// schema closely enough for repository and service tests.
package dbtest

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS warehouses (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT,
		city TEXT,
		monthly_price_minor_units INTEGER,
		currency TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS booking_drafts (
		id TEXT PRIMARY KEY,
		warehouse_id TEXT NOT NULL,
		full_name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL,
		company_name TEXT NOT NULL,
		preferred_contact_method TEXT NOT NULL,
		preferred_contact_time TEXT,
		preferred_start_date DATETIME NOT NULL,
		message TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS payment_orders (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		booking_draft_id TEXT NOT NULL,
		warehouse_id TEXT NOT NULL,
		warehouse_name TEXT,
		amount_minor_units INTEGER NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'created',
		failure_reason TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_payment_orders_order_id ON payment_orders (order_id)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		booking_number TEXT,
		booking_draft_id TEXT NOT NULL,
		order_id TEXT NOT NULL,
		payment_id TEXT NOT NULL,
		warehouse_id TEXT NOT NULL,
		status TEXT NOT NULL,
		confirmed_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		CHECK ((status = 'confirmed') = (booking_number IS NOT NULL))
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_bookings_order_payment ON bookings (order_id, payment_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_bookings_order ON bookings (order_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_bookings_booking_number ON bookings (booking_number)`,
	`CREATE TABLE IF NOT EXISTS inquiries (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		booking_draft_id TEXT,
		warehouse_id TEXT,
		warehouse_name TEXT,
		full_name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL,
		company_name TEXT NOT NULL,
		preferred_contact_method TEXT,
		preferred_contact_time TEXT,
		message TEXT,
		status TEXT NOT NULL DEFAULT 'new',
		allocation_status TEXT NOT NULL DEFAULT 'unallocated',
		allocated_to TEXT,
		allocated_by TEXT,
		allocated_at DATETIME,
		notes TEXT,
		invalidation_reason TEXT,
		fallback_reason TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_inquiries_booking_draft ON inquiries (booking_draft_id)`,
	`CREATE TABLE IF NOT EXISTS staff_users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		role TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		last_login_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
}

// Open returns an isolated in-memory database with the service schema applied.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	// one connection keeps the shared in-memory database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}
