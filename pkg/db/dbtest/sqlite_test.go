package dbtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

func TestOpenDiscardsQueryLogs(t *testing.T) {
	conn := Open(t)

	assert.Equal(t, gormlogger.Discard, conn.Config.Logger)

	// a failing query would print through gorm's default logger
	var n int64
	err := conn.Table("missing_table").Count(&n).Error
	require.Error(t, err)
}

func TestOpenAppliesSchema(t *testing.T) {
	conn := Open(t)

	for _, table := range []string{"payment_orders", "bookings", "inquiries", "outbox_events"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}
