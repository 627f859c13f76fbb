// Package pagination implements keyset paging over (created_at, id) in
// descending order. Cursors are opaque, URL-safe strings.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Cursor is the sort key of the last row on a page.
type Cursor struct {
	CreatedAt time.Time `json:"t"`
	ID        uuid.UUID `json:"id"`
}

// Limit clamps a requested page size into [1, MaxLimit], using DefaultLimit
// for anything non-positive.
func Limit(requested int) int {
	switch {
	case requested <= 0:
		return DefaultLimit
	case requested > MaxLimit:
		return MaxLimit
	}
	return requested
}

func (c Cursor) Encode() string {
	raw, _ := json.Marshal(Cursor{CreatedAt: c.CreatedAt.UTC(), ID: c.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Decode parses a cursor produced by Encode. An empty string means the first
// page and yields nil.
func Decode(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("cursor is not valid base64: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("cursor payload: %w", err)
	}
	if c.ID == uuid.Nil || c.CreatedAt.IsZero() {
		return nil, errors.New("cursor is incomplete")
	}
	return &c, nil
}

// After is a gorm scope that orders newest first and, given a cursor, skips
// everything up to and including it. It fetches one row past limit so Page
// can tell whether another page exists.
func After(c *Cursor, limit int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if c != nil {
			db = db.Where("created_at < ? OR (created_at = ? AND id < ?)", c.CreatedAt, c.CreatedAt, c.ID)
		}
		return db.Order("created_at DESC, id DESC").Limit(Limit(limit) + 1)
	}
}

// Page trims the look-ahead row fetched by After and returns the cursor for
// the following page, or nil on the last one.
func Page[T any](rows []T, limit int, key func(T) Cursor) ([]T, *Cursor) {
	n := Limit(limit)
	if len(rows) <= n {
		return rows, nil
	}
	rows = rows[:n]
	next := key(rows[n-1])
	return rows, &next
}
