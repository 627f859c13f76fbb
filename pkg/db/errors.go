package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const sqlStateUniqueViolation = "23505"

// IsUniqueViolation reports a duplicate-key failure. A non-empty constraint
// narrows the match to that constraint; sqlite, which reports no constraint
// names, is matched on the message text instead.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	if state, name, ok := sqlState(err); ok {
		return state == sqlStateUniqueViolation && (constraint == "" || name == constraint)
	}
	if constraint != "" {
		return strings.Contains(err.Error(), constraint)
	}
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// sqlState pulls the SQLSTATE and constraint out of either Postgres driver.
func sqlState(err error) (state, constraint string, ok bool) {
	if pgErr := (*pgconn.PgError)(nil); errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName, true
	}
	if pqErr := (*pq.Error)(nil); errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, true
	}
	return "", "", false
}
