package validators

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/stockyard-backend/pkg/errors"
)

func fieldError(field, problem string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, field+" "+problem).
		WithDetails(map[string]string{field: problem})
}

// ParseUUID parses a path or body identifier. Errors name field in their
// details.
func ParseUUID(raw, field string) (uuid.UUID, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return uuid.Nil, fieldError(field, "is required")
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fieldError(field, "must be a valid uuid")
	}
	return id, nil
}

// ParseQueryInt reads an optional integer query parameter, returning def
// when it is absent and rejecting values outside [lo, hi].
func ParseQueryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fieldError(key, "must be a whole number")
	}
	if n < lo || n > hi {
		return 0, fieldError(key, fmt.Sprintf("must be between %d and %d", lo, hi))
	}
	return n, nil
}
