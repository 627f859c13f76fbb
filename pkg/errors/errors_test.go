package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataFor(t *testing.T) {
	cases := map[Code]Metadata{
		CodeValidation:        {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true, ExposeMessage: true},
		CodeUnauthorized:      {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required", ExposeMessage: true},
		CodeStateConflict:     {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "state transition disallowed", DetailsAllowed: true, ExposeMessage: true},
		CodeInternal:          {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error", Retryable: true},
		CodeDependency:        {HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "dependency unavailable", Retryable: true, DetailsAllowed: true},
		CodeOrderNotFound:     {HTTPStatus: http.StatusNotFound, PublicMessage: "payment order not found", ExposeMessage: true},
		CodeSignatureInvalid:  {HTTPStatus: http.StatusBadRequest, PublicMessage: "payment signature could not be verified"},
		CodeInvalidTransition: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "invalid status transition", DetailsAllowed: true, ExposeMessage: true},
	}
	for code, want := range cases {
		t.Run(string(code), func(t *testing.T) {
			assert.Equal(t, want, MetadataFor(code))
		})
	}

	notSaved := MetadataFor(CodeInquiryNotSaved)
	assert.Equal(t, http.StatusServiceUnavailable, notSaved.HTTPStatus)
	assert.True(t, notSaved.Retryable)
	assert.False(t, notSaved.ExposeMessage)
}

func TestMetadataForUnknownCode(t *testing.T) {
	assert.Equal(t, MetadataFor(CodeInternal), MetadataFor("SOMETHING_UNKNOWN"))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "insert booking")

	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, CodeConflict, wrapped.Code())
	assert.Equal(t, "CONFLICT: insert booking: boom", wrapped.Error())
	assert.Equal(t, "VALIDATION_ERROR: missing email", New(CodeValidation, "missing email").Error())
}

func TestWithDetails(t *testing.T) {
	err := New(CodeValidation, "missing email")
	assert.Nil(t, err.Details())
	err.WithDetails(map[string]any{"field": "email"})
	assert.Equal(t, map[string]any{"field": "email"}, err.Details())

	var nilErr *Error
	assert.Nil(t, nilErr.WithDetails("x"))
	assert.Equal(t, CodeInternal, nilErr.Code())
}

func TestAsAndIs(t *testing.T) {
	inner := New(CodeSignatureInvalid, "signature mismatch")
	outer := fmt.Errorf("confirm: %w", inner)

	require.NotNil(t, As(outer))
	assert.Same(t, inner, As(outer))
	assert.Nil(t, As(nil))
	assert.True(t, Is(outer, CodeSignatureInvalid))
	assert.False(t, Is(outer, CodeOrderNotFound))
	assert.False(t, Is(stdErrors.New("plain"), CodeInternal))
}

func TestDescribePgxError(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		Message:        "duplicate key value violates unique constraint",
		TableName:      "bookings",
		ConstraintName: "ux_bookings_order_payment",
	}
	err := Wrap(CodeConflict, fmt.Errorf("insert: %w", pgErr), "create booking")

	tr := Describe(err)
	assert.Equal(t, CodeConflict, tr.Code)
	assert.Len(t, tr.Chain, 3)
	require.NotNil(t, tr.Postgres)
	assert.Equal(t, "23505", tr.Postgres.SQLState)

	fields := tr.Fields()
	assert.Equal(t, "ux_bookings_order_payment", fields["pg_constraint"])
	assert.Equal(t, "bookings", fields["pg_table"])
	assert.NotContains(t, fields, "pg_column")
}

func TestDescribePqError(t *testing.T) {
	tr := Describe(&pq.Error{Code: "23503", Table: "inquiries", Constraint: "fk_inquiries_staff"})
	require.NotNil(t, tr.Postgres)
	assert.Equal(t, "23503", tr.Postgres.SQLState)
	assert.Equal(t, "fk_inquiries_staff", tr.Postgres.Constraint)
	assert.Empty(t, tr.Code)
}

func TestDescribePlainError(t *testing.T) {
	tr := Describe(stdErrors.New("timeout"))
	assert.Nil(t, tr.Postgres)
	assert.Equal(t, map[string]any{"error": "timeout"}, tr.Fields())
	assert.Equal(t, Trace{}, Describe(nil))
}
