package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Trace is a log-friendly breakdown of an error: its typed code, every link
// of the wrap chain, and the Postgres diagnostics when a driver error sits in
// the chain.
type Trace struct {
	Message  string
	Code     Code
	Chain    []string
	Postgres *PostgresDiag
}

// PostgresDiag holds the server-side fields of a driver error. Both the pgx
// and lib/pq drivers are recognised.
type PostgresDiag struct {
	SQLState   string
	Message    string
	Detail     string
	Table      string
	Column     string
	Constraint string
}

func Describe(err error) Trace {
	if err == nil {
		return Trace{}
	}
	tr := Trace{Message: err.Error(), Postgres: postgresDiag(err)}
	if typed := As(err); typed != nil {
		tr.Code = typed.Code()
	}
	for link := err; link != nil; link = stdErrors.Unwrap(link) {
		tr.Chain = append(tr.Chain, fmt.Sprintf("%T: %v", link, link))
	}
	return tr
}

// Fields flattens the trace into structured log fields, leaving out
// anything empty.
func (t Trace) Fields() map[string]any {
	fields := map[string]any{"error": t.Message}
	if t.Code != "" {
		fields["error_code"] = t.Code
	}
	if len(t.Chain) > 1 {
		fields["error_chain"] = t.Chain
	}
	if pg := t.Postgres; pg != nil {
		for k, v := range map[string]string{
			"pg_code":       pg.SQLState,
			"pg_message":    pg.Message,
			"pg_detail":     pg.Detail,
			"pg_table":      pg.Table,
			"pg_column":     pg.Column,
			"pg_constraint": pg.Constraint,
		} {
			if v != "" {
				fields[k] = v
			}
		}
	}
	return fields
}

func postgresDiag(err error) *PostgresDiag {
	if pgxErr := (*pgconn.PgError)(nil); stdErrors.As(err, &pgxErr) {
		return &PostgresDiag{
			SQLState:   pgxErr.Code,
			Message:    pgxErr.Message,
			Detail:     pgxErr.Detail,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Constraint: pgxErr.ConstraintName,
		}
	}
	if pqErr := (*pq.Error)(nil); stdErrors.As(err, &pqErr) {
		return &PostgresDiag{
			SQLState:   string(pqErr.Code),
			Message:    pqErr.Message,
			Detail:     pqErr.Detail,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Constraint: pqErr.Constraint,
		}
	}
	return nil
}
