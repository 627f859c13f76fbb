package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"
)

const (
	DefaultDir = "pkg/migrate/migrations"
	// Dialect is fixed: the schema relies on Postgres enums and partial indexes.
	Dialect = "postgres"
)

// Runner applies the goose migrations found in one directory.
type Runner struct {
	db  *sql.DB
	dir string
}

func NewRunner(db *sql.DB, dir string) (*Runner, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if dir == "" {
		return nil, errors.New("dir is required")
	}
	if err := goose.SetDialect(Dialect); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	return &Runner{db: db, dir: dir}, nil
}

// Run executes a plain goose command such as up, down, status or redo.
// goose writes its own progress to stdout.
func (r *Runner) Run(ctx context.Context, command string, args ...string) error {
	if err := goose.RunContext(ctx, command, r.db, r.dir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// To moves the schema to version (YYYYMMDDHHMMSS), up or down depending on
// where the database currently sits.
func (r *Runner) To(ctx context.Context, version string) error {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil || target <= 0 {
		return fmt.Errorf("invalid version %q: expected YYYYMMDDHHMMSS", version)
	}
	current, err := goose.GetDBVersionContext(ctx, r.db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	step, apply := "up-to", goose.UpToContext
	switch {
	case current == target:
		return nil
	case current > target:
		step, apply = "down-to", goose.DownToContext
	}
	if err := apply(ctx, r.db, r.dir, target); err != nil {
		return fmt.Errorf("goose %s %d: %w", step, target, err)
	}
	return nil
}
