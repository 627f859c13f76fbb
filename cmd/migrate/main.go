// Command migrate applies and authors goose migrations for the booking
// database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/stockyard-backend/pkg/config"
	"github.com/angelmondragon/stockyard-backend/pkg/db"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
	"github.com/angelmondragon/stockyard-backend/pkg/migrate"
)

const serviceKind = "migrate"

var errUsage = errors.New("usage")

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

// offline commands only touch the migrations directory.
func (o options) offline() bool { return o.cmd == "create" || o.cmd == "validate" }

func parseOptions(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet(serviceKind, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.cmd, "cmd", "up", "up|down|status|redo|up-by-one|version|create|validate")
	fs.StringVar(&o.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	fs.StringVar(&o.name, "name", "", "migration name, for -cmd=create")
	fs.StringVar(&o.version, "version", "", "target version (YYYYMMDDHHMMSS), for -cmd=version")
	if err := fs.Parse(args); err != nil {
		return o, errUsage
	}

	fail := func(msg string) (options, error) {
		fmt.Fprintln(stderr, msg)
		fs.Usage()
		return o, errUsage
	}
	switch o.cmd {
	case "up", "down", "status", "redo", "up-by-one", "validate":
	case "create":
		if strings.TrimSpace(o.name) == "" {
			return fail("-cmd=create needs -name")
		}
	case "version":
		if strings.TrimSpace(o.version) == "" {
			return fail("-cmd=version needs -version")
		}
	default:
		return fail("unknown -cmd " + o.cmd)
	}
	return o, nil
}

func main() {
	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}
	_ = godotenv.Load()

	logg := logger.New(logger.Options{ServiceName: serviceKind})
	ctx := logg.WithFields(context.Background(), map[string]any{"cmd": opts.cmd, "dir": opts.dir})
	if err := run(ctx, opts, logg); err != nil {
		logg.Error(ctx, "migrate failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logg *logger.Logger) error {
	if opts.offline() {
		return runOffline(ctx, opts, logg)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer client.Close()
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	runner, err := migrate.NewRunner(sqlDB, opts.dir)
	if err != nil {
		return err
	}

	if opts.cmd == "version" {
		err = runner.To(ctx, opts.version)
	} else {
		err = runner.Run(ctx, opts.cmd)
	}
	if err != nil {
		return err
	}
	logg.Info(ctx, "migration complete")
	return nil
}

func runOffline(ctx context.Context, opts options, logg *logger.Logger) error {
	if opts.cmd == "validate" {
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return err
		}
		logg.Info(ctx, "migrations valid")
		return nil
	}
	path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "path", path), "migration created")
	return nil
}
