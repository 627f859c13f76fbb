package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/stockyard-backend/pkg/config"
	"github.com/angelmondragon/stockyard-backend/pkg/db"
	"github.com/angelmondragon/stockyard-backend/pkg/logger"
)

// MaybeRunDev applies pending migrations at startup, but only in dev with
// the auto-migrate flag on. SQLite databases are left alone since the
// migrations are Postgres-only.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	switch {
	case !cfg.App.IsDev(), !cfg.FeatureFlags.AutoMigrate:
		return nil
	case cfg.FeatureFlags.UseSQLite, strings.EqualFold(cfg.DB.Driver, db.DriverSQLite):
		logg.Warn(ctx, "auto-migrate skipped for sqlite")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("unwrap sql.DB: %w", err)
	}
	runner, err := NewRunner(sqlDB, DefaultDir)
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dir": DefaultDir})
	logg.Info(ctx, "auto-migrate starting")
	if err := runner.Run(ctx, "up"); err != nil {
		return err
	}
	logg.Info(ctx, "auto-migrate finished")
	return nil
}
