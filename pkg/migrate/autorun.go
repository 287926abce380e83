package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/cafepos-backend/pkg/config"
	"github.com/angelmondragon/cafepos-backend/pkg/db"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
)

// MaybeRunDev applies pending migrations when a dev Postgres install has
// auto-migrate enabled. SQLite installs are migrated by db.New.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate || cfg.FeatureFlags.UseSQLite {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	m, err := NewMigrator(sqlDB, DefaultDir)
	if err != nil {
		return err
	}

	applied, err := m.Up(ctx)
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "applied": len(applied)})
	if err != nil {
		return err
	}
	logg.Info(ctx, "schema migrated")
	return nil
}
