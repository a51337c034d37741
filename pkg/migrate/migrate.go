package migrate

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"

	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/config"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Run applies all pending migrations against the gorm-managed connection.
func Run(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("resolving sql db: %w", err)
	}

	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// MaybeRunDev applies migrations automatically in dev when the flag is set.
// Production deploys run cmd/migrate explicitly.
func MaybeRunDev(ctx context.Context, db *gorm.DB, cfg *config.Config, logg *logger.Logger) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	logg.Info(ctx, "auto-applying migrations (dev)")
	return Run(ctx, db)
}
