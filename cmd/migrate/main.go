package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/config"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/db"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/logger"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	ctx := logg.WithField(context.Background(), "env", cfg.App.Env)
	if err := migrate.Run(ctx, dbClient.DB()); err != nil {
		logg.Error(ctx, "migrations failed", err)
		os.Exit(1)
	}

	logg.Info(ctx, "migrations applied")
}
