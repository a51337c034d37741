package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Vijayapardhu/risbow-backend-sub000/api/routes"
	"github.com/Vijayapardhu/risbow-backend-sub000/internal/checkout"
	"github.com/Vijayapardhu/risbow-backend-sub000/internal/coins"
	"github.com/Vijayapardhu/risbow-backend-sub000/internal/inventory"
	"github.com/Vijayapardhu/risbow-backend-sub000/internal/orders"
	"github.com/Vijayapardhu/risbow-backend-sub000/internal/payments"
	"github.com/Vijayapardhu/risbow-backend-sub000/internal/rooms"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/config"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/db"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/logger"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/metrics"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/migrate"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/outbox"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/razorpay"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), dbClient.DB(), cfg, logg); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gateway, err := razorpay.NewClient(cfg.Razorpay, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap payment gateway", err)
		os.Exit(1)
	}

	coreMetrics := metrics.NewCoreMetrics(prometheus.DefaultRegisterer)
	gormDB := dbClient.DB()
	obSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)
	holds := inventory.NewRedisHoldStore(redisClient)

	invSvc, err := inventory.NewService(inventory.NewRepository(gormDB), holds, cfg.Checkout.HoldTTL, logg, coreMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}
	coinSvc, err := coins.NewService(gormDB, coins.NewRepository(gormDB), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create coins service", err)
		os.Exit(1)
	}
	hub := rooms.NewHub(cfg.Rooms, logg)
	roomSvc, err := rooms.NewService(gormDB, rooms.NewRepository(gormDB), hub, obSvc, coreMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create rooms service", err)
		os.Exit(1)
	}
	orderRepo := orders.NewRepository(gormDB)
	orderSvc, err := orders.NewService(gormDB, orderRepo, invSvc, coinSvc, obSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}
	checkoutSvc, err := checkout.NewService(
		gormDB, inventory.NewRepository(gormDB), invSvc, coinSvc, orderRepo,
		roomSvc, gateway, obSvc, cfg.Checkout, coreMetrics, logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}
	paymentSvc, err := payments.NewService(
		gormDB, orderRepo, payments.NewRepository(gormDB), coinSvc, invSvc,
		roomSvc, obSvc, gateway, cfg.Coins, coreMetrics, logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:    cfg,
			Logger:    logg,
			DB:        dbClient,
			Redis:     redisClient,
			Checkout:  checkoutSvc,
			Payments:  paymentSvc,
			Orders:    orderSvc,
			Rooms:     roomSvc,
			Coins:     coinSvc,
			Inventory: invSvc,
			Hub:       hub,
		}),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "error draining api server", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shut down gracefully")
}
