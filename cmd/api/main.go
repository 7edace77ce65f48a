package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-inventory-ledger/internal/handler"
	"go-inventory-ledger/internal/lock"
	"go-inventory-ledger/internal/metrics"
	"go-inventory-ledger/internal/middleware"
	"go-inventory-ledger/internal/repository"
	"go-inventory-ledger/internal/service"
	"go-inventory-ledger/pkg/cache"
	"go-inventory-ledger/pkg/config"
	"go-inventory-ledger/pkg/database"
	"go-inventory-ledger/pkg/jwt"
	"go-inventory-ledger/pkg/logger"
	"go-inventory-ledger/pkg/migrate"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "api"})

	// 1. Load Env
	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found")
	}
	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	// 2. Setup Database
	dbClient, err := database.Connect(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()
	requireResource(ctx, logg, "migrations", migrate.MaybeRun(ctx, cfg, logg, dbClient))
	db := dbClient.DB()

	// 3. Optional redis: dashboard cache + cross-replica product locks
	var (
		redisClient *cache.Client
		locker      lock.Locker = lock.NewKeyedLocker(cfg.Ledger.LockTimeout)
	)
	if cfg.Redis.Enabled() {
		redisClient, err = cache.New(ctx, cfg.Redis, logg)
		requireResource(ctx, logg, "redis", err)
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient.Raw(), cfg.Ledger, logg)
		logg.Info(ctx, "using redis product locks and dashboard cache")
	} else {
		logg.Warn(ctx, "redis disabled: in-process product locks, no dashboard cache")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ledgerMetrics := metrics.NewLedgerMetrics(registry)

	// 4. Dependency Injection (Wiring Layers)
	productRepo := repository.NewProductRepo(db)
	txRepo := repository.NewTransactionRepo(db)
	categoryRepo := repository.NewCategoryRepo(db)
	userRepo := repository.NewUserRepo(db)

	tokens := jwt.NewManager(cfg.JWT)
	reportService := service.NewReportService(productRepo, txRepo, redisClient, cfg.Report, ledgerMetrics, logg)
	invService := service.NewInventoryService(service.InventoryDeps{
		TxManager:    repository.NewTransactionManager(db),
		Products:     productRepo,
		Transactions: txRepo,
		Categories:   categoryRepo,
		Locker:       locker,
		Metrics:      ledgerMetrics,
		Logger:       logg,
		Notifier:     reportService,
		Config:       cfg.Ledger,
	})
	authService := service.NewAuthService(userRepo, tokens, cfg.JWT.Expiration(), logg)
	userService := service.NewUserService(userRepo)
	categoryService := service.NewCategoryService(categoryRepo, productRepo)

	if cfg.App.SeedAdmin {
		seedAdmin(ctx, logg, cfg.App, userService)
	}

	// 5. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: handler.ErrorHandler,
	})

	app.Use(requestid.New())
	app.Use(fiberlogger.New())
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(middleware.RequestLogger(logg))

	checks := map[string]handler.Pinger{"database": dbClient}
	if redisClient != nil {
		checks["redis"] = redisClient
	}
	app.Get("/healthz", handler.NewHealthHandler(checks).Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	handler.RegisterRoutes(app, handler.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		Inventory: handler.NewInventoryHandler(invService, reportService),
		Category:  handler.NewCategoryHandler(categoryService),
		Dashboard: handler.NewDashboardHandler(reportService),
		User:      handler.NewUserHandler(userService),
	}, middleware.RequireAuth(authService, logg))

	// 6. Graceful Shutdown
	go func() {
		if err := app.Listen(":" + cfg.App.Port); err != nil {
			logg.Error(ctx, "server stopped", err)
		}
	}()
	logg.Info(logg.WithField(ctx, "port", cfg.App.Port), "server listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info(ctx, "shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logg.Error(ctx, "server forced to shutdown", err)
	}
	logg.Info(ctx, "server exited")
}

// seedAdmin creates the default admin user if it does not exist.
func seedAdmin(ctx context.Context, logg *logger.Logger, app config.AppConfig, users service.UserService) {
	created, err := users.EnsureAdmin(ctx, app.AdminUsername, app.AdminEmail, app.AdminPassword)
	if err != nil {
		logg.Error(ctx, "failed to seed admin user", err)
		return
	}
	if created {
		logg.Info(logg.WithField(ctx, "email", app.AdminEmail), "admin user created")
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
