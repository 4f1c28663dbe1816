package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"order-access-service/internal/cache"
	"order-access-service/internal/config"
	"order-access-service/internal/events"
	"order-access-service/internal/handlers"
	"order-access-service/internal/jobs"
	"order-access-service/internal/metrics"
	"order-access-service/internal/middleware"
	"order-access-service/internal/repository"
	"order-access-service/internal/seeders"
	"order-access-service/internal/services"
)

// @title Order Access API
// @version 1.0.0
// @description Order permission resolution, lifecycle, archive and audit service

// @host localhost:8097
// @BasePath /api/v1

// @securityDefinitions.bearer BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.InfoLevel)

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using system environment variables")
	}

	cfg := config.Load()
	if cfg.IsDevelopment() {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}
	store := repository.NewStore(db)

	logger.Info("Running database migrations...")
	if err := store.Migrate(); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Database migrations completed")

	if cfg.IsDevelopment() || cfg.SeedData {
		if err := seeders.SeedDirectory(context.Background(), store, logger); err != nil {
			logger.WithError(err).Warn("Failed to seed directory data")
		}
	}

	// Grant cache (optional - resolution reads the database without Redis)
	redisClient := config.InitRedis(cfg, logger)
	grantCache := cache.NewGrantCache(redisClient, cfg.GrantCacheTTL)

	// Event notifier (optional - service works without NATS)
	var notifier events.Notifier = events.NoopNotifier{}
	var natsNotifier *events.NATSNotifier
	if cfg.NATSURL != "" {
		natsNotifier, err = events.NewNATSNotifier(cfg.NATSURL, logger)
		if err != nil {
			logger.Warnf("Failed to initialize event notifier: %v. Events will not be published.", err)
		} else {
			notifier = natsNotifier
			logger.Info("Event notifier initialized")
		}
	} else {
		logger.Info("NATS_URL not configured, event publishing disabled")
	}

	m := metrics.New()

	// Initialize services
	permissionService := services.NewPermissionService(store, grantCache, m, logger)
	auditRecorder := services.NewAuditRecorder(store, permissionService)
	grantService := services.NewGrantService(store, permissionService, auditRecorder, m, logger)
	archiveService := services.NewArchiveService(store, auditRecorder, notifier, m, logger)
	lifecycleService := services.NewLifecycleService(store, permissionService, auditRecorder, archiveService, notifier, m, logger, services.LifecycleConfig{
		SweepBatchSize: cfg.SweepBatchSize,
		SweepRate:      cfg.SweepRate,
		SweepBurst:     cfg.SweepBurst,

		ListCandidateLimit: cfg.ListCandidateLimit,
	})

	// Start expiration job
	expirationJob := jobs.NewExpirationJob(lifecycleService, cfg.SweepInterval, logger)
	jobCtx, jobCancel := context.WithCancel(context.Background())
	go expirationJob.Start(jobCtx)
	logger.Info("Expiration job started")

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SetupCORS(cfg.AllowedOrigins))
	router.Use(m.GinMiddleware())
	router.Use(middleware.ErrorHandler(logger))

	// Health check endpoints (no auth required)
	health := handlers.NewHealthHandler(db)
	router.GET("/health", health.Health)
	router.GET("/ready", health.Ready)
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// The mesh validates the JWT and forwards claims as x-jwt-claim-* headers
	api := router.Group("/api/v1", middleware.ActorMiddleware(cfg.AdminRoles))
	handlers.RegisterRoutes(api, handlers.Handlers{
		Orders:   handlers.NewOrderHandler(lifecycleService, permissionService),
		Grants:   handlers.NewGrantHandler(grantService),
		History:  handlers.NewHistoryHandler(auditRecorder),
		Archives: handlers.NewArchiveHandler(archiveService),
		Admin:    handlers.NewAdminHandler(lifecycleService),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Order access service starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	jobCancel()
	expirationJob.Stop()
	logger.Info("Expiration job stopped")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	if natsNotifier != nil {
		natsNotifier.Close()
	}
	if err := grantCache.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close grant cache")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info("Server shutdown complete")
}
