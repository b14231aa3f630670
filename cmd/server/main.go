package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ikkim/productreview-backend/config"
	"github.com/ikkim/productreview-backend/internal/app/controller"
	"github.com/ikkim/productreview-backend/internal/app/repository"
	"github.com/ikkim/productreview-backend/internal/app/service"
	"github.com/ikkim/productreview-backend/internal/db"
	"github.com/ikkim/productreview-backend/internal/middleware"
	"github.com/ikkim/productreview-backend/internal/rating"
	"github.com/ikkim/productreview-backend/internal/router"
	"github.com/ikkim/productreview-backend/internal/scheduler"
	"github.com/ikkim/productreview-backend/internal/storage"
	"github.com/ikkim/productreview-backend/internal/websocket"
	"github.com/ikkim/productreview-backend/pkg/logger"
	"github.com/ikkim/productreview-backend/pkg/redis"
	"github.com/ikkim/productreview-backend/pkg/validator"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := "info"
	logFormat := "json"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
		logFormat = "console"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      logFormat,
		EnableColor: true,
	})

	logger.Info("Starting Product Review Backend Server", map[string]interface{}{
		"environment":  cfg.Server.Environment,
		"port":         cfg.Server.Port,
		"log_level":    logLevel,
		"total_policy": cfg.Review.TotalPolicy,
	})

	policy, err := rating.ParseTotalPolicy(cfg.Review.TotalPolicy)
	if err != nil {
		logger.Fatal("Invalid review total policy", err)
	}

	if err := validator.Register(); err != nil {
		logger.Fatal("Failed to register validators", err)
	}

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Statistics cache (optional)
	var statsOpts []service.StatsOption
	if cfg.Redis.Enabled() {
		client, err := redis.Init(&cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, statistics cache disabled", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			statsOpts = append(statsOpts, service.WithStatsCache(redis.NewCache(client, "stats", cfg.Redis.StatsTTL)))
			defer func() {
				if err := redis.Close(); err != nil {
					logger.Error("Failed to close Redis connection", err)
				}
			}()
		}
	}

	// Photo storage
	photos, err := newPhotoStorage(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize photo storage", err)
	}

	// Live review feed
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := websocket.NewHub()
	go hub.Run(hubCtx)

	// Initialize repositories
	conn := db.GetDB()
	userRepo := repository.NewUserRepository(conn)
	productRepo := repository.NewProductRepository(conn)
	reviewRepo := repository.NewReviewRepository(conn)
	tagRepo := repository.NewReviewTagRepository(conn)

	// Initialize services
	authService := service.NewAuthService(
		userRepo,
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	aggregateService := service.NewAggregateService(conn, productRepo, reviewRepo, tagRepo, policy)
	statsService := service.NewStatsService(productRepo, reviewRepo, tagRepo, cfg.Review.TopTagLimit, statsOpts...)
	productService := service.NewProductService(
		conn, productRepo, reviewRepo, tagRepo, statsService,
		cfg.Review.RecentReviewLimit, cfg.Review.TopTagLimit,
	)
	reviewService := service.NewReviewService(
		conn, reviewRepo, productRepo, aggregateService, statsService,
		service.WithPhotoStorage(photos, cfg.Upload.MaxFiles, cfg.Upload.MaxFileSize),
		service.WithEventPublisher(hub),
	)

	// Scheduled jobs
	if cfg.Scheduler.Enabled {
		jobs := scheduler.NewReviewScheduler(aggregateService, reviewRepo, photos, cfg.Scheduler.RecomputeSpec, cfg.Scheduler.CleanupSpec)
		if err := jobs.Start(); err != nil {
			logger.Fatal("Failed to start review scheduler", err)
		}
		defer jobs.Stop()
	}

	// Setup router
	r := router.NewRouter(
		controller.NewAuthController(authService),
		controller.NewProductController(productService),
		controller.NewReviewController(reviewService),
		controller.NewStatsController(statsService, aggregateService),
		controller.NewFeedController(hub, productService, cfg.CORS.AllowedOrigins),
		middleware.NewAuthMiddleware(cfg.JWT.Secret),
		cfg,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", err)
	}
	logger.Info("Server stopped successfully")
}

func newPhotoStorage(cfg *config.Config) (storage.PhotoStorage, error) {
	if cfg.Upload.Driver == "s3" {
		logger.Info("Using S3 photo storage", map[string]interface{}{
			"bucket": cfg.S3.Bucket,
			"region": cfg.S3.Region,
		})
		return storage.NewS3Storage(
			context.Background(),
			cfg.S3.Region,
			cfg.S3.Bucket,
			cfg.S3.AccessKeyID,
			cfg.S3.SecretAccessKey,
			cfg.S3.BaseURL,
			cfg.S3.Prefix,
		), nil
	}

	logger.Info("Using local photo storage", map[string]interface{}{
		"dir": cfg.Upload.Dir,
	})
	return storage.NewLocalStorage(cfg.Upload.Dir, cfg.Upload.PublicPrefix)
}
