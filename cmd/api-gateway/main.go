package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/simkarya-api/api/swagger"
	"github.com/noah-isme/simkarya-api/internal/handler"
	"github.com/noah-isme/simkarya-api/internal/middleware"
	"github.com/noah-isme/simkarya-api/internal/models"
	"github.com/noah-isme/simkarya-api/internal/repository"
	"github.com/noah-isme/simkarya-api/internal/service"
	"github.com/noah-isme/simkarya-api/internal/window"
	"github.com/noah-isme/simkarya-api/pkg/cache"
	"github.com/noah-isme/simkarya-api/pkg/config"
	"github.com/noah-isme/simkarya-api/pkg/database"
	"github.com/noah-isme/simkarya-api/pkg/jobs"
	"github.com/noah-isme/simkarya-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/simkarya-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/simkarya-api/pkg/middleware/requestid"
	"github.com/noah-isme/simkarya-api/pkg/storage"
)

// @title SIMKARYA API
// @version 1.0.0
// @description Research paper repository: submissions, reviews, publication catalog.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	publicationRepo := repository.NewPublicationRepository(db)
	exportJobRepo := repository.NewExportJobRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "simkarya-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled)
	}

	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	uploadSigner := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	submissionSvc := service.NewSubmissionService(submissionRepo, uploadStore, uploadSigner, userRepo, validate, logr, service.SubmissionServiceConfig{
		MaxFileSize:  cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Uploads.AllowedMIMEs,
		Windows: window.Config{
			DeleteWindow: cfg.Windows.DeleteWindow,
			ReviseWindow: cfg.Windows.ReviseWindow,
		},
	})
	reviewSvc := service.NewReviewService(reviewRepo, submissionRepo, userRepo, validate, logr)
	publicationSvc := service.NewPublicationService(publicationRepo, submissionRepo, cacheSvc, userRepo, validate, logr)

	var exportSvc *service.ExportService
	var exportQueue *jobs.Queue
	if cfg.Exports.Enabled {
		exportStore, storeErr := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if storeErr != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", storeErr)
		}
		exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exporter := service.NewCatalogExporter(publicationSvc, exportStore, exportSigner, service.CatalogExporterConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, logr, nil, nil)
		worker := service.NewExportWorker(exportJobRepo, exporter, cfg.Exports.WorkerRetries, logr)
		exportQueue = jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportQueue.Start(ctx)
		exportSvc = service.NewExportService(exportJobRepo, exportQueue, exporter, logr, service.ExportServiceConfig{
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
			MaxRetries:      cfg.Exports.WorkerRetries,
		})
		exportSvc.RecoverPendingJobs(ctx)
		exportSvc.StartCleanup(ctx)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	submissionHandler := handler.NewSubmissionHandler(submissionSvc)
	reviewHandler := handler.NewReviewHandler(reviewSvc)
	publicationHandler := handler.NewPublicationHandler(publicationSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)
	api.POST("/auth/forgot-password", authHandler.ForgotPassword)
	api.POST("/auth/reset-password", authHandler.ResetPassword)

	api.GET("/publications", publicationHandler.List)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.POST("/auth/logout", authHandler.Logout)
	authed.GET("/auth/me", authHandler.Me)
	authed.POST("/auth/change-password", authHandler.ChangePassword)

	submissions := authed.Group("/submissions")
	{
		submissions.POST("", middleware.RequireRoles(models.RoleStudent), submissionHandler.Create)
		submissions.GET("", submissionHandler.List)
		submissions.GET("/:id", submissionHandler.Get)
		submissions.PUT("/:id", middleware.RequireRoles(models.RoleStudent), submissionHandler.Revise)
		submissions.DELETE("/:id", middleware.RequireRoles(models.RoleStudent), submissionHandler.Delete)
		submissions.GET("/:id/window", submissionHandler.Window)
		submissions.GET("/:id/window/stream", submissionHandler.StreamWindow)
		submissions.GET("/:id/download", submissionHandler.Download)
		submissions.POST("/:id/reviews", middleware.RequireRoles(models.RoleFaculty, models.RoleAdmin), reviewHandler.Create)
		submissions.GET("/:id/reviews", reviewHandler.List)
	}

	authed.POST("/publications", middleware.RequireRoles(models.RoleStaff, models.RoleAdmin), publicationHandler.Publish)
	authed.DELETE("/publications/:id", middleware.RequireRoles(models.RoleStaff, models.RoleAdmin), publicationHandler.Unpublish)

	if exportSvc != nil {
		exportHandler := handler.NewExportHandler(exportSvc)
		authed.POST("/exports",
			middleware.RequireRoles(models.RoleStaff, models.RoleAdmin),
			middleware.Audit(userRepo, models.AuditActionExportRequest, "export_job"),
			exportHandler.Create)
		authed.GET("/exports/:id", middleware.RequireRoles(models.RoleStaff, models.RoleAdmin), exportHandler.Status)
		// Download authenticates via the signed token itself.
		api.GET("/exports/download", exportHandler.Download)
	}

	users := authed.Group("/users")
	{
		users.GET("", middleware.RBAC("ADMIN"), userHandler.List)
		users.POST("", middleware.RBAC("ADMIN"), userHandler.Create)
		users.GET("/:id", middleware.RBAC("ADMIN", "SELF"), userHandler.Get)
		users.PUT("/:id", middleware.RBAC("ADMIN", "SELF"), userHandler.Update)
		users.DELETE("/:id", middleware.RBAC("ADMIN"), userHandler.Delete)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
	if exportQueue != nil {
		exportQueue.Stop()
	}
}
