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

	_ "github.com/ruta-norte/fleet-compliance-api/api/swagger"
	"github.com/ruta-norte/fleet-compliance-api/internal/handler"
	"github.com/ruta-norte/fleet-compliance-api/internal/repository"
	"github.com/ruta-norte/fleet-compliance-api/internal/service"
	"github.com/ruta-norte/fleet-compliance-api/pkg/cache"
	"github.com/ruta-norte/fleet-compliance-api/pkg/config"
	"github.com/ruta-norte/fleet-compliance-api/pkg/database"
	"github.com/ruta-norte/fleet-compliance-api/pkg/logger"
	corsmiddleware "github.com/ruta-norte/fleet-compliance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/ruta-norte/fleet-compliance-api/pkg/middleware/requestid"
	"github.com/ruta-norte/fleet-compliance-api/pkg/storage"
)

// @title Fleet Compliance API
// @version 1.0.0
// @description Truck inspection lifecycle: wizard submissions, review workflow, reconciled history
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	imageSigner := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	inspectionRepo := repository.NewInspectionRepository(db)
	orderRepo := repository.NewDirectOrderRepository(db)
	requestRepo := repository.NewManualRequestRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "fleet-compliance-api",
	})
	inspectionSvc := service.NewInspectionService(inspectionRepo, userRepo, requestRepo, settingsRepo,
		cacheRepo, uploadStore, imageSigner, userRepo, metricsSvc, validate, logr,
		service.InspectionConfig{
			MaxImageBytes:  cfg.Uploads.MaxFileSizeBytes,
			AllowedMIMEs:   cfg.Uploads.AllowedMIMEs,
			CheckNeededTTL: cfg.Polling.PendingCacheTTL,
		})
	orderSvc := service.NewDirectOrderService(orderRepo, userRepo, cacheRepo, userRepo, metricsSvc, validate, logr)
	dispatchSvc := service.NewDispatchService(requestRepo, userRepo, cacheRepo, userRepo, metricsSvc, logr)
	settingsSvc := service.NewSettingsService(settingsRepo, userRepo, cacheRepo, userRepo, logr)
	historySvc := service.NewHistoryService(inspectionRepo, orderRepo, logr)
	exportSvc := service.NewExportService(historySvc, exportStore, exportSigner, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
		Workers:   cfg.Exports.WorkerConcurrency,
		Retries:   cfg.Exports.WorkerRetries,
	}, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Exports.Enabled {
		exportSvc.Start(ctx)
		defer exportSvc.Stop()
	}

	if cfg.Exports.Enabled && cfg.Exports.CleanupInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.Exports.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if removed, err := exportSvc.Cleanup(); err != nil {
						logr.Sugar().Warnw("export cleanup failed", "error", err)
					} else if len(removed) > 0 {
						logr.Sugar().Infow("export cleanup", "removed", len(removed))
					}
				}
			}
		}()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	handler.RegisterRoutes(r, handler.RouterDeps{
		Auth:        handler.NewAuthHandler(authSvc),
		Inspections: handler.NewInspectionHandler(inspectionSvc),
		Orders:      handler.NewDirectOrderHandler(orderSvc),
		History:     handler.NewHistoryHandler(historySvc, exportSvc),
		Dispatch:    handler.NewDispatchHandler(dispatchSvc),
		Settings:    handler.NewSettingsHandler(settingsSvc),
		AuthService: authSvc,
		Metrics:     metricsSvc,
		Users:       userRepo,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logr.Sugar().Warnw("server shutdown", "error", err)
		}
	}()

	logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
