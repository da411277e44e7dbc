package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/vigilia-api/api/swagger"
	"github.com/noah-isme/vigilia-api/internal/handler"
	"github.com/noah-isme/vigilia-api/internal/middleware"
	"github.com/noah-isme/vigilia-api/internal/models"
	"github.com/noah-isme/vigilia-api/internal/repository"
	"github.com/noah-isme/vigilia-api/internal/service"
	"github.com/noah-isme/vigilia-api/pkg/cache"
	"github.com/noah-isme/vigilia-api/pkg/config"
	"github.com/noah-isme/vigilia-api/pkg/database"
	"github.com/noah-isme/vigilia-api/pkg/export"
	"github.com/noah-isme/vigilia-api/pkg/jobs"
	"github.com/noah-isme/vigilia-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/vigilia-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/vigilia-api/pkg/middleware/requestid"
	"github.com/noah-isme/vigilia-api/pkg/storage"
)

// @title Adoración Nocturna API
// @version 1.0.0
// @description Membership, vigil and acta management for Adoración Nocturna sections
// @BasePath /api/v1
// @schemes http https

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(context.Background(), cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		applied, err := database.Migrate(context.Background(), db)
		if err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
		if len(applied) > 0 {
			logr.Info("migrations applied", zap.Strings("files", applied))
		}
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.Connect(context.Background(), cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
		}
	}

	movements := jobs.NewQueue("member-movements", nil, jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})

	r, err := buildRouter(cfg, logr, db, redisClient, movements)
	if err != nil {
		logr.Fatal("failed to build router", zap.Error(err))
	}
	movements.Start(context.Background())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	movements.Stop()
	logr.Info("server stopped")
}

func buildRouter(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client, movements *jobs.Queue) (*gin.Engine, error) {
	metrics := service.NewMetricsService()
	validate := service.NewValidator()

	checks := map[string]handler.Pinger{"database": db}
	var cacheRepo service.CacheRepository
	if redisClient != nil {
		redisRepo := repository.NewCacheRepository(redisClient, cfg.Redis.KeyPrefix, logr)
		cacheRepo = redisRepo
		checks["redis"] = redisRepo
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.SectionTTL, logr, cfg.Cache.Enabled && cacheRepo != nil)

	auditRepo := repository.NewAuditRepository(db)
	userRepo := repository.NewUserRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	vigilRepo := repository.NewVigilRepository(db)
	minuteRepo := repository.NewMinuteRepository(db)

	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, metrics, service.AuthConfig{
		Secret:     cfg.Session.Secret,
		SessionTTL: cfg.Session.TTL,
		Issuer:     "vigilia-api",
	})
	sectionSvc := service.NewSectionService(sectionRepo, cacheSvc, validate, logr, cfg.Cache.SectionTTL)
	memberSvc := service.NewMemberService(memberRepo, auditRepo, validate, logr)
	vigilSvc := service.NewVigilService(vigilRepo, memberSvc, auditRepo, validate, logr, metrics, service.VigilConfig{
		GuardSingleAssignment: cfg.Vigils.GuardSingleAssignment,
	})
	minuteSvc := service.NewMinuteService(minuteRepo, memberSvc, cacheSvc, auditRepo, validate, logr, metrics, cfg.Cache.MinuteTTL)
	movements.SetHandler(minuteSvc.HandleMovement)
	minuteSvc.UseMovementQueue(movements)

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("init export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(minuteSvc, vigilSvc, memberSvc, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		RetainFor: cfg.Exports.RetainFor,
	}, logr, metrics, export.NewCSVExporter(true), export.NewPDFExporter())

	authHandler := handler.NewAuthHandler(authSvc, handler.CookieConfig{
		Name:   cfg.Session.CookieName,
		MaxAge: cfg.Session.TTL,
		Secure: cfg.Secure(),
	})
	sectionHandler := handler.NewSectionHandler(sectionSvc)
	memberHandler := handler.NewMemberHandler(memberSvc)
	vigilHandler := handler.NewVigilHandler(vigilSvc)
	minuteHandler := handler.NewMinuteHandler(minuteSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/health", "/ready", "/metrics"))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/session", authHandler.Session)

	// Signed links authorize themselves.
	api.GET("/exports/:token", exportHandler.Download)

	protected := api.Group("")
	protected.Use(middleware.Session(authSvc, cfg.Session.CookieName))

	sections := protected.Group("/sections")
	sections.Use(middleware.UUIDParams("id"))
	sections.GET("", sectionHandler.List)
	sections.POST("", sectionHandler.Create)
	sections.GET("/:id", sectionHandler.Get)
	sections.PUT("/:id", sectionHandler.Update)

	members := protected.Group("/members")
	members.Use(middleware.UUIDParams("id"))
	members.GET("", memberHandler.List)
	members.POST("", memberHandler.Create)
	members.GET("/:id", memberHandler.Get)
	members.PUT("/:id", memberHandler.Update)
	members.POST("/:id/status", memberHandler.ChangeStatus)

	vigils := protected.Group("/vigils")
	vigils.Use(middleware.UUIDParams("id", "memberId", "blockId"))
	vigils.GET("", vigilHandler.List)
	vigils.POST("", vigilHandler.Create)
	vigils.GET("/:id", vigilHandler.Get)
	vigils.GET("/:id/summary", vigilHandler.Summary)
	vigils.POST("/:id/state", vigilHandler.Transition)
	vigils.POST("/:id/attendance/seed", vigilHandler.SeedAttendance)
	vigils.POST("/:id/attendance", vigilHandler.AddAttendee)
	vigils.GET("/:id/attendance/export", middleware.Audit(auditRepo, logr, models.AuditActionExport, models.ResourceVigil, "id"), exportHandler.AttendanceCSV)
	vigils.PUT("/:id/attendance/:memberId", vigilHandler.SetAttendance)
	vigils.POST("/:id/attendance/:memberId/toggle", vigilHandler.ToggleAttendance)
	vigils.PUT("/:id/attendance/:memberId/finance", vigilHandler.SetFinance)
	vigils.POST("/:id/guards/blocks", vigilHandler.AddGuardBlock)
	vigils.POST("/:id/guards/blocks/:blockId/split", vigilHandler.SplitGuardBlock)
	vigils.POST("/:id/guards/assignments", vigilHandler.AssignGuard)
	vigils.DELETE("/:id/guards/assignments", vigilHandler.UnassignGuard)
	vigils.GET("/:id/guards/available", vigilHandler.AvailableMembers)
	vigils.POST("/:id/roles", vigilHandler.AssignSpecialRole)
	vigils.DELETE("/:id/roles", vigilHandler.UnassignSpecialRole)
	vigils.POST("/:id/minute", minuteHandler.Generate)
	vigils.GET("/:id/minute", minuteHandler.GetByVigil)

	minutes := protected.Group("/minutes")
	minutes.Use(middleware.UUIDParams("id"))
	minutes.GET("", minuteHandler.List)
	minutes.GET("/:id", minuteHandler.Get)
	minutes.PUT("/:id/signatures", minuteHandler.Sign)
	minutes.POST("/:id/export", middleware.Audit(auditRepo, logr, models.AuditActionExport, models.ResourceMinute, "id"), exportHandler.MinutePDF)

	return r, nil
}
