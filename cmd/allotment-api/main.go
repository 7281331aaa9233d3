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
	"github.com/hashicorp/go-multierror"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-adp-allotment/api/swagger"
	"github.com/noah-isme/sma-adp-allotment/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-adp-allotment/internal/middleware"
	"github.com/noah-isme/sma-adp-allotment/internal/models"
	"github.com/noah-isme/sma-adp-allotment/internal/repository"
	"github.com/noah-isme/sma-adp-allotment/internal/service"
	"github.com/noah-isme/sma-adp-allotment/migrations"
	"github.com/noah-isme/sma-adp-allotment/pkg/cache"
	"github.com/noah-isme/sma-adp-allotment/pkg/config"
	"github.com/noah-isme/sma-adp-allotment/pkg/database"
	"github.com/noah-isme/sma-adp-allotment/pkg/jobs"
	"github.com/noah-isme/sma-adp-allotment/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-adp-allotment/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-adp-allotment/pkg/middleware/requestid"
)

// @title SMA ADP Allotment API
// @version 1.0.0
// @description Conflict-checked allotment of teachers, rooms and class sections
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type stores struct {
	resources service.ResourceRepository
	ledger    service.Ledger
	db        *sqlx.DB
}

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to open stores", zap.Error(err))
	}

	metricsSvc := service.NewMetricsService()

	var (
		redisClient *redis.Client
		cacheRepo   *repository.CacheRepository
		cacheSvc    *service.CacheService
	)
	if cfg.ScheduleCache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis, 5*time.Second)
		if err != nil {
			logr.Warn("schedule cache disabled: redis unavailable", zap.Error(err))
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, "allotment", logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.ScheduleCache.TTL, logr, true)
		}
	}

	queue := jobs.NewQueue("notifications", service.NotificationHandler(logr), jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	queue.Start(ctx)

	dayStart, err := models.ParseClock(cfg.Allotment.DayStart)
	if err != nil {
		logr.Fatal("invalid ALLOTMENT_DAY_START", zap.Error(err))
	}
	dayEnd, err := models.ParseClock(cfg.Allotment.DayEnd)
	if err != nil {
		logr.Fatal("invalid ALLOTMENT_DAY_END", zap.Error(err))
	}

	validate := validator.New()
	registrySvc := service.NewRegistryService(st.resources, validate, logr)

	opts := service.AllotmentOptions{
		MaxCommitRetries: cfg.Allotment.MaxCommitRetries,
		Notifier:         service.NewNotificationService(queue, logr),
		Metrics:          metricsSvc,
	}
	viewCfg := service.ScheduleViewConfig{
		DayStartMinute: dayStart,
		DayEndMinute:   dayEnd,
		CacheTTL:       cfg.ScheduleCache.TTL,
	}
	var viewSvc *service.ScheduleViewService
	if cacheSvc != nil {
		opts.Cache = cacheSvc
		viewSvc = service.NewScheduleViewService(st.ledger, registrySvc, cacheSvc, viewCfg, logr)
	} else {
		viewSvc = service.NewScheduleViewService(st.ledger, registrySvc, nil, viewCfg, logr)
	}
	allotmentSvc := service.NewAllotmentService(st.ledger, registrySvc, opts, validate, logr)
	plannerSvc := service.NewPlannerService(allotmentSvc, registrySvc, validate, logr)
	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
	})

	checks := map[string]handler.ReadinessCheck{}
	if st.db != nil {
		checks["postgres"] = func(ctx context.Context) error { return st.db.PingContext(ctx) }
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics"))
	r.Use(internalmiddleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), authSvc, handler.Handlers{
		Resources:  handler.NewResourceHandler(registrySvc),
		Allotments: handler.NewAllotmentHandler(allotmentSvc),
		Planner:    handler.NewPlannerHandler(plannerSvc),
		Schedules:  handler.NewScheduleHandler(viewSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Allotment.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var result *multierror.Error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, fmt.Errorf("http server: %w", err))
	}
	queue.Stop()
	if cacheRepo != nil {
		if err := cacheRepo.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("redis: %w", err))
		}
	}
	if st.db != nil {
		if err := st.db.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("postgres: %w", err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		logr.Error("shutdown incomplete", zap.Error(err))
	}
}

func openStores(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*stores, error) {
	if cfg.Allotment.Store != config.StorePostgres {
		logr.Info("using in-memory allotment store")
		return &stores{
			resources: repository.NewMemoryResourceRepository(),
			ledger:    repository.NewMemoryLedgerRepository(),
		}, nil
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		version, err := database.Migrate(ctx, db, migrations.FS)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logr.Info("migrations applied", zap.Int64("version", version))
	}
	return &stores{
		resources: repository.NewResourceRepository(db),
		ledger:    repository.NewBookingRepository(db),
		db:        db,
	}, nil
}
