package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-substitute-api/api/swagger"
	"github.com/noah-isme/sma-substitute-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-substitute-api/internal/middleware"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/internal/repository"
	"github.com/noah-isme/sma-substitute-api/internal/service"
	"github.com/noah-isme/sma-substitute-api/pkg/cache"
	"github.com/noah-isme/sma-substitute-api/pkg/config"
	"github.com/noah-isme/sma-substitute-api/pkg/database"
	"github.com/noah-isme/sma-substitute-api/pkg/jobs"
	"github.com/noah-isme/sma-substitute-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-substitute-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-substitute-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-substitute-api/pkg/notify"
	"github.com/noah-isme/sma-substitute-api/pkg/storage"
	"github.com/noah-isme/sma-substitute-api/pkg/timetable"
	"github.com/noah-isme/sma-substitute-api/pkg/validation"
)

// @title SMA Substitute API
// @version 1.0.0
// @description Assigns substitute teachers to the periods of absent teachers.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type timetableBackend interface {
	LoadTeachers(ctx context.Context) ([]models.Teacher, error)
	SaveTeachers(ctx context.Context, teachers []models.Teacher) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "api-gateway")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("api gateway stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	exclusivity, err := service.ParseExclusivityScope(cfg.Substitution.Exclusivity)
	if err != nil {
		return err
	}
	validate, err := validation.New()
	if err != nil {
		return fmt.Errorf("init validator: %w", err)
	}
	metrics := service.NewMetricsService()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	timetableRepo := repository.NewTimetableRepository(db)
	substitutionRepo := repository.NewSubstitutionRepository(db)

	writes := &sync.Mutex{}
	deps := service.SubstitutionDeps{
		Repo:    substitutionRepo,
		Tx:      db,
		Metrics: metrics,
		Writes:  writes,
	}
	opts := timetable.Options{DefaultDay: cfg.Substitution.DefaultDay, FreeLabels: cfg.Substitution.FreeLabels}
	var backend timetableBackend = timetableRepo
	if cfg.Substitution.Source == config.SourceFile {
		fileRepo, err := newFileSource(cfg.Substitution, opts)
		if err != nil {
			return err
		}
		backend = fileRepo
		deps.Snapshots = fileRepo
		logr.Info("timetable source: file", zap.String("path", fileRepo.Path()), zap.String("format", string(fileRepo.Format())))
	} else {
		deps.Periods = timetableRepo
	}

	readiness := map[string]handler.ReadinessCheck{
		"postgres": func(ctx context.Context) error { return db.PingContext(ctx) },
	}

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		cacheRepo = repository.NewCacheRepository(client)
		readiness["redis"] = redisCheck(client)
	}
	deps.Cache = service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	if cfg.Notifications.Enabled {
		queue, closeBroker, err := startNotifications(ctx, cfg.Notifications, metrics, logr)
		if err != nil {
			return err
		}
		defer closeBroker()
		defer queue.Stop()
		deps.Queue = queue
	}

	substitutions, err := service.NewSubstitutionService(backend, deps, validate, logr, service.SubstitutionServiceConfig{
		Engine:     service.EngineConfig{Exclusivity: exclusivity, KnownPeriods: cfg.Substitution.KnownPeriods},
		FreeLabels: cfg.Substitution.FreeLabels,
		CacheTTL:   cfg.Cache.TTL,
	})
	if err != nil {
		return err
	}

	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return err
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exports := service.NewExportService(substitutions, files, signer, service.ExportConfig{APIPrefix: cfg.APIPrefix}, logr)
	go cleanupExports(ctx, exports, logr)

	timetables := service.NewTimetableService(backend, opts, writes, logr)
	auth := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(internalmiddleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics, readiness)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	substitutionHandler := handler.NewSubstitutionHandler(substitutions, exports)
	timetableHandler := handler.NewTimetableHandler(timetables)

	api := r.Group(cfg.APIPrefix)
	api.GET("/exports/:token", substitutionHandler.Download)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(auth))
	secured.GET("/substitutions/:id", substitutionHandler.Get)
	secured.GET("/substitutions/:id/export", substitutionHandler.Export)

	admin := secured.Group("")
	admin.Use(internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	admin.POST("/substitutions", substitutionHandler.Run)
	admin.POST("/substitutions/:id/exports", substitutionHandler.CreateExport)
	admin.GET("/timetable", timetableHandler.Export)
	admin.PUT("/timetable", timetableHandler.Import)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logr.Info("server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func newFileSource(cfg config.SubstitutionConfig, opts timetable.Options) (*repository.TimetableFileRepository, error) {
	var format timetable.Format
	if cfg.TimetableFormat != "" {
		parsed, err := timetable.ParseFormat(cfg.TimetableFormat)
		if err != nil {
			return nil, err
		}
		format = parsed
	}
	return repository.NewTimetableFileRepository(cfg.TimetablePath, format, opts)
}

func redisCheck(client *redis.Client) handler.ReadinessCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

func startNotifications(ctx context.Context, cfg config.NotificationsConfig, metrics *service.MetricsService, logr *zap.Logger) (*jobs.Queue, func(), error) {
	conn, ch, err := notify.Dial(cfg.AMQPURL, cfg.Queue)
	if err != nil {
		return nil, nil, err
	}
	worker := service.NewNotificationWorker(notify.NewPublisher(ch, cfg.Queue, cfg.PublishTimeout), metrics, logr)
	queue := jobs.NewQueue("substitution-notifications", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		DeadLetter: worker.DeadLetter,
		Logger:     logr,
	})
	queue.Start(ctx)
	closeBroker := func() {
		_ = ch.Close()
		_ = conn.Close()
	}
	return queue, closeBroker, nil
}

func cleanupExports(ctx context.Context, exports *service.ExportService, logr *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := exports.Cleanup(0)
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("expired exports removed", zap.Int("count", len(removed)))
			}
		}
	}
}
