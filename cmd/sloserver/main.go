package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"slograph/internal/constraint"
	"slograph/internal/cycles"
	"slograph/internal/graphstore"
	"slograph/internal/impact"
	"slograph/internal/lifecycle"
	"slograph/internal/telemetryport"
	transporthttp "slograph/internal/transport/http"
	"slograph/migrations"
	"slograph/pkg/apperror"
	"slograph/pkg/audit"
	"slograph/pkg/cache"
	"slograph/pkg/config"
	"slograph/pkg/database"
	"slograph/pkg/logger"
	"slograph/pkg/metrics"
	"slograph/pkg/middleware"
	"slograph/pkg/openapi"
	"slograph/pkg/ratelimit"
	"slograph/pkg/swagger"
	"slograph/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("error")
		logger.Fatal("failed to load config", "error", err)
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	logger.Log.Info("starting slograph",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	metrics.InitMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracerProvider, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		logger.Fatal("failed to initialize tracing", "error", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Log.Warn("tracer shutdown error", "error", err)
		}
	}()

	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(ctx, db.Pool(), &cfg.Database, migrations.PostgresMigrations, "postgres"); err != nil {
			logger.Fatal("failed to run migrations", "error", err)
		}
	}

	store := graphstore.NewPostgres(db)
	alerts := cycles.NewPostgres(db)
	lifecycleStore := lifecycle.NewPostgres(db)

	telemetrySource := buildTelemetryPort(cfg.Telemetry)

	var analysisCache *cache.AnalysisCache
	if cfg.Cache.Enabled {
		backend, err := cache.New(&cache.Options{
			Backend:       cfg.Cache.Driver,
			DefaultTTL:    cfg.Cache.DefaultTTL,
			MaxEntries:    cfg.Cache.MaxEntries,
			RedisAddr:     cfg.Cache.Address(),
			RedisPassword: cfg.Cache.Password,
			RedisDB:       cfg.Cache.DB,
		})
		if err != nil {
			logger.Fatal("failed to initialize cache", "error", err)
		}
		analysisCache = cache.NewAnalysisCache(backend, cfg.Cache.DefaultTTL)
	}

	lifecycleOrch := &lifecycle.Orchestrator{
		Store: lifecycleStore,
		// TierDefaults stays nil: config.SLOTierDefaults carries no latency
		// fields, so config.LifecycleConfig.Tiers cannot populate
		// lifecycle.TierTargets without widening one of the two structs.
		// The package's own hardcoded tier table is used instead.
		TierDefaults: nil,
	}

	activeSLOs := &activeSLOAdapter{lifecycle: lifecycleOrch}

	constraintOrch := &constraint.Orchestrator{
		Store:         store,
		Telemetry:     telemetrySource,
		ActiveSLOs:    activeSLOs,
		CycleAlerts:   alerts,
		MaxConcurrent: cfg.Analysis.MaxConcurrentLookups,
		Cache:         analysisCache,
	}

	impactOrch := &impact.Orchestrator{
		Store:      store,
		Telemetry:  telemetrySource,
		ActiveSLOs: activeSLOs,
	}

	handler := &transporthttp.Handler{
		Store:      store,
		Alerts:     alerts,
		Constraint: constraintOrch,
		Impact:     impactOrch,
		Lifecycle:  lifecycleOrch,
	}

	router := transporthttp.NewRouter(handler)

	mux := http.NewServeMux()
	mux.Handle("/", router)
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	swaggerCfg := swagger.DefaultConfig()
	swaggerHandler := swagger.NewHandler(swaggerCfg, openapi.MustGetSpec())
	mux.Handle(swaggerCfg.BasePath, swaggerHandler)
	mux.Handle(swaggerCfg.BasePath+"/", swaggerHandler)

	var httpHandler http.Handler = mux

	if cfg.RateLimit.Enabled {
		limiter, err := ratelimit.New(&ratelimit.Config{
			Requests:        cfg.RateLimit.Requests,
			Window:          cfg.RateLimit.Window,
			Strategy:        cfg.RateLimit.Strategy,
			Backend:         cfg.RateLimit.Backend,
			BurstSize:       cfg.RateLimit.BurstSize,
			CleanupInterval: cfg.RateLimit.CleanupInterval,
			RedisAddr:       cfg.RateLimit.RedisAddr,
		})
		if err != nil {
			logger.Fatal("failed to initialize rate limiter", "error", err)
		}
		defer limiter.Close()
		httpHandler = middleware.RateLimit(limiter, middleware.DefaultKeyExtractor)(httpHandler)
	}

	auditCfg := &audit.Config{
		Enabled:     cfg.Audit.Enabled,
		Backend:     cfg.Audit.Backend,
		BufferSize:  cfg.Audit.BufferSize,
		FlushPeriod: cfg.Audit.FlushPeriod,
	}
	var auditLogger audit.Logger
	switch auditCfg.Backend {
	case "postgres", "database":
		auditLogger = audit.NewPostgresLogger(db, auditCfg)
	default:
		auditLogger, err = audit.New(auditCfg)
		if err != nil {
			logger.Fatal("failed to initialize audit logger", "error", err)
		}
	}
	httpHandler = middleware.Audit(&middleware.AuditConfig{
		ServiceName:   cfg.App.Name,
		ExcludeRoutes: map[string]bool{"/healthz": true, cfg.Metrics.Path: true},
		Logger:        auditLogger,
	})(httpHandler)

	if cfg.HTTP.CORS.Enabled {
		httpHandler = middleware.CORS(cfg.HTTP.CORS)(httpHandler)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      h2c.NewHandler(httpHandler, &http2.Server{}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Log.Info("listening", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("server shutdown error", "error", err)
	}

	logger.Log.Info("server stopped")
}

// buildTelemetryPort returns a fake telemetryport.Port until a real
// HTTP-backed client exists; it always reports "no data" so callers fall
// back to their configured defaults.
func buildTelemetryPort(cfg config.TelemetryConfig) telemetryport.Port {
	_ = cfg
	return telemetryport.NewFake()
}

// activeSLOAdapter lets the lifecycle orchestrator answer "what's this
// service's active target" for constraint and impact analysis, without
// either package depending on the lifecycle package directly.
type activeSLOAdapter struct {
	lifecycle *lifecycle.Orchestrator
}

func (a *activeSLOAdapter) ActiveTargetPct(ctx context.Context, serviceID string) (*float64, error) {
	active, err := a.lifecycle.GetActiveSLO(ctx, serviceID)
	if err != nil {
		if apperror.Code(err) == apperror.CodeSLONotFound {
			return nil, nil
		}
		return nil, err
	}
	if active == nil {
		return nil, nil
	}
	return active.AvailabilityTarget, nil
}
