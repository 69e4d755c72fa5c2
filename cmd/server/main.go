package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	printapp "github.com/crm/docrender/internal/application/printing"
	"github.com/crm/docrender/internal/infrastructure/auth"
	"github.com/crm/docrender/internal/infrastructure/cache"
	"github.com/crm/docrender/internal/infrastructure/config"
	"github.com/crm/docrender/internal/infrastructure/crmapi"
	"github.com/crm/docrender/internal/infrastructure/logger"
	"github.com/crm/docrender/internal/infrastructure/migration"
	"github.com/crm/docrender/internal/infrastructure/persistence"
	"github.com/crm/docrender/internal/infrastructure/printing"
	"github.com/crm/docrender/internal/infrastructure/scheduler"
	"github.com/crm/docrender/internal/infrastructure/storage"
	"github.com/crm/docrender/internal/infrastructure/telemetry"
	"github.com/crm/docrender/internal/interfaces/http/handler"
	"github.com/crm/docrender/internal/interfaces/http/middleware"
	"github.com/crm/docrender/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Document Renderer API
//	@version		1.0
//	@description	Renders CRM quotations and invoices to PDF and keeps the print job history.

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token issued by the CRM. Format: "Bearer {token}"

func main() {
	// A missing .env is fine; the environment and config.toml still apply.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	// Telemetry providers are built with the bootstrap logger; the log
	// provider then feeds the real logger through an extra core.
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize log provider", zap.Error(err))
	}

	log, err := logger.New(logCfg, logProvider.Core(logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	logProvider.SetLogger(log)
	defer logger.Sync(log)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Telemetry.Profiling.Enabled,
		ServerAddress:     cfg.Telemetry.Profiling.ServerAddress,
		ApplicationName:   cfg.Telemetry.Profiling.ApplicationName,
		BasicAuthUser:     cfg.Telemetry.Profiling.BasicAuthUser,
		BasicAuthPassword: cfg.Telemetry.Profiling.BasicAuthPassword,
		ProfileTypes:      cfg.Telemetry.Profiling.ProfileTypes,
	}, log.Named("profiler"))
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		_ = profiler.Stop()
	}()
	// Span profiles must be on before otelgin and otelgorm pick up the provider.
	if profiler.IsEnabled() && cfg.Telemetry.Profiling.SpanProfiles {
		tracerProvider.EnableSpanProfiles()
	}

	log.Info("Starting document renderer",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
		zap.String("port", cfg.App.Port),
	)

	// Database
	db, err := persistence.NewDatabase(&cfg.Database, log.Named("gorm"))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := migrateSchema(db, cfg, log); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	if cfg.Database.Driver == "sqlite" {
		dbTracing.DBSystem = "sqlite"
	}
	if err := telemetry.NewDBTracingPlugin(dbTracing, log).Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	// Collaborators
	pdfStorage, err := storage.New(ctx, cfg.Storage, log.Named("storage"))
	if err != nil {
		log.Fatal("Failed to initialize PDF storage", zap.Error(err))
	}
	if s3Storage, ok := pdfStorage.(*storage.S3Storage); ok {
		if err := s3Storage.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to prepare storage bucket", zap.Error(err))
		}
	}

	crmClient, err := crmapi.NewClient(cfg.CRM, crmapi.WithLogger(log.Named("crm")))
	if err != nil {
		log.Fatal("Failed to initialize CRM client", zap.Error(err))
	}

	stack, err := printing.NewStack(cfg.Renderer, log.Named("renderer"))
	if err != nil {
		log.Fatal("Failed to initialize renderer", zap.Error(err))
	}
	defer func() {
		if err := stack.Close(); err != nil {
			log.Error("Error closing headless browser", zap.Error(err))
		}
	}()

	renderMetrics, err := telemetry.NewRenderMetrics(meterProvider.Meter("docrender"))
	if err != nil {
		log.Fatal("Failed to create render metrics", zap.Error(err))
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	serviceOpts := []printapp.Option{
		printapp.WithLogger(log.Named("print")),
		printapp.WithRenderMetrics(renderMetrics),
		printapp.WithRetention(cfg.Storage.Retention),
		printapp.WithDownloadPath(r.BasePath() + "/print/jobs"),
	}
	if cfg.Idempotency.Enabled {
		store, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
			cache.WithLogger(log.Named("idempotency")),
			cache.WithInMemoryFallback(!cfg.IsProduction()),
		).CreateStore(ctx)
		if err != nil {
			log.Fatal("Failed to initialize idempotency store", zap.Error(err))
		}
		defer func() { _ = store.Close() }()
		serviceOpts = append(serviceOpts, printapp.WithIdempotency(store, cfg.Idempotency.TTL))
	}

	printService := printapp.NewPrintService(
		persistence.NewGormPrintJobRepository(db.DB),
		crmClient,
		stack.Renderer,
		pdfStorage,
		serviceOpts...,
	)

	// Retention sweep
	retention, err := scheduler.NewRetentionTrigger(scheduler.DefaultRetentionConfig(),
		scheduler.SweeperFunc(func(ctx context.Context) (int64, int, error) {
			result, err := printService.CleanupExpired(ctx)
			if result == nil {
				return 0, 0, err
			}
			return result.JobsDeleted, result.FilesDeleted, err
		}),
		log.Named("retention"),
	)
	if err != nil {
		log.Fatal("Failed to create retention trigger", zap.Error(err))
	}
	if err := retention.Start(ctx); err != nil {
		log.Fatal("Failed to start retention trigger", zap.Error(err))
	}

	// HTTP
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	promMetrics := telemetry.NewPrometheusMetrics(telemetry.DefaultPrometheusConfig())
	if err := promMetrics.RegisterGaugeFunc("offscreen_containers",
		"Off-screen render containers currently attached to the browser.",
		func() float64 { return float64(stack.Attached()) },
	); err != nil {
		log.Fatal("Failed to register renderer gauge", zap.Error(err))
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Secure(),
		middleware.CORSWithConfig(corsCfg),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tracerProvider.IsEnabled(),
		}),
		middleware.SpanErrorMarker(),
	)
	if cfg.HTTP.MetricsEnabled {
		engine.Use(promMetrics.GinMiddleware())
	}

	jwtService := auth.NewJWTService(cfg.JWT)
	authMiddleware := middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		Validator: jwtService,
		Logger:    log.Named("auth"),
	})

	var generateLimit gin.HandlerFunc
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitPerSec, cfg.HTTP.RateLimitBurst)
		defer limiter.Close()
		generateLimit = middleware.RateLimit(limiter)
	}

	healthHandler := handler.NewHealthHandler(version).
		AddCheck("database", func(context.Context) error { return db.Ping() })

	var metricsHandler http.Handler
	if cfg.HTTP.MetricsEnabled {
		metricsHandler = promMetrics.Handler()
	}

	printHandler := handler.NewPrintHandler(printService)
	r.RegisterRoot(handler.SystemRoutes(healthHandler, metricsHandler)).
		Register(handler.PrintRoutes(printHandler, authMiddleware, generateLimit)).
		Register(handler.DocumentRoutes(printHandler, authMiddleware))
	r.Setup()

	for _, route := range r.Routes() {
		log.Debug("Route registered",
			zap.String("group", route.Group),
			zap.String("method", route.Method),
			zap.String("path", route.Path))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := retention.Stop(shutdownCtx); err != nil {
		log.Warn("Retention sweep did not stop in time", zap.Error(err))
	}
	shutdownTelemetry(shutdownCtx, log, tracerProvider, meterProvider, logProvider)

	log.Info("Server exited gracefully")
}

// migrateSchema applies the SQL migrations on postgres and auto-migrates the
// model on sqlite.
func migrateSchema(db *persistence.Database, cfg *config.Config, log *zap.Logger) error {
	if cfg.Database.Driver == "sqlite" {
		return db.AutoMigrate()
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, "", log.Named("migrate"))
	if err != nil {
		return err
	}
	// Closing the migrator would close the shared connection pool.
	return m.Up()
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

func shutdownTelemetry(ctx context.Context, log *zap.Logger, providers ...shutdowner) {
	for _, p := range providers {
		if err := p.Shutdown(ctx); err != nil {
			log.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}
}
