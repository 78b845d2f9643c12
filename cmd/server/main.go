package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hera/backend/internal/application/actorguard"
	"github.com/hera/backend/internal/application/dispatch"
	"github.com/hera/backend/internal/application/identity"
	"github.com/hera/backend/internal/domain/guardrail"
	"github.com/hera/backend/internal/domain/shared"
	"github.com/hera/backend/internal/infrastructure/auth"
	"github.com/hera/backend/internal/infrastructure/cache"
	"github.com/hera/backend/internal/infrastructure/config"
	"github.com/hera/backend/internal/infrastructure/logger"
	"github.com/hera/backend/internal/infrastructure/persistence"
	"github.com/hera/backend/internal/infrastructure/telemetry"
	"github.com/hera/backend/internal/interfaces/http/handler"
	"github.com/hera/backend/internal/interfaces/http/middleware"
	"github.com/hera/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting HERA access layer",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing is a no-op provider unless enabled
	tracing, err := telemetry.StartTracing(ctx, telemetry.TracingConfig{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:  cfg.Telemetry.SamplingRatio,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: "1.0.0",
		Insecure:       cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(shutdownCtx)
	}()

	// Guardrail policy is built once and shared read-only
	policy, err := guardrail.NewPolicy(cfg.Guardrail.PolicyConfig())
	if err != nil {
		log.Fatal("Invalid guardrail policy", zap.Error(err))
	}
	platformOrgID := policy.PlatformOrganizationID()

	// Database with zap statement logging and otelgorm spans
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log)
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithLogger(log, cfg.Log.Level, cfg.Telemetry.DBSlowQueryThresh),
		persistence.WithPlugin(dbTracing.RegisterOtelGorm),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	health := handler.NewHealthHandler(2*time.Second).
		AddCheck("database", handler.DatabaseCheck(db.DB))

	// Redis backs idempotency and token revocation when enabled
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing redis client", zap.Error(err))
			}
		}()
		health.AddCheck("redis", handler.RedisCheck(redisClient))
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	metrics := telemetry.NewMetrics()

	// Identity resolution
	var revocations auth.TokenRevocationList
	if cfg.JWT.RevocationCheck {
		revocations = newRevocationList(cfg.JWT.RevocationBackend, redisClient, log)
	}
	jwtService := auth.NewJWTService(cfg.JWT, revocations)
	actors := persistence.NewGormIdentityStore(db.DB, platformOrgID)
	resolver := identity.NewResolver(jwtService, actors, platformOrgID, log)

	// Guard and dispatcher
	guard := actorguard.New(actors, platformOrgID,
		actorguard.WithRejectionHook(metrics.RecordGuardrailRejection))
	dispatcher := dispatch.NewDispatcher(persistence.NewGormUniversalStore(db.DB, platformOrgID), guard, policy,
		dispatch.WithRecorder(dispatch.NewMetricsRecorder(metrics)))

	// Idempotency store
	var idempotencyStore shared.IdempotencyStore
	if cfg.Idempotency.Enabled {
		factory := cache.NewIdempotencyStoreFactory(redisUniversal(redisClient), cache.WithLogger(log))
		idempotencyStore, err = factory.CreateStore(cfg.Idempotency.Backend)
		if err != nil {
			log.Fatal("Failed to create idempotency store", zap.Error(err))
		}
		defer func() {
			if err := idempotencyStore.Close(); err != nil {
				log.Error("Error closing idempotency store", zap.Error(err))
			}
		}()
	}

	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow, cfg.HTTP.RateLimitBurst)
		go limiter.Run(ctx)
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine, err := router.NewEngine(router.Dependencies{
		Logger: log,
		HTTP:   cfg.HTTP,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		Metrics:     metrics,
		RateLimiter: limiter,
		Resolver:    resolver,
		Idempotency: idempotencyStore,
		IdempotencyConfig: shared.IdempotencyConfig{
			Enabled: cfg.Idempotency.Enabled,
			TTL:     cfg.Idempotency.TTL,
			LockTTL: cfg.Idempotency.LockTTL,
		},
		Universal: handler.NewUniversalHandler(dispatcher),
		Health:    health,
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}

// newRevocationList picks the revocation backend, falling back to memory
// when redis is requested but not configured
func newRevocationList(backend string, client *redis.Client, log *zap.Logger) auth.TokenRevocationList {
	if backend == "redis" {
		if client != nil {
			return auth.NewRedisTokenRevocationList(client)
		}
		log.Warn("Redis revocation backend requested without redis, using in-memory list")
	}
	return auth.NewInMemoryTokenRevocationList()
}

// redisUniversal avoids handing a typed nil client to the factory
func redisUniversal(client *redis.Client) redis.UniversalClient {
	if client == nil {
		return nil
	}
	return client
}
