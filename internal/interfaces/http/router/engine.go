// Package router assembles the gin engine of the HERA access layer.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hera/backend/internal/domain/shared"
	"github.com/hera/backend/internal/infrastructure/config"
	"github.com/hera/backend/internal/infrastructure/logger"
	"github.com/hera/backend/internal/infrastructure/telemetry"
	"github.com/hera/backend/internal/interfaces/http/dto"
	"github.com/hera/backend/internal/interfaces/http/handler"
	"github.com/hera/backend/internal/interfaces/http/middleware"
)

// Dependencies are the collaborators the HTTP surface is built from.
// RateLimiter and Idempotency may be nil to disable those features.
type Dependencies struct {
	Logger            *zap.Logger
	HTTP              config.HTTPConfig
	Tracing           middleware.TracingConfig
	Metrics           *telemetry.Metrics
	RateLimiter       *middleware.RateLimiter
	Resolver          middleware.IdentityResolver
	Idempotency       shared.IdempotencyStore
	IdempotencyConfig shared.IdempotencyConfig
	Universal         *handler.UniversalHandler
	Health            *handler.HealthHandler
}

// NewEngine builds the engine: global middleware, the unauthenticated
// health and metrics routes, and the generic CRUD routes behind Identity.
func NewEngine(deps Dependencies) (*gin.Engine, error) {
	engine := gin.New()
	if err := engine.SetTrustedProxies(deps.HTTP.TrustedProxies); err != nil {
		return nil, err
	}
	middleware.SetupValidator()

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(deps.Logger))
	engine.Use(logger.GinMiddleware(deps.Logger))
	engine.Use(middleware.Tracing(deps.Tracing)...)
	if deps.Metrics != nil {
		engine.Use(middleware.Metrics(deps.Metrics))
	}
	engine.Use(middleware.CORSWithConfig(corsConfig(deps.HTTP)))
	engine.Use(middleware.Secure())
	if deps.RateLimiter != nil {
		engine.Use(middleware.RateLimit(deps.RateLimiter))
	}
	if deps.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(deps.HTTP.MaxBodySize))
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(dto.CodeNotFound, "", middleware.GetRequestID(c)))
	})

	system := NewRouteSet()
	if deps.Health != nil {
		system.GET("/health", deps.Health.Health)
	}
	if deps.Metrics != nil {
		system.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	universal := NewRouteSet().
		Use(middleware.Identity(deps.Resolver)).
		Use(middleware.Idempotency(deps.Idempotency, deps.IdempotencyConfig)).
		POST("/entities", deps.Universal.Entities).
		POST("/transactions", deps.Universal.Transactions).
		POST("/command", deps.Universal.Command)

	Mount(engine, system, universal)
	return engine, nil
}

func corsConfig(cfg config.HTTPConfig) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	if len(cfg.CORSAllowOrigins) > 0 {
		cors.AllowOrigins = cfg.CORSAllowOrigins
	}
	if len(cfg.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.CORSAllowMethods
	}
	if len(cfg.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.CORSAllowHeaders
	}
	return cors
}
