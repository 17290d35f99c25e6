package app

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/seedai/server/cmd/server/docs" // swagger docs
	generationhttp "github.com/seedai/server/internal/adapter/inbound/http/generation"
	"github.com/seedai/server/internal/adapter/outbound/minimax"
	"github.com/seedai/server/internal/infra/config"
	"github.com/seedai/server/internal/shared/logger"
	"github.com/seedai/server/internal/shared/metrics"
	"github.com/seedai/server/internal/shared/middleware"
)

// App represents the application.
type App struct {
	config    *config.Config
	router    *gin.Engine
	logger    *logger.Logger
	zapLogger *zap.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	breaker   *minimax.BreakerProvider
	redis     goredis.UniversalClient

	generationHandler *generationhttp.Handler

	// Cleanup functions
	cleanupFuncs []func()
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	zapLog, err := ProvideZapLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("init zap logger: %w", err)
	}

	app := &App{
		config:       cfg,
		logger:       ProvideLogger(cfg),
		zapLogger:    zapLog,
		registry:     ProvideRegistry(),
		cleanupFuncs: make([]func(), 0),
	}
	app.metrics = ProvideMetrics(cfg, app.registry)

	if err := app.initGeneration(); err != nil {
		app.Stop()
		return nil, fmt.Errorf("init generation: %w", err)
	}

	app.router = app.setupRouter()
	app.registerRoutes()

	return app, nil
}

// initGeneration wires the provider, ledger and generation domain.
func (a *App) initGeneration() error {
	redisClient, cleanup, err := ProvideRedisClient(a.config, a.zapLogger)
	if err != nil {
		return err
	}
	a.cleanupFuncs = append(a.cleanupFuncs, cleanup)
	a.redis = redisClient

	store, err := ProvideLedger(a.config, redisClient)
	if err != nil {
		return err
	}

	client := ProvideMiniMaxClient(a.config, ProvideHTTPClient(a.config), a.zapLogger, a.metrics)
	a.breaker = ProvideBreaker(a.config, client, a.zapLogger, a.metrics)
	provider := ProvideGenerationProvider(client, a.breaker)

	dcfg := ProvideGenerationConfig(a.config)
	domain := ProvideGenerationDomain(store, provider, ProvideFileURLCache(a.config), a.metrics, dcfg, a.zapLogger)
	a.generationHandler = ProvideGenerationHandler(domain, ProvidePoller(domain, dcfg, a.zapLogger))

	if a.config.Provider.APIKey == "" {
		a.zapLogger.Warn("provider api key is empty; generation requests will be rejected")
	}
	a.zapLogger.Info("generation initialized",
		zap.String("ledger", a.config.Ledger.Backend),
		zap.Int("capacity", a.config.Ledger.Capacity),
		zap.Bool("breaker", a.breaker != nil),
	)
	return nil
}

// setupRouter creates and configures the Gin router.
func (a *App) setupRouter() *gin.Engine {
	switch a.config.Server.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(a.config.Server.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Apply global middleware
	r.Use(middleware.Recovery(a.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(a.logger))
	r.Use(middleware.CORS(a.config.CORS))
	if a.config.Metrics.Enabled {
		r.Use(middleware.Metrics(a.metrics))
	}

	r.GET("/health", a.health)

	if a.config.Metrics.Enabled {
		r.GET(a.config.Metrics.Path, gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	}

	// Swagger documentation endpoint
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	return r
}

// registerRoutes registers all HTTP routes.
func (a *App) registerRoutes() {
	api := a.router.Group(a.config.Server.BasePath)
	api.Use(middleware.Idempotency(a.redis, a.config.Server.IdempotencyTTL))
	a.generationHandler.RegisterRoutes(api)
}

// health reports liveness and the provider circuit state.
//
//	@Summary	Health check
//	@Tags		System
//	@Produce	json
//	@Success	200	{object}	map[string]any
//	@Router		/health [get]
func (a *App) health(c *gin.Context) {
	status := "ok"
	provider := gin.H{"name": "minimax", "circuit": "disabled"}
	if a.breaker != nil {
		state := a.breaker.State()
		provider["name"] = a.breaker.Name()
		provider["circuit"] = state.String()
		if state == gobreaker.StateOpen {
			status = "degraded"
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "provider": provider})
}

// Router returns the HTTP router.
func (a *App) Router() *gin.Engine {
	return a.router
}

// Stop stops the application and releases resources.
func (a *App) Stop() {
	// Run cleanup functions
	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}
	a.cleanupFuncs = nil

	// Sync zap logger
	if a.zapLogger != nil {
		_ = a.zapLogger.Sync()
	}
}
