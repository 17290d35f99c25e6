package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	// Domains
	"github.com/seedai/server/internal/domain/generation"

	// Inbound adapters
	generationhttp "github.com/seedai/server/internal/adapter/inbound/http/generation"

	// Ports
	"github.com/seedai/server/internal/port/outbound"

	// Outbound adapters
	"github.com/seedai/server/internal/adapter/outbound/ledger"
	"github.com/seedai/server/internal/adapter/outbound/minimax"
	redisadapter "github.com/seedai/server/internal/adapter/outbound/redis"

	// Infrastructure
	"github.com/seedai/server/internal/infra/config"
	"github.com/seedai/server/internal/infra/httpclient"

	// Shared
	"github.com/seedai/server/internal/shared/cache"
	"github.com/seedai/server/internal/shared/logger"
	"github.com/seedai/server/internal/shared/metrics"
)

// ===== Infrastructure Providers =====

// InfraSet provides infrastructure dependencies.
var InfraSet = wire.NewSet(
	ProvideLogger,
	ProvideZapLogger,
	ProvideRegistry,
	ProvideMetrics,
	ProvideHTTPClient,
	ProvideRedisClient,
)

// ProvideLogger creates the HTTP middleware logger.
func ProvideLogger(cfg *config.Config) *logger.Logger {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
}

// ProvideZapLogger creates the domain and adapter logger.
func ProvideZapLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.NewZapLogger(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
}

// ProvideRegistry creates the Prometheus registry served on the metrics path.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates the application metrics.
func ProvideMetrics(cfg *config.Config, reg *prometheus.Registry) *metrics.Metrics {
	return metrics.NewWithRegistry(cfg.Metrics.Namespace, reg)
}

// ProvideHTTPClient creates the pooled HTTP client used for provider calls.
func ProvideHTTPClient(cfg *config.Config) *http.Client {
	return httpclient.New(cfg.HTTPClient)
}

// ProvideRedisClient connects to Redis when the shared ledger is configured.
// It returns a nil client for the memory backend.
func ProvideRedisClient(cfg *config.Config, zapLog *zap.Logger) (goredis.UniversalClient, func(), error) {
	if cfg.Ledger.Backend != config.LedgerBackendRedis {
		return nil, func() {}, nil
	}
	client, err := cache.NewRedisClient(context.Background(), &cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	zapLog.Info("redis ledger enabled", zap.String("address", cfg.Redis.Address))
	return client, func() { _ = client.Close() }, nil
}

// ===== Outbound Adapter Providers =====

// OutboundSet provides outbound adapters.
var OutboundSet = wire.NewSet(
	ProvideLedger,
	ProvideMiniMaxClient,
	ProvideBreaker,
	ProvideGenerationProvider,
	ProvideFileURLCache,
)

// ProvideLedger creates the request ledger for the configured backend.
func ProvideLedger(cfg *config.Config, client goredis.UniversalClient) (outbound.LedgerPort, error) {
	switch cfg.Ledger.Backend {
	case config.LedgerBackendRedis:
		if client == nil {
			return nil, fmt.Errorf("ledger backend %q requires a redis client", cfg.Ledger.Backend)
		}
		return redisadapter.NewLedgerAdapter(client, redisadapter.LedgerConfig{
			KeyPrefix: cfg.Ledger.KeyPrefix,
			Capacity:  cfg.Ledger.Capacity,
			TTL:       cfg.Ledger.TTL,
		}, ledger.NewRecordID), nil
	default:
		mem, err := ledger.NewMemoryLedger(cfg.Ledger.Capacity)
		if err != nil {
			return nil, fmt.Errorf("create memory ledger: %w", err)
		}
		return mem, nil
	}
}

// ProvideMiniMaxClient creates the MiniMax API client.
func ProvideMiniMaxClient(cfg *config.Config, httpClient *http.Client, zapLog *zap.Logger, m *metrics.Metrics) *minimax.Client {
	return minimax.NewClient(httpClient, &minimax.Config{
		BaseURL:         cfg.Provider.BaseURL,
		APIKey:          cfg.Provider.APIKey,
		ImageModel:      cfg.Provider.ImageModel,
		VideoModel:      cfg.Provider.VideoModel,
		PromptOptimizer: cfg.Provider.PromptOptimizer,
		SubmitTimeout:   cfg.Provider.SubmitTimeout,
		PollTimeout:     cfg.Provider.PollTimeout,
	}, zapLog, m)
}

// ProvideBreaker wraps the client in a circuit breaker. It returns nil when
// the breaker is disabled.
func ProvideBreaker(cfg *config.Config, client *minimax.Client, zapLog *zap.Logger, m *metrics.Metrics) *minimax.BreakerProvider {
	if !cfg.Breaker.Enabled {
		return nil
	}
	bcfg := minimax.DefaultBreakerConfig()
	if cfg.Breaker.FailureThreshold > 0 {
		bcfg.FailureThreshold = cfg.Breaker.FailureThreshold
	}
	if cfg.Breaker.SuccessThreshold > 0 {
		bcfg.SuccessThreshold = cfg.Breaker.SuccessThreshold
	}
	if cfg.Breaker.Interval > 0 {
		bcfg.Interval = cfg.Breaker.Interval
	}
	if cfg.Breaker.Timeout > 0 {
		bcfg.Timeout = cfg.Breaker.Timeout
	}
	return minimax.NewBreakerProvider(client, bcfg, zapLog, m)
}

// ProvideGenerationProvider selects the breaker-guarded provider when enabled.
func ProvideGenerationProvider(client *minimax.Client, breaker *minimax.BreakerProvider) outbound.GenerationProviderPort {
	if breaker != nil {
		return breaker
	}
	return client
}

// ProvideFileURLCache creates the download URL cache.
func ProvideFileURLCache(cfg *config.Config) *cache.FileURLCache {
	return cache.NewFileURLCache(cfg.Cache.FileURLTTL, cfg.Cache.CleanupInterval)
}

// ===== Domain Providers =====

// DomainSet provides domain services.
var DomainSet = wire.NewSet(
	ProvideGenerationConfig,
	ProvideGenerationDomain,
	ProvidePoller,
)

// ProvideGenerationConfig maps application config onto the domain config.
func ProvideGenerationConfig(cfg *config.Config) *generation.Config {
	dcfg := generation.DefaultConfig()
	dcfg.DefaultHistoryLimit = cfg.Ledger.Capacity
	if cfg.Cache.FileURLTTL > 0 {
		dcfg.FileURLTTL = cfg.Cache.FileURLTTL
	}
	dcfg.PollInterval = cfg.Poller.Interval
	dcfg.MaxPollAttempts = cfg.Poller.MaxAttempts
	return dcfg
}

// ProvideGenerationDomain creates the generation domain.
func ProvideGenerationDomain(
	store outbound.LedgerPort,
	provider outbound.GenerationProviderPort,
	files *cache.FileURLCache,
	m *metrics.Metrics,
	dcfg *generation.Config,
	zapLog *zap.Logger,
) *generation.Domain {
	return generation.NewDomain(store, provider, files, m, dcfg, zapLog)
}

// ProvidePoller creates the bounded status poller used by wait=true.
func ProvidePoller(domain *generation.Domain, dcfg *generation.Config, zapLog *zap.Logger) *generation.Poller {
	return generation.NewPoller(domain, dcfg.PollInterval, dcfg.MaxPollAttempts, zapLog)
}

// ===== Inbound Adapter Providers =====

// HandlerSet provides HTTP handlers.
var HandlerSet = wire.NewSet(
	ProvideGenerationHandler,
)

// ProvideGenerationHandler creates the generation HTTP handler.
func ProvideGenerationHandler(domain *generation.Domain, poller *generation.Poller) *generationhttp.Handler {
	return generationhttp.NewHandler(domain, poller)
}

// ===== Combined Sets =====

// AppSet combines all provider sets.
var AppSet = wire.NewSet(
	InfraSet,
	OutboundSet,
	DomainSet,
	HandlerSet,
)
