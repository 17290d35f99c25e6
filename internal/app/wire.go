//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	generationhttp "github.com/seedai/server/internal/adapter/inbound/http/generation"
	"github.com/seedai/server/internal/adapter/outbound/minimax"
	"github.com/seedai/server/internal/domain/generation"
	"github.com/seedai/server/internal/infra/config"
	"github.com/seedai/server/internal/shared/logger"
	"github.com/seedai/server/internal/shared/metrics"
)

// Dependencies holds all injected dependencies.
type Dependencies struct {
	Config    *config.Config
	Logger    *logger.Logger
	ZapLogger *zap.Logger
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics

	// Provider circuit breaker, nil when disabled.
	Breaker *minimax.BreakerProvider

	Domain  *generation.Domain
	Handler *generationhttp.Handler
}

// InitializeDependencies creates all dependencies using Wire.
func InitializeDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	wire.Build(
		AppSet,
		wire.Struct(new(Dependencies), "*"),
	)
	return nil, nil, nil
}
