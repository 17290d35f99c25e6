package minimax

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/seedai/server/internal/model"
	"github.com/seedai/server/internal/port/outbound"
)

// BreakerConfig configures the provider circuit breaker.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	SuccessThreshold uint32
	Interval         time.Duration
	Timeout          time.Duration
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		Name:             "minimax",
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
	}
}

// BreakerProvider wraps a provider with a circuit breaker. Only transport
// failures and malformed responses count as breaker failures.
type BreakerProvider struct {
	next    outbound.GenerationProviderPort
	breaker *gobreaker.CircuitBreaker[any]
	name    string
}

// NewBreakerProvider creates a breaker-guarded provider. metrics may be nil.
func NewBreakerProvider(next outbound.GenerationProviderPort, cfg *BreakerConfig, logger *zap.Logger, metrics outbound.ProviderMetricsPort) *BreakerProvider {
	if cfg == nil {
		cfg = DefaultBreakerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics != nil {
		metrics.SetCircuitState(cfg.Name, int(gobreaker.StateClosed))
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.SuccessThreshold,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !(errors.Is(err, model.ErrTransportFailure) || errors.Is(err, model.ErrMalformedResponse))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("provider circuit state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if metrics != nil {
				metrics.SetCircuitState(name, int(to))
			}
		},
	}

	return &BreakerProvider{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		name:    cfg.Name,
	}
}

// State returns the current breaker state.
func (b *BreakerProvider) State() gobreaker.State {
	return b.breaker.State()
}

// Name returns the breaker name.
func (b *BreakerProvider) Name() string {
	return b.name
}

func (b *BreakerProvider) SubmitImage(ctx context.Context, prompt string, opts model.ImageOptions) (*model.ImageResult, error) {
	return execute(b, "image_generation", func() (*model.ImageResult, error) {
		return b.next.SubmitImage(ctx, prompt, opts)
	})
}

func (b *BreakerProvider) SubmitVideo(ctx context.Context, prompt string, opts model.VideoOptions) (*model.VideoSubmission, error) {
	return execute(b, "video_generation", func() (*model.VideoSubmission, error) {
		return b.next.SubmitVideo(ctx, prompt, opts)
	})
}

func (b *BreakerProvider) PollVideo(ctx context.Context, jobID string) (*model.VideoJobStatus, error) {
	return execute(b, "query_video_generation", func() (*model.VideoJobStatus, error) {
		return b.next.PollVideo(ctx, jobID)
	})
}

func (b *BreakerProvider) RetrieveFile(ctx context.Context, fileID string) (*model.FileInfo, error) {
	return execute(b, "retrieve_file", func() (*model.FileInfo, error) {
		return b.next.RetrieveFile(ctx, fileID)
	})
}

func execute[T any](b *BreakerProvider, op string, fn func() (*T, error)) (*T, error) {
	res, err := b.breaker.Execute(func() (any, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, model.NewTransportFailure(op, errors.New("generation service temporarily unavailable"))
	}
	if err != nil {
		return nil, err
	}
	out, _ := res.(*T)
	return out, nil
}

// Compile-time interface check
var _ outbound.GenerationProviderPort = (*BreakerProvider)(nil)
