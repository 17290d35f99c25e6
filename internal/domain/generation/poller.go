package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seedai/server/internal/model"
)

// StatusQuerier polls a video job once.
type StatusQuerier interface {
	QueryStatus(ctx context.Context, id, jobID string) (*model.VideoJobStatus, error)
}

// Poller repeats QueryStatus at a fixed interval until the job is terminal,
// the attempt budget is spent or the context ends. It runs in the caller's
// goroutine; stopping is the caller cancelling ctx.
type Poller struct {
	querier     StatusQuerier
	interval    time.Duration
	maxAttempts int
	logger      *zap.Logger
}

// NewPoller creates a poller. Non-positive values fall back to the defaults.
func NewPoller(querier StatusQuerier, interval time.Duration, maxAttempts int, logger *zap.Logger) *Poller {
	def := DefaultConfig()
	if interval <= 0 {
		interval = def.PollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = def.MaxPollAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		querier:     querier,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Wait polls until the job reaches a terminal state. When attempts run out it
// returns the last observed status together with ErrPollExhausted. Transport
// failures consume an attempt and polling continues; other errors stop it.
func (p *Poller) Wait(ctx context.Context, id, jobID string) (*model.VideoJobStatus, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var (
		last    *model.VideoJobStatus
		lastErr error
	)
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		status, err := p.querier.QueryStatus(ctx, id, jobID)
		switch {
		case err == nil:
			last, lastErr = status, nil
			if status.State.IsTerminal() {
				return status, nil
			}
			if id == "" {
				id = status.RequestID
			}
		case errors.Is(err, model.ErrTransportFailure) && ctx.Err() == nil:
			lastErr = err
			p.logger.Debug("poll attempt failed",
				zap.String("job_id", jobID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		default:
			return last, err
		}

		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}

	if last == nil && lastErr != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrPollExhausted, lastErr)
	}
	return last, model.ErrPollExhausted
}
