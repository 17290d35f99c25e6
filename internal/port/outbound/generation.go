package outbound

import (
	"context"
	"time"

	"github.com/seedai/server/internal/model"
)

// LedgerPort records generation requests for the history and status views.
type LedgerPort interface {
	// Create inserts a pending record and returns its id.
	Create(ctx context.Context, kind model.Kind, prompt string) (string, error)

	// Update applies a status/result transition. Unknown ids and terminal
	// records are left untouched and return nil.
	Update(ctx context.Context, id string, status model.Status, result string) error

	// List returns at most limit records, newest first. The records are copies.
	List(ctx context.Context, limit int) ([]*model.GenerationRequest, error)
}

// GenerationProviderPort talks to the remote image/video generation service.
type GenerationProviderPort interface {
	// SubmitImage generates images synchronously.
	SubmitImage(ctx context.Context, prompt string, opts model.ImageOptions) (*model.ImageResult, error)

	// SubmitVideo starts an asynchronous video job.
	SubmitVideo(ctx context.Context, prompt string, opts model.VideoOptions) (*model.VideoSubmission, error)

	// PollVideo reports the state of a video job.
	PollVideo(ctx context.Context, jobID string) (*model.VideoJobStatus, error)

	// RetrieveFile resolves a provider file id to a downloadable file.
	RetrieveFile(ctx context.Context, fileID string) (*model.FileInfo, error)
}

// FileURLCachePort memoises resolved output files.
type FileURLCachePort interface {
	// Get returns the cached file and whether it was present.
	Get(fileID string) (*model.FileInfo, bool)

	// Set stores a file for ttl. A zero ttl uses the cache default.
	Set(fileID string, info *model.FileInfo, ttl time.Duration)
}

// GenerationMetricsPort receives lifecycle events for instrumentation.
type GenerationMetricsPort interface {
	RecordSubmission(kind, outcome string)
	RecordVideoPoll(state string)
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)
}

// ProviderMetricsPort receives provider call instrumentation.
type ProviderMetricsPort interface {
	ObserveProviderCall(operation, outcome string, duration time.Duration)
	SetCircuitState(name string, state int)
}
