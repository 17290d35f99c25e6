package inbound

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/seedai/server/internal/model"
)

// --- Request/Response Types ---

// SubmitInput represents a generation request.
type SubmitInput struct {
	Kind   model.Kind
	Prompt string
	Image  model.ImageOptions
	Video  model.VideoOptions
}

// SubmitOutput represents the outcome of a successful submission.
// Images is set for image requests, JobID for video requests.
type SubmitOutput struct {
	ID     string   `json:"id"`
	Kind   string   `json:"kind"`
	Images []string `json:"images,omitempty"`
	JobID  string   `json:"task_id,omitempty"`
}

// --- Domain Interface ---

// GenerationDomain defines the generation lifecycle service.
type GenerationDomain interface {
	// Submit validates the request, records it and forwards it to the provider.
	Submit(ctx context.Context, input *SubmitInput) (*SubmitOutput, error)

	// QueryStatus polls a video job once and settles its ledger record when terminal.
	// id may be empty; a record settles only when it is a pending video carrying jobID.
	QueryStatus(ctx context.Context, id, jobID string) (*model.VideoJobStatus, error)

	// History returns recent requests, newest first.
	History(ctx context.Context, limit int) ([]*model.GenerationRequest, error)

	// ResolveFile resolves a video output file id to a download URL.
	ResolveFile(ctx context.Context, fileID string) (*model.FileInfo, error)
}

// --- HTTP Port Interfaces ---

// GenerationHttpPort defines generation HTTP handlers.
type GenerationHttpPort interface {
	// Submit handles POST /generate.
	Submit(c *gin.Context)

	// Query handles GET /generate (history, status and file lookups).
	Query(c *gin.Context)
}
