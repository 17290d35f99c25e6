package model

import (
	"time"
)

// Kind represents the kind of output a generation request produces.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid reports whether the kind is one of the supported kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindImage, KindVideo:
		return true
	default:
		return false
	}
}

// Status represents the lifecycle status of a generation request.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns whether the status is terminal.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailed:
		return true
	default:
		return false
	}
}

// GenerationRequest is one caller-initiated creation job as recorded in the ledger.
type GenerationRequest struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Prompt    string    `json:"prompt"`
	Status    Status    `json:"status"`
	Result    string    `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a copy of the request that shares no state with the receiver.
func (r *GenerationRequest) Clone() *GenerationRequest {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Apply applies a status/result transition following the monotonic rule:
// terminal records never change, a pending record may pick up a provisional
// result while staying pending, and leaving pending happens exactly once.
// It reports whether the record changed.
func (r *GenerationRequest) Apply(status Status, result string) bool {
	if r.Status.IsTerminal() {
		return false
	}
	changed := false
	if result != "" && result != r.Result {
		r.Result = result
		changed = true
	}
	if status.IsTerminal() {
		r.Status = status
		changed = true
	}
	return changed
}

// ImageOptions holds image generation options.
type ImageOptions struct {
	AspectRatio    string `json:"aspect_ratio,omitempty" validate:"omitempty,oneof=1:1 16:9 4:3 3:2 2:3 3:4 9:16 21:9"`
	Count          int    `json:"n,omitempty" validate:"omitempty,min=1,max=9"`
	Model          string `json:"model,omitempty" validate:"omitempty,max=64"`
	ResponseFormat string `json:"response_format,omitempty" validate:"omitempty,oneof=url base64"`
}

// VideoOptions holds video generation options.
type VideoOptions struct {
	DurationSeconds int    `json:"duration,omitempty" validate:"omitempty,oneof=6 10"`
	Resolution      string `json:"resolution,omitempty" validate:"omitempty,oneof=768P 1080P"`
	Model           string `json:"model,omitempty" validate:"omitempty,max=64"`
}

// ImageResult is the normalized output of an image submission.
type ImageResult struct {
	URLs []string `json:"urls"`
}

// VideoSubmission is the normalized output of a video submission.
type VideoSubmission struct {
	JobID string `json:"job_id"`
}

// JobState represents the state of an asynchronous video job.
type JobState string

const (
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
)

// String returns the string representation of the job state.
func (s JobState) String() string {
	return string(s)
}

// IsTerminal returns whether the job state is terminal.
func (s JobState) IsTerminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed
}

// VideoJobStatus is the normalized result of polling a video job.
type VideoJobStatus struct {
	RequestID      string   `json:"id,omitempty"`
	JobID          string   `json:"task_id"`
	State          JobState `json:"status"`
	OutputRef      string   `json:"result,omitempty"`
	ProviderStatus string   `json:"provider_status,omitempty"`
}

// FileInfo describes a provider-hosted output file.
type FileInfo struct {
	FileID      string `json:"file_id"`
	DownloadURL string `json:"download_url"`
	Filename    string `json:"filename,omitempty"`
	Bytes       int64  `json:"bytes,omitempty"`
}
