package generation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/seedai/server/internal/model"
	"github.com/seedai/server/internal/port/inbound"
	"github.com/seedai/server/internal/port/outbound"
	"github.com/seedai/server/internal/shared/requestctx"
)

const fileURLCacheName = "file_url"

// Domain implements the generation request lifecycle.
type Domain struct {
	ledger   outbound.LedgerPort
	provider outbound.GenerationProviderPort
	files    outbound.FileURLCachePort
	metrics  outbound.GenerationMetricsPort
	validate *validator.Validate
	config   *Config
	logger   *zap.Logger
}

// NewDomain creates a new generation domain. files and metrics may be nil.
func NewDomain(
	ledger outbound.LedgerPort,
	provider outbound.GenerationProviderPort,
	files outbound.FileURLCachePort,
	metrics outbound.GenerationMetricsPort,
	config *Config,
	logger *zap.Logger,
) *Domain {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Domain{
		ledger:   ledger,
		provider: provider,
		files:    files,
		metrics:  metrics,
		validate: newValidator(),
		config:   config,
		logger:   logger,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json names so errors match what callers sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Submit validates the request, records it and forwards it to the provider.
// Invalid input never reaches the ledger or the network.
func (d *Domain) Submit(ctx context.Context, in *inbound.SubmitInput) (*inbound.SubmitOutput, error) {
	if in == nil {
		return nil, model.NewValidationError("", "request body is required")
	}

	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return nil, model.NewValidationError("prompt", "prompt is required")
	}
	if d.config.MaxPromptLength > 0 && utf8.RuneCountInString(prompt) > d.config.MaxPromptLength {
		return nil, model.NewValidationError("prompt", fmt.Sprintf("prompt must be at most %d characters", d.config.MaxPromptLength))
	}
	if !in.Kind.IsValid() {
		return nil, model.NewValidationError("kind", fmt.Sprintf("unsupported kind %q: must be image or video", in.Kind))
	}
	if err := d.validateOptions(in); err != nil {
		return nil, err
	}

	id, err := d.ledger.Create(ctx, in.Kind, prompt)
	if err != nil {
		return nil, fmt.Errorf("record request: %w", err)
	}

	if in.Kind == model.KindImage {
		return d.submitImage(ctx, id, prompt, in.Image)
	}
	return d.submitVideo(ctx, id, prompt, in.Video)
}

func (d *Domain) submitImage(ctx context.Context, id, prompt string, opts model.ImageOptions) (*inbound.SubmitOutput, error) {
	res, err := d.provider.SubmitImage(ctx, prompt, opts)
	if err == nil && len(res.URLs) == 0 {
		err = model.NewMalformedResponse("image_generation", "no images returned", nil)
	}
	if err != nil {
		d.fail(ctx, id, model.KindImage, err)
		return nil, fmt.Errorf("generate image: %w", err)
	}

	d.settle(ctx, id, model.StatusSuccess, res.URLs[0])
	d.recordSubmission(model.KindImage, "success")

	d.logger.Info("image generated",
		requestctx.Field(ctx),
		zap.String("id", id),
		zap.Int("count", len(res.URLs)),
	)

	return &inbound.SubmitOutput{
		ID:     id,
		Kind:   model.KindImage.String(),
		Images: res.URLs,
	}, nil
}

func (d *Domain) submitVideo(ctx context.Context, id, prompt string, opts model.VideoOptions) (*inbound.SubmitOutput, error) {
	sub, err := d.provider.SubmitVideo(ctx, prompt, opts)
	if err == nil && sub.JobID == "" {
		err = model.NewMalformedResponse("video_generation", "missing job id", nil)
	}
	if err != nil {
		d.fail(ctx, id, model.KindVideo, err)
		return nil, fmt.Errorf("generate video: %w", err)
	}

	// The job is still running; keep the record pending with the job id.
	d.settle(ctx, id, model.StatusPending, sub.JobID)
	d.recordSubmission(model.KindVideo, "submitted")

	d.logger.Info("video job submitted",
		requestctx.Field(ctx),
		zap.String("id", id),
		zap.String("job_id", sub.JobID),
	)

	return &inbound.SubmitOutput{
		ID:    id,
		Kind:  model.KindVideo.String(),
		JobID: sub.JobID,
	}, nil
}

// QueryStatus polls the provider once. Terminal states settle the matching
// ledger record; running jobs and poll errors leave the ledger untouched.
func (d *Domain) QueryStatus(ctx context.Context, id, jobID string) (*model.VideoJobStatus, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, model.NewValidationError("task_id", "task id is required")
	}

	id = d.findPendingVideo(ctx, id, jobID)

	status, err := d.provider.PollVideo(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("poll video %s: %w", jobID, err)
	}
	status.RequestID = id

	if d.metrics != nil {
		d.metrics.RecordVideoPoll(status.State.String())
	}

	if id == "" {
		return status, nil
	}

	switch status.State {
	case model.JobStateSucceeded:
		d.settle(ctx, id, model.StatusSuccess, status.OutputRef)
		d.recordSubmission(model.KindVideo, "success")
		d.logger.Info("video job succeeded",
			requestctx.Field(ctx),
			zap.String("id", id),
			zap.String("job_id", jobID),
			zap.String("output", status.OutputRef),
		)
	case model.JobStateFailed:
		d.settle(ctx, id, model.StatusFailed, "")
		d.recordSubmission(model.KindVideo, "failed")
		d.logger.Warn("video job failed",
			requestctx.Field(ctx),
			zap.String("id", id),
			zap.String("job_id", jobID),
			zap.String("provider_status", status.ProviderStatus),
		)
	}

	return status, nil
}

// findPendingVideo returns the id of the pending video record carrying jobID,
// or "". A caller-supplied id is kept only when that record owns jobID;
// otherwise the lookup falls back to the job id alone.
func (d *Domain) findPendingVideo(ctx context.Context, id, jobID string) string {
	records, err := d.ledger.List(ctx, 0)
	if err != nil {
		d.logger.Warn("ledger lookup failed", requestctx.Field(ctx), zap.String("job_id", jobID), zap.Error(err))
		return ""
	}

	match := ""
	for _, rec := range records {
		if rec.Kind != model.KindVideo || rec.Status != model.StatusPending || rec.Result != jobID {
			continue
		}
		if id == "" || rec.ID == id {
			return rec.ID
		}
		if match == "" {
			match = rec.ID
		}
	}
	if id != "" {
		d.logger.Debug("record does not own job",
			requestctx.Field(ctx),
			zap.String("id", id),
			zap.String("job_id", jobID),
		)
	}
	return match
}

// History returns recent requests, newest first.
func (d *Domain) History(ctx context.Context, limit int) ([]*model.GenerationRequest, error) {
	if limit <= 0 {
		limit = d.config.DefaultHistoryLimit
	}
	records, err := d.ledger.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return records, nil
}

// ResolveFile resolves a video output file id to a download URL.
func (d *Domain) ResolveFile(ctx context.Context, fileID string) (*model.FileInfo, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, model.NewValidationError("file_id", "file id is required")
	}

	if d.files != nil {
		if info, ok := d.files.Get(fileID); ok {
			d.recordCache(true)
			return info, nil
		}
		d.recordCache(false)
	}

	info, err := d.provider.RetrieveFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("retrieve file %s: %w", fileID, err)
	}

	if d.files != nil {
		d.files.Set(fileID, info, d.config.FileURLTTL)
	}
	return info, nil
}

// validateOptions checks the options for the requested kind only.
func (d *Domain) validateOptions(in *inbound.SubmitInput) error {
	var target any = &in.Image
	if in.Kind == model.KindVideo {
		target = &in.Video
	}

	err := d.validate.Struct(target)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return model.NewValidationError("options", err.Error())
	}

	out := make(model.ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, model.NewValidationError("options."+fe.Field(), describe(fe)))
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// fail marks a record failed after a provider error.
func (d *Domain) fail(ctx context.Context, id string, kind model.Kind, cause error) {
	d.settle(ctx, id, model.StatusFailed, "")
	d.recordSubmission(kind, outcomeOf(cause))
	d.logger.Warn("generation failed",
		requestctx.Field(ctx),
		zap.String("id", id),
		zap.String("kind", kind.String()),
		zap.Error(cause),
	)
}

// settle updates the ledger. A ledger error is logged, not returned: the
// provider outcome is already final and is what the caller needs.
func (d *Domain) settle(ctx context.Context, id string, status model.Status, result string) {
	if err := d.ledger.Update(ctx, id, status, result); err != nil {
		d.logger.Error("ledger update failed",
			requestctx.Field(ctx),
			zap.String("id", id),
			zap.String("status", status.String()),
			zap.Error(err),
		)
	}
}

func (d *Domain) recordSubmission(kind model.Kind, outcome string) {
	if d.metrics != nil {
		d.metrics.RecordSubmission(kind.String(), outcome)
	}
}

func (d *Domain) recordCache(hit bool) {
	if d.metrics == nil {
		return
	}
	if hit {
		d.metrics.RecordCacheHit(fileURLCacheName)
	} else {
		d.metrics.RecordCacheMiss(fileURLCacheName)
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, model.ErrTransportFailure):
		return "transport_failure"
	case errors.Is(err, model.ErrProviderRejected):
		return "rejected"
	case errors.Is(err, model.ErrMalformedResponse):
		return "malformed"
	default:
		return "error"
	}
}

// Compile-time interface check
var _ inbound.GenerationDomain = (*Domain)(nil)
