package generationhttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/seedai/server/internal/model"
	"github.com/seedai/server/internal/port/inbound"
	"github.com/seedai/server/internal/shared/response"
)

// StatusWaiter polls a video job until it settles.
type StatusWaiter interface {
	Wait(ctx context.Context, id, jobID string) (*model.VideoJobStatus, error)
}

// Handler handles generation HTTP requests.
type Handler struct {
	domain inbound.GenerationDomain
	waiter StatusWaiter
}

// NewHandler creates a new generation handler. waiter may be nil, in which
// case wait=true is served with a single poll.
func NewHandler(domain inbound.GenerationDomain, waiter StatusWaiter) *Handler {
	return &Handler{domain: domain, waiter: waiter}
}

// RegisterRoutes registers generation routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/generate", h.Submit)
	r.GET("/generate", h.Query)
}

// ===== Request/Response Types =====

// SubmitRequest is the POST /generate body. Type is accepted as an alias of Kind.
type SubmitRequest struct {
	Kind    string        `json:"kind"`
	Type    string        `json:"type"`
	Prompt  string        `json:"prompt"`
	Options SubmitOptions `json:"options"`
}

// SubmitOptions carries the options of both kinds; only those of the requested kind apply.
type SubmitOptions struct {
	AspectRatio    string `json:"aspect_ratio,omitempty"`
	N              int    `json:"n,omitempty"`
	Model          string `json:"model,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
	Duration       int    `json:"duration,omitempty"`
	Resolution     string `json:"resolution,omitempty"`
}

// SubmitResponse is returned for an accepted submission.
type SubmitResponse struct {
	Success bool     `json:"success"`
	ID      string   `json:"id"`
	Kind    string   `json:"kind"`
	Images  []string `json:"images,omitempty"`
	TaskID  string   `json:"task_id,omitempty"`
	Message string   `json:"message"`
}

// HistoryResponse lists recent requests, newest first.
type HistoryResponse struct {
	Success bool                       `json:"success"`
	History []*model.GenerationRequest `json:"history"`
}

// StatusResponse reports the state of a video job.
type StatusResponse struct {
	Success        bool   `json:"success"`
	ID             string `json:"id,omitempty"`
	TaskID         string `json:"task_id"`
	Status         string `json:"status"`
	Result         string `json:"result,omitempty"`
	ProviderStatus string `json:"provider_status,omitempty"`
}

// FileResponse carries the download URL of a video output file.
type FileResponse struct {
	Success     bool   `json:"success"`
	FileID      string `json:"file_id"`
	DownloadURL string `json:"download_url"`
}

func (r *SubmitRequest) toInput() *inbound.SubmitInput {
	kind := r.Kind
	if kind == "" {
		kind = r.Type
	}
	return &inbound.SubmitInput{
		Kind:   model.Kind(strings.ToLower(strings.TrimSpace(kind))),
		Prompt: r.Prompt,
		Image: model.ImageOptions{
			AspectRatio:    r.Options.AspectRatio,
			Count:          r.Options.N,
			Model:          r.Options.Model,
			ResponseFormat: r.Options.ResponseFormat,
		},
		Video: model.VideoOptions{
			DurationSeconds: r.Options.Duration,
			Resolution:      r.Options.Resolution,
			Model:           r.Options.Model,
		},
	}
}

// ===== Handlers =====

// Submit handles generation requests.
//
//	@Summary		Submit a generation request
//	@Description	Generates images synchronously or submits a video job
//	@Tags			Generation
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SubmitRequest	true	"Generation request"
//	@Success		200		{object}	SubmitResponse
//	@Failure		400		{object}	response.ErrorResponse	"Invalid input"
//	@Failure		500		{object}	response.ErrorResponse	"Generation service failed"
//	@Router			/generate [post]
func (h *Handler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, codeValidation, "invalid request body: "+err.Error())
		return
	}

	out, err := h.domain.Submit(c.Request.Context(), req.toInput())
	if err != nil {
		handleError(c, err)
		return
	}

	resp := SubmitResponse{
		Success: true,
		ID:      out.ID,
		Kind:    out.Kind,
		Images:  out.Images,
		TaskID:  out.JobID,
	}
	if out.Kind == model.KindVideo.String() {
		resp.Message = "video generation task submitted"
	} else {
		resp.Message = "image generated successfully"
	}
	c.JSON(http.StatusOK, resp)
}

// Query handles history, video status and file lookups.
//
//	@Summary		Query generations
//	@Description	action=history lists recent requests; taskId polls a video job; fileId resolves a video file
//	@Tags			Generation
//	@Produce		json
//	@Param			action	query		string	false	"history"
//	@Param			limit	query		int		false	"History size"
//	@Param			taskId	query		string	false	"Video job id (alias task_id)"
//	@Param			id		query		string	false	"Ledger record id"
//	@Param			kind	query		string	false	"Must be video when set (alias type)"
//	@Param			wait	query		bool	false	"Poll until the job settles"
//	@Param			fileId	query		string	false	"Video file id (alias file_id)"
//	@Success		200		{object}	StatusResponse
//	@Success		200		{object}	HistoryResponse
//	@Success		200		{object}	FileResponse
//	@Failure		400		{object}	response.ErrorResponse	"Invalid input"
//	@Failure		500		{object}	response.ErrorResponse	"Generation service failed"
//	@Router			/generate [get]
func (h *Handler) Query(c *gin.Context) {
	switch action := c.Query("action"); {
	case action == "history":
		h.history(c)
	case action != "":
		response.BadRequest(c, codeValidation, "unsupported action "+strconv.Quote(action))
	case queryAlias(c, "fileId", "file_id") != "":
		h.file(c, queryAlias(c, "fileId", "file_id"))
	default:
		h.status(c)
	}
}

func (h *Handler) history(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.BadRequest(c, codeValidation, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := h.domain.History(c.Request.Context(), limit)
	if err != nil {
		handleError(c, err)
		return
	}
	if records == nil {
		records = []*model.GenerationRequest{}
	}
	c.JSON(http.StatusOK, HistoryResponse{Success: true, History: records})
}

func (h *Handler) status(c *gin.Context) {
	jobID := queryAlias(c, "taskId", "task_id")
	if jobID == "" {
		response.BadRequest(c, codeValidation, "taskId is required")
		return
	}
	// Images complete synchronously and have no job to poll.
	if kind := model.Kind(strings.ToLower(queryAlias(c, "kind", "type"))); kind != "" && kind != model.KindVideo {
		response.BadRequest(c, codeValidation, "status queries are only supported for video")
		return
	}

	ctx := c.Request.Context()
	id := c.Query("id")

	var (
		status *model.VideoJobStatus
		err    error
	)
	if wait, _ := strconv.ParseBool(c.Query("wait")); wait && h.waiter != nil {
		status, err = h.waiter.Wait(ctx, id, jobID)
		// Still running after the attempt budget: report the last state.
		if errors.Is(err, model.ErrPollExhausted) && status != nil {
			err = nil
		}
	} else {
		status, err = h.domain.QueryStatus(ctx, id, jobID)
	}
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, StatusResponse{
		Success:        true,
		ID:             status.RequestID,
		TaskID:         status.JobID,
		Status:         status.State.String(),
		Result:         status.OutputRef,
		ProviderStatus: status.ProviderStatus,
	})
}

func (h *Handler) file(c *gin.Context, fileID string) {
	info, err := h.domain.ResolveFile(c.Request.Context(), fileID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, FileResponse{
		Success:     true,
		FileID:      info.FileID,
		DownloadURL: info.DownloadURL,
	})
}

func queryAlias(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(c.Query(k)); v != "" {
			return v
		}
	}
	return ""
}

// Compile-time interface check
var _ inbound.GenerationHttpPort = (*Handler)(nil)
