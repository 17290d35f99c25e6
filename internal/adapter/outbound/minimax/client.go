package minimax

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seedai/server/internal/model"
	"github.com/seedai/server/internal/port/outbound"
)

const (
	opImage      = "image_generation"
	opVideo      = "video_generation"
	opQueryVideo = "query_video_generation"
	opRetrieve   = "retrieve_file"

	// Base64 images can be large; n is capped at 9.
	maxResponseBytes = 64 << 20
	maxErrorSnippet  = 256
)

// Config configures the MiniMax client.
type Config struct {
	BaseURL         string
	APIKey          string
	ImageModel      string
	VideoModel      string
	PromptOptimizer bool
	SubmitTimeout   time.Duration
	PollTimeout     time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "https://api.minimax.io",
		ImageModel:      "image-01",
		VideoModel:      "MiniMax-Hailuo-2.3",
		PromptOptimizer: true,
		SubmitTimeout:   60 * time.Second,
		PollTimeout:     90 * time.Second,
	}
}

// Client implements GenerationProviderPort against the MiniMax HTTP API.
// It holds no mutable state and is safe for concurrent use.
type Client struct {
	http    *http.Client
	cfg     *Config
	logger  *zap.Logger
	metrics outbound.ProviderMetricsPort
}

// NewClient creates a new MiniMax client. metrics may be nil.
func NewClient(httpClient *http.Client, cfg *Config, logger *zap.Logger, metrics outbound.ProviderMetricsPort) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:    httpClient,
		cfg:     cfg,
		logger:  logger.Named("minimax"),
		metrics: metrics,
	}
}

// SubmitImage generates images synchronously. Exactly one HTTP call is made.
func (c *Client) SubmitImage(ctx context.Context, prompt string, opts model.ImageOptions) (*model.ImageResult, error) {
	req := &imageRequest{
		Model:           firstNonEmpty(opts.Model, c.cfg.ImageModel),
		Prompt:          prompt,
		AspectRatio:     firstNonEmpty(opts.AspectRatio, "1:1"),
		ResponseFormat:  firstNonEmpty(opts.ResponseFormat, "url"),
		N:               opts.Count,
		PromptOptimizer: c.cfg.PromptOptimizer,
	}
	if req.N <= 0 {
		req.N = 1
	}

	var resp imageResponse
	if err := c.do(ctx, opImage, http.MethodPost, "/v1/image_generation", nil, req, c.cfg.SubmitTimeout, &resp); err != nil {
		return nil, err
	}

	urls, err := parseImageData(resp.Data)
	if err != nil {
		return nil, model.NewMalformedResponse(opImage, err.Error(), nil)
	}
	return &model.ImageResult{URLs: urls}, nil
}

// SubmitVideo starts a video job and returns its provider job id.
func (c *Client) SubmitVideo(ctx context.Context, prompt string, opts model.VideoOptions) (*model.VideoSubmission, error) {
	req := &videoRequest{
		Model:           firstNonEmpty(opts.Model, c.cfg.VideoModel),
		Prompt:          prompt,
		Duration:        opts.DurationSeconds,
		Resolution:      firstNonEmpty(opts.Resolution, "768P"),
		PromptOptimizer: c.cfg.PromptOptimizer,
	}
	if req.Duration <= 0 {
		req.Duration = 6
	}

	var resp videoResponse
	if err := c.do(ctx, opVideo, http.MethodPost, "/v1/video_generation", nil, req, c.cfg.SubmitTimeout, &resp); err != nil {
		return nil, err
	}
	if resp.TaskID == "" {
		return nil, model.NewMalformedResponse(opVideo, "missing task_id", nil)
	}
	return &model.VideoSubmission{JobID: resp.TaskID}, nil
}

// PollVideo queries a video job once.
func (c *Client) PollVideo(ctx context.Context, jobID string) (*model.VideoJobStatus, error) {
	q := url.Values{"task_id": {jobID}}

	var resp videoQueryResponse
	if err := c.do(ctx, opQueryVideo, http.MethodGet, "/v1/query/video_generation", q, nil, c.cfg.PollTimeout, &resp); err != nil {
		return nil, err
	}

	status := &model.VideoJobStatus{
		JobID:          jobID,
		ProviderStatus: resp.Status,
	}
	switch {
	case strings.EqualFold(resp.Status, statusPreparing),
		strings.EqualFold(resp.Status, statusQueueing),
		strings.EqualFold(resp.Status, statusProcessing):
		status.State = model.JobStateRunning
	case strings.EqualFold(resp.Status, statusSuccess):
		if resp.FileID == "" {
			return nil, model.NewMalformedResponse(opQueryVideo, "succeeded job without file_id", nil)
		}
		status.State = model.JobStateSucceeded
		status.OutputRef = string(resp.FileID)
	case strings.EqualFold(resp.Status, statusFail):
		status.State = model.JobStateFailed
	case resp.Status == "":
		return nil, model.NewMalformedResponse(opQueryVideo, "missing task status", nil)
	default:
		return nil, model.NewMalformedResponse(opQueryVideo, fmt.Sprintf("unknown task status %q", resp.Status), nil)
	}
	return status, nil
}

// RetrieveFile resolves a file id to its download URL.
func (c *Client) RetrieveFile(ctx context.Context, fileID string) (*model.FileInfo, error) {
	q := url.Values{"file_id": {fileID}}

	var resp fileRetrieveResponse
	if err := c.do(ctx, opRetrieve, http.MethodGet, "/v1/files/retrieve", q, nil, c.cfg.PollTimeout, &resp); err != nil {
		return nil, err
	}
	if resp.File == nil || resp.File.DownloadURL == "" {
		return nil, model.NewMalformedResponse(opRetrieve, "missing file download_url", nil)
	}

	info := &model.FileInfo{
		FileID:      string(resp.File.FileID),
		DownloadURL: resp.File.DownloadURL,
		Filename:    resp.File.Filename,
		Bytes:       resp.File.Bytes,
	}
	if info.FileID == "" {
		info.FileID = fileID
	}
	return info, nil
}

// do performs one API call and decodes the body into out. It never retries.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any, timeout time.Duration, out enveloped) (err error) {
	start := time.Now()
	defer func() {
		c.observe(op, start, err)
	}()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return model.NewTransportFailure(op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return model.NewTransportFailure(op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Prefer the structured status when the error body carries one.
		if jsonErr := json.Unmarshal(respBody, out); jsonErr == nil {
			if br := out.base(); br != nil && br.StatusCode != 0 {
				return model.NewProviderRejected(op, br.StatusCode, br.StatusMsg)
			}
		}
		// Bare 5xx counts against provider health.
		if resp.StatusCode >= 500 {
			return model.NewTransportFailure(op, fmt.Errorf("http %d: %s", resp.StatusCode, snippet(respBody, resp.Status)))
		}
		return model.NewProviderRejected(op, resp.StatusCode, snippet(respBody, resp.Status))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return model.NewMalformedResponse(op, "undecodable body", err)
	}
	br := out.base()
	if br == nil {
		return model.NewMalformedResponse(op, "missing base_resp", nil)
	}
	if br.StatusCode != 0 {
		return model.NewProviderRejected(op, br.StatusCode, br.StatusMsg)
	}
	return nil
}

func (c *Client) observe(op string, start time.Time, err error) {
	outcome := outcomeOf(err)
	if c.metrics != nil {
		c.metrics.ObserveProviderCall(op, outcome, time.Since(start))
	}
	if err != nil {
		c.logger.Warn("provider call failed",
			zap.String("operation", op),
			zap.String("outcome", outcome),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return
	}
	c.logger.Debug("provider call",
		zap.String("operation", op),
		zap.Duration("duration", time.Since(start)),
	)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
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

// parseImageData accepts both the documented object shape and a list of items.
func parseImageData(raw json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, errors.New("missing data")
	}

	var urls []string
	switch trimmed[0] {
	case '{':
		var d imageData
		if err := json.Unmarshal(trimmed, &d); err != nil {
			return nil, fmt.Errorf("decode data: %v", err)
		}
		urls = append(urls, d.ImageURLs...)
		urls = append(urls, d.ImageBase64...)
	case '[':
		var items []imageItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode data: %v", err)
		}
		for _, it := range items {
			urls = append(urls, firstNonEmpty(it.URL, it.B64JSON))
		}
	default:
		return nil, errors.New("unexpected data shape")
	}

	out := urls[:0]
	for _, u := range urls {
		if u != "" {
			out = append(out, u)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no images returned")
	}
	return out, nil
}

func snippet(body []byte, fallback string) string {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return fallback
	}
	if len(s) > maxErrorSnippet {
		s = s[:maxErrorSnippet]
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Compile-time interface check
var _ outbound.GenerationProviderPort = (*Client)(nil)
