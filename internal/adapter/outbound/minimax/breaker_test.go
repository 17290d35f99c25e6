package minimax

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedai/server/internal/model"
)

type stubProvider struct {
	calls int
	err   error
}

func (s *stubProvider) SubmitImage(ctx context.Context, prompt string, opts model.ImageOptions) (*model.ImageResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &model.ImageResult{URLs: []string{"http://img/1.png"}}, nil
}

func (s *stubProvider) SubmitVideo(ctx context.Context, prompt string, opts model.VideoOptions) (*model.VideoSubmission, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &model.VideoSubmission{JobID: "job-1"}, nil
}

func (s *stubProvider) PollVideo(ctx context.Context, jobID string) (*model.VideoJobStatus, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &model.VideoJobStatus{JobID: jobID, State: model.JobStateRunning}, nil
}

func (s *stubProvider) RetrieveFile(ctx context.Context, fileID string) (*model.FileInfo, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &model.FileInfo{FileID: fileID, DownloadURL: "https://cdn/v.mp4"}, nil
}

type recordedState struct {
	states map[string]int
}

func (r *recordedState) ObserveProviderCall(string, string, time.Duration) {}

func (r *recordedState) SetCircuitState(name string, state int) {
	r.states[name] = state
}

func testBreakerConfig() *BreakerConfig {
	cfg := DefaultBreakerConfig()
	cfg.FailureThreshold = 2
	cfg.Timeout = time.Hour
	return cfg
}

func TestBreakerProvider_PassesThrough(t *testing.T) {
	stub := &stubProvider{}
	b := NewBreakerProvider(stub, testBreakerConfig(), nil, nil)

	img, err := b.SubmitImage(context.Background(), "p", model.ImageOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"http://img/1.png"}, img.URLs)

	sub, err := b.SubmitVideo(context.Background(), "p", model.VideoOptions{})
	require.NoError(t, err)
	assert.Equal(t, "job-1", sub.JobID)

	st, err := b.PollVideo(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStateRunning, st.State)

	info, err := b.RetrieveFile(context.Background(), "f")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/v.mp4", info.DownloadURL)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerProvider_OpensOnTransportFailures(t *testing.T) {
	stub := &stubProvider{err: model.NewTransportFailure("image_generation", errors.New("connection refused"))}
	rec := &recordedState{states: map[string]int{}}
	b := NewBreakerProvider(stub, testBreakerConfig(), nil, rec)

	for i := 0; i < 2; i++ {
		_, err := b.SubmitImage(context.Background(), "p", model.ImageOptions{})
		assert.ErrorIs(t, err, model.ErrTransportFailure)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())
	assert.Equal(t, int(gobreaker.StateOpen), rec.states["minimax"])

	_, err := b.PollVideo(context.Background(), "job-1")
	require.ErrorIs(t, err, model.ErrTransportFailure)
	assert.Contains(t, err.Error(), "temporarily unavailable")
	assert.Equal(t, 2, stub.calls, "open breaker fails fast")
}

func TestBreakerProvider_IgnoresRejections(t *testing.T) {
	stub := &stubProvider{err: model.NewProviderRejected("image_generation", 1026, "sensitive")}
	b := NewBreakerProvider(stub, testBreakerConfig(), nil, nil)

	for i := 0; i < 5; i++ {
		_, err := b.SubmitImage(context.Background(), "p", model.ImageOptions{})
		assert.ErrorIs(t, err, model.ErrProviderRejected)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Equal(t, 5, stub.calls)
}

func TestBreakerProvider_OpensOnGatewayErrors(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadGateway, `bad gateway`)
	})
	b := NewBreakerProvider(client, testBreakerConfig(), nil, nil)

	for i := 0; i < 3; i++ {
		_, err := b.SubmitVideo(context.Background(), "waves", model.VideoOptions{})
		assert.ErrorIs(t, err, model.ErrTransportFailure)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}
