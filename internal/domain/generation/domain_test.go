package generation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seedai/server/internal/adapter/outbound/ledger"
	"github.com/seedai/server/internal/model"
	"github.com/seedai/server/internal/port/inbound"
	"github.com/seedai/server/internal/port/outbound"
)

// --- Mock implementations ---

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) SubmitImage(ctx context.Context, prompt string, opts model.ImageOptions) (*model.ImageResult, error) {
	args := m.Called(ctx, prompt, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ImageResult), args.Error(1)
}

func (m *MockProvider) SubmitVideo(ctx context.Context, prompt string, opts model.VideoOptions) (*model.VideoSubmission, error) {
	args := m.Called(ctx, prompt, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.VideoSubmission), args.Error(1)
}

func (m *MockProvider) PollVideo(ctx context.Context, jobID string) (*model.VideoJobStatus, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// Return a copy so the domain can annotate it freely.
	st := *args.Get(0).(*model.VideoJobStatus)
	return &st, args.Error(1)
}

func (m *MockProvider) RetrieveFile(ctx context.Context, fileID string) (*model.FileInfo, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FileInfo), args.Error(1)
}

var _ outbound.GenerationProviderPort = (*MockProvider)(nil)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Create(ctx context.Context, kind model.Kind, prompt string) (string, error) {
	args := m.Called(ctx, kind, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockLedger) Update(ctx context.Context, id string, status model.Status, result string) error {
	args := m.Called(ctx, id, status, result)
	return args.Error(0)
}

func (m *MockLedger) List(ctx context.Context, limit int) ([]*model.GenerationRequest, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.GenerationRequest), args.Error(1)
}

var _ outbound.LedgerPort = (*MockLedger)(nil)

type mapFileCache struct {
	items map[string]*model.FileInfo
}

func (c *mapFileCache) Get(fileID string) (*model.FileInfo, bool) {
	info, ok := c.items[fileID]
	return info, ok
}

func (c *mapFileCache) Set(fileID string, info *model.FileInfo, _ time.Duration) {
	c.items[fileID] = info
}

type countingMetrics struct {
	submissions map[string]int
	polls       map[string]int
	hits        int
	misses      int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{submissions: map[string]int{}, polls: map[string]int{}}
}

func (c *countingMetrics) RecordSubmission(kind, outcome string) { c.submissions[kind+"/"+outcome]++ }
func (c *countingMetrics) RecordVideoPoll(state string)          { c.polls[state]++ }
func (c *countingMetrics) RecordCacheHit(string)                 { c.hits++ }
func (c *countingMetrics) RecordCacheMiss(string)                { c.misses++ }

func newMemoryLedger(t *testing.T) *ledger.MemoryLedger {
	t.Helper()
	l, err := ledger.NewMemoryLedger(50)
	require.NoError(t, err)
	return l
}

func history(t *testing.T, d *Domain) []*model.GenerationRequest {
	t.Helper()
	records, err := d.History(context.Background(), 0)
	require.NoError(t, err)
	return records
}

// --- Tests ---

func TestDomain_Submit_Image(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("success records first url and returns all", func(t *testing.T) {
		provider := new(MockProvider)
		metrics := newCountingMetrics()
		domain := NewDomain(newMemoryLedger(t), provider, nil, metrics, nil, logger)

		provider.On("SubmitImage", mock.Anything, "a red apple", model.ImageOptions{}).
			Return(&model.ImageResult{URLs: []string{"http://x/1.png"}}, nil).Once()

		out, err := domain.Submit(ctx, &inbound.SubmitInput{Kind: model.KindImage, Prompt: "a red apple"})
		require.NoError(t, err)
		assert.NotEmpty(t, out.ID)
		assert.Equal(t, []string{"http://x/1.png"}, out.Images)

		records := history(t, domain)
		require.Len(t, records, 1)
		assert.Equal(t, out.ID, records[0].ID)
		assert.Equal(t, model.StatusSuccess, records[0].Status)
		assert.Equal(t, "http://x/1.png", records[0].Result)
		assert.Equal(t, 1, metrics.submissions["image/success"])
		provider.AssertExpectations(t)
	})

	t.Run("several urls keep order", func(t *testing.T) {
		provider := new(MockProvider)
		domain := NewDomain(newMemoryLedger(t), provider, nil, nil, nil, logger)
		urls := []string{"http://x/a.png", "http://x/b.png", "http://x/c.png"}

		provider.On("SubmitImage", mock.Anything, "three cats", model.ImageOptions{Count: 3}).
			Return(&model.ImageResult{URLs: urls}, nil).Once()

		out, err := domain.Submit(ctx, &inbound.SubmitInput{
			Kind:   model.KindImage,
			Prompt: "  three cats  ",
			Image:  model.ImageOptions{Count: 3},
		})
		require.NoError(t, err)
		assert.Equal(t, urls, out.Images)

		records := history(t, domain)
		assert.Equal(t, "http://x/a.png", records[0].Result)
		assert.Equal(t, "three cats", records[0].Prompt)
	})

	t.Run("transport failure marks record failed", func(t *testing.T) {
		provider := new(MockProvider)
		metrics := newCountingMetrics()
		domain := NewDomain(newMemoryLedger(t), provider, nil, metrics, nil, logger)

		provider.On("SubmitImage", mock.Anything, "a red apple", mock.Anything).
			Return(nil, model.NewTransportFailure("image_generation", errors.New("connection reset"))).Once()

		out, err := domain.Submit(ctx, &inbound.SubmitInput{Kind: model.KindImage, Prompt: "a red apple"})
		assert.Nil(t, out)
		require.ErrorIs(t, err, model.ErrTransportFailure)
		assert.Contains(t, err.Error(), "connection reset")

		records := history(t, domain)
		require.Len(t, records, 1)
		assert.Equal(t, model.StatusFailed, records[0].Status)
		assert.Equal(t, 1, metrics.submissions["image/transport_failure"])
	})

	t.Run("provider rejection marks record failed", func(t *testing.T) {
		provider := new(MockProvider)
		domain := NewDomain(newMemoryLedger(t), provider, nil, nil, nil, logger)

		provider.On("SubmitImage", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, model.NewProviderRejected("image_generation", 1026, "sensitive content")).Once()

		_, err := domain.Submit(ctx, &inbound.SubmitInput{Kind: model.KindImage, Prompt: "x"})
		require.ErrorIs(t, err, model.ErrProviderRejected)
		assert.Equal(t, model.StatusFailed, history(t, domain)[0].Status)
	})

	t.Run("empty result from provider is malformed", func(t *testing.T) {
		provider := new(MockProvider)
		domain := NewDomain(newMemoryLedger(t), provider, nil, nil, nil, logger)

		provider.On("SubmitImage", mock.Anything, mock.Anything, mock.Anything).
			Return(&model.ImageResult{}, nil).Once()

		_, err := domain.Submit(ctx, &inbound.SubmitInput{Kind: model.KindImage, Prompt: "x"})
		require.ErrorIs(t, err, model.ErrMalformedResponse)
		assert.Equal(t, model.StatusFailed, history(t, domain)[0].Status)
	})
}

func TestDomain_Submit_Video(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("returns job id and stays pending", func(t *testing.T) {
		provider := new(MockProvider)
		domain := NewDomain(newMemoryLedger(t), provider, nil, nil, nil, logger)

		provider.On("SubmitVideo", mock.Anything, "a dog running", model.VideoOptions{}).
			Return(&model.VideoSubmission{JobID: "job-42"}, nil).Once()

		out, err := domain.Submit(ctx, &inbound.SubmitInput{Kind: model.KindVideo, Prompt: "a dog running"})
		require.NoError(t, err)
		assert.Equal(t, "job-42", out.JobID)
		assert.Empty(t, out.Images)

		records := history(t, domain)
		require.Len(t, records, 1)
		assert.Equal(t, model.StatusPending, records[0].Status)
		assert.Equal(t, "job-42", records[0].Result)

		// Submission never polls.
		provider.AssertNotCalled(t, "PollVideo", mock.Anything, mock.Anything)
	})

	t.Run("failure marks record failed", func(t *testing.T) {
		provider := new(MockProvider)
		domain := NewDomain(newMemoryLedger(t), provider, nil, nil, nil, logger)

		provider.On("SubmitVideo", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, model.NewMalformedResponse("video_generation", "missing task_id", nil)).Once()

		_, err := domain.Submit(ctx, &inbound.SubmitInput{Kind: model.KindVideo, Prompt: "waves"})
		require.ErrorIs(t, err, model.ErrMalformedResponse)
		assert.Equal(t, model.StatusFailed, history(t, domain)[0].Status)
	})
}

func TestDomain_Submit_Validation(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	tests := []struct {
		name  string
		input *inbound.SubmitInput
		field string
	}{
		{"nil input", nil, ""},
		{"empty prompt", &inbound.SubmitInput{Kind: model.KindImage, Prompt: ""}, "prompt"},
		{"whitespace prompt", &inbound.SubmitInput{Kind: model.KindVideo, Prompt: "   \n\t"}, "prompt"},
		{"unsupported kind", &inbound.SubmitInput{Kind: "audio", Prompt: "hi"}, "kind"},
		{"empty kind", &inbound.SubmitInput{Prompt: "hi"}, "kind"},
		{"bad aspect ratio", &inbound.SubmitInput{Kind: model.KindImage, Prompt: "hi", Image: model.ImageOptions{AspectRatio: "5:7"}}, "options.aspect_ratio"},
		{"too many images", &inbound.SubmitInput{Kind: model.KindImage, Prompt: "hi", Image: model.ImageOptions{Count: 10}}, "options.n"},
		{"bad duration", &inbound.SubmitInput{Kind: model.KindVideo, Prompt: "hi", Video: model.VideoOptions{DurationSeconds: 7}}, "options.duration"},
		{"bad resolution", &inbound.SubmitInput{Kind: model.KindVideo, Prompt: "hi", Video: model.VideoOptions{Resolution: "4K"}}, "options.resolution"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := new(MockLedger)
			provider := new(MockProvider)
			domain := NewDomain(l, provider, nil, nil, nil, logger)

			out, err := domain.Submit(ctx, tt.input)
			assert.Nil(t, out)
			require.ErrorIs(t, err, model.ErrValidation)
			if tt.field != "" {
				assert.Contains(t, err.Error(), tt.field)
			}

			l.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
			provider.AssertNotCalled(t, "SubmitImage", mock.Anything, mock.Anything, mock.Anything)
			provider.AssertNotCalled(t, "SubmitVideo", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("video options are ignored for images", func(t *testing.T) {
		provider := new(MockProvider)
		domain := NewDomain(newMemoryLedger(t), provider, nil, nil, nil, logger)
		provider.On("SubmitImage", mock.Anything, "hi", mock.Anything).
			Return(&model.ImageResult{URLs: []string{"u"}}, nil).Once()

		_, err := domain.Submit(ctx, &inbound.SubmitInput{
			Kind:   model.KindImage,
			Prompt: "hi",
			Video:  model.VideoOptions{DurationSeconds: 99},
		})
		assert.NoError(t, err)
	})

	t.Run("prompt too long", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MaxPromptLength = 5
		l := new(MockLedger)
		domain := NewDomain(l, new(MockProvider), nil, nil, cfg, logger)

		_, err := domain.Submit(ctx, &inbound.SubmitInput{Kind: model.KindImage, Prompt: "abcdef"})
		assert.ErrorIs(t, err, model.ErrValidation)
		l.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("history unchanged", func(t *testing.T) {
		domain := NewDomain(newMemoryLedger(t), new(MockProvider), nil, nil, nil, logger)

		_, err := domain.Submit(ctx, &inbound.SubmitInput{Kind: model.KindImage, Prompt: ""})
		require.Error(t, err)
		assert.Empty(t, history(t, domain))
	})
}

func TestDomain_Submit_LedgerErrors(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("create failure stops before the provider", func(t *testing.T) {
		l := new(MockLedger)
		provider := new(MockProvider)
		domain := NewDomain(l, provider, nil, nil, nil, logger)

		l.On("Create", mock.Anything, model.KindImage, "hi").Return("", errors.New("redis down")).Once()

		_, err := domain.Submit(ctx, &inbound.SubmitInput{Kind: model.KindImage, Prompt: "hi"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis down")
		provider.AssertNotCalled(t, "SubmitImage", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("update failure still returns the result", func(t *testing.T) {
		l := new(MockLedger)
		provider := new(MockProvider)
		domain := NewDomain(l, provider, nil, nil, nil, logger)

		l.On("Create", mock.Anything, model.KindImage, "hi").Return("id-1", nil).Once()
		l.On("Update", mock.Anything, "id-1", model.StatusSuccess, "u").Return(errors.New("redis down")).Once()
		provider.On("SubmitImage", mock.Anything, "hi", mock.Anything).
			Return(&model.ImageResult{URLs: []string{"u"}}, nil).Once()

		out, err := domain.Submit(ctx, &inbound.SubmitInput{Kind: model.KindImage, Prompt: "hi"})
		require.NoError(t, err)
		assert.Equal(t, "id-1", out.ID)
		l.AssertExpectations(t)
	})
}

func TestDomain_QueryStatus(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	submitVideo := func(t *testing.T, domain *Domain, provider *MockProvider, jobID string) string {
		t.Helper()
		provider.On("SubmitVideo", mock.Anything, mock.Anything, mock.Anything).
			Return(&model.VideoSubmission{JobID: jobID}, nil).Once()
		out, err := domain.Submit(ctx, &inbound.SubmitInput{Kind: model.KindVideo, Prompt: "a dog running"})
		require.NoError(t, err)
		return out.ID
	}

	t.Run("running three times then succeeded", func(t *testing.T) {
		provider := new(MockProvider)
		metrics := newCountingMetrics()
		domain := NewDomain(newMemoryLedger(t), provider, nil, metrics, nil, logger)
		id := submitVideo(t, domain, provider, "job-42")

		provider.On("PollVideo", mock.Anything, "job-42").
			Return(&model.VideoJobStatus{JobID: "job-42", State: model.JobStateRunning, ProviderStatus: "Processing"}, nil).Times(3)
		provider.On("PollVideo", mock.Anything, "job-42").
			Return(&model.VideoJobStatus{JobID: "job-42", State: model.JobStateSucceeded, OutputRef: "http://x/v.mp4"}, nil).Once()

		for i := 0; i < 3; i++ {
			st, err := domain.QueryStatus(ctx, id, "job-42")
			require.NoError(t, err)
			assert.Equal(t, model.JobStateRunning, st.State)

			rec := history(t, domain)[0]
			assert.Equal(t, model.StatusPending, rec.Status, "poll %d", i+1)
			assert.Equal(t, "job-42", rec.Result)
		}

		st, err := domain.QueryStatus(ctx, id, "job-42")
		require.NoError(t, err)
		assert.Equal(t, model.JobStateSucceeded, st.State)
		assert.Equal(t, id, st.RequestID)

		rec := history(t, domain)[0]
		assert.Equal(t, model.StatusSuccess, rec.Status)
		assert.Equal(t, "http://x/v.mp4", rec.Result)

		assert.Equal(t, 3, metrics.polls["running"])
		assert.Equal(t, 1, metrics.polls["succeeded"])
		provider.AssertExpectations(t)
	})

	t.Run("finds record by job id", func(t *testing.T) {
		provider := new(MockProvider)
		domain := NewDomain(newMemoryLedger(t), provider, nil, nil, nil, logger)
		id := submitVideo(t, domain, provider, "job-7")

		provider.On("PollVideo", mock.Anything, "job-7").
			Return(&model.VideoJobStatus{JobID: "job-7", State: model.JobStateFailed, ProviderStatus: "Fail"}, nil).Once()

		st, err := domain.QueryStatus(ctx, "", "job-7")
		require.NoError(t, err)
		assert.Equal(t, id, st.RequestID)

		rec := history(t, domain)[0]
		assert.Equal(t, model.StatusFailed, rec.Status)
		assert.Equal(t, "job-7", rec.Result)
	})

	t.Run("unknown job still reports status", func(t *testing.T) {
		provider := new(MockProvider)
		domain := NewDomain(newMemoryLedger(t), provider, nil, nil, nil, logger)

		provider.On("PollVideo", mock.Anything, "job-x").
			Return(&model.VideoJobStatus{JobID: "job-x", State: model.JobStateSucceeded, OutputRef: "f"}, nil).Once()

		st, err := domain.QueryStatus(ctx, "", "job-x")
		require.NoError(t, err)
		assert.Empty(t, st.RequestID)
		assert.Empty(t, history(t, domain))
	})

	t.Run("poll error leaves ledger untouched", func(t *testing.T) {
		provider := new(MockProvider)
		domain := NewDomain(newMemoryLedger(t), provider, nil, nil, nil, logger)
		id := submitVideo(t, domain, provider, "job-9")

		provider.On("PollVideo", mock.Anything, "job-9").
			Return(nil, model.NewTransportFailure("query_video_generation", context.DeadlineExceeded)).Once()

		_, err := domain.QueryStatus(ctx, id, "job-9")
		require.ErrorIs(t, err, model.ErrTransportFailure)

		rec := history(t, domain)[0]
		assert.Equal(t, model.StatusPending, rec.Status)
		assert.Equal(t, "job-9", rec.Result)
	})

	t.Run("terminal record is never flipped", func(t *testing.T) {
		provider := new(MockProvider)
		domain := NewDomain(newMemoryLedger(t), provider, nil, nil, nil, logger)
		id := submitVideo(t, domain, provider, "job-1")

		provider.On("PollVideo", mock.Anything, "job-1").
			Return(&model.VideoJobStatus{JobID: "job-1", State: model.JobStateSucceeded, OutputRef: "file-1"}, nil).Once()
		provider.On("PollVideo", mock.Anything, "job-1").
			Return(&model.VideoJobStatus{JobID: "job-1", State: model.JobStateFailed}, nil).Once()

		_, err := domain.QueryStatus(ctx, id, "job-1")
		require.NoError(t, err)
		_, err = domain.QueryStatus(ctx, id, "job-1")
		require.NoError(t, err)

		rec := history(t, domain)[0]
		assert.Equal(t, model.StatusSuccess, rec.Status)
		assert.Equal(t, "file-1", rec.Result)
	})

	t.Run("evicted id is a silent no-op", func(t *testing.T) {
		provider := new(MockProvider)
		domain := NewDomain(newMemoryLedger(t), provider, nil, nil, nil, logger)

		provider.On("PollVideo", mock.Anything, "job-1").
			Return(&model.VideoJobStatus{JobID: "job-1", State: model.JobStateSucceeded, OutputRef: "file-1"}, nil).Once()

		st, err := domain.QueryStatus(ctx, "gone", "job-1")
		require.NoError(t, err)
		assert.Equal(t, model.JobStateSucceeded, st.State)
		assert.Empty(t, history(t, domain))
	})

	t.Run("mismatched id does not settle another record", func(t *testing.T) {
		provider := new(MockProvider)
		l := newMemoryLedger(t)
		domain := NewDomain(l, provider, nil, nil, nil, logger)

		imageID, err := l.Create(ctx, model.KindImage, "a cat")
		require.NoError(t, err)
		otherVideo := submitVideo(t, domain, provider, "job-a")
		target := submitVideo(t, domain, provider, "job-b")

		provider.On("PollVideo", mock.Anything, "job-b").
			Return(&model.VideoJobStatus{JobID: "job-b", State: model.JobStateSucceeded, OutputRef: "file-b"}, nil).Twice()

		st, err := domain.QueryStatus(ctx, imageID, "job-b")
		require.NoError(t, err)
		assert.Equal(t, target, st.RequestID)

		st, err = domain.QueryStatus(ctx, otherVideo, "job-b")
		require.NoError(t, err)
		assert.Empty(t, st.RequestID)

		byID := map[string]*model.GenerationRequest{}
		for _, rec := range history(t, domain) {
			byID[rec.ID] = rec
		}
		assert.Equal(t, model.StatusPending, byID[imageID].Status)
		assert.Empty(t, byID[imageID].Result)
		assert.Equal(t, model.StatusPending, byID[otherVideo].Status)
		assert.Equal(t, "job-a", byID[otherVideo].Result)
		assert.Equal(t, model.StatusSuccess, byID[target].Status)
		assert.Equal(t, "file-b", byID[target].Result)
	})

	t.Run("missing job id", func(t *testing.T) {
		provider := new(MockProvider)
		domain := NewDomain(newMemoryLedger(t), provider, nil, nil, nil, logger)

		_, err := domain.QueryStatus(ctx, "", " ")
		assert.ErrorIs(t, err, model.ErrValidation)
		provider.AssertNotCalled(t, "PollVideo", mock.Anything, mock.Anything)
	})
}

func TestDomain_History(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	provider := new(MockProvider)
	provider.On("SubmitImage", mock.Anything, mock.Anything, mock.Anything).
		Return(&model.ImageResult{URLs: []string{"u"}}, nil)
	domain := NewDomain(newMemoryLedger(t), provider, nil, nil, nil, logger)

	for i := 1; i <= 60; i++ {
		_, err := domain.Submit(ctx, &inbound.SubmitInput{Kind: model.KindImage, Prompt: fmt.Sprintf("p%d", i)})
		require.NoError(t, err)
	}

	t.Run("default limit", func(t *testing.T) {
		records, err := domain.History(ctx, 0)
		require.NoError(t, err)
		require.Len(t, records, 50)
		assert.Equal(t, "p60", records[0].Prompt)
		assert.Equal(t, "p11", records[49].Prompt)
	})

	t.Run("explicit limit", func(t *testing.T) {
		records, err := domain.History(ctx, 3)
		require.NoError(t, err)
		require.Len(t, records, 3)
		for i := 1; i < len(records); i++ {
			assert.False(t, records[i].CreatedAt.After(records[i-1].CreatedAt))
		}
		assert.Equal(t, "p60", records[0].Prompt)
	})

	t.Run("ledger error", func(t *testing.T) {
		l := new(MockLedger)
		l.On("List", mock.Anything, 50).Return(nil, errors.New("boom")).Once()
		d := NewDomain(l, provider, nil, nil, nil, logger)

		_, err := d.History(ctx, -1)
		assert.Error(t, err)
	})
}

func TestDomain_ResolveFile(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("caches resolved urls", func(t *testing.T) {
		provider := new(MockProvider)
		cache := &mapFileCache{items: map[string]*model.FileInfo{}}
		metrics := newCountingMetrics()
		domain := NewDomain(newMemoryLedger(t), provider, cache, metrics, nil, logger)

		provider.On("RetrieveFile", mock.Anything, "2058").
			Return(&model.FileInfo{FileID: "2058", DownloadURL: "https://cdn/v.mp4"}, nil).Once()

		for i := 0; i < 3; i++ {
			info, err := domain.ResolveFile(ctx, "2058")
			require.NoError(t, err)
			assert.Equal(t, "https://cdn/v.mp4", info.DownloadURL)
		}
		provider.AssertExpectations(t)
		assert.Equal(t, 1, metrics.misses)
		assert.Equal(t, 2, metrics.hits)
	})

	t.Run("errors are not cached", func(t *testing.T) {
		provider := new(MockProvider)
		cache := &mapFileCache{items: map[string]*model.FileInfo{}}
		domain := NewDomain(newMemoryLedger(t), provider, cache, nil, nil, logger)

		provider.On("RetrieveFile", mock.Anything, "f").
			Return(nil, model.NewProviderRejected("retrieve_file", 2013, "invalid params")).Once()

		_, err := domain.ResolveFile(ctx, "f")
		require.ErrorIs(t, err, model.ErrProviderRejected)
		assert.Empty(t, cache.items)
	})

	t.Run("missing file id", func(t *testing.T) {
		domain := NewDomain(newMemoryLedger(t), new(MockProvider), nil, nil, nil, logger)
		_, err := domain.ResolveFile(ctx, "")
		assert.ErrorIs(t, err, model.ErrValidation)
	})
}
