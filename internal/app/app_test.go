package app

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedai/server/internal/infra/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeMiniMax serves the subset of the MiniMax API the server uses.
func fakeMiniMax(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/image_generation":
			_, _ = io.WriteString(w, `{"data":{"image_urls":["http://img/1.png"]},"base_resp":{"status_code":0}}`)
		case "/v1/video_generation":
			_, _ = io.WriteString(w, `{"task_id":"job-1","base_resp":{"status_code":0}}`)
		case "/v1/query/video_generation":
			_, _ = io.WriteString(w, `{"task_id":"job-1","status":"Success","file_id":"file-1","base_resp":{"status_code":0}}`)
		case "/v1/files/retrieve":
			_, _ = io.WriteString(w, `{"file":{"file_id":"file-1","download_url":"https://cdn/v.mp4"},"base_resp":{"status_code":0}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{BasePath: "/api", Mode: gin.TestMode},
		Provider: config.ProviderConfig{
			BaseURL:       baseURL,
			APIKey:        "test-key",
			ImageModel:    "image-01",
			VideoModel:    "MiniMax-Hailuo-2.3",
			SubmitTimeout: 2 * time.Second,
			PollTimeout:   2 * time.Second,
		},
		HTTPClient: config.HTTPClientConfig{ResponseTimeout: 5 * time.Second},
		Breaker:    config.BreakerConfig{Enabled: true, FailureThreshold: 5, SuccessThreshold: 1, Interval: time.Minute, Timeout: time.Second},
		Ledger:     config.LedgerConfig{Backend: config.LedgerBackendMemory, Capacity: 50},
		Poller:     config.PollerConfig{Interval: 10 * time.Millisecond, MaxAttempts: 3},
		Cache:      config.CacheConfig{FileURLTTL: time.Minute, CleanupInterval: time.Minute},
		Metrics:    config.MetricsConfig{Enabled: true, Namespace: "seedai_test", Path: "/metrics"},
		Log:        config.LogConfig{Level: "error", Format: "json"},
	}
}

func serve(a *App, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestApp_GenerationFlow(t *testing.T) {
	a, err := New(testConfig(fakeMiniMax(t).URL))
	require.NoError(t, err)
	t.Cleanup(a.Stop)

	w, body := serve(a, http.MethodPost, "/api/generate", `{"kind":"image","prompt":"a fox"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []any{"http://img/1.png"}, body["images"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w, body = serve(a, http.MethodPost, "/api/generate", `{"type":"video","prompt":"waves"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	videoID := body["id"]
	assert.Equal(t, "job-1", body["task_id"])

	w, body = serve(a, http.MethodGet, "/api/generate?taskId=job-1&wait=true", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, videoID, body["id"])
	assert.Equal(t, "succeeded", body["status"])
	assert.Equal(t, "file-1", body["result"])

	w, body = serve(a, http.MethodGet, "/api/generate?fileId=file-1", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "https://cdn/v.mp4", body["download_url"])

	w, body = serve(a, http.MethodGet, "/api/generate?action=history", "")
	require.Equal(t, http.StatusOK, w.Code)
	history := body["history"].([]any)
	require.Len(t, history, 2)
	newest := history[0].(map[string]any)
	assert.Equal(t, videoID, newest["id"])
	assert.Equal(t, "success", newest["status"])
	assert.Equal(t, "file-1", newest["result"])

	w, body = serve(a, http.MethodPost, "/api/generate", `{"kind":"audio","prompt":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
}

func TestApp_HealthAndMetrics(t *testing.T) {
	a, err := New(testConfig(fakeMiniMax(t).URL))
	require.NoError(t, err)
	t.Cleanup(a.Stop)

	w, body := serve(a, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	provider := body["provider"].(map[string]any)
	assert.Equal(t, "minimax", provider["name"])
	assert.Equal(t, "closed", provider["circuit"])

	serve(a, http.MethodGet, "/api/generate?action=history", "")

	w, _ = serve(a, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "seedai_test_http_requests_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestApp_BreakerDisabled(t *testing.T) {
	cfg := testConfig(fakeMiniMax(t).URL)
	cfg.Breaker.Enabled = false
	cfg.Metrics.Enabled = false

	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(a.Stop)

	_, body := serve(a, http.MethodGet, "/health", "")
	assert.Equal(t, "disabled", body["provider"].(map[string]any)["circuit"])

	w, _ := serve(a, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApp_RedisLedger(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(fakeMiniMax(t).URL)
	cfg.Ledger.Backend = config.LedgerBackendRedis
	cfg.Ledger.KeyPrefix = "test:ledger:"
	cfg.Ledger.TTL = time.Hour
	cfg.Redis = config.RedisConfig{Address: mr.Addr(), DialTimeout: time.Second}

	a, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(a.Stop)

	w, _ := serve(a, http.MethodPost, "/api/generate", `{"kind":"image","prompt":"a fox"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, body := serve(a, http.MethodGet, "/api/generate?action=history", "")
	history := body["history"].([]any)
	require.Len(t, history, 1)
	assert.Equal(t, "success", history[0].(map[string]any)["status"])
	assert.True(t, mr.Exists("test:ledger:index"))

	submit := func() map[string]any {
		req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"kind":"image","prompt":"a hare"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", "retry-1")
		w := httptest.NewRecorder()
		a.Router().ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		var out map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		return out
	}
	first, second := submit(), submit()
	assert.Equal(t, first["id"], second["id"])

	_, body = serve(a, http.MethodGet, "/api/generate?action=history", "")
	assert.Len(t, body["history"], 2)
}

func TestApp_RedisUnavailable(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Ledger.Backend = config.LedgerBackendRedis
	cfg.Redis = config.RedisConfig{Address: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond}

	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}
