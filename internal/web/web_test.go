package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"clusterdash/internal/app"
	"clusterdash/internal/config"
	"clusterdash/internal/view"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoServers = `{
  "timestamp": 1700000000,
  "servers": {
    "node-b": {"status": "offline", "last_seen_mins": 42, "cpu": {"cpu_percent": 0, "num_cpus": 8},
               "gpus": [], "summary": {"total_gpus": 0, "free_gpus": 0, "avg_gpu_memory_percent": 0}},
    "node-a": {"status": "online", "last_seen_mins": 0, "cpu": {"cpu_percent": 20, "num_cpus": 32},
               "gpus": [{"index": 0, "name": "A100 <80GB>", "total_mem_mb": 81920, "used_mem_mb": 0,
                         "memory_percent": 0, "gpu_util": 0, "users": {}}],
               "summary": {"total_gpus": 4, "free_gpus": 2, "avg_gpu_memory_percent": 40, "avg_gpu_util": 35}}
  }
}`

type fakeAPI struct {
	failing atomic.Bool
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.failing.Load() {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	switch r.URL.Path {
	case "/api/dashboard-data":
		_, _ = io.WriteString(w, twoServers)
	case "/api/history-data":
		_, _ = io.WriteString(w, `{"hours": 24, "series": [
			{"timestamp": 1700000000, "free_gpus": 2, "total_gpus": 4, "servers": {"node-a": {"free_gpus": 2}}},
			{"timestamp": 1700000300, "free_gpus": 1, "total_gpus": 4, "servers": {"node-a": {"free_gpus": 1}}}],
			"stats": {"avg_total_gpus": 4, "avg_free_gpus": 1.5, "waste_percent": 37.5, "total_snapshots": 2}}`)
	default:
		http.NotFound(w, r)
	}
}

func newTestServer(t *testing.T) (*Server, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	container := app.NewContainer(&config.Config{
		ServerURL:       srv.URL,
		RefreshInterval: 30 * time.Second,
		HistoryHours:    24,
	})
	t.Cleanup(func() { _ = container.Close() })
	return NewServer(container), api
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code, rec.Body.String()
}

func TestSummaryFragmentRendersOneCardPerServer(t *testing.T) {
	s, _ := newTestServer(t)
	s.Dashboard.Poll(context.Background())

	code, body := get(t, s.Handler(), "/fragments/summary")
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, 2, strings.Count(body, `class="server-card`))
	assert.Contains(t, body, "text-secondary")
	assert.Contains(t, body, "Offline · 42m ago")
	assert.Contains(t, body, "Online · just now")
	assert.Contains(t, body, "2/4 free")
	assert.Less(t, strings.Index(body, "node-a"), strings.Index(body, "node-b"))
}

func TestSummaryFragmentMarksSelection(t *testing.T) {
	s, _ := newTestServer(t)
	s.Dashboard.Poll(context.Background())

	_, body := get(t, s.Handler(), "/fragments/summary?selected=node-b")
	assert.Equal(t, 1, strings.Count(body, `class="server-card selected"`))

	_, details := get(t, s.Handler(), "/fragments/details?selected=node-b")
	assert.Contains(t, details, `class="server-panel highlight" id="server-node-b"`)
}

func TestDetailsFragmentEscapesAndPlaceholders(t *testing.T) {
	s, _ := newTestServer(t)
	s.Dashboard.Poll(context.Background())

	_, body := get(t, s.Handler(), "/fragments/details")
	assert.Contains(t, body, "A100 &lt;80GB&gt;")
	assert.NotContains(t, body, "<80GB>")
	assert.Contains(t, body, view.IdlePlaceholder)
	assert.Contains(t, body, view.NoGPUMessage)
	assert.Contains(t, body, `id="server-node-a"`)
}

func TestFailedFetchShowsErrorThenRecovers(t *testing.T) {
	s, api := newTestServer(t)
	api.failing.Store(true)
	s.Dashboard.Poll(context.Background())

	_, body := get(t, s.Handler(), "/fragments/summary")
	assert.Contains(t, body, "Failed to load data")
	assert.Contains(t, body, "API request failed: 500 Internal Server Error")
	assert.Contains(t, body, "Retry")
	assert.Zero(t, strings.Count(body, `class="server-card`))

	api.failing.Store(false)
	s.Dashboard.Poll(context.Background())

	_, body = get(t, s.Handler(), "/fragments/summary")
	assert.NotContains(t, body, "Failed to load data")
	assert.Equal(t, 2, strings.Count(body, `class="server-card`))
}

func TestIndexCarriesDOMContract(t *testing.T) {
	s, _ := newTestServer(t)
	s.Dashboard.Poll(context.Background())

	code, body := get(t, s.Handler(), "/")
	require.Equal(t, http.StatusOK, code)
	for _, id := range []string{"summary-cards", "gpu-details", "last-update", "cluster-summary", "live-indicator"} {
		assert.Contains(t, body, `id="`+id+`"`)
	}
	assert.Contains(t, body, "2 servers (1 online, 1 offline) · 2/4 GPUs free")
	assert.Contains(t, body, "Updated: ")
	assert.Regexp(t, `const interval =\s*30\s*;`, body)
}

func TestIndexBeforeFirstFetch(t *testing.T) {
	s, _ := newTestServer(t)

	_, body := get(t, s.Handler(), "/fragments/summary")
	assert.Contains(t, body, "Loading...")
}

func TestHistoryPage(t *testing.T) {
	s, api := newTestServer(t)

	code, body := get(t, s.Handler(), "/history?hours=24")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, view.FreeGPUsChartID)
	assert.Contains(t, body, `id="time-range"`)

	code, _ = get(t, s.Handler(), "/history?hours=abc")
	assert.Equal(t, http.StatusBadRequest, code)

	api.failing.Store(true)
	_, body = get(t, s.Handler(), "/history")
	assert.Contains(t, body, view.SubtitleFailed)
}

func TestPollPublishesToHub(t *testing.T) {
	s, _ := newTestServer(t)
	s.Dashboard.Poll(context.Background())

	hub := s.HubManager.GetHub(dashboardTopic)
	require.Eventually(t, func() bool {
		return len(hub.GetHistorySnapshot()) == 1
	}, time.Second, 10*time.Millisecond)

	var msg update
	require.NoError(t, json.Unmarshal(hub.GetHistorySnapshot()[0], &msg))
	assert.Equal(t, "live", msg.Indicator)
	assert.Equal(t, 2, strings.Count(msg.Summary, `class="server-card`))
	assert.Contains(t, msg.Updated, "Updated: ")
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	s.Dashboard.Poll(context.Background())
	get(t, s.Handler(), "/fragments/summary")

	code, body := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "clusterdash_refresh_total")
	assert.Contains(t, body, "clusterdash_web_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/fragments/summary", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
