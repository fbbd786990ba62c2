package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clusterdash/internal/view"
	"clusterdash/pkg/sdk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func historyView() view.HistoryView {
	data := &sdk.HistoryData{
		Series: []sdk.HistoryPoint{
			{Timestamp: 1700000000, FreeGPUs: 2, TotalGPUs: 8, AvgGPUUtil: 50,
				Servers: map[string]sdk.ServerPoint{"gpu-a": {FreeGPUs: 2}}},
			{Timestamp: 1700000300, FreeGPUs: 3, TotalGPUs: 8, AvgGPUUtil: 40,
				Servers: map[string]sdk.ServerPoint{"gpu-a": {FreeGPUs: 1}, "gpu-b": {FreeGPUs: 2}}},
		},
		Stats: sdk.WasteStats{AvgTotalGPUs: 8, AvgFreeGPUs: 2.5, PeakFreeGPUs: 3, WastePercent: 31.3, TotalSnapshots: 2},
	}
	return view.BuildHistory(data, 24)
}

func TestRenderIncludesChartsAndStats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, historyView(), Options{Title: "cluster <history>"}))
	out := buf.String()

	for _, id := range []string{"free-gpus-chart", "server-breakdown-chart", "utilization-chart", "waste-stats", "waste-subtitle"} {
		assert.Contains(t, out, id)
	}
	assert.Contains(t, out, "2.5 of 8 GPUs sat idle on average over the last 24h. That&#39;s 31.3% waste.")
	assert.Contains(t, out, "Peak Idle")
	assert.Contains(t, out, "gpu-b")
	assert.NotContains(t, out, `id="time-range"`)
	assert.Contains(t, out, "cluster &lt;history&gt;")
}

func TestRenderSelectorMarksCurrentRange(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, historyView(), Options{Selector: true}))
	out := buf.String()

	assert.Contains(t, out, `id="time-range"`)
	assert.Contains(t, out, `<option value="24" selected>24 hours</option>`)
	assert.Contains(t, out, `<option value="168">7 days</option>`)
}

func TestRenderEmptyView(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, view.BuildHistory(nil, 24), Options{}))
	out := buf.String()

	assert.Contains(t, out, view.SubtitleCollecting)
	assert.NotContains(t, out, "free-gpus-chart")
	assert.True(t, strings.Contains(out, `<div id="empty-state">`))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	require.NoError(t, WriteFile(path, view.FailedHistory(24), Options{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), view.SubtitleFailed)
	assert.Contains(t, string(data), "text-danger")
}

func TestTimeLabels(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, []string{"09:30", "10:30"}, timeLabels([]time.Time{t0, t0.Add(time.Hour)}))
	assert.Equal(t, []string{"Mar 1 09:30", "Mar 3 09:30"}, timeLabels([]time.Time{t0, t0.Add(48 * time.Hour)}))
}

func TestChartIDsStayValidJavaScript(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, historyView(), Options{}))
	out := buf.String()

	assert.Contains(t, out, `id="free-gpus-chart"`)
	assert.Contains(t, out, `getElementById('free-gpus-chart')`)
	assert.Contains(t, out, "goecharts_free_gpus_chart")
	assert.NotContains(t, out, "goecharts_free-gpus-chart")
}
