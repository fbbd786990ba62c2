package ui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"clusterdash/internal/refresh"
	"clusterdash/internal/view"
	"clusterdash/pkg/sdk"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func fixture() *sdk.DashboardData {
	return &sdk.DashboardData{
		Timestamp: 1700000000,
		Servers: map[string]sdk.Server{
			"node-a": {
				Status: sdk.StatusOnline,
				CPU:    sdk.CPUInfo{CPUPercent: 45, NumCPUs: 32},
				GPUs: []sdk.GPU{{
					Index: 0, Name: "A100", TotalMemMB: 40960, UsedMemMB: 20480, MemoryPercent: 50, GPUUtil: 90,
					Users: map[string]sdk.GPUUser{"alice": {PID: 42, UsedMem: 20480}},
				}},
				Summary: sdk.ServerSummary{TotalGPUs: 4, FreeGPUs: 2, AvgGPUMemoryPercent: 55, AvgGPUUtil: floatPtr(30)},
			},
			"node-b": {
				Status:       sdk.StatusOffline,
				LastSeenMins: 90,
				CPU:          sdk.CPUInfo{CPUPercent: 85, NumCPUs: 8},
			},
		},
	}
}

type fakeSource struct {
	mu   sync.Mutex
	data *sdk.DashboardData
	err  error
}

func (f *fakeSource) GetDashboardData(ctx context.Context) (*sdk.DashboardData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data, f.err
}

func (f *fakeSource) set(data *sdk.DashboardData, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data, f.err = data, err
}

func update(t *testing.T, m tea.Model, msg tea.Msg) (dashboardModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	dm, ok := next.(dashboardModel)
	require.True(t, ok)
	return dm, cmd
}

func sized(t *testing.T, src DashboardSource) dashboardModel {
	t.Helper()
	m, _ := update(t, newDashboardModel(src, 30*time.Second), tea.WindowSizeMsg{Width: 140, Height: 50})
	return m
}

func refreshed(t *testing.T, m dashboardModel) dashboardModel {
	t.Helper()
	m, _ = update(t, m, m.fetch()())
	return m
}

func TestDashboardRendersServers(t *testing.T) {
	src := &fakeSource{data: fixture()}
	m := refreshed(t, sized(t, src))

	out := m.View()
	assert.Contains(t, out, "2 servers (1 online, 1 offline) · 2/4 GPUs free")
	assert.Contains(t, out, "node-a")
	assert.Contains(t, out, "Offline · 1h ago")
	assert.Contains(t, out, "Online · just now")
	assert.Contains(t, out, "● live")
	assert.Equal(t, refresh.Idle, m.ctrl.State())
	require.Len(t, m.cards.Cards, 2)
	assert.Equal(t, "node-a", m.cards.Cards[0].Hostname)
}

func TestDashboardFailureKeepsTimerAndRecovers(t *testing.T) {
	src := &fakeSource{err: errors.New("API request failed: 502 Bad Gateway")}
	m := refreshed(t, sized(t, src))

	out := m.View()
	assert.Contains(t, out, "Failed to load data")
	assert.Contains(t, out, "502 Bad Gateway")
	assert.Contains(t, out, "● error")

	before := m.countdown.Remaining()
	m, cmd := update(t, m, secondMsg(time.Now()))
	assert.NotNil(t, cmd)
	assert.Equal(t, before-1, m.countdown.Remaining())

	src.set(fixture(), nil)
	m = refreshed(t, m)
	out = m.View()
	assert.NotContains(t, out, "Failed to load data")
	assert.Contains(t, out, "node-a")
	assert.Contains(t, out, "● live")
}

func TestDashboardCountdownTriggersFetch(t *testing.T) {
	src := &fakeSource{data: fixture()}
	m := sized(t, src)

	for i := 0; i < 29; i++ {
		m, _ = update(t, m, secondMsg(time.Now()))
	}
	assert.False(t, m.ctrl.InFlight())

	m, _ = update(t, m, secondMsg(time.Now()))
	assert.True(t, m.ctrl.InFlight())
	assert.Equal(t, 30, m.countdown.Remaining())
}

func TestDashboardDiscardsStaleResponse(t *testing.T) {
	src := &fakeSource{data: fixture()}
	m := sized(t, src)

	stale := m.fetch()
	fresh := m.fetch()
	m, _ = update(t, m, fresh())

	old := &sdk.DashboardData{Servers: map[string]sdk.Server{"ghost": {Status: sdk.StatusOnline}}}
	staleMsg := stale().(dashboardMsg)
	staleMsg.data = old
	m, _ = update(t, m, staleMsg)

	assert.NotContains(t, m.View(), "ghost")
	require.Len(t, m.cards.Cards, 2)
}

func TestDashboardSelection(t *testing.T) {
	m := refreshed(t, sized(t, &fakeSource{data: fixture()}))

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, 1, m.cursor)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "node-b", m.selected.Hostname())
	assert.True(t, m.cards.Cards[1].Selected)
	assert.True(t, m.panels[1].Highlighted)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.selected.Active())

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.selected.Active())
	assert.False(t, m.panels[1].Highlighted)
}

func TestDashboardReloadAndQuit(t *testing.T) {
	m := sized(t, &fakeSource{data: fixture()})

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	require.NotNil(t, cmd)
	assert.True(t, m.ctrl.InFlight())

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestDashboardEmptyCluster(t *testing.T) {
	m := refreshed(t, sized(t, &fakeSource{data: &sdk.DashboardData{Servers: map[string]sdk.Server{}}}))
	assert.Contains(t, m.View(), view.EmptySummaryMessage)
}

func historyFixture(hours int) *sdk.HistoryData {
	return &sdk.HistoryData{
		Hours: hours,
		Series: []sdk.HistoryPoint{
			{Timestamp: 1700000000, FreeGPUs: 2, TotalGPUs: 8, AvgGPUUtil: 60,
				Servers: map[string]sdk.ServerPoint{"node-a": {FreeGPUs: 2}}},
			{Timestamp: 1700000300, FreeGPUs: 4, TotalGPUs: 8, AvgGPUUtil: 40,
				Servers: map[string]sdk.ServerPoint{"node-a": {FreeGPUs: 3}, "node-b": {FreeGPUs: 1}}},
		},
		Stats: sdk.WasteStats{AvgTotalGPUs: 8, AvgFreeGPUs: 3, PeakFreeGPUs: 4, WastePercent: 37.5, TotalSnapshots: 2},
	}
}

func updateHistory(t *testing.T, m tea.Model, msg tea.Msg) (historyModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	hm, ok := next.(historyModel)
	require.True(t, ok)
	return hm, cmd
}

func TestHistoryRendersChartsAndStats(t *testing.T) {
	var asked []int
	src := func(ctx context.Context, hours int) (*sdk.HistoryData, error) {
		asked = append(asked, hours)
		return historyFixture(hours), nil
	}

	m, _ := updateHistory(t, newHistoryModel(src, 24, 5*time.Minute), tea.WindowSizeMsg{Width: 120, Height: 60})
	m, _ = updateHistory(t, m, m.fetch()())

	out := m.View()
	assert.Contains(t, out, "3 of 8 GPUs sat idle on average over the last 24h")
	assert.Contains(t, out, "Avg Free GPUs")
	assert.Contains(t, out, "Free GPUs by server")
	assert.Contains(t, out, "[last 24h]")

	m, cmd := updateHistory(t, m, tea.KeyMsg{Type: tea.KeyRight})
	require.NotNil(t, cmd)
	m, _ = updateHistory(t, m, cmd())
	assert.Equal(t, []int{24, 72}, asked)
	assert.Contains(t, m.View(), "[last 3 days]")
}

func TestHistoryFailureSetsSubtitle(t *testing.T) {
	src := func(ctx context.Context, hours int) (*sdk.HistoryData, error) {
		return nil, errors.New("connection refused")
	}

	m, _ := updateHistory(t, newHistoryModel(src, 6, 5*time.Minute), tea.WindowSizeMsg{Width: 120, Height: 40})
	m, _ = updateHistory(t, m, m.fetch()())

	assert.Contains(t, m.View(), view.SubtitleFailed)
	assert.Contains(t, m.View(), "● error")
}

func TestHistoryDropsSupersededRange(t *testing.T) {
	src := func(ctx context.Context, hours int) (*sdk.HistoryData, error) {
		return historyFixture(hours), nil
	}
	m, _ := updateHistory(t, newHistoryModel(src, 24, 5*time.Minute), tea.WindowSizeMsg{Width: 120, Height: 60})

	first := m.fetch()
	m, cmd := updateHistory(t, m, tea.KeyMsg{Type: tea.KeyRight})
	m, _ = updateHistory(t, m, cmd())
	m, _ = updateHistory(t, m, first())

	assert.Equal(t, 72, m.view.Hours)
}

func TestRangeIndexFallsBackTo24h(t *testing.T) {
	assert.Equal(t, 0, rangeIndex(6))
	assert.Equal(t, 3, rangeIndex(168))
	assert.Equal(t, 1, rangeIndex(13))
}

func TestSummaryTable(t *testing.T) {
	out := RenderSummaryTable(fixture())

	assert.Contains(t, out, "Server")
	assert.Contains(t, out, "node-a")
	assert.Contains(t, out, "55%")
	assert.Contains(t, out, "85%")
	assert.Contains(t, out, "offline")
	assert.Less(t, strings.Index(out, "node-a"), strings.Index(out, "node-b"))
}

func TestSummaryRowsRoundBeforeColoring(t *testing.T) {
	data := &sdk.DashboardData{Servers: map[string]sdk.Server{
		"node-a": {Status: sdk.StatusOnline, CPU: sdk.CPUInfo{CPUPercent: 49.6},
			Summary: sdk.ServerSummary{AvgGPUMemoryPercent: 79.5}},
	}}
	rows := summaryRows(data)
	require.Len(t, rows, 1)
	assert.Equal(t, 50.0, rows[0].cpuPct)
	assert.Equal(t, 80.0, rows[0].gpuPct)
	assert.Equal(t, colorYellow, loadStyle(rows[0].cpuPct).GetForeground())
	assert.Equal(t, colorRed, loadStyle(rows[0].gpuPct).GetForeground())
}

func TestLoadStyleThresholds(t *testing.T) {
	assert.Equal(t, colorGreen, loadStyle(49.9).GetForeground())
	assert.Equal(t, colorYellow, loadStyle(50).GetForeground())
	assert.Equal(t, colorYellow, loadStyle(79).GetForeground())
	assert.Equal(t, colorRed, loadStyle(80).GetForeground())
}

func TestRenderLegacy(t *testing.T) {
	data := sdk.LegacyGPUData{
		"node-a": {
			"0_A100_abcdef": {TotalMem: 40960, UsedMem: 10240, TimeReceivedMins: 2,
				Users: map[string]map[string]sdk.LegacyProcess{"bob": {"77": {Mem: 10240}}}},
			"1_A100_123456": {TotalMem: 40960, UsedMem: 0, TimeReceivedMins: 45},
		},
	}
	out := RenderLegacy(view.BuildLegacy(data), 120)

	assert.Contains(t, out, "node-a-0_A100_abcdef")
	assert.Contains(t, out, "30.0 GB / 40.0 GB free")
	assert.Contains(t, out, "Stale reports")
	assert.Contains(t, out, "45m ago")
	assert.Contains(t, out, "bob")
	assert.Contains(t, out, "bob:77(mem: 10240, time: null)")
}
