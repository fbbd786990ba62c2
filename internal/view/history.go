package view

import (
	"fmt"
	"sort"
	"time"

	"clusterdash/internal/format"
	"clusterdash/pkg/sdk"
)

const (
	FreeGPUsChartID        = "free-gpus-chart"
	ServerBreakdownChartID = "server-breakdown-chart"
	UtilizationChartID     = "utilization-chart"
)

const (
	SubtitleCollecting = "Collecting data... Check back in a few hours for your first waste report."
	SubtitleNoData     = "No data yet."
	SubtitleFailed     = "Failed to load history data. Is the server running?"
)

// RangeOptions are the selectable history windows, in hours.
var RangeOptions = []int{6, 24, 72, 168, 720}

type Series struct {
	Name   string
	Values []float64
}

type Chart struct {
	ID      string
	Title   string
	Times   []time.Time
	Series  []Series
	Stacked bool
	Percent bool
}

type StatCard struct {
	Value string
	Label string
}

type HistoryView struct {
	Hours      int
	RangeLabel string
	Empty      bool
	Failed     bool
	Charts     []Chart
	Stats      []StatCard
	Subtitle   string
}

// BuildHistory shapes a history payload into three charts, four stat cards
// and the waste subtitle. Fewer than two points yields an empty view.
func BuildHistory(data *sdk.HistoryData, hours int) HistoryView {
	v := HistoryView{Hours: hours, RangeLabel: format.RangeLabel(hours)}
	if data == nil || len(data.Series) < 2 {
		v.Empty = true
		v.Subtitle = SubtitleCollecting
		return v
	}

	series := data.Series
	times := make([]time.Time, len(series))
	free := make([]float64, len(series))
	total := make([]float64, len(series))
	util := make([]float64, len(series))
	mem := make([]float64, len(series))
	for i, p := range series {
		times[i] = p.Time()
		free[i] = p.FreeGPUs
		total[i] = p.TotalGPUs
		util[i] = p.AvgGPUUtil
		mem[i] = p.AvgGPUMemoryPercent
	}

	v.Charts = []Chart{
		{
			ID:    FreeGPUsChartID,
			Title: "Free GPUs",
			Times: times,
			Series: []Series{
				{Name: "Free GPUs", Values: free},
				{Name: "Total GPUs", Values: total},
			},
		},
		{
			ID:      ServerBreakdownChartID,
			Title:   "Free GPUs by server",
			Times:   times,
			Series:  serverBreakdown(series),
			Stacked: true,
		},
		{
			ID:    UtilizationChartID,
			Title: "Utilization",
			Times: times,
			Series: []Series{
				{Name: "Avg GPU Util %", Values: util},
				{Name: "Avg GPU Memory %", Values: mem},
			},
			Percent: true,
		},
	}

	stats := data.Stats
	v.Stats = []StatCard{
		{Value: format.Number(stats.AvgFreeGPUs), Label: "Avg Free GPUs"},
		{Value: format.Number(stats.PeakFreeGPUs), Label: "Peak Idle"},
		{Value: format.Number(stats.AvgClusterUtil) + "%", Label: "Avg GPU Util"},
		{Value: format.Number(stats.WastePercent) + "%", Label: "Waste"},
	}
	v.Subtitle = wasteSubtitle(stats, v.RangeLabel)
	return v
}

// FailedHistory is shown when the history fetch fails.
func FailedHistory(hours int) HistoryView {
	return HistoryView{
		Hours:      hours,
		RangeLabel: format.RangeLabel(hours),
		Failed:     true,
		Subtitle:   SubtitleFailed,
	}
}

// Chart looks up a chart by its element id.
func (v HistoryView) Chart(id string) (Chart, bool) {
	for _, c := range v.Charts {
		if c.ID == id {
			return c, true
		}
	}
	return Chart{}, false
}

func wasteSubtitle(stats sdk.WasteStats, label string) string {
	if stats.TotalSnapshots == 0 {
		return SubtitleNoData
	}
	return fmt.Sprintf("%s of %s GPUs sat idle on average over the %s. That's %s%% waste.",
		format.Number(stats.AvgFreeGPUs), format.Number(stats.AvgTotalGPUs), label,
		format.Number(stats.WastePercent))
}

// serverBreakdown yields one series per server seen anywhere in the window,
// sorted by name. Points where a server did not report count as zero.
func serverBreakdown(series []sdk.HistoryPoint) []Series {
	seen := map[string]struct{}{}
	for _, p := range series {
		for name := range p.Servers {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Series, 0, len(names))
	for _, name := range names {
		values := make([]float64, len(series))
		for i, p := range series {
			if sp, ok := p.Servers[name]; ok {
				values[i] = sp.FreeGPUs
			}
		}
		out = append(out, Series{Name: name, Values: values})
	}
	return out
}
