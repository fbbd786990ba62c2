package ui

import (
	"fmt"
	"math"

	"clusterdash/internal/format"
	"clusterdash/pkg/sdk"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const (
	colGPUPercent = 3
	colCPUPercent = 4
	colStatus     = 5
)

type summaryRow struct {
	name      string
	totalGPUs int
	freeGPUs  int
	gpuPct    float64
	cpuPct    float64
	online    bool
}

func summaryRows(data *sdk.DashboardData) []summaryRow {
	rows := make([]summaryRow, 0, len(data.Servers))
	for _, name := range data.Hostnames() {
		s := data.Servers[name]
		rows = append(rows, summaryRow{
			name:      name,
			totalGPUs: s.Summary.TotalGPUs,
			freeGPUs:  s.Summary.FreeGPUs,
			gpuPct:    math.RoundToEven(s.Summary.AvgGPUMemoryPercent),
			cpuPct:    math.RoundToEven(s.CPU.CPUPercent),
			online:    s.Online(),
		})
	}
	return rows
}

// RenderSummaryTable is the one-shot per-server table printed by `summary`.
func RenderSummaryTable(data *sdk.DashboardData) string {
	rows := summaryRows(data)
	if len(rows) == 0 {
		return descStyle.Render("No server data available. Waiting for servers to report...")
	}

	cells := make([][]string, len(rows))
	for i, r := range rows {
		status := sdk.StatusOffline
		if r.online {
			status = sdk.StatusOnline
		}
		cells[i] = []string{
			r.name,
			fmt.Sprint(r.totalGPUs),
			fmt.Sprint(r.freeGPUs),
			format.Percent(r.gpuPct),
			format.Percent(r.cpuPct),
			status,
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(grayStyle).
		Headers("Server", "GPUs", "Free", "GPU%", "CPU%", "Status").
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			cell := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return cell.Bold(true)
			}
			if row < 0 || row >= len(rows) {
				return cell
			}
			r := rows[row]
			switch col {
			case colGPUPercent:
				return cell.Inherit(loadStyle(r.gpuPct))
			case colCPUPercent:
				return cell.Inherit(loadStyle(r.cpuPct))
			case colStatus:
				if r.online {
					return cell.Inherit(greenStyle)
				}
				return cell.Inherit(redStyle)
			}
			return cell
		})

	return t.Render()
}
