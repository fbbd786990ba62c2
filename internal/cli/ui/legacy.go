package ui

import (
	"fmt"
	"strings"

	"clusterdash/internal/format"
	"clusterdash/internal/view"

	"github.com/charmbracelet/lipgloss"
)

const legacyNameWidth = 32

// RenderLegacy draws the gpu-data-simple feed: free memory per GPU, then
// each user's memory across every GPU.
func RenderLegacy(v view.LegacyView, width int) string {
	barWidth := width - legacyNameWidth - 28
	if barWidth < 10 {
		barWidth = 10
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Free GPU memory") + "\n")
	if len(v.Fresh) == 0 {
		b.WriteString(descStyle.Render("No recent GPU reports.") + "\n")
	}
	for _, bar := range v.Fresh {
		b.WriteString(legacyBarLine(bar, barWidth, false) + "\n")
	}

	if len(v.Stale) > 0 {
		b.WriteString("\n" + titleStyle.Render("Stale reports") + "\n")
		for _, bar := range v.Stale {
			b.WriteString(legacyBarLine(bar, barWidth, true) + "\n")
		}
	}

	for _, series := range v.Users {
		var lines []string
		for _, ub := range series.Bars {
			if ub.Mem <= 0 {
				continue
			}
			lines = append(lines, fmt.Sprintf("  %s %8s  %s",
				padRight(ub.GPU, legacyNameWidth), format.Memory(ub.Mem), descStyle.Render(ub.Text)))
		}
		if len(lines) == 0 {
			continue
		}
		b.WriteString("\n" + keyStyle.Render(series.User) + "\n")
		b.WriteString(strings.Join(lines, "\n") + "\n")
	}
	return b.String()
}

func legacyBarLine(bar view.LegacyBar, barWidth int, stale bool) string {
	percent := 0.0
	if bar.TotalMem > 0 {
		percent = bar.FreeMem / bar.TotalMem * 100
	}
	// Free memory, so more is better: invert the usage level.
	fill := renderBar(view.Bar{Percent: percent, Level: format.UsageLevel(100 - percent)}, barWidth)
	label := fmt.Sprintf("%s / %s free", format.Memory(bar.FreeMem), format.Memory(bar.TotalMem))

	line := padRight(bar.Name, legacyNameWidth) + " " + fill + " " + label
	if stale {
		return grayStyle.Render(line + " · " + format.Duration(bar.AgeMins))
	}
	return line
}

func padRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
