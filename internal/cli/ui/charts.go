package ui

import (
	"github.com/guptarohit/asciigraph"

	"clusterdash/internal/view"
)

var seriesColors = []asciigraph.AnsiColor{
	asciigraph.MediumSeaGreen,
	asciigraph.Orange,
	asciigraph.CornflowerBlue,
	asciigraph.IndianRed,
	asciigraph.Goldenrod,
	asciigraph.MediumPurple,
	asciigraph.Turquoise,
	asciigraph.Salmon,
}

// renderChart plots c as terminal line art. Stacked charts are drawn as
// running totals, so each line sits on top of the ones before it.
func renderChart(c view.Chart, width, height int) string {
	if len(c.Series) == 0 || len(c.Times) == 0 {
		return ""
	}

	data := make([][]float64, len(c.Series))
	names := make([]string, len(c.Series))
	for i, s := range c.Series {
		names[i] = s.Name
		data[i] = append([]float64(nil), s.Values...)
		if c.Stacked && i > 0 {
			for j := range data[i] {
				data[i][j] += data[i-1][j]
			}
		}
	}

	colors := make([]asciigraph.AnsiColor, len(data))
	for i := range colors {
		colors[i] = seriesColors[i%len(seriesColors)]
	}

	options := []asciigraph.Option{
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(c.Title),
		asciigraph.SeriesColors(colors...),
		asciigraph.SeriesLegends(names...),
		asciigraph.LowerBound(0),
		asciigraph.Precision(0),
	}
	if c.Percent {
		options = append(options, asciigraph.UpperBound(100))
	}
	return asciigraph.PlotMany(data, options...)
}
