// Package report renders history views as standalone ECharts HTML pages.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"os"
	"strings"
	"time"

	"clusterdash/internal/view"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// serverColors cycles across the per-server stacked series.
var serverColors = []string{
	"#5b9a8b", "#c47a3a", "#6a9e6b", "#c45c5c",
	"#c49a3a", "#78b5a5", "#d4924e", "#8b6a9e",
}

type Options struct {
	// Selector adds the time-range dropdown; only useful when served.
	Selector bool
	Title    string
}

// BuildPage lays the view's three charts out on one page. An empty or
// failed view yields a page with no charts.
func BuildPage(v view.HistoryView, title string) *components.Page {
	page := components.NewPage()
	page.PageTitle = title

	for _, c := range v.Charts {
		page.AddCharts(lineChart(c))
	}
	return page
}

// Render writes the complete HTML report for v to w.
func Render(w io.Writer, v view.HistoryView, o Options) error {
	if o.Title == "" {
		o.Title = "GPU usage history"
	}

	var buf strings.Builder
	if len(v.Charts) > 0 {
		if err := BuildPage(v, o.Title).Render(&buf); err != nil {
			return fmt.Errorf("failed to render charts: %w", err)
		}
		restoreElementIDs(&buf, v.Charts)
	} else {
		buf.WriteString("<html><head><title>" + template.HTMLEscapeString(o.Title) + "</title></head><body></body></html>")
	}

	header, err := renderHeader(v, o)
	if err != nil {
		return err
	}

	htmlContent := strings.Replace(buf.String(), "<body>", "<body>\n"+header, 1)
	htmlContent = strings.Replace(htmlContent, "</head>", customCSS+"</head>", 1)

	_, err = io.WriteString(w, htmlContent)
	return err
}

// WriteFile renders v into path.
func WriteFile(path string, v view.HistoryView, o Options) error {
	var buf bytes.Buffer
	if err := Render(&buf, v, o); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func lineChart(c view.Chart) *charts.Line {
	line := charts.NewLine()

	yAxis := opts.YAxis{Type: "value", Min: 0}
	if c.Percent {
		yAxis.Name = "%"
		yAxis.Max = 100
	}

	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			ChartID: jsChartID(c.ID),
			Width:   "100%",
			Height:  "360px",
		}),
		charts.WithTitleOpts(opts.Title{Title: c.Title}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		charts.WithLegendOpts(opts.Legend{
			Show: opts.Bool(true),
			Top:  "bottom",
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Type: "category",
		}),
		charts.WithYAxisOpts(yAxis),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:  "inside",
			Start: 0,
			End:   100,
		}),
	)

	line.SetXAxis(timeLabels(c.Times))

	for i, s := range c.Series {
		data := make([]opts.LineData, len(s.Values))
		for j, v := range s.Values {
			data[j] = opts.LineData{Value: v}
		}

		lineOpts := opts.LineChart{
			Smooth:     opts.Bool(true),
			ShowSymbol: opts.Bool(false),
		}
		seriesOpts := []charts.SeriesOpts{}
		switch {
		case c.Stacked:
			lineOpts.Stack = "free"
			seriesOpts = append(seriesOpts,
				charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.2)}),
				charts.WithItemStyleOpts(opts.ItemStyle{Color: serverColors[i%len(serverColors)]}),
			)
		case i == 0:
			seriesOpts = append(seriesOpts, charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.15)}))
		}
		seriesOpts = append(seriesOpts, charts.WithLineChartOpts(lineOpts))
		line.AddSeries(s.Name, data, seriesOpts...)
	}
	return line
}

// jsChartID is the chart's id as ECharts sees it. The id doubles as a
// JavaScript identifier in the rendered script, so it cannot contain dashes.
func jsChartID(id string) string {
	return strings.ReplaceAll(id, "-", "_")
}

// restoreElementIDs puts the dashed element ids back on the chart
// containers and the lookups that find them.
func restoreElementIDs(buf *strings.Builder, charts []view.Chart) {
	out := buf.String()
	for _, c := range charts {
		js := jsChartID(c.ID)
		out = strings.ReplaceAll(out, `id="`+js+`"`, `id="`+c.ID+`"`)
		out = strings.ReplaceAll(out, `getElementById('`+js+`')`, `getElementById('`+c.ID+`')`)
	}
	buf.Reset()
	buf.WriteString(out)
}

func timeLabels(times []time.Time) []string {
	layout := "15:04"
	if len(times) > 1 && times[len(times)-1].Sub(times[0]) > 24*time.Hour {
		layout = "Jan 2 15:04"
	}
	labels := make([]string, len(times))
	for i, t := range times {
		labels[i] = t.Format(layout)
	}
	return labels
}

type rangeOption struct {
	Hours    int
	Label    string
	Selected bool
}

var headerTmpl = template.Must(template.New("header").Parse(`<div class="report-header">
  <h1>{{.Title}}</h1>
  <p id="waste-subtitle" class="{{if .Failed}}text-danger{{end}}">{{.Subtitle}}</p>
  {{- if .Selector}}
  <form method="get">
    <select id="time-range" name="hours" onchange="this.form.submit()">
      {{- range .Ranges}}
      <option value="{{.Hours}}"{{if .Selected}} selected{{end}}>{{.Label}}</option>
      {{- end}}
    </select>
  </form>
  {{- end}}
  <div id="empty-state"{{if not .Empty}} style="display:none"{{end}}>Not enough history yet.</div>
  <div id="waste-stats">
    {{- range .Stats}}
    <div class="stat-card"><div class="stat-value">{{.Value}}</div><div class="stat-label">{{.Label}}</div></div>
    {{- end}}
  </div>
</div>
`))

func renderHeader(v view.HistoryView, o Options) (string, error) {
	ranges := make([]rangeOption, 0, len(view.RangeOptions))
	for _, h := range view.RangeOptions {
		ranges = append(ranges, rangeOption{Hours: h, Label: rangeName(h), Selected: h == v.Hours})
	}

	var buf strings.Builder
	err := headerTmpl.Execute(&buf, map[string]interface{}{
		"Title":    o.Title,
		"Subtitle": v.Subtitle,
		"Failed":   v.Failed,
		"Empty":    v.Empty,
		"Stats":    v.Stats,
		"Selector": o.Selector,
		"Ranges":   ranges,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render report header: %w", err)
	}
	return buf.String(), nil
}

func rangeName(hours int) string {
	if hours < 24 || hours%24 != 0 {
		return fmt.Sprintf("%d hours", hours)
	}
	days := hours / 24
	if days == 1 {
		return "24 hours"
	}
	return fmt.Sprintf("%d days", days)
}

const customCSS = `<style>
  body { font-family: 'IBM Plex Mono', monospace; background: #1f1d1a; color: #ede9e3; }
  .report-header { padding: 16px 24px; }
  #waste-stats { display: flex; gap: 12px; }
  .stat-card { border: 1px solid #3a3631; border-radius: 6px; padding: 8px 16px; min-width: 120px; }
  .stat-value { font-size: 1.6em; color: #5b9a8b; }
  .stat-label { color: #b5afa6; font-size: 0.85em; }
  .text-danger { color: #c45c5c; }
</style>
`
