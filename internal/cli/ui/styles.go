package ui

import (
	"clusterdash/internal/format"
	"clusterdash/internal/refresh"
	"clusterdash/internal/view"

	"github.com/charmbracelet/lipgloss"
)

const (
	colorAccent    = lipgloss.Color("62")
	colorGreen     = lipgloss.Color("42")
	colorYellow    = lipgloss.Color("214")
	colorRed       = lipgloss.Color("196")
	colorGray      = lipgloss.Color("241")
	colorHighlight = lipgloss.Color("205")
)

var (
	baseStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(colorAccent).
			Bold(true).
			Padding(0, 1).
			Align(lipgloss.Center)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(colorAccent).
			Bold(true).
			Padding(0, 1)

	keyStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	descStyle = lipgloss.NewStyle().Foreground(colorGray)

	cardStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Width(30)

	selectedCardStyle = cardStyle.BorderForeground(colorHighlight)

	focusedCardStyle = cardStyle.BorderForeground(colorAccent)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	highlightPanelStyle = panelStyle.BorderForeground(colorHighlight)

	errorBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(colorRed).
			Padding(0, 2)

	statCardStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Width(18).
			Align(lipgloss.Center)

	greenStyle  = lipgloss.NewStyle().Foreground(colorGreen)
	yellowStyle = lipgloss.NewStyle().Foreground(colorYellow)
	redStyle    = lipgloss.NewStyle().Foreground(colorRed)
	grayStyle   = lipgloss.NewStyle().Foreground(colorGray)
	boldStyle   = lipgloss.NewStyle().Bold(true)
)

func variantStyle(v view.Variant) lipgloss.Style {
	switch v {
	case view.VariantSuccess:
		return greenStyle
	case view.VariantDanger:
		return redStyle
	default:
		return grayStyle
	}
}

func availabilityStyle(a format.Availability) lipgloss.Style {
	switch a {
	case format.AllFree:
		return greenStyle
	case format.SomeFree:
		return yellowStyle
	default:
		return redStyle
	}
}

func levelColor(l format.Level) lipgloss.Color {
	switch l {
	case format.LevelFree:
		return colorGreen
	case format.LevelPartial:
		return colorYellow
	default:
		return colorRed
	}
}

func indicatorStyle(i refresh.Indicator) lipgloss.Style {
	switch i {
	case refresh.IndicatorLive:
		return greenStyle
	case refresh.IndicatorStale:
		return yellowStyle
	default:
		return redStyle
	}
}

// loadStyle colors a load percentage: under 50 green, under 80 yellow.
func loadStyle(percent float64) lipgloss.Style {
	switch {
	case percent < 50:
		return greenStyle
	case percent < 80:
		return yellowStyle
	default:
		return redStyle
	}
}

func renderIndicator(i refresh.Indicator) string {
	return indicatorStyle(i).Render("● " + string(i))
}
