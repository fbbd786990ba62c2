package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"clusterdash/internal/format"
	"clusterdash/internal/refresh"
	"clusterdash/internal/view"
	"clusterdash/pkg/sdk"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// HistorySource loads history for a window of hours, from the API or the
// local store.
type HistorySource func(ctx context.Context, hours int) (*sdk.HistoryData, error)

type historyKeys struct {
	Next   key.Binding
	Prev   key.Binding
	Reload key.Binding
	Quit   key.Binding
}

func (k historyKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.Reload, k.Quit}
}

func (k historyKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultHistoryKeys = historyKeys{
	Next:   key.NewBinding(key.WithKeys("right", "l", "]"), key.WithHelp("→", "longer range")),
	Prev:   key.NewBinding(key.WithKeys("left", "h", "["), key.WithHelp("←", "shorter range")),
	Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

type historyModel struct {
	source HistorySource
	ctrl   *refresh.Controller

	rangeIdx int
	view     view.HistoryView
	loaded   bool

	viewport viewport.Model
	help     help.Model
	keys     historyKeys
	width    int
	height   int
	ready    bool
}

type historyTickMsg time.Time

type historyMsg struct {
	token refresh.Token
	hours int
	data  *sdk.HistoryData
	err   error
}

func newHistoryModel(source HistorySource, hours int, interval time.Duration) historyModel {
	return historyModel{
		source:   source,
		ctrl:     refresh.NewController("tui-history", interval),
		rangeIdx: rangeIndex(hours),
		help:     help.New(),
		keys:     defaultHistoryKeys,
	}
}

// rangeIndex finds hours among the selectable ranges, falling back to 24h.
func rangeIndex(hours int) int {
	fallback := 0
	for i, h := range view.RangeOptions {
		if h == hours {
			return i
		}
		if h == 24 {
			fallback = i
		}
	}
	return fallback
}

// RunHistory blocks until the user quits the history view.
func RunHistory(source HistorySource, hours int, interval time.Duration) error {
	m := newHistoryModel(source, hours, interval)
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithInput(os.Stdin), tea.WithOutput(os.Stdout))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("error running history view: %w", err)
	}
	return nil
}

func (m historyModel) hours() int {
	return view.RangeOptions[m.rangeIdx]
}

func (m historyModel) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.tickCmd())
}

func (m historyModel) fetch() tea.Cmd {
	return fetchHistoryCmd(m.source, m.ctrl.Begin(), m.hours())
}

func (m historyModel) tickCmd() tea.Cmd {
	return tea.Tick(m.ctrl.Interval(), func(t time.Time) tea.Msg {
		return historyTickMsg(t)
	})
}

func (m historyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Reload):
			return m, m.fetch()
		case key.Matches(msg, m.keys.Next):
			if m.rangeIdx < len(view.RangeOptions)-1 {
				m.rangeIdx++
				return m, m.fetch()
			}
			return m, nil
		case key.Matches(msg, m.keys.Prev):
			if m.rangeIdx > 0 {
				m.rangeIdx--
				return m, m.fetch()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := msg.Height - 6
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width-2, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 2
			m.viewport.Height = vpHeight
		}
		m.refreshContent()
		return m, nil

	case historyTickMsg:
		return m, tea.Batch(m.fetch(), m.tickCmd())

	case historyMsg:
		if !m.ctrl.Complete(msg.token, msg.err) || msg.hours != m.hours() {
			return m, nil
		}
		m.loaded = true
		if msg.err != nil {
			m.view = view.FailedHistory(msg.hours)
		} else {
			m.view = view.BuildHistory(msg.data, msg.hours)
		}
		m.refreshContent()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *historyModel) refreshContent() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderBody())
}

func (m historyModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		titleStyle.Render("GPU HISTORY"), "  ",
		m.renderRanges(), "  ",
		renderIndicator(m.ctrl.Indicator()),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		m.viewport.View(),
		lipgloss.NewStyle().MarginLeft(2).Render(m.help.View(m.keys)),
	)
}

func (m historyModel) renderRanges() string {
	parts := make([]string, len(view.RangeOptions))
	for i, h := range view.RangeOptions {
		label := format.RangeLabel(h)
		if i == m.rangeIdx {
			parts[i] = keyStyle.Render("[" + label + "]")
		} else {
			parts[i] = descStyle.Render(label)
		}
	}
	return strings.Join(parts, " ")
}

func (m historyModel) renderBody() string {
	if !m.loaded {
		return descStyle.Render("Fetching history...")
	}

	v := m.view
	subtitle := descStyle.Render(v.Subtitle)
	if v.Failed {
		subtitle = redStyle.Render(v.Subtitle)
	}
	sections := []string{subtitle}

	if len(v.Stats) > 0 {
		cards := make([]string, len(v.Stats))
		for i, s := range v.Stats {
			cards[i] = statCardStyle.Render(boldStyle.Render(s.Value) + "\n" + descStyle.Render(s.Label))
		}
		sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	}

	chartWidth := m.width - 16
	if chartWidth < 20 {
		chartWidth = 20
	}
	for _, c := range v.Charts {
		sections = append(sections, "", renderChart(c, chartWidth, 10))
	}
	return strings.Join(sections, "\n")
}

func fetchHistoryCmd(source HistorySource, tok refresh.Token, hours int) tea.Cmd {
	return func() tea.Msg {
		data, err := source(context.Background(), hours)
		return historyMsg{token: tok, hours: hours, data: data, err: err}
	}
}
