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
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DashboardSource is the slice of the API client the live dashboard needs.
type DashboardSource interface {
	GetDashboardData(ctx context.Context) (*sdk.DashboardData, error)
}

type dashboardKeys struct {
	Next   key.Binding
	Prev   key.Binding
	Select key.Binding
	Clear  key.Binding
	Reload key.Binding
	Up     key.Binding
	Down   key.Binding
	Quit   key.Binding
}

func (k dashboardKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Select, k.Clear, k.Reload, k.Quit}
}

func (k dashboardKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev, k.Select, k.Clear},
		{k.Up, k.Down, k.Reload, k.Quit},
	}
}

var defaultDashboardKeys = dashboardKeys{
	Next:   key.NewBinding(key.WithKeys("tab", "right", "l"), key.WithHelp("tab/→", "next server")),
	Prev:   key.NewBinding(key.WithKeys("shift+tab", "left", "h"), key.WithHelp("shift+tab/←", "prev server")),
	Select: key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "select")),
	Clear:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear")),
	Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Up:     key.NewBinding(key.WithKeys("up", "k", "pgup"), key.WithHelp("↑", "scroll up")),
	Down:   key.NewBinding(key.WithKeys("down", "j", "pgdown"), key.WithHelp("↓", "scroll down")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type dashboardModel struct {
	source    DashboardSource
	ctrl      *refresh.Controller
	countdown *refresh.Countdown

	data     *sdk.DashboardData
	err      error
	cards    view.SummaryCards
	panels   []view.ServerPanel
	cluster  view.ClusterSummary
	selected view.Selection
	cursor   int

	viewport viewport.Model
	offsets  map[string]int
	spinner  spinner.Model
	help     help.Model
	keys     dashboardKeys

	width  int
	height int
	ready  bool
}

// secondMsg drives the countdown.
type secondMsg time.Time

// dashboardMsg carries one fetch result back with the token it was issued.
type dashboardMsg struct {
	token refresh.Token
	data  *sdk.DashboardData
	err   error
}

func newDashboardModel(source DashboardSource, interval time.Duration) dashboardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorAccent)

	return dashboardModel{
		source:    source,
		ctrl:      refresh.NewController("tui", interval),
		countdown: refresh.NewCountdown(interval),
		spinner:   s,
		help:      help.New(),
		keys:      defaultDashboardKeys,
		offsets:   map[string]int{},
	}
}

// RunDashboard blocks until the user quits the live dashboard.
func RunDashboard(source DashboardSource, interval time.Duration) error {
	m := newDashboardModel(source, interval)
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithInput(os.Stdin), tea.WithOutput(os.Stdout))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("error running dashboard: %w", err)
	}
	return nil
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(
		m.fetch(),
		secondCmd(),
		m.spinner.Tick,
	)
}

func (m dashboardModel) fetch() tea.Cmd {
	return fetchDashboardCmd(m.source, m.ctrl.Begin())
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Reload):
			m.countdown.Reset()
			return m, m.fetch()
		case key.Matches(msg, m.keys.Next):
			if n := len(m.cards.Cards); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.refreshContent()
			}
			return m, nil
		case key.Matches(msg, m.keys.Prev):
			if n := len(m.cards.Cards); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.refreshContent()
			}
			return m, nil
		case key.Matches(msg, m.keys.Select):
			if m.cursor < len(m.cards.Cards) {
				m.selected.Toggle(m.cards.Cards[m.cursor].Hostname)
				m.applySelection()
				m.scrollToSelection()
			}
			return m, nil
		case key.Matches(msg, m.keys.Clear):
			m.selected.Clear()
			m.applySelection()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := msg.Height - 8
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

	case secondMsg:
		if m.countdown.Tick() {
			return m, tea.Batch(m.fetch(), secondCmd())
		}
		return m, secondCmd()

	case dashboardMsg:
		if !m.ctrl.Complete(msg.token, msg.err) {
			return m, nil
		}
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.setData(msg.data)
		}
		m.refreshContent()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *dashboardModel) setData(data *sdk.DashboardData) {
	m.data = data
	m.cards = view.BuildSummaryCards(data.Servers)
	m.panels = view.BuildServerPanels(data.Servers)
	m.cluster = view.BuildClusterSummary(data.Servers)
	if m.cursor >= len(m.cards.Cards) {
		m.cursor = 0
	}
	m.selected.Apply(m.cards.Cards, m.panels)
}

func (m *dashboardModel) applySelection() {
	m.selected.Apply(m.cards.Cards, m.panels)
	m.refreshContent()
}

func (m *dashboardModel) scrollToSelection() {
	if !m.ready || !m.selected.Active() {
		return
	}
	if offset, ok := m.offsets[m.selected.Hostname()]; ok {
		m.viewport.SetYOffset(offset)
	}
}

func (m *dashboardModel) refreshContent() {
	if !m.ready {
		return
	}
	content, offsets := m.renderBody()
	m.offsets = offsets
	m.viewport.SetContent(content)
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := headerStyle.Render("GPU CLUSTER")

	status := []string{renderIndicator(m.ctrl.Indicator())}
	if m.ctrl.InFlight() {
		status = append(status, m.spinner.View())
	}
	if last := m.ctrl.LastSuccess(); !last.IsZero() {
		status = append(status, descStyle.Render(format.Clock(last)))
	}
	status = append(status, descStyle.Render(fmt.Sprintf("next refresh in %ds", m.countdown.Remaining())))

	summary := ""
	if m.data != nil {
		summary = m.cluster.String()
	}

	headerBox := baseStyle.
		Width(m.width-4).
		Align(lipgloss.Center).
		Render(lipgloss.JoinVertical(lipgloss.Center, title, summary, strings.Join(status, "  ")))

	return lipgloss.JoinVertical(lipgloss.Left,
		headerBox,
		m.viewport.View(),
		lipgloss.NewStyle().MarginLeft(2).Render(m.help.View(m.keys)),
	)
}

// renderBody draws cards and panels, and returns the line each server's
// panel starts on so a selection can scroll to it.
func (m dashboardModel) renderBody() (string, map[string]int) {
	offsets := map[string]int{}

	if m.err != nil {
		return renderError(m.err), offsets
	}
	if m.data == nil {
		return descStyle.Render("Fetching cluster data..."), offsets
	}
	if m.cards.Empty() {
		return descStyle.Render(m.cards.EmptyMessage), offsets
	}

	var b strings.Builder
	b.WriteString(m.renderCards())
	b.WriteString("\n\n")

	if len(m.panels) == 0 {
		b.WriteString(descStyle.Render(view.EmptyDetailsMessage))
		return b.String(), offsets
	}

	for _, p := range m.panels {
		offsets[p.Hostname] = strings.Count(b.String(), "\n")
		b.WriteString(m.renderPanel(p))
		b.WriteString("\n")
	}
	return b.String(), offsets
}

func (m dashboardModel) renderCards() string {
	perRow := (m.width - 4) / (cardStyle.GetWidth() + 2)
	if perRow < 1 {
		perRow = 1
	}

	var rows []string
	var row []string
	for i, c := range m.cards.Cards {
		row = append(row, m.renderCard(i, c))
		if len(row) == perRow {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m dashboardModel) renderCard(i int, c view.SummaryCard) string {
	status := c.StatusLabel + " · " + c.LastSeen

	gpu := availabilityStyle(c.Availability).Render(c.GPUBadge)
	if c.GPUError != "" {
		gpu = redStyle.Render(c.GPUBadge)
	}

	lines := []string{
		boldStyle.Render(c.Hostname),
		variantStyle(c.StatusVariant).Render(status),
		fmt.Sprintf("CPU %s (%d cores)", c.CPUPercent, c.NumCPUs),
		gpu,
		descStyle.Render(fmt.Sprintf("util %s · mem %s", c.AvgUtil, c.AvgMemory)),
	}

	style := cardStyle
	switch {
	case c.Selected:
		style = selectedCardStyle
	case i == m.cursor:
		style = focusedCardStyle
	}
	return style.Render(strings.Join(lines, "\n"))
}

func (m dashboardModel) renderPanel(p view.ServerPanel) string {
	header := boldStyle.Render(p.Hostname) + " " + variantStyle(p.StatusVariant).Render(p.StatusLabel)
	lines := []string{header}
	if p.GPUError != "" {
		lines = append(lines, redStyle.Render(p.GPUError))
	}

	if p.NoGPUs() {
		lines = append(lines, descStyle.Render(view.NoGPUMessage))
	}
	barWidth := m.width / 3
	if barWidth < 10 {
		barWidth = 10
	}
	for _, g := range p.GPUs {
		lines = append(lines,
			fmt.Sprintf("GPU %d · %s", g.Index, g.Name),
			"  mem  "+renderBar(g.Memory, barWidth)+" "+g.Memory.Label,
			"  util "+renderBar(g.Util, barWidth)+" "+g.Util.Label,
		)
		if g.Idle() {
			lines = append(lines, "  "+descStyle.Render(view.IdlePlaceholder))
		}
		for _, u := range g.Users {
			lines = append(lines, fmt.Sprintf("  %s %s", u.Username, descStyle.Render(u.Detail)))
		}
	}

	style := panelStyle
	if p.Highlighted {
		style = highlightPanelStyle
	}
	return style.Width(m.width - 6).Render(strings.Join(lines, "\n"))
}

func renderBar(b view.Bar, width int) string {
	bar := progress.New(
		progress.WithSolidFill(string(levelColor(b.Level))),
		progress.WithWidth(width),
		progress.WithoutPercentage(),
	)
	return bar.ViewAs(b.Width() / 100)
}

func renderError(err error) string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		redStyle.Bold(true).Render("Failed to load data"),
		err.Error(),
		"",
		keyStyle.Render("r")+descStyle.Render(" reload"),
	)
	return errorBoxStyle.Render(body)
}

func secondCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return secondMsg(t)
	})
}

func fetchDashboardCmd(source DashboardSource, tok refresh.Token) tea.Cmd {
	return func() tea.Msg {
		data, err := source.GetDashboardData(context.Background())
		return dashboardMsg{token: tok, data: data, err: err}
	}
}
