// Package tray shows the cluster's free GPU count in the system tray.
package tray

import (
	"context"
	"fmt"
	"strings"

	"clusterdash/internal/app"
	"clusterdash/internal/refresh"
	"clusterdash/internal/view"
	"clusterdash/pkg/sdk"

	"github.com/getlantern/systray"
	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"
)

const errorTitle = "GPU ?"

// Title is the tray label, e.g. "GPU 5/16".
func Title(data *sdk.DashboardData) string {
	c := view.BuildClusterSummary(data.Servers)
	return fmt.Sprintf("GPU %d/%d", c.FreeGPUs, c.TotalGPUs)
}

// Tooltip lists free GPUs per server, one line each.
func Tooltip(data *sdk.DashboardData) string {
	lines := []string{view.BuildClusterSummary(data.Servers).String()}
	for _, host := range data.Hostnames() {
		s := data.Servers[host]
		if !s.Online() {
			lines = append(lines, fmt.Sprintf("%s: offline", host))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %d/%d free", host, s.Summary.FreeGPUs, s.Summary.TotalGPUs))
	}
	return strings.Join(lines, "\n")
}

func ErrorTooltip(err error) string {
	return "Failed to load data: " + err.Error()
}

type Tray struct {
	poller       *refresh.Poller[*sdk.DashboardData]
	dashboardURL string
	historyURL   string
	open         func(url string) error

	status *systray.MenuItem
}

func New(container *app.Container) *Tray {
	t := &Tray{
		dashboardURL: container.Client.URL("/"),
		historyURL:   container.Client.URL("/history"),
		open:         browser.OpenURL,
	}
	t.poller = &refresh.Poller[*sdk.DashboardData]{
		Controller: refresh.NewController("tray", container.Config.RefreshInterval),
		Fetch:      container.Client.GetDashboardData,
		OnData:     t.showData,
		OnError:    t.showError,
	}
	return t
}

// Run blocks on the platform event loop until Quit is clicked or ctx ends.
func (t *Tray) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	systray.Run(func() { t.onReady(ctx) }, cancel)
}

func (t *Tray) onReady(ctx context.Context) {
	systray.SetTitle(errorTitle)
	systray.SetTooltip("clusterdash")

	t.status = systray.AddMenuItem("Loading...", "Cluster summary")
	t.status.Disable()
	systray.AddSeparator()
	mDashboard := systray.AddMenuItem("Open dashboard", "Open the live dashboard in a browser")
	mHistory := systray.AddMenuItem("Open history", "Open the usage history in a browser")
	mRefresh := systray.AddMenuItem("Refresh now", "Fetch fresh data")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit clusterdash")

	go t.poller.Run(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				systray.Quit()
				return
			case <-mDashboard.ClickedCh:
				t.openURL(t.dashboardURL)
			case <-mHistory.ClickedCh:
				t.openURL(t.historyURL)
			case <-mRefresh.ClickedCh:
				t.poller.Refresh(ctx)
			case <-mQuit.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) openURL(url string) {
	if err := t.open(url); err != nil {
		logrus.Warnf("Could not open browser: %v", err)
	}
}

func (t *Tray) showData(data *sdk.DashboardData) {
	systray.SetTitle(Title(data))
	systray.SetTooltip(Tooltip(data))
	if t.status != nil {
		t.status.SetTitle(view.BuildClusterSummary(data.Servers).String())
	}
}

func (t *Tray) showError(err error) {
	logrus.Warnf("tray refresh failed: %v", err)
	systray.SetTitle(errorTitle)
	systray.SetTooltip(ErrorTooltip(err))
	if t.status != nil {
		t.status.SetTitle("Failed to load data")
	}
}
