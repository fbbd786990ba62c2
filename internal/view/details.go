package view

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"clusterdash/internal/format"
	"clusterdash/pkg/sdk"
)

const (
	IdlePlaceholder     = "— idle"
	NoGPUMessage        = "No GPU data"
	EmptyDetailsMessage = "No GPU data available."
)

type Bar struct {
	Percent float64
	Level   format.Level
	Label   string
}

// Width is Percent clamped to [0, 100], for drawing.
func (b Bar) Width() float64 {
	return math.Max(0, math.Min(100, b.Percent))
}

type UserEntry struct {
	Username string
	Detail   string
}

type GPUCard struct {
	Index  int
	Name   string
	Memory Bar
	Util   Bar
	Users  []UserEntry
}

func (g GPUCard) Idle() bool {
	return len(g.Users) == 0
}

type ServerPanel struct {
	Hostname      string
	AnchorID      string
	Online        bool
	StatusLabel   string
	StatusVariant Variant
	GPUError      string
	GPUs          []GPUCard
	Highlighted   bool
}

func (p ServerPanel) NoGPUs() bool {
	return len(p.GPUs) == 0
}

// BuildServerPanels returns one detail panel per server, sorted by hostname.
func BuildServerPanels(servers map[string]sdk.Server) []ServerPanel {
	names := sortedHostnames(servers)
	panels := make([]ServerPanel, 0, len(names))
	for _, name := range names {
		panels = append(panels, buildServerPanel(name, servers[name]))
	}
	return panels
}

// AnchorID is the element id a summary card scrolls to.
func AnchorID(hostname string) string {
	return "server-" + hostname
}

func buildServerPanel(hostname string, s sdk.Server) ServerPanel {
	label, variant := statusBadge(s)
	panel := ServerPanel{
		Hostname:      hostname,
		AnchorID:      AnchorID(hostname),
		Online:        s.Online(),
		StatusLabel:   label,
		StatusVariant: variant,
		GPUError:      string(s.GPUError),
	}
	for _, g := range s.GPUs {
		panel.GPUs = append(panel.GPUs, buildGPUCard(g))
	}
	return panel
}

func buildGPUCard(g sdk.GPU) GPUCard {
	memLabel := fmt.Sprintf("%s / %s (%s)",
		format.Memory(g.UsedMemMB), format.Memory(g.TotalMemMB), format.Percent(g.MemoryPercent))

	return GPUCard{
		Index: g.Index,
		Name:  g.Name,
		Memory: Bar{
			Percent: g.MemoryPercent,
			Level:   format.UsageLevel(g.MemoryPercent),
			Label:   memLabel,
		},
		Util: Bar{
			Percent: g.GPUUtil,
			Level:   format.UsageLevel(g.GPUUtil),
			Label:   format.Percent(g.GPUUtil),
		},
		Users: buildUsers(g.Users),
	}
}

func buildUsers(users map[string]sdk.GPUUser) []UserEntry {
	names := make([]string, 0, len(users))
	for name := range users {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]UserEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, UserEntry{Username: name, Detail: userDetail(users[name])})
	}
	return entries
}

func userDetail(u sdk.GPUUser) string {
	var parts []string

	switch {
	case u.PID != 0:
		parts = append(parts, fmt.Sprintf("PID %d", u.PID))
	case len(u.Processes) > 1:
		pids := make([]string, 0, len(u.Processes))
		for _, p := range u.Processes {
			pids = append(pids, fmt.Sprint(p.PID))
		}
		parts = append(parts, "PIDs "+strings.Join(pids, ", "))
	}

	if u.UsedMem > 0 {
		parts = append(parts, format.Memory(u.UsedMem))
	}
	return strings.Join(parts, " · ")
}
