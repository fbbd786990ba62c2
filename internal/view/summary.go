// Package view turns API payloads into render-ready view models. Nothing in
// here touches a terminal or a browser; the adapters in cli/ui, web and
// report draw what these builders return.
package view

import (
	"fmt"
	"sort"

	"clusterdash/internal/format"
	"clusterdash/pkg/sdk"
)

type Variant string

const (
	VariantSuccess   Variant = "success"
	VariantSecondary Variant = "secondary"
	VariantDanger    Variant = "danger"
)

const (
	EmptySummaryMessage = "No server data available. Waiting for servers to report..."
	GPUErrorBadge       = "GPU error"
	NotAvailable        = "-"
)

type SummaryCard struct {
	Hostname      string
	Online        bool
	StatusLabel   string
	StatusVariant Variant
	LastSeen      string
	CPUPercent    string
	NumCPUs       int
	GPUBadge      string
	Availability  format.Availability
	GPUError      string
	AvgUtil       string
	AvgMemory     string
	Selected      bool
}

type SummaryCards struct {
	Cards        []SummaryCard
	EmptyMessage string
}

func (s SummaryCards) Empty() bool {
	return len(s.Cards) == 0
}

// BuildSummaryCards returns one card per server, sorted by hostname.
func BuildSummaryCards(servers map[string]sdk.Server) SummaryCards {
	names := sortedHostnames(servers)
	if len(names) == 0 {
		return SummaryCards{EmptyMessage: EmptySummaryMessage}
	}

	cards := make([]SummaryCard, 0, len(names))
	for _, name := range names {
		cards = append(cards, buildSummaryCard(name, servers[name]))
	}
	return SummaryCards{Cards: cards}
}

func buildSummaryCard(hostname string, s sdk.Server) SummaryCard {
	label, variant := statusBadge(s)
	card := SummaryCard{
		Hostname:      hostname,
		Online:        s.Online(),
		StatusLabel:   label,
		StatusVariant: variant,
		LastSeen:      format.Duration(s.LastSeenMins),
		CPUPercent:    format.Number(s.CPU.CPUPercent) + "%",
		NumCPUs:       s.CPU.NumCPUs,
		Availability:  format.AvailabilityLevel(s.Summary.FreeGPUs, s.Summary.TotalGPUs),
		AvgMemory:     format.Percent(s.Summary.AvgGPUMemoryPercent),
		AvgUtil:       NotAvailable,
	}
	if s.Summary.AvgGPUUtil != nil {
		card.AvgUtil = format.Percent(*s.Summary.AvgGPUUtil)
	}

	if s.GPUError != "" {
		card.GPUError = string(s.GPUError)
		card.GPUBadge = GPUErrorBadge
	} else {
		card.GPUBadge = fmt.Sprintf("%d/%d free", s.Summary.FreeGPUs, s.Summary.TotalGPUs)
	}
	return card
}

// ClusterSummary is the one-line roll-up shown above the cards.
type ClusterSummary struct {
	Servers   int
	Online    int
	Offline   int
	TotalGPUs int
	FreeGPUs  int
}

func BuildClusterSummary(servers map[string]sdk.Server) ClusterSummary {
	var c ClusterSummary
	for _, s := range servers {
		c.Servers++
		if s.Online() {
			c.Online++
		} else {
			c.Offline++
		}
		c.TotalGPUs += s.Summary.TotalGPUs
		c.FreeGPUs += s.Summary.FreeGPUs
	}
	return c
}

func (c ClusterSummary) String() string {
	return fmt.Sprintf("%d servers (%d online, %d offline) · %d/%d GPUs free",
		c.Servers, c.Online, c.Offline, c.FreeGPUs, c.TotalGPUs)
}

func statusBadge(s sdk.Server) (string, Variant) {
	if s.Online() {
		return "Online", VariantSuccess
	}
	return "Offline", VariantSecondary
}

func sortedHostnames(servers map[string]sdk.Server) []string {
	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
