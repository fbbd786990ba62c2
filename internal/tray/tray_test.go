package tray

import (
	"errors"
	"testing"

	"clusterdash/pkg/sdk"

	"github.com/stretchr/testify/assert"
)

func cluster() *sdk.DashboardData {
	return &sdk.DashboardData{Servers: map[string]sdk.Server{
		"gpu-b": {Status: sdk.StatusOffline},
		"gpu-a": {Status: sdk.StatusOnline, Summary: sdk.ServerSummary{TotalGPUs: 4, FreeGPUs: 2}},
		"gpu-c": {Status: sdk.StatusOnline, Summary: sdk.ServerSummary{TotalGPUs: 8, FreeGPUs: 0}},
	}}
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "GPU 2/12", Title(cluster()))
	assert.Equal(t, "GPU 0/0", Title(&sdk.DashboardData{}))
}

func TestTooltipListsServersInOrder(t *testing.T) {
	want := "3 servers (2 online, 1 offline) · 2/12 GPUs free\n" +
		"gpu-a: 2/4 free\n" +
		"gpu-b: offline\n" +
		"gpu-c: 0/8 free"
	assert.Equal(t, want, Tooltip(cluster()))
}

func TestErrorTooltip(t *testing.T) {
	assert.Equal(t, "Failed to load data: API request failed: 502 Bad Gateway",
		ErrorTooltip(errors.New("API request failed: 502 Bad Gateway")))
}
