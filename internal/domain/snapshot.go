package domain

import (
	"time"

	"clusterdash/pkg/sdk"
)

// A GPU is free when both its memory use and utilization are under this.
const FreeThresholdPercent = 30

// Snapshot is one host's GPU summary at a point in time.
type Snapshot struct {
	Timestamp           time.Time
	Hostname            string
	TotalGPUs           int
	FreeGPUs            int
	AvgGPUMemoryPercent float64
	AvgGPUUtil          float64
	CPUPercent          float64
}

// SnapshotFromServer summarizes a server's GPUs. It reports false for hosts
// that are offline or have no GPUs, which are not recorded.
func SnapshotFromServer(hostname string, s sdk.Server, at time.Time) (Snapshot, bool) {
	if !s.Online() || len(s.GPUs) == 0 {
		return Snapshot{}, false
	}

	snap := Snapshot{
		Timestamp:  at,
		Hostname:   hostname,
		TotalGPUs:  len(s.GPUs),
		CPUPercent: s.CPU.CPUPercent,
	}

	var memSum, utilSum float64
	for _, g := range s.GPUs {
		mem := g.MemoryPercent
		if g.TotalMemMB > 0 {
			mem = g.UsedMemMB / g.TotalMemMB * 100
		}
		memSum += mem
		utilSum += g.GPUUtil
		if mem < FreeThresholdPercent && g.GPUUtil < FreeThresholdPercent {
			snap.FreeGPUs++
		}
	}
	n := float64(len(s.GPUs))
	snap.AvgGPUMemoryPercent = memSum / n
	snap.AvgGPUUtil = utilSum / n
	return snap, true
}
