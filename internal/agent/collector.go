// Package agent is the reporting agent that runs on each GPU machine and
// posts host and GPU readings to the cluster-dash server.
package agent

import (
	"context"
	"fmt"
	"os"
	"time"

	"clusterdash/pkg/sdk"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

const (
	bytesPerGB = 1024 * 1024 * 1024
	bytesPerMB = 1024 * 1024

	cpuSampleWindow = 100 * time.Millisecond
)

// Collector produces one reading of the machine. AuthCode and Timestamp are
// filled in by the agent at send time.
type Collector interface {
	Collect(ctx context.Context) (*sdk.MachineReport, error)
}

// GPUReader returns the machine's GPUs keyed by their report key.
type GPUReader interface {
	ReadGPUs(ctx context.Context) (map[string]sdk.GPUReport, error)
}

type SystemCollector struct {
	Hostname string
	GPUs     GPUReader
}

// NewSystemCollector collects from the local machine. An empty hostname
// means os.Hostname.
func NewSystemCollector(hostname string, gpus GPUReader) *SystemCollector {
	return &SystemCollector{Hostname: hostname, GPUs: gpus}
}

func (c *SystemCollector) Collect(ctx context.Context) (*sdk.MachineReport, error) {
	hostname := c.Hostname
	if hostname == "" {
		h, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("reading hostname: %w", err)
		}
		hostname = h
	}

	report := &sdk.MachineReport{
		Hostname: hostname,
		General: sdk.GeneralInfo{
			Hostname:   hostname,
			SystemTime: unixSeconds(time.Now()),
		},
	}

	boot, err := host.BootTimeWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading boot time: %w", err)
	}
	report.General.BootTime = boot

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading memory: %w", err)
	}
	report.Memory = sdk.MemoryInfo{
		TotalGB:     float64(vm.Total) / bytesPerGB,
		AvailableGB: float64(vm.Available) / bytesPerGB,
		UsedGB:      float64(vm.Used) / bytesPerGB,
	}

	report.Disk = collectDisks(ctx)

	cpuReport, err := collectCPU(ctx)
	if err != nil {
		return nil, err
	}
	report.CPU = cpuReport

	if c.GPUs != nil {
		gpus, err := c.GPUs.ReadGPUs(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading GPUs: %w", err)
		}
		report.GPU = gpus
	}
	return report, nil
}

func collectDisks(ctx context.Context) map[string]sdk.DiskInfo {
	out := make(map[string]sdk.DiskInfo)

	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		logrus.WithError(err).Warn("listing disk partitions")
		return out
	}
	for _, p := range parts {
		// Empty drives (e.g. a cd-rom with no disc) have no fstype and hang or
		// error on usage.
		if p.Fstype == "" {
			continue
		}
		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			logrus.WithError(err).WithField("mount", p.Mountpoint).Debug("skipping partition")
			continue
		}
		out[p.Mountpoint] = sdk.DiskInfo{
			Device:      p.Device,
			MountPoint:  p.Mountpoint,
			TotalGB:     float64(usage.Total) / bytesPerGB,
			UsedGB:      float64(usage.Used) / bytesPerGB,
			PercentUsed: usage.UsedPercent,
		}
	}
	return out
}

func collectCPU(ctx context.Context) (sdk.CPUReport, error) {
	var out sdk.CPUReport

	percents, err := cpu.PercentWithContext(ctx, cpuSampleWindow, false)
	if err != nil {
		return out, fmt.Errorf("reading cpu percent: %w", err)
	}
	if len(percents) > 0 {
		out.CPUPercent = percents[0]
	}

	n, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return out, fmt.Errorf("counting cpus: %w", err)
	}
	out.NumCPUs = n

	// Load averages are not available everywhere; report zeros there.
	if avg, err := load.AvgWithContext(ctx); err == nil {
		out.LoadAvgs = [3]float64{avg.Load1, avg.Load5, avg.Load15}
	} else {
		logrus.WithError(err).Debug("load averages unavailable")
	}
	return out, nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
