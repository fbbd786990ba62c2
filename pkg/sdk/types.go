package sdk

import (
	"encoding/json"
	"sort"
	"strconv"
	"time"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

type DashboardData struct {
	Timestamp float64           `json:"timestamp"`
	Servers   map[string]Server `json:"servers"`
}

// FetchedAt converts the server's unix timestamp.
func (d *DashboardData) FetchedAt() time.Time {
	return unixFloat(d.Timestamp)
}

// Hostnames returns the server names in sorted order.
func (d *DashboardData) Hostnames() []string {
	names := make([]string, 0, len(d.Servers))
	for name := range d.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Server struct {
	Status       string        `json:"status"`
	LastSeenMins float64       `json:"last_seen_mins"`
	CPU          CPUInfo       `json:"cpu"`
	GPUs         []GPU         `json:"gpus"`
	Summary      ServerSummary `json:"summary"`
	GPUError     GPUError      `json:"gpu_error,omitempty"`
}

func (s Server) Online() bool {
	return s.Status == StatusOnline
}

type CPUInfo struct {
	CPUPercent float64 `json:"cpu_percent"`
	NumCPUs    int     `json:"num_cpus"`
}

type ServerSummary struct {
	TotalGPUs           int      `json:"total_gpus"`
	FreeGPUs            int      `json:"free_gpus"`
	AvgGPUMemoryPercent float64  `json:"avg_gpu_memory_percent"`
	AvgGPUUtil          *float64 `json:"avg_gpu_util,omitempty"`
}

type GPU struct {
	Index         int                `json:"index"`
	Name          string             `json:"name"`
	TotalMemMB    float64            `json:"total_mem_mb"`
	UsedMemMB     float64            `json:"used_mem_mb"`
	MemoryPercent float64            `json:"memory_percent"`
	GPUUtil       float64            `json:"gpu_util"`
	Users         map[string]GPUUser `json:"users"`
}

// GPUError is the server's GPU error report. Older servers send a bare
// boolean, newer ones send the error message.
type GPUError string

func (e *GPUError) UnmarshalJSON(b []byte) error {
	var msg string
	if err := json.Unmarshal(b, &msg); err == nil {
		*e = GPUError(msg)
		return nil
	}

	var flag bool
	if err := json.Unmarshal(b, &flag); err != nil {
		return err
	}
	if flag {
		*e = "GPU error"
	} else {
		*e = ""
	}
	return nil
}

// GPUUser is one user's footprint on a GPU. The server forwards whatever the
// reporting agent sent, which is either the flat {pid, used_mem} form or a
// map of pid -> process.
type GPUUser struct {
	PID       int          `json:"pid,omitempty"`
	UsedMem   float64      `json:"used_mem,omitempty"`
	Processes []GPUProcess `json:"processes,omitempty"`
}

type GPUProcess struct {
	PID  int      `json:"pid"`
	Mem  float64  `json:"mem"`
	Time *float64 `json:"time,omitempty"`
	Name string   `json:"name,omitempty"`
}

func (u *GPUUser) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	_, hasPID := raw["pid"]
	_, hasMem := raw["used_mem"]
	_, hasProcs := raw["processes"]
	if hasPID || hasMem || hasProcs || len(raw) == 0 {
		type flat GPUUser
		var f flat
		if err := json.Unmarshal(b, &f); err != nil {
			return err
		}
		*u = GPUUser(f)
		return nil
	}

	var out GPUUser
	for key, msg := range raw {
		pid, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		var p GPUProcess
		if err := json.Unmarshal(msg, &p); err != nil {
			return err
		}
		p.PID = pid
		out.UsedMem += p.Mem
		out.Processes = append(out.Processes, p)
	}
	sort.Slice(out.Processes, func(i, j int) bool {
		return out.Processes[i].PID < out.Processes[j].PID
	})
	if len(out.Processes) == 1 {
		out.PID = out.Processes[0].PID
	}
	*u = out
	return nil
}

type HistoryData struct {
	Hours       int            `json:"hours"`
	Series      []HistoryPoint `json:"series"`
	Stats       WasteStats     `json:"stats"`
	GeneratedAt float64        `json:"generated_at"`
}

type HistoryPoint struct {
	Timestamp           float64                `json:"timestamp"`
	FreeGPUs            float64                `json:"free_gpus"`
	TotalGPUs           float64                `json:"total_gpus"`
	AvgGPUUtil          float64                `json:"avg_gpu_util"`
	AvgGPUMemoryPercent float64                `json:"avg_gpu_memory_percent"`
	Servers             map[string]ServerPoint `json:"servers"`
}

func (p HistoryPoint) Time() time.Time {
	return unixFloat(p.Timestamp)
}

type ServerPoint struct {
	FreeGPUs   float64 `json:"free_gpus"`
	TotalGPUs  float64 `json:"total_gpus,omitempty"`
	AvgGPUUtil float64 `json:"avg_gpu_util,omitempty"`
}

type WasteStats struct {
	AvgTotalGPUs   float64 `json:"avg_total_gpus"`
	AvgFreeGPUs    float64 `json:"avg_free_gpus"`
	PeakFreeGPUs   float64 `json:"peak_free_gpus"`
	MinFreeGPUs    float64 `json:"min_free_gpus"`
	AvgClusterUtil float64 `json:"avg_cluster_util"`
	AvgClusterMem  float64 `json:"avg_cluster_mem"`
	WastePercent   float64 `json:"waste_percent"`
	TotalSnapshots int     `json:"total_snapshots"`
}

// LegacyGPUData is the /data-out/gpu-data-simple feed: machine -> gpu key -> gpu.
type LegacyGPUData map[string]map[string]LegacyGPU

type LegacyGPU struct {
	TotalMem         float64                             `json:"total_mem"`
	UsedMem          float64                             `json:"used_mem"`
	TimeReceivedMins float64                             `json:"time_received_mins"`
	Users            map[string]map[string]LegacyProcess `json:"users"`
}

type LegacyProcess struct {
	Mem  float64  `json:"mem"`
	Time *float64 `json:"time"`
	Name string   `json:"name,omitempty"`
}

// MachineReport is what the reporting agent posts to the server.
type MachineReport struct {
	AuthCode  string               `json:"auth_code"`
	Hostname  string               `json:"hostname"`
	Timestamp float64              `json:"timestamp"`
	General   GeneralInfo          `json:"general"`
	Memory    MemoryInfo           `json:"memory"`
	Disk      map[string]DiskInfo  `json:"disk"`
	CPU       CPUReport            `json:"cpu"`
	GPU       map[string]GPUReport `json:"gpu"`
}

type GeneralInfo struct {
	Hostname   string  `json:"hostname"`
	SystemTime float64 `json:"system_time"`
	BootTime   uint64  `json:"boottime"`
}

type MemoryInfo struct {
	TotalGB     float64 `json:"total_gb"`
	AvailableGB float64 `json:"available_gb"`
	UsedGB      float64 `json:"used_gb"`
}

type DiskInfo struct {
	Device      string  `json:"device"`
	MountPoint  string  `json:"mount_point"`
	TotalGB     float64 `json:"total_gb"`
	UsedGB      float64 `json:"used_gb"`
	PercentUsed float64 `json:"percent_used"`
}

type CPUReport struct {
	CPUPercent float64    `json:"cpu_percent"`
	NumCPUs    int        `json:"num_cpus"`
	LoadAvgs   [3]float64 `json:"load_avgs"`
}

type GPUReport struct {
	Name       string                              `json:"name"`
	UUID       string                              `json:"uuid"`
	Index      int                                 `json:"index"`
	TotalMem   float64                             `json:"total_mem"`
	UsedMem    float64                             `json:"used_mem"`
	Users      map[string]map[string]LegacyProcess `json:"users"`
	GPUUtil    uint32                              `json:"gpu_util"`
	MemoryUtil uint32                              `json:"memory_util"`
}

type PostResult struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
}

func unixFloat(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
