package agent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"clusterdash/pkg/sdk"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"
)

// placeholderKey is reported in place of the GPU map on machines without the
// NVML library, so the server still sees the host.
const placeholderKey = "gpu_data"

const unknownUser = "unknown"

var whitespaceRun = regexp.MustCompile(`\s+`)

// GPUKey is the report key for a GPU: <index>_<name>_<uuid[4:10]>, with
// whitespace runs in the name replaced by dashes.
func GPUKey(index int, name, uuid string) string {
	short := uuid
	if len(short) >= 10 {
		short = short[4:10]
	} else if len(short) > 4 {
		short = short[4:]
	}
	return fmt.Sprintf("%d_%s_%s", index, whitespaceRun.ReplaceAllString(name, "-"), short)
}

// Placeholder is the GPU map for a machine without NVML.
func Placeholder() map[string]sdk.GPUReport {
	return map[string]sdk.GPUReport{
		placeholderKey: {
			Name:  "none",
			UUID:  "none",
			Users: map[string]map[string]sdk.LegacyProcess{},
		},
	}
}

// ProcessOwner resolves the user, system cpu seconds and name of a pid.
type ProcessOwner func(ctx context.Context, pid int32) (user string, cpuSystem *float64, name string)

// NVMLReader reads GPUs through NVML. It initialises and shuts the library
// down around every read so a driver reload between polls is picked up.
type NVMLReader struct {
	Owner ProcessOwner
}

func NewNVMLReader() *NVMLReader {
	return &NVMLReader{Owner: lookupProcess}
}

func (r *NVMLReader) ReadGPUs(ctx context.Context) (map[string]sdk.GPUReport, error) {
	ret := nvml.Init()
	if ret == nvml.ERROR_LIBRARY_NOT_FOUND {
		logrus.Debug("NVML library not found, reporting placeholder GPU")
		return Placeholder(), nil
	}
	if ret != nvml.SUCCESS {
		return nil, fmt.Errorf("failed to initialize NVML: %s", nvml.ErrorString(ret))
	}
	defer func() {
		if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
			logrus.Warnf("Unable to shutdown NVML: %s", nvml.ErrorString(ret))
		}
	}()

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return nil, fmt.Errorf("counting devices: %s", nvml.ErrorString(ret))
	}

	out := make(map[string]sdk.GPUReport, count)
	for i := 0; i < count; i++ {
		device, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			return nil, fmt.Errorf("device %d: %s", i, nvml.ErrorString(ret))
		}
		gpu, err := r.readDevice(ctx, device, i)
		if err != nil {
			return nil, err
		}
		out[GPUKey(gpu.Index, gpu.Name, gpu.UUID)] = gpu
	}
	return out, nil
}

func (r *NVMLReader) readDevice(ctx context.Context, device nvml.Device, fallbackIndex int) (sdk.GPUReport, error) {
	var gpu sdk.GPUReport

	name, ret := device.GetName()
	if ret != nvml.SUCCESS {
		return gpu, fmt.Errorf("device %d name: %s", fallbackIndex, nvml.ErrorString(ret))
	}
	uuid, ret := device.GetUUID()
	if ret != nvml.SUCCESS {
		return gpu, fmt.Errorf("device %d uuid: %s", fallbackIndex, nvml.ErrorString(ret))
	}
	index, ret := device.GetIndex()
	if ret != nvml.SUCCESS {
		index = fallbackIndex
	}

	memInfo, ret := device.GetMemoryInfo()
	if ret != nvml.SUCCESS {
		return gpu, fmt.Errorf("device %d memory: %s", index, nvml.ErrorString(ret))
	}
	util, ret := device.GetUtilizationRates()
	if ret != nvml.SUCCESS {
		return gpu, fmt.Errorf("device %d utilization: %s", index, nvml.ErrorString(ret))
	}

	var procs []gpuProcess
	if list, ret := device.GetComputeRunningProcesses(); ret == nvml.SUCCESS {
		for _, p := range list {
			procs = append(procs, gpuProcess{pid: p.Pid, usedBytes: p.UsedGpuMemory})
		}
	} else {
		logrus.Debugf("Ignoring NVML error listing processes on device %d: %s", index, nvml.ErrorString(ret))
	}

	return sdk.GPUReport{
		Name:       name,
		UUID:       uuid,
		Index:      index,
		TotalMem:   float64(memInfo.Total) / bytesPerMB,
		UsedMem:    float64(memInfo.Used) / bytesPerMB,
		Users:      groupByUser(ctx, procs, r.Owner),
		GPUUtil:    util.Gpu,
		MemoryUtil: util.Memory,
	}, nil
}

type gpuProcess struct {
	pid       uint32
	usedBytes uint64
}

// groupByUser builds the user -> pid -> process map for one GPU.
func groupByUser(ctx context.Context, procs []gpuProcess, owner ProcessOwner) map[string]map[string]sdk.LegacyProcess {
	users := make(map[string]map[string]sdk.LegacyProcess)
	for _, p := range procs {
		user, cpuSystem, name := owner(ctx, int32(p.pid))
		if users[user] == nil {
			users[user] = make(map[string]sdk.LegacyProcess)
		}
		users[user][strconv.FormatUint(uint64(p.pid), 10)] = sdk.LegacyProcess{
			Mem:  float64(p.usedBytes) / bytesPerMB,
			Time: cpuSystem,
			Name: name,
		}
	}
	return users
}

// lookupProcess does not work for processes inside another pid namespace;
// those come back as the unknown user.
func lookupProcess(ctx context.Context, pid int32) (string, *float64, string) {
	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return unknownUser, nil, ""
	}

	name, _ := proc.NameWithContext(ctx)

	user, err := proc.UsernameWithContext(ctx)
	if err != nil {
		return unknownUser, nil, name
	}
	times, err := proc.TimesWithContext(ctx)
	if err != nil {
		return unknownUser, nil, name
	}
	system := times.System
	return user, &system, name
}
