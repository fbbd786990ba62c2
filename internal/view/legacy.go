package view

import (
	"fmt"
	"sort"
	"strings"

	"clusterdash/internal/format"
	"clusterdash/pkg/sdk"
)

const (
	legacyNameLength = 30
	legacyMinTotalMB = 3000
	legacyStaleMins  = 10
)

type LegacyBar struct {
	Name     string
	FreeMem  float64
	TotalMem float64
	AgeMins  float64
	Hover    string
}

type LegacyUserBar struct {
	GPU  string
	Mem  float64
	Text string
}

type LegacyUserSeries struct {
	User string
	Bars []LegacyUserBar
}

type LegacyView struct {
	Fresh []LegacyBar
	Stale []LegacyBar
	Users []LegacyUserSeries
}

// BuildLegacy reshapes the gpu-data-simple feed into free-memory bars, split
// by report age, and a per-user memory series across every GPU.
func BuildLegacy(data sdk.LegacyGPUData) LegacyView {
	var v LegacyView

	var bars []LegacyBar
	forEachLegacyGPU(data, func(name string, gpu sdk.LegacyGPU) {
		if gpu.TotalMem <= legacyMinTotalMB {
			return
		}
		bars = append(bars, LegacyBar{
			Name:     truncate(name, legacyNameLength),
			FreeMem:  gpu.TotalMem - gpu.UsedMem,
			TotalMem: gpu.TotalMem,
			AgeMins:  gpu.TimeReceivedMins,
			Hover:    fmt.Sprintf("%s, Received: %s mins ago... ", name, format.Number(gpu.TimeReceivedMins)),
		})
	})
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Name > bars[j].Name })

	for _, b := range bars {
		if b.AgeMins > legacyStaleMins {
			v.Stale = append(v.Stale, b)
		} else {
			v.Fresh = append(v.Fresh, b)
		}
	}

	for _, user := range legacyUsers(data) {
		series := LegacyUserSeries{User: user}
		forEachLegacyGPU(data, func(name string, gpu sdk.LegacyGPU) {
			mem, text := userProcesses(user, gpu.Users[user])
			series.Bars = append(series.Bars, LegacyUserBar{
				GPU:  truncate(name, legacyNameLength),
				Mem:  mem,
				Text: text,
			})
		})
		v.Users = append(v.Users, series)
	}
	return v
}

// forEachLegacyGPU visits machine/gpu pairs in name order as "machine-gpu".
func forEachLegacyGPU(data sdk.LegacyGPUData, fn func(name string, gpu sdk.LegacyGPU)) {
	machines := make([]string, 0, len(data))
	for m := range data {
		machines = append(machines, m)
	}
	sort.Strings(machines)

	for _, m := range machines {
		gpus := make([]string, 0, len(data[m]))
		for g := range data[m] {
			gpus = append(gpus, g)
		}
		sort.Strings(gpus)
		for _, g := range gpus {
			fn(m+"-"+g, data[m][g])
		}
	}
}

func legacyUsers(data sdk.LegacyGPUData) []string {
	seen := map[string]struct{}{}
	for _, gpus := range data {
		for _, gpu := range gpus {
			for user := range gpu.Users {
				seen[user] = struct{}{}
			}
		}
	}
	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

func userProcesses(user string, procs map[string]sdk.LegacyProcess) (float64, string) {
	pids := make([]string, 0, len(procs))
	for pid := range procs {
		pids = append(pids, pid)
	}
	sort.Strings(pids)

	var total float64
	var b strings.Builder
	b.WriteString(user + ":")
	for _, pid := range pids {
		p := procs[pid]
		total += p.Mem
		t := "null"
		if p.Time != nil {
			t = format.Number(*p.Time)
		}
		fmt.Fprintf(&b, "%s(mem: %s, time: %s), ", pid, format.Number(p.Mem), t)
	}
	return total, b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
