// Package sysmon samples host CPU, memory and GPU usage for the desktop
// taskbar resource display.
package sysmon

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"llamadeskd/pkg/types"
)

const bytesPerGB = 1 << 30

// noGPUName is reported when nvidia-smi is absent or its output is unusable.
const noGPUName = "No NVIDIA GPU detected"

// Monitor produces SystemStats snapshots. Probes are best effort: a failing
// source leaves its fields zeroed rather than failing the snapshot, so the
// taskbar keeps updating on hosts without a GPU.
type Monitor struct {
	nvidiaSMI string
	now       func() time.Time
}

// New returns a monitor using the wall clock and the nvidia-smi on PATH.
func New() *Monitor {
	return &Monitor{nvidiaSMI: "nvidia-smi", now: time.Now}
}

// Stats samples current CPU, memory and GPU state.
func (m *Monitor) Stats(ctx context.Context) types.SystemStats {
	st := types.SystemStats{Timestamp: m.now().Unix(), GPUName: noGPUName}
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		st.CPUUsage = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		st.MemoryTotalGB = float64(vm.Total) / bytesPerGB
		st.MemoryUsedGB = float64(vm.Used) / bytesPerGB
	}
	m.fillGPU(ctx, &st)
	return st
}

func (m *Monitor) fillGPU(ctx context.Context, st *types.SystemStats) {
	out, err := exec.CommandContext(ctx, m.nvidiaSMI,
		"--query-gpu=name,utilization.gpu,memory.total,memory.used",
		"--format=csv,noheader,nounits").Output()
	if err != nil {
		return
	}
	gpu, ok := parseGPUQuery(string(out))
	if !ok {
		return
	}
	st.GPUName = gpu.name
	st.GPUUsage = gpu.usage
	st.GPUMemoryTotalGB = gpu.totalGB
	st.GPUMemoryUsedGB = gpu.usedGB
}

type gpuSample struct {
	name    string
	usage   float64
	totalGB float64
	usedGB  float64
}

// parseGPUQuery reads the first device line of nvidia-smi CSV output. Memory
// columns are megabytes under --format=nounits.
func parseGPUQuery(out string) (gpuSample, bool) {
	line := strings.TrimSpace(strings.SplitN(out, "\n", 2)[0])
	parts := strings.Split(line, ",")
	if len(parts) != 4 {
		return gpuSample{}, false
	}
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return gpuSample{}, false
	}
	usage, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return gpuSample{}, false
	}
	totalMB, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return gpuSample{}, false
	}
	usedMB, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
	if err != nil {
		return gpuSample{}, false
	}
	return gpuSample{name: name, usage: usage, totalGB: totalMB / 1024, usedGB: usedMB / 1024}, true
}
