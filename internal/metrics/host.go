package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostSnapshot reports host resource usage, surfaced by the Dashboard
// Gateway's /api/status and /api/memory so an operator can distinguish
// "this account is stuck" from "this box is resource-starved".
type HostSnapshot struct {
	CPUPercent   float64 `json:"cpu_percent"`
	MemUsedBytes uint64  `json:"mem_used_bytes"`
	MemTotal     uint64  `json:"mem_total_bytes"`
	Goroutines   int     `json:"goroutines"`
}

// Host samples current host resource usage. Sampling cpu.PercentWithContext
// blocks for the given interval; callers on a hot path should use a short
// interval or cache the result.
func Host(ctx context.Context, sampleInterval time.Duration) HostSnapshot {
	snap := HostSnapshot{Goroutines: runtime.NumGoroutine()}

	if pcts, err := cpu.PercentWithContext(ctx, sampleInterval, false); err == nil && len(pcts) > 0 {
		snap.CPUPercent = pcts[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.MemUsedBytes = vm.Used
		snap.MemTotal = vm.Total
	}
	return snap
}
