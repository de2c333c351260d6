package hardware

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// DefaultThreadCount is used when the node configuration does not override it
const DefaultThreadCount = 4

// HostInfo is a snapshot of the resources engines can use
type HostInfo struct {
	LogicalCPUs     int    `json:"logical_cpus"`
	PhysicalCPUs    int    `json:"physical_cpus"`
	TotalMemory     uint64 `json:"total_memory"`
	AvailableMemory uint64 `json:"available_memory"`
}

// Detector inspects the host for CPU and memory
type Detector struct {
	cpuCounts func(logical bool) (int, error)
	virtual   func() (*mem.VirtualMemoryStat, error)
}

// NewDetector creates a detector backed by gopsutil
func NewDetector() *Detector {
	return &Detector{
		cpuCounts: cpu.Counts,
		virtual:   mem.VirtualMemory,
	}
}

// Detect gathers a HostInfo. CPU counts fall back to runtime.NumCPU when
// gopsutil cannot read them; memory errors are returned.
func (d *Detector) Detect() (*HostInfo, error) {
	info := &HostInfo{}

	logical, err := d.cpuCounts(true)
	if err != nil || logical <= 0 {
		logical = runtime.NumCPU()
	}
	info.LogicalCPUs = logical

	physical, err := d.cpuCounts(false)
	if err != nil || physical <= 0 {
		physical = logical
	}
	info.PhysicalCPUs = physical

	vm, err := d.virtual()
	if err != nil {
		return info, fmt.Errorf("read virtual memory: %w", err)
	}
	info.TotalMemory = vm.Total
	info.AvailableMemory = vm.Available

	return info, nil
}

// ThreadCount resolves a configured thread count: 0 means one thread per
// logical CPU, anything else is used as-is.
func (d *Detector) ThreadCount(configured uint32) uint32 {
	if configured > 0 {
		return configured
	}
	logical, err := d.cpuCounts(true)
	if err != nil || logical <= 0 {
		logical = runtime.NumCPU()
	}
	return uint32(logical)
}

// CheckMemory reports why an allocation of need bytes would not fit, or ""
func (d *Detector) CheckMemory(need uint64) string {
	vm, err := d.virtual()
	if err != nil {
		return fmt.Sprintf("cannot read host memory: %v", err)
	}
	if need > vm.Available {
		return fmt.Sprintf("graph needs %s, host has %s available", formatBytes(need), formatBytes(vm.Available))
	}
	return ""
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
