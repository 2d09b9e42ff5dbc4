package system

import (
	"os"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ResourceSnapshot is a point-in-time view of process and host memory.
type ResourceSnapshot struct {
	ProcessRSS     uint64
	ProcessCPU     float64
	HostUsedPct    float64
	HostAvailBytes uint64
}

// Snapshot samples resource usage. Fields that cannot be read stay zero.
func Snapshot() ResourceSnapshot {
	var s ResourceSnapshot

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfo(); err == nil {
			s.ProcessRSS = mi.RSS
		}
		if cpu, err := p.CPUPercent(); err == nil {
			s.ProcessCPU = cpu
		}
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		s.HostUsedPct = vm.UsedPercent
		s.HostAvailBytes = vm.Available
	}

	return s
}
