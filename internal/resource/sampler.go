package resource

import (
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/llmhub/llmhub/internal/domain"
)

// systemSampler reads host and own-process usage via gopsutil.
// cpu.Percent(0) and proc.Percent(0) report usage since the previous
// call, so the first cycle reads zero; that is fine for a monitor
// sampling every few seconds.
type systemSampler struct {
	proc *process.Process
}

func newSystemSampler() *systemSampler {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		// Own PID always exists; a nil proc is handled per sample.
		proc = nil
	}
	return &systemSampler{proc: proc}
}

func (s *systemSampler) Sample() (domain.ResourceSnapshot, error) {
	snap := domain.ResourceSnapshot{Timestamp: time.Now()}

	cpuPercents, err := cpu.Percent(0, false)
	if err != nil {
		return snap, fmt.Errorf("failed to sample system cpu: %w", err)
	}
	if len(cpuPercents) > 0 {
		snap.SystemCPU = cpuPercents[0]
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		return snap, fmt.Errorf("failed to sample system memory: %w", err)
	}
	snap.SystemMemory = vm.UsedPercent

	if s.proc == nil {
		if s.proc, err = process.NewProcess(int32(os.Getpid())); err != nil {
			return snap, nil
		}
	}

	if ownCPU, err := s.proc.Percent(0); err == nil {
		snap.ProcessCPU = ownCPU
	}
	if ownMem, err := s.proc.MemoryPercent(); err == nil {
		snap.ProcessMemory = float64(ownMem)
	}

	return snap, nil
}
