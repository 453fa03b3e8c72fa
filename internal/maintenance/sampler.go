package maintenance

import (
	"os"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

type systemSampler struct {
	proc *process.Process
	path string
}

func newSystemSampler() *systemSampler {
	proc, _ := process.NewProcess(int32(os.Getpid()))
	return &systemSampler{proc: proc, path: "/"}
}

func (s *systemSampler) Sample() (Reading, error) {
	var r Reading

	vm, err := mem.VirtualMemory()
	if err != nil {
		return r, err
	}
	r.MemoryPercent = vm.UsedPercent

	percents, err := cpu.Percent(0, false)
	if err != nil {
		return r, err
	}
	if len(percents) > 0 {
		r.CPUPercent = percents[0]
	}

	usage, err := disk.Usage(s.path)
	if err != nil {
		return r, err
	}
	r.DiskPercent = usage.UsedPercent

	return r, nil
}
