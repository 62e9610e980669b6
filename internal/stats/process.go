package stats

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// Process describes the daemon's own resource usage.
type Process struct {
	PID           int     `json:"pid"`
	ResidentBytes int     `json:"resident_bytes"`
	VirtualBytes  uint    `json:"virtual_bytes"`
	CPUSeconds    float64 `json:"cpu_seconds"`
	Threads       int     `json:"threads"`
	OpenFDs       int     `json:"open_fds"`
}

var procSelfFn = func() (procfs.Proc, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return procfs.Proc{}, fmt.Errorf("create procfs: %w", err)
	}
	return fs.Self()
}

// SampleProcess reads the current process statistics from /proc. It fails
// on platforms without procfs.
func SampleProcess() (Process, error) {
	proc, err := procSelfFn()
	if err != nil {
		return Process{}, err
	}

	stat, err := proc.Stat()
	if err != nil {
		return Process{}, fmt.Errorf("get stat: %w", err)
	}

	p := Process{
		PID:           proc.PID,
		ResidentBytes: stat.ResidentMemory(),
		VirtualBytes:  stat.VirtualMemory(),
		CPUSeconds:    stat.CPUTime(),
		Threads:       stat.NumThreads,
	}
	if n, err := proc.FileDescriptorsLen(); err == nil {
		p.OpenFDs = n
	}
	return p, nil
}
