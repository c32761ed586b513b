package observability

import (
	"os"

	"github.com/shirou/gopsutil/process"
)

// ProcessStats is a point-in-time view of the server process itself,
// exposed on the stats endpoint.
type ProcessStats struct {
	Pid        int     `json:"pid"`
	RSSBytes   uint64  `json:"rssBytes"`
	CPUPercent float64 `json:"cpuPercent"`
	Status     string  `json:"status"`
}

// SelfStats retrieves memory, CPU and OS status for the current process.
func SelfStats() (ProcessStats, error) {
	pid := os.Getpid()
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return ProcessStats{}, err
	}

	memInfo, err := p.MemoryInfo()
	if err != nil {
		return ProcessStats{}, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return ProcessStats{}, err
	}
	status, err := p.Status()
	if err != nil {
		return ProcessStats{}, err
	}

	return ProcessStats{
		Pid:        pid,
		RSSBytes:   memInfo.RSS,
		CPUPercent: cpuPercent,
		Status:     status,
	}, nil
}
