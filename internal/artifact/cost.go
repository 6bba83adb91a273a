package artifact

import (
	"os"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/hardstop/hardstop/pkg/types"
)

// CostSnapshot takes a best-effort RSS/CPU/open-FD snapshot of the current
// process for attachment to a RunRecord. A failure to open the process or
// read its memory or CPU figures (unsupported platform, permission denied)
// returns a nil cost and a COST_SNAPSHOT_UNAVAILABLE diagnostic; an
// unreadable open-FD count is recorded as 0. It never fails the run.
func CostSnapshot() (*types.RunCost, *types.Diagnostic) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, unavailable(err)
	}

	mem, err := proc.MemoryInfo()
	if err != nil {
		return nil, unavailable(err)
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		return nil, unavailable(err)
	}

	var openFDs int32
	if n, err := proc.NumFDs(); err == nil {
		openFDs = n
	}

	return &types.RunCost{
		RSSBytes:   mem.RSS,
		CPUPercent: cpuPercent,
		OpenFDs:    openFDs,
	}, nil
}

func unavailable(err error) *types.Diagnostic {
	return &types.Diagnostic{
		Code:     "COST_SNAPSHOT_UNAVAILABLE",
		Message:  err.Error(),
		Severity: "info",
	}
}
