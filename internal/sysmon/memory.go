package sysmon

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v4/process"
)

// ResidentMemory returns the current resident set size of this process
// in bytes. Used as a proxy for model memory footprint around the
// startup warm-up call and per-request before/after measurements.
func ResidentMemory() (uint64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, fmt.Errorf("failed to open own process: %w", err)
	}
	info, err := proc.MemoryInfo()
	if err != nil {
		return 0, fmt.Errorf("failed to read memory info: %w", err)
	}
	return info.RSS, nil
}
