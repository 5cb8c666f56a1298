package adapters

import (
	"sort"
	"time"

	"github.com/joho/godotenv"

	"github.com/irgordon/hostpanel/api/internal/core/domain"
)

const (
	cpuSampleInterval   = 200 * time.Millisecond
	defaultProcessLimit = 50
	bootTimeLayout      = "2006-01-02 15:04:05"
	unknownValue        = "unknown"
	bytesPerGB          = 1024 * 1024 * 1024
	bytesPerMB          = 1024 * 1024
)

func bytesToGB(b uint64) float64 { return float64(b) / bytesPerGB }

func percentOf(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// osRelease reads NAME and VERSION_ID from an os-release file. The format is
// shell-compatible assignments, which godotenv parses as-is.
func osRelease(path string) (name, version string) {
	vals, err := godotenv.Read(path)
	if err != nil {
		return unknownValue, unknownValue
	}
	name, version = vals["NAME"], vals["VERSION_ID"]
	if name == "" {
		name = unknownValue
	}
	if version == "" {
		version = unknownValue
	}
	return name, version
}

// topProcesses orders by CPU descending and keeps at most limit entries.
func topProcesses(procs []domain.ProcessInfo, limit int) []domain.ProcessInfo {
	if limit <= 0 {
		limit = defaultProcessLimit
	}
	sort.SliceStable(procs, func(i, j int) bool {
		return procs[i].CPUUsage > procs[j].CPUUsage
	})
	if len(procs) > limit {
		procs = procs[:limit]
	}
	return procs
}

// processStatus spells out the one-letter state from /proc/<pid>/stat.
func processStatus(state string) string {
	switch state {
	case "R":
		return "Run"
	case "S":
		return "Sleep"
	case "D":
		return "UninterruptibleDiskSleep"
	case "I":
		return "Idle"
	case "Z":
		return "Zombie"
	case "T":
		return "Stop"
	case "t":
		return "Tracing"
	case "X", "x":
		return "Dead"
	}
	return "Unknown"
}
