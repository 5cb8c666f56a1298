package domain

import "context"

type SystemInfo struct {
	Hostname      string `json:"hostname"`
	OSName        string `json:"os_name"`
	OSVersion     string `json:"os_version"`
	KernelVersion string `json:"kernel_version"`
	Uptime        uint64 `json:"uptime"`
	BootTime      string `json:"boot_time"`
}

type CPUInfo struct {
	Name          string  `json:"name"`
	Brand         string  `json:"brand"`
	PhysicalCores int     `json:"physical_cores"`
	LogicalCores  int     `json:"logical_cores"`
	FrequencyMHz  float64 `json:"frequency"`
	Architecture  string  `json:"architecture"`
}

type CPUUsage struct {
	OverallUsage float64   `json:"overall_usage"`
	PerCoreUsage []float64 `json:"per_core_usage"`
}

type MemoryInfo struct {
	TotalBytes     uint64  `json:"total_bytes"`
	UsedBytes      uint64  `json:"used_bytes"`
	FreeBytes      uint64  `json:"free_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	TotalGB        float64 `json:"total_gb"`
	UsedGB         float64 `json:"used_gb"`
	FreeGB         float64 `json:"free_gb"`
	UsagePercent   float64 `json:"usage_percent"`
}

type DiskInfo struct {
	Name           string  `json:"name"`
	MountPoint     string  `json:"mount_point"`
	FileSystem     string  `json:"file_system"`
	TotalBytes     uint64  `json:"total_bytes"`
	UsedBytes      uint64  `json:"used_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	TotalGB        float64 `json:"total_gb"`
	UsedGB         float64 `json:"used_gb"`
	AvailableGB    float64 `json:"available_gb"`
	UsagePercent   float64 `json:"usage_percent"`
}

type NetworkInterface struct {
	Name               string `json:"name"`
	MACAddress         string `json:"mac_address"`
	ReceivedBytes      uint64 `json:"received_bytes"`
	TransmittedBytes   uint64 `json:"transmitted_bytes"`
	PacketsReceived    uint64 `json:"packets_received"`
	PacketsTransmitted uint64 `json:"packets_transmitted"`
	ErrorsReceived     uint64 `json:"errors_received"`
	ErrorsTransmitted  uint64 `json:"errors_transmitted"`
}

type ProcessInfo struct {
	PID         int     `json:"pid"`
	Name        string  `json:"name"`
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryBytes uint64  `json:"memory_bytes"`
	MemoryMB    float64 `json:"memory_mb"`
	ParentPID   int     `json:"parent_pid,omitempty"`
	Status      string  `json:"status"`
	RunTime     uint64  `json:"run_time"`
}

type LoadAverage struct {
	OneMinute      float64 `json:"one_minute"`
	FiveMinutes    float64 `json:"five_minutes"`
	FifteenMinutes float64 `json:"fifteen_minutes"`
}

// HostMetrics is a point-in-time view of the machine. CPUUsage blocks for
// the sampling interval. KillProcess returns the name of the signalled process.
type HostMetrics interface {
	SystemInfo(ctx context.Context) (*SystemInfo, error)
	CPUInfo(ctx context.Context) (*CPUInfo, error)
	CPUUsage(ctx context.Context) (*CPUUsage, error)
	Memory(ctx context.Context) (*MemoryInfo, error)
	Disks(ctx context.Context) ([]DiskInfo, error)
	Network(ctx context.Context) ([]NetworkInterface, error)
	Processes(ctx context.Context, limit int) ([]ProcessInfo, error)
	LoadAverage(ctx context.Context) (*LoadAverage, error)
	KillProcess(ctx context.Context, pid int) (string, error)
}
