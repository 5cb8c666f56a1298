//go:build linux

package adapters

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"

	"github.com/irgordon/hostpanel/api/internal/core/domain"
)

// HostSnapshot reads host metrics from procfs. It owns the previous process
// sample so per-process CPU can be reported as a rate.
type HostSnapshot struct {
	fs        procfs.FS
	osRelease string

	mu       sync.Mutex
	lastCPU  map[int]float64
	lastSeen time.Time
}

var _ domain.HostMetrics = (*HostSnapshot)(nil)

// NewHostSnapshot opens procfs at procRoot, or the default mount point when
// procRoot is empty.
func NewHostSnapshot(procRoot string) (*HostSnapshot, error) {
	if procRoot == "" {
		procRoot = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(procRoot)
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	return &HostSnapshot{
		fs:        fs,
		osRelease: "/etc/os-release",
		lastCPU:   make(map[int]float64),
	}, nil
}

func (h *HostSnapshot) SystemInfo(ctx context.Context) (*domain.SystemInfo, error) {
	stat, err := h.fs.Stat()
	if err != nil {
		return nil, fmt.Errorf("read /proc/stat: %w", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = unknownValue
	}

	kernel := unknownValue
	var uts unix.Utsname
	if err := unix.Uname(&uts); err == nil {
		kernel = unix.ByteSliceToString(uts.Release[:])
	}

	name, version := osRelease(h.osRelease)
	boot := time.Unix(int64(stat.BootTime), 0)

	var uptime uint64
	if d := time.Since(boot); d > 0 {
		uptime = uint64(d.Seconds())
	}

	return &domain.SystemInfo{
		Hostname:      hostname,
		OSName:        name,
		OSVersion:     version,
		KernelVersion: kernel,
		Uptime:        uptime,
		BootTime:      boot.Local().Format(bootTimeLayout),
	}, nil
}

func (h *HostSnapshot) CPUInfo(ctx context.Context) (*domain.CPUInfo, error) {
	cpus, err := h.fs.CPUInfo()
	if err != nil {
		return nil, fmt.Errorf("read /proc/cpuinfo: %w", err)
	}

	info := &domain.CPUInfo{
		LogicalCores: len(cpus),
		Architecture: runtime.GOARCH,
	}
	if len(cpus) == 0 {
		return info, nil
	}

	info.Name = "cpu0"
	info.Brand = cpus[0].ModelName
	info.FrequencyMHz = cpus[0].CPUMHz

	cores := make(map[string]struct{})
	for _, c := range cpus {
		cores[c.PhysicalID+"/"+c.CoreID] = struct{}{}
	}
	info.PhysicalCores = len(cores)
	return info, nil
}

// CPUUsage takes two /proc/stat samples cpuSampleInterval apart.
func (h *HostSnapshot) CPUUsage(ctx context.Context) (*domain.CPUUsage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	first, err := h.fs.Stat()
	if err != nil {
		return nil, fmt.Errorf("read /proc/stat: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(cpuSampleInterval):
	}

	second, err := h.fs.Stat()
	if err != nil {
		return nil, fmt.Errorf("read /proc/stat: %w", err)
	}

	ids := make([]int64, 0, len(second.CPU))
	for id := range second.CPU {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	usage := &domain.CPUUsage{PerCoreUsage: make([]float64, 0, len(ids))}
	var sum float64
	for _, id := range ids {
		pct := busyPercent(first.CPU[id], second.CPU[id])
		usage.PerCoreUsage = append(usage.PerCoreUsage, pct)
		sum += pct
	}
	if len(ids) > 0 {
		usage.OverallUsage = sum / float64(len(ids))
	}
	return usage, nil
}

func busyPercent(a, b procfs.CPUStat) float64 {
	idle := (b.Idle + b.Iowait) - (a.Idle + a.Iowait)
	total := cpuTotal(b) - cpuTotal(a)
	if total <= 0 {
		return 0
	}
	return (1 - idle/total) * 100
}

func cpuTotal(s procfs.CPUStat) float64 {
	return s.User + s.Nice + s.System + s.Idle + s.Iowait + s.IRQ + s.SoftIRQ + s.Steal
}

func (h *HostSnapshot) Memory(ctx context.Context) (*domain.MemoryInfo, error) {
	mi, err := h.fs.Meminfo()
	if err != nil {
		return nil, fmt.Errorf("read /proc/meminfo: %w", err)
	}

	total := kib(mi.MemTotal)
	free := kib(mi.MemFree)
	available := kib(mi.MemAvailable)
	if mi.MemAvailable == nil {
		available = free
	}
	used := total - min(available, total)

	return &domain.MemoryInfo{
		TotalBytes:     total,
		UsedBytes:      used,
		FreeBytes:      free,
		AvailableBytes: available,
		TotalGB:        bytesToGB(total),
		UsedGB:         bytesToGB(used),
		FreeGB:         bytesToGB(free),
		UsagePercent:   percentOf(used, total),
	}, nil
}

func kib(v *uint64) uint64 {
	if v == nil {
		return 0
	}
	return *v * 1024
}

// Disks reports block-device backed mounts, one entry per mount point.
func (h *HostSnapshot) Disks(ctx context.Context) ([]domain.DiskInfo, error) {
	mounts, err := procfs.GetMounts()
	if err != nil {
		return nil, fmt.Errorf("read mountinfo: %w", err)
	}

	seen := make(map[string]bool)
	disks := []domain.DiskInfo{}
	for _, m := range mounts {
		if !strings.HasPrefix(m.Source, "/dev/") || seen[m.MountPoint] {
			continue
		}
		seen[m.MountPoint] = true

		var st unix.Statfs_t
		if err := unix.Statfs(m.MountPoint, &st); err != nil {
			continue
		}
		total := st.Blocks * uint64(st.Bsize)
		available := st.Bavail * uint64(st.Bsize)
		used := total - min(available, total)

		disks = append(disks, domain.DiskInfo{
			Name:           m.Source,
			MountPoint:     m.MountPoint,
			FileSystem:     m.FSType,
			TotalBytes:     total,
			UsedBytes:      used,
			AvailableBytes: available,
			TotalGB:        bytesToGB(total),
			UsedGB:         bytesToGB(used),
			AvailableGB:    bytesToGB(available),
			UsagePercent:   percentOf(used, total),
		})
	}
	return disks, nil
}

func (h *HostSnapshot) Network(ctx context.Context) ([]domain.NetworkInterface, error) {
	dev, err := h.fs.NetDev()
	if err != nil {
		return nil, fmt.Errorf("read /proc/net/dev: %w", err)
	}

	out := make([]domain.NetworkInterface, 0, len(dev))
	for name, line := range dev {
		mac := "00:00:00:00:00:00"
		if iface, err := net.InterfaceByName(name); err == nil && len(iface.HardwareAddr) > 0 {
			mac = iface.HardwareAddr.String()
		}
		out = append(out, domain.NetworkInterface{
			Name:               name,
			MACAddress:         mac,
			ReceivedBytes:      line.RxBytes,
			TransmittedBytes:   line.TxBytes,
			PacketsReceived:    line.RxPackets,
			PacketsTransmitted: line.TxPackets,
			ErrorsReceived:     line.RxErrors,
			ErrorsTransmitted:  line.TxErrors,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Processes reports CPU as a rate since the previous call. The first call
// falls back to the lifetime average of each process.
func (h *HostSnapshot) Processes(ctx context.Context, limit int) ([]domain.ProcessInfo, error) {
	procs, err := h.fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(h.lastSeen).Seconds()
	current := make(map[int]float64, len(procs))
	out := make([]domain.ProcessInfo, 0, len(procs))

	for _, p := range procs {
		stat, err := p.Stat()
		if err != nil {
			// exited between listing and reading
			continue
		}

		cpuTime := stat.CPUTime()
		current[stat.PID] = cpuTime

		var runtimeSecs float64
		if start, err := stat.StartTime(); err == nil {
			runtimeSecs = max(now.Sub(time.Unix(int64(start), 0)).Seconds(), 0)
		}

		var cpuPct float64
		if prev, ok := h.lastCPU[stat.PID]; ok && elapsed > 0 {
			cpuPct = (cpuTime - prev) / elapsed * 100
		} else if runtimeSecs > 0 {
			cpuPct = cpuTime / runtimeSecs * 100
		}

		mem := uint64(max(stat.ResidentMemory(), 0))
		out = append(out, domain.ProcessInfo{
			PID:         stat.PID,
			Name:        stat.Comm,
			CPUUsage:    max(cpuPct, 0),
			MemoryBytes: mem,
			MemoryMB:    float64(mem) / bytesPerMB,
			ParentPID:   stat.PPID,
			Status:      processStatus(stat.State),
			RunTime:     uint64(runtimeSecs),
		})
	}

	h.lastCPU = current
	h.lastSeen = now
	return topProcesses(out, limit), nil
}

func (h *HostSnapshot) LoadAverage(ctx context.Context) (*domain.LoadAverage, error) {
	load, err := h.fs.LoadAvg()
	if err != nil {
		return nil, fmt.Errorf("read /proc/loadavg: %w", err)
	}
	return &domain.LoadAverage{
		OneMinute:      load.Load1,
		FiveMinutes:    load.Load5,
		FifteenMinutes: load.Load15,
	}, nil
}

// KillProcess sends SIGTERM and returns the name the process had.
func (h *HostSnapshot) KillProcess(ctx context.Context, pid int) (string, error) {
	ref := fmt.Sprint(pid)
	if pid <= 0 {
		return "", domain.NewError(domain.ErrValidation, "kill", ref, "pid must be positive", nil)
	}

	name, err := h.processName(pid)
	if err != nil {
		return "", domain.NewError(domain.ErrNotFound, "kill", ref,
			fmt.Sprintf("process with PID %d not found", pid), nil)
	}

	err = unix.Kill(pid, unix.SIGTERM)
	switch {
	case err == nil:
		return name, nil
	case errors.Is(err, unix.ESRCH):
		return "", domain.NewError(domain.ErrNotFound, "kill", ref,
			fmt.Sprintf("process with PID %d not found", pid), nil)
	default:
		return "", domain.NewError(domain.ErrExternalTool, "kill", ref,
			fmt.Sprintf("failed to terminate process '%s' (PID: %d)", name, pid), err)
	}
}

func (h *HostSnapshot) processName(pid int) (string, error) {
	p, err := h.fs.Proc(pid)
	if err != nil {
		return "", err
	}
	stat, err := p.Stat()
	if err != nil {
		return "", err
	}
	return stat.Comm, nil
}
