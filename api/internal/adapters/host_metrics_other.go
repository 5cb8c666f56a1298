//go:build !linux

package adapters

import (
	"context"
	"errors"

	"github.com/irgordon/hostpanel/api/internal/core/domain"
)

var errHostMetricsUnsupported = domain.NewError(domain.ErrExternalTool, "host", "",
	"host metrics are only available on linux", errors.ErrUnsupported)

// HostSnapshot is a stub on platforms without procfs.
type HostSnapshot struct{}

var _ domain.HostMetrics = (*HostSnapshot)(nil)

func NewHostSnapshot(string) (*HostSnapshot, error) { return &HostSnapshot{}, nil }

func (*HostSnapshot) SystemInfo(context.Context) (*domain.SystemInfo, error) {
	return nil, errHostMetricsUnsupported
}

func (*HostSnapshot) CPUInfo(context.Context) (*domain.CPUInfo, error) {
	return nil, errHostMetricsUnsupported
}

func (*HostSnapshot) CPUUsage(context.Context) (*domain.CPUUsage, error) {
	return nil, errHostMetricsUnsupported
}

func (*HostSnapshot) Memory(context.Context) (*domain.MemoryInfo, error) {
	return nil, errHostMetricsUnsupported
}

func (*HostSnapshot) Disks(context.Context) ([]domain.DiskInfo, error) {
	return nil, errHostMetricsUnsupported
}

func (*HostSnapshot) Network(context.Context) ([]domain.NetworkInterface, error) {
	return nil, errHostMetricsUnsupported
}

func (*HostSnapshot) Processes(context.Context, int) ([]domain.ProcessInfo, error) {
	return nil, errHostMetricsUnsupported
}

func (*HostSnapshot) LoadAverage(context.Context) (*domain.LoadAverage, error) {
	return nil, errHostMetricsUnsupported
}

func (*HostSnapshot) KillProcess(context.Context, int) (string, error) {
	return "", errHostMetricsUnsupported
}
