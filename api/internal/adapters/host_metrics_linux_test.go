//go:build linux

package adapters

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irgordon/hostpanel/api/internal/core/domain"
)

func newTestSnapshot(t *testing.T) *HostSnapshot {
	t.Helper()
	h, err := NewHostSnapshot("")
	if err != nil {
		t.Skipf("procfs not available: %v", err)
	}
	return h
}

func TestHostSnapshot_Readings(t *testing.T) {
	h := newTestSnapshot(t)
	ctx := context.Background()

	mem, err := h.Memory(ctx)
	require.NoError(t, err)
	assert.Greater(t, mem.TotalBytes, uint64(0))
	assert.LessOrEqual(t, mem.UsedBytes, mem.TotalBytes)

	cpu, err := h.CPUInfo(ctx)
	require.NoError(t, err)
	assert.Greater(t, cpu.LogicalCores, 0)

	usage, err := h.CPUUsage(ctx)
	require.NoError(t, err)
	for _, pct := range usage.PerCoreUsage {
		assert.GreaterOrEqual(t, pct, 0.0)
		assert.LessOrEqual(t, pct, 100.0)
	}

	load, err := h.LoadAverage(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, load.OneMinute, 0.0)

	sys, err := h.SystemInfo(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, sys.KernelVersion)
	_, err = time.Parse("2006-01-02 15:04:05", sys.BootTime)
	assert.NoError(t, err)
}

func TestHostSnapshot_ProcessesIncludesSelf(t *testing.T) {
	h := newTestSnapshot(t)

	procs, err := h.Processes(context.Background(), 1<<20)
	require.NoError(t, err)

	found := false
	for _, p := range procs {
		if p.PID == os.Getpid() {
			found = true
			assert.Greater(t, p.MemoryBytes, uint64(0))
		}
	}
	assert.True(t, found)

	limited, err := h.Processes(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestHostSnapshot_KillProcess(t *testing.T) {
	h := newTestSnapshot(t)
	ctx := context.Background()

	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())

	name, err := h.KillProcess(ctx, cmd.Process.Pid)
	require.NoError(t, err)
	assert.Equal(t, "sleep", name)
	assert.Error(t, cmd.Wait(), "sleep should exit on SIGTERM")

	_, err = h.KillProcess(ctx, cmd.Process.Pid)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = h.KillProcess(ctx, 0)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}
