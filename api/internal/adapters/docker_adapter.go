package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/irgordon/hostpanel/api/internal/core/domain"
)

const (
	containerStopTimeoutSecs = 10
	containerLogTail         = "100"
)

// DockerEngine talks to the local daemon through the official client.
type DockerEngine struct {
	cli    *client.Client
	logger *slog.Logger
}

var _ domain.ContainerEngine = (*DockerEngine)(nil)

// NewDockerEngine connects lazily; no request is made until the first call.
func NewDockerEngine(host string, logger *slog.Logger, opts ...client.Opt) (*DockerEngine, error) {
	base := []client.Opt{client.WithHost(host), client.WithAPIVersionNegotiation()}
	cli, err := client.NewClientWithOpts(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &DockerEngine{cli: cli, logger: logger.With(slog.String("component", "docker"))}, nil
}

func (d *DockerEngine) Close() error { return d.cli.Close() }

// ==============================================================================
// Containers
// ==============================================================================

func (d *DockerEngine) ListContainers(ctx context.Context) ([]domain.Container, error) {
	list, err := d.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, d.wrap("list containers", "", err)
	}

	out := make([]domain.Container, 0, len(list))
	for _, c := range list {
		name := "unknown"
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}

		var ports []string
		for _, p := range c.Ports {
			if p.PublicPort != 0 {
				ports = append(ports, fmt.Sprintf("%d:%d", p.PublicPort, p.PrivatePort))
			}
		}

		item := domain.Container{
			ID:      c.ID,
			Name:    name,
			Image:   c.Image,
			State:   c.State,
			Status:  c.Status,
			Ports:   strings.Join(ports, ", "),
			Created: c.Created,
		}
		if c.State == "running" {
			d.attachMemory(ctx, &item)
		}
		out = append(out, item)
	}

	d.logger.Debug("listed containers", slog.Int("count", len(out)))
	return out, nil
}

type memoryStats struct {
	MemoryStats struct {
		Usage uint64 `json:"usage"`
		Limit uint64 `json:"limit"`
	} `json:"memory_stats"`
}

// attachMemory fills the memory fields from a one-shot stats read. Failures
// leave them empty.
func (d *DockerEngine) attachMemory(ctx context.Context, c *domain.Container) {
	resp, err := d.cli.ContainerStatsOneShot(ctx, c.ID)
	if err != nil {
		d.logger.Debug("stats unavailable", slog.String("container", c.ID), slog.String("error", err.Error()))
		return
	}
	defer resp.Body.Close()

	var stats memoryStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return
	}

	usage, limit := stats.MemoryStats.Usage, stats.MemoryStats.Limit
	pct := percentOf(usage, limit)
	c.MemoryUsage, c.MemoryLimit, c.MemoryPercent = &usage, &limit, &pct
}

func (d *DockerEngine) StartContainer(ctx context.Context, id string) error {
	return d.wrap("start container", id, d.cli.ContainerStart(ctx, id, container.StartOptions{}))
}

func (d *DockerEngine) StopContainer(ctx context.Context, id string) error {
	timeout := containerStopTimeoutSecs
	return d.wrap("stop container", id, d.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}))
}

func (d *DockerEngine) RestartContainer(ctx context.Context, id string) error {
	timeout := containerStopTimeoutSecs
	return d.wrap("restart container", id, d.cli.ContainerRestart(ctx, id, container.StopOptions{Timeout: &timeout}))
}

func (d *DockerEngine) RemoveContainer(ctx context.Context, id string) error {
	return d.wrap("remove container", id, d.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}))
}

// ContainerLogs returns the tail of stdout and stderr interleaved.
func (d *DockerEngine) ContainerLogs(ctx context.Context, id string) (string, error) {
	info, err := d.cli.ContainerInspect(ctx, id)
	if err != nil {
		return "", d.wrap("inspect container", id, err)
	}

	rc, err := d.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       containerLogTail,
	})
	if err != nil {
		return "", d.wrap("read logs", id, err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	// TTY containers stream raw bytes with no multiplexing header
	if info.Config != nil && info.Config.Tty {
		_, err = io.Copy(&buf, rc)
	} else {
		_, err = stdcopy.StdCopy(&buf, &buf, rc)
	}
	if err != nil {
		return "", d.wrap("read logs", id, err)
	}
	return buf.String(), nil
}

// ==============================================================================
// Images, volumes, networks
// ==============================================================================

func (d *DockerEngine) ListImages(ctx context.Context) ([]domain.ContainerImage, error) {
	list, err := d.cli.ImageList(ctx, image.ListOptions{All: true})
	if err != nil {
		return nil, d.wrap("list images", "", err)
	}

	out := make([]domain.ContainerImage, 0, len(list))
	for _, img := range list {
		repo, tag := "<none>", "<none>"
		if len(img.RepoTags) > 0 {
			repo, tag = splitRepoTag(img.RepoTags[0])
		}
		out = append(out, domain.ContainerImage{
			ID:         img.ID,
			Repository: repo,
			Tag:        tag,
			Size:       img.Size,
			Created:    img.Created,
		})
	}
	return out, nil
}

// splitRepoTag splits on the last colon so registry ports stay in the repository.
func splitRepoTag(ref string) (string, string) {
	i := strings.LastIndex(ref, ":")
	if i < 0 || strings.Contains(ref[i:], "/") {
		return ref, "<none>"
	}
	return ref[:i], ref[i+1:]
}

func (d *DockerEngine) RemoveImage(ctx context.Context, id string) error {
	_, err := d.cli.ImageRemove(ctx, id, image.RemoveOptions{})
	return d.wrap("remove image", id, err)
}

func (d *DockerEngine) ListVolumes(ctx context.Context) ([]domain.ContainerVolume, error) {
	resp, err := d.cli.VolumeList(ctx, volume.ListOptions{})
	if err != nil {
		return nil, d.wrap("list volumes", "", err)
	}

	out := make([]domain.ContainerVolume, 0, len(resp.Volumes))
	for _, v := range resp.Volumes {
		if v == nil {
			continue
		}
		out = append(out, domain.ContainerVolume{
			Name:       v.Name,
			Driver:     v.Driver,
			Mountpoint: v.Mountpoint,
			Created:    v.CreatedAt,
		})
	}
	return out, nil
}

func (d *DockerEngine) RemoveVolume(ctx context.Context, name string) error {
	return d.wrap("remove volume", name, d.cli.VolumeRemove(ctx, name, false))
}

func (d *DockerEngine) ListNetworks(ctx context.Context) ([]domain.ContainerNetwork, error) {
	list, err := d.cli.NetworkList(ctx, network.ListOptions{})
	if err != nil {
		return nil, d.wrap("list networks", "", err)
	}

	out := make([]domain.ContainerNetwork, 0, len(list))
	for _, n := range list {
		item := domain.ContainerNetwork{
			ID:     n.ID,
			Name:   n.Name,
			Driver: n.Driver,
			Scope:  n.Scope,
		}
		if len(n.IPAM.Config) > 0 {
			item.Subnet = n.IPAM.Config[0].Subnet
		}
		out = append(out, item)
	}
	return out, nil
}

func (d *DockerEngine) RemoveNetwork(ctx context.Context, id string) error {
	return d.wrap("remove network", id, d.cli.NetworkRemove(ctx, id))
}

// wrap maps daemon errors onto the proxy error kinds. nil stays nil.
func (d *DockerEngine) wrap(op, ref string, err error) error {
	switch {
	case err == nil:
		return nil
	case errdefs.IsNotFound(err):
		return domain.NewError(domain.ErrNotFound, op, ref, err.Error(), nil)
	case client.IsErrConnectionFailed(err):
		return domain.NewError(domain.ErrExternalTool, op, ref, "docker connection failed; is Docker running?", err)
	default:
		d.logger.Warn("docker call failed", slog.String("op", op), slog.String("ref", ref), slog.String("error", err.Error()))
		return domain.NewError(domain.ErrExternalTool, op, ref, "failed to "+op, err)
	}
}
