package domain

import "context"

type Container struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Image         string   `json:"image"`
	State         string   `json:"state"`
	Status        string   `json:"status"`
	Ports         string   `json:"ports"`
	Created       int64    `json:"created"`
	MemoryUsage   *uint64  `json:"memory_usage,omitempty"`
	MemoryLimit   *uint64  `json:"memory_limit,omitempty"`
	MemoryPercent *float64 `json:"memory_percent,omitempty"`
}

type ContainerImage struct {
	ID         string `json:"id"`
	Repository string `json:"repository"`
	Tag        string `json:"tag"`
	Size       int64  `json:"size"`
	Created    int64  `json:"created"`
}

type ContainerVolume struct {
	Name       string `json:"name"`
	Driver     string `json:"driver"`
	Mountpoint string `json:"mountpoint"`
	Created    string `json:"created,omitempty"`
}

type ContainerNetwork struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Driver string `json:"driver"`
	Scope  string `json:"scope"`
	Subnet string `json:"subnet,omitempty"`
}

// ContainerEngine is the thin control surface over the local container daemon.
// Unknown ids surface as ErrNotFound; everything else as ErrExternalTool.
type ContainerEngine interface {
	ListContainers(ctx context.Context) ([]Container, error)
	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string) error
	RestartContainer(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string) error
	ContainerLogs(ctx context.Context, id string) (string, error)

	ListImages(ctx context.Context) ([]ContainerImage, error)
	RemoveImage(ctx context.Context, id string) error

	ListVolumes(ctx context.Context) ([]ContainerVolume, error)
	RemoveVolume(ctx context.Context, name string) error

	ListNetworks(ctx context.Context) ([]ContainerNetwork, error)
	RemoveNetwork(ctx context.Context, id string) error
}
