// Package rangeenv manages the fenced Docker network and target
// containers that lab exercises run against.
package rangeenv

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
)

const (
	// Labels identifying range containers.
	roleLabel    = "cyberlab.role"
	studentLabel = "cyberlab.student"
	roleTarget   = "target"

	restartTimeoutSecs = 10
)

// Manager drives the lab network environment through the Docker API.
type Manager struct {
	cli     *client.Client
	network string
	subnet  string
}

// NewManager creates a Docker-backed range manager for the named fenced
// network.
func NewManager(networkName, subnet string) (*Manager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Manager{cli: cli, network: networkName, subnet: subnet}, nil
}

// EnsureNetwork creates the fenced bridge network if it doesn't exist
// and returns its ID.
func (m *Manager) EnsureNetwork(ctx context.Context) (string, error) {
	inspect, err := m.cli.NetworkInspect(ctx, m.network, network.InspectOptions{})
	if err == nil {
		return inspect.ID, nil
	}
	if !errdefs.IsNotFound(err) {
		return "", fmt.Errorf("inspect network %s: %w", m.network, err)
	}

	createResp, err := m.cli.NetworkCreate(ctx, m.network, network.CreateOptions{
		Driver: "bridge",
		IPAM: &network.IPAM{
			Config: []network.IPAMConfig{
				{
					Subnet: m.subnet,
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("create network %s: %w", m.network, err)
	}

	slog.Info("Range network created", "network_id", createResp.ID, "subnet", m.subnet)
	return createResp.ID, nil
}

// ResetTargets restarts every target container so labs begin from a
// clean state. When studentID is non-empty only that student's targets
// are restarted. Returns the number of containers reset.
func (m *Manager) ResetTargets(ctx context.Context, studentID string) (int, error) {
	args := filters.NewArgs(filters.Arg("label", roleLabel+"="+roleTarget))
	if studentID != "" {
		args.Add("label", studentLabel+"="+studentID)
	}

	containers, err := m.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return 0, fmt.Errorf("list target containers: %w", err)
	}

	timeout := restartTimeoutSecs
	reset := 0
	for _, c := range containers {
		if err := m.cli.ContainerRestart(ctx, c.ID, container.StopOptions{Timeout: &timeout}); err != nil {
			slog.Warn("Failed to restart target container", "container_id", c.ID, "error", err)
			continue
		}
		reset++
	}
	return reset, nil
}

// TargetState summarizes one target container.
type TargetState struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// TargetStatus lists target containers and their run state.
func (m *Manager) TargetStatus(ctx context.Context) ([]TargetState, error) {
	args := filters.NewArgs(filters.Arg("label", roleLabel+"="+roleTarget))
	containers, err := m.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, fmt.Errorf("list target containers: %w", err)
	}

	states := make([]TargetState, 0, len(containers))
	for _, c := range containers {
		name := c.ID[:12]
		if len(c.Names) > 0 {
			name = c.Names[0]
		}
		states = append(states, TargetState{Name: name, State: c.State})
	}
	return states, nil
}

// Close releases the Docker client.
func (m *Manager) Close() error {
	return m.cli.Close()
}
