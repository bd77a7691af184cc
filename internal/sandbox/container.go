package sandbox

import (
	"context"
	"fmt"

	"bloom/internal/docker"
)

// dockerAPI is the subset of *docker.Client the container runtime needs,
// narrowed so tests can supply a fake.
type dockerAPI interface {
	CheckDaemon(ctx context.Context) error
	RunContainerWithOptions(ctx context.Context, imageRef, workspace string, opts docker.RunOptions) (string, error)
	Exec(ctx context.Context, containerID string, cmd []string) (string, error)
	StopContainer(ctx context.Context, containerID string) error
}

// ContainerRuntime isolates an agent by running it inside a Docker
// container rather than wrapping a local process. It does not implement
// Runtime: a containerized child has no local *exec.Cmd to mutate, so
// Instance special-cases this runtime, routing Spawn through Exec instead
// of a local fork/exec. Grounded on
// internal/orchestrator/spawner_docker.go's DockerSpawner.Spawn.
type ContainerRuntime struct {
	Client dockerAPI
	Image  string
}

// NewContainerRuntime wraps a docker.Client for sandbox use. image is the
// container image agent processes run inside.
func NewContainerRuntime(client *docker.Client, image string) *ContainerRuntime {
	return &ContainerRuntime{Client: client, Image: image}
}

func (r *ContainerRuntime) Name() string { return "container" }

func (r *ContainerRuntime) Available(ctx context.Context) bool {
	if r.Client == nil {
		return false
	}
	return r.Client.CheckDaemon(ctx) == nil
}

// EnsureContainer starts a new backing container for an agent instance,
// bound to cfg.WorkspacePath at /workspace.
func (r *ContainerRuntime) EnsureContainer(ctx context.Context, cfg Config) (string, error) {
	opts := docker.RunOptions{
		ExtraBinds:      bindsFor(cfg),
		NetworkDisabled: cfg.networkRestricted(),
	}
	id, err := r.Client.RunContainerWithOptions(ctx, r.Image, cfg.WorkspacePath, opts)
	if err != nil {
		return "", fmt.Errorf("sandbox: start container: %w", err)
	}
	return id, nil
}

// Exec runs command inside the container backing containerID and returns
// its combined stdout+stderr; this is ContainerRuntime's equivalent of
// Instance.Spawn for a runtime that can't wrap a local process.
func (r *ContainerRuntime) Exec(ctx context.Context, containerID string, command string, args []string) (string, error) {
	out, err := r.Client.Exec(ctx, containerID, append([]string{command}, args...))
	if err != nil {
		return out, fmt.Errorf("sandbox: exec in container %s: %w", containerID, err)
	}
	return out, nil
}

// Destroy stops and removes the backing container.
func (r *ContainerRuntime) Destroy(ctx context.Context, containerID string) error {
	return r.Client.StopContainer(ctx, containerID)
}

func bindsFor(cfg Config) []string {
	var binds []string
	for _, p := range cfg.WritablePaths {
		if p != "" {
			binds = append(binds, fmt.Sprintf("%s:%s", p, p))
		}
	}
	return binds
}
