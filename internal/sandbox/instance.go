package sandbox

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// destroyGrace is how long destroy waits after SIGTERM before SIGKILL,
// per §4.4's destroyInstance contract.
const destroyGrace = 5 * time.Second

// SpawnOptions customizes one Spawn call beyond the instance's Config.
type SpawnOptions struct {
	Env []string
	Dir string // overrides Config.WorkspacePath when set
}

// Instance is one agent's sandbox: a resolved config, the runtime (if any)
// backing it, and the set of live child processes it owns.
type Instance struct {
	agentName string
	config    Config
	createdAt time.Time

	runtime   Runtime           // set when a process-level runtime wraps spawns
	container *ContainerRuntime // set when this instance is container-backed
	containerID string

	mu        sync.Mutex
	sandboxed bool
	processes map[int]*exec.Cmd
}

func newInstance(agentName string, cfg Config) *Instance {
	return &Instance{
		agentName: agentName,
		config:    cfg,
		createdAt: time.Now(),
		processes: make(map[int]*exec.Cmd),
	}
}

// Config returns the instance's resolved isolation config.
func (i *Instance) Config() Config { return i.config }

// CreatedAt returns when the instance was created.
func (i *Instance) CreatedAt() time.Time { return i.createdAt }

// Sandboxed reports whether the most recent Spawn actually ran under
// isolation (false if sandboxing was disabled, unavailable, or the wrap
// itself failed and fell back to passthrough).
func (i *Instance) Sandboxed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.sandboxed
}

// Spawn wraps the OS-level spawn of command/args: if the instance is
// enabled and a process-level runtime is available, the child runs under
// it; otherwise it falls back to a plain spawn. Every spawned child is
// tracked until Forget or destroy.
func (i *Instance) Spawn(ctx context.Context, command string, args []string, opts SpawnOptions) (*exec.Cmd, error) {
	if i.container != nil {
		return nil, fmt.Errorf("sandbox: instance %q is container-backed; use Exec", i.agentName)
	}

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = i.config.WorkspacePath
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	cmd.Env = opts.Env

	i.WrapCommand(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("sandbox: spawn %s: %w", command, err)
	}
	i.Track(cmd)
	return cmd, nil
}

// WrapCommand applies this instance's process-level runtime (if enabled
// and available) to an already-built, not-yet-started *exec.Cmd, for
// callers that need to control the command's stdio themselves (the
// session manager's subprocess streaming). Returns whether the command
// now runs sandboxed. No-op (returns false) for container-backed
// instances, which have no local process to wrap.
func (i *Instance) WrapCommand(cmd *exec.Cmd) bool {
	sandboxed := false
	if i.container == nil && i.config.Enabled && i.runtime != nil && i.runtime.Available() {
		sandboxed = i.runtime.Wrap(i.config, cmd)
	}
	i.mu.Lock()
	i.sandboxed = sandboxed
	i.mu.Unlock()
	return sandboxed
}

// Track records an already-started cmd as a live child of this instance,
// so destroy/DestroyInstance can find and kill it later.
func (i *Instance) Track(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	i.mu.Lock()
	i.processes[cmd.Process.Pid] = cmd
	i.mu.Unlock()
}

// Forget stops tracking pid, e.g. once its owner has already Wait()ed it.
// Safe to call for an untracked pid.
func (i *Instance) Forget(pid int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.processes, pid)
}

// Exec runs command inside the container backing a container-backed
// instance; it errors for process-backed instances, which should use
// Spawn instead.
func (i *Instance) Exec(ctx context.Context, command string, args []string) (string, error) {
	if i.container == nil {
		return "", fmt.Errorf("sandbox: instance %q is not container-backed", i.agentName)
	}
	return i.container.Exec(ctx, i.containerID, command, args)
}

// destroy SIGTERMs every tracked process, waits up to destroyGrace, then
// SIGKILLs survivors, and tears down the backing container if any.
func (i *Instance) destroy(ctx context.Context) {
	i.mu.Lock()
	procs := make([]*exec.Cmd, 0, len(i.processes))
	for _, cmd := range i.processes {
		procs = append(procs, cmd)
	}
	i.processes = make(map[int]*exec.Cmd)
	containerID := i.containerID
	cr := i.container
	i.mu.Unlock()

	var wg sync.WaitGroup
	for _, cmd := range procs {
		wg.Add(1)
		go func(cmd *exec.Cmd) {
			defer wg.Done()
			killGraceful(cmd, destroyGrace)
		}(cmd)
	}
	wg.Wait()

	if cr != nil && containerID != "" {
		_ = cr.Destroy(ctx, containerID)
	}
}

// killGraceful sends SIGTERM, waits up to grace for the process to exit,
// then escalates to SIGKILL. Mirrors internal/session's processHandle.kill,
// adapted for a *exec.Cmd the caller hasn't necessarily started waiting on.
func killGraceful(cmd *exec.Cmd, grace time.Duration) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		_, _ = cmd.Process.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		_ = cmd.Process.Signal(syscall.SIGKILL)
		<-done
	}
}
