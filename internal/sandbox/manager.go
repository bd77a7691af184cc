package sandbox

import (
	"context"
	"sync"
	"time"

	"bloom/internal/events"
)

// Manager owns at most one Instance per agent name, selecting a Runtime
// for each from the process-level runtimes and, if none is available, the
// container runtime, falling back to passthrough (sandboxed=false) if
// neither is usable — §4.4's "never crash the orchestrator" failure
// policy.
type Manager struct {
	bus *events.Bus

	processRuntimes  []Runtime
	containerRuntime *ContainerRuntime

	mu        sync.Mutex
	instances map[string]*Instance
}

// NewManager returns a Manager publishing sandbox-availability warnings to
// bus. processRuntimes are tried in order (bwrap, then Seatbelt, typically
// only one is Available() on a given host); containerRuntime may be nil.
func NewManager(bus *events.Bus, containerRuntime *ContainerRuntime, processRuntimes ...Runtime) *Manager {
	return &Manager{
		bus:              bus,
		processRuntimes:  processRuntimes,
		containerRuntime: containerRuntime,
		instances:        make(map[string]*Instance),
	}
}

// CreateInstance resolves overrides on top of DefaultConfig(workspacePath),
// selects a runtime, and replaces any existing instance for agentName
// (destroying it first).
func (m *Manager) CreateInstance(ctx context.Context, agentName, workspacePath string, overrides ...Override) (*Instance, error) {
	cfg := DefaultConfig(workspacePath).withOverrides(overrides...)

	m.mu.Lock()
	existing, hadExisting := m.instances[agentName]
	delete(m.instances, agentName)
	m.mu.Unlock()
	if hadExisting {
		existing.destroy(ctx)
	}

	inst := newInstance(agentName, cfg)

	if cfg.Enabled {
		switch runtime := m.selectProcessRuntime(); {
		case runtime != nil:
			inst.runtime = runtime
		case m.containerRuntime != nil && m.containerRuntime.Available(ctx):
			containerID, err := m.containerRuntime.EnsureContainer(ctx, cfg)
			if err != nil {
				m.warn(agentName, "sandbox container setup failed, falling back to passthrough: "+err.Error())
			} else {
				inst.container = m.containerRuntime
				inst.containerID = containerID
			}
		default:
			m.warn(agentName, "sandbox enabled but no runtime (bwrap/seatbelt/docker) is available, falling back to passthrough")
		}
	}

	m.mu.Lock()
	m.instances[agentName] = inst
	m.mu.Unlock()
	return inst, nil
}

func (m *Manager) selectProcessRuntime() Runtime {
	for _, r := range m.processRuntimes {
		if r != nil && r.Available() {
			return r
		}
	}
	return nil
}

// Get returns the current instance for agentName, if any.
func (m *Manager) Get(agentName string) (*Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[agentName]
	return inst, ok
}

// DestroyInstance tears down agentName's instance, SIGTERMing its tracked
// children, waiting destroyGrace, then SIGKILLing survivors.
func (m *Manager) DestroyInstance(ctx context.Context, agentName string) {
	m.mu.Lock()
	inst, ok := m.instances[agentName]
	delete(m.instances, agentName)
	m.mu.Unlock()
	if ok {
		inst.destroy(ctx)
	}
}

// DestroyAll tears down every live instance; called from SIGINT/SIGTERM and
// before-exit handlers per §4.4 and §5's cancellation contract.
func (m *Manager) DestroyAll(ctx context.Context) {
	m.mu.Lock()
	all := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		all = append(all, inst)
	}
	m.instances = make(map[string]*Instance)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, inst := range all {
		wg.Add(1)
		go func(inst *Instance) {
			defer wg.Done()
			inst.destroy(ctx)
		}(inst)
	}
	wg.Wait()
}

func (m *Manager) warn(agentName, message string) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(events.Event{
		Kind:      events.KindLog,
		AgentName: agentName,
		Message:   message,
		Time:      time.Now(),
	})
}
