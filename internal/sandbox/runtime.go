package sandbox

import "os/exec"

// Runtime is one sandboxing backend. Process-level runtimes (bwrap,
// Seatbelt) mutate an *exec.Cmd in place so the child is born inside the
// sandbox; container-level runtimes can't do that (the child runs in a
// different namespace entirely), so ContainerRuntime does not implement
// Runtime and exposes its own Exec-style API instead.
type Runtime interface {
	// Name identifies the runtime for logging and events.
	Name() string
	// Available reports whether the runtime's binary/daemon is present on
	// this host.
	Available() bool
	// Wrap mutates cmd so that running it spawns the child under this
	// runtime's isolation, given cfg. Returns false if this runtime cannot
	// wrap a local exec.Cmd (the caller should fall back to passthrough).
	Wrap(cfg Config, cmd *exec.Cmd) bool
}

// lookPath is a var so tests can stub "binary present" without touching
// PATH.
var lookPath = exec.LookPath
