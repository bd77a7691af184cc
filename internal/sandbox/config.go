// Package sandbox implements the Sandbox Manager (C4): per-agent process
// isolation, wrapping whatever the session manager spawns so it runs under
// bubblewrap (Linux), Seatbelt (macOS), or a Docker container, with a
// plain passthrough fallback when no runtime is available.
//
// Grounded on internal/orchestrator/spawner_docker.go's container-spawn
// shape (temp workspace bind, docker exec, cleanup on completion) and on
// internal/runner's process-tracking style, generalized per §4.4 from "one
// hardcoded docker spawner" to "pluggable Runtime behind a common
// instance/spawn/destroy API."
package sandbox

import (
	"os"
	"path/filepath"
)

// NetworkPolicy controls what network access a sandboxed child gets.
type NetworkPolicy string

const (
	NetworkDenyAll   NetworkPolicy = "deny-all"
	NetworkAllowList NetworkPolicy = "allow-list"
	NetworkMonitor   NetworkPolicy = "monitor"
	NetworkDisabled  NetworkPolicy = "disabled"
)

// Config is the per-agent isolation config surface from §4.4.
type Config struct {
	Enabled        bool
	WorkspacePath  string
	NetworkPolicy  NetworkPolicy
	AllowedDomains []string
	WritablePaths  []string
	DenyReadPaths  []string
	ProcessLimit   int
}

// DefaultConfig returns §4.4's defaults for the given agent workspace:
// sandboxing off, deny-all network (inert while disabled), and the home
// credential directories denied for read once a runtime is enabled.
func DefaultConfig(workspacePath string) Config {
	home, _ := os.UserHomeDir()
	var denyRead []string
	if home != "" {
		denyRead = []string{
			filepath.Join(home, ".ssh"),
			filepath.Join(home, ".aws"),
			filepath.Join(home, ".gnupg"),
		}
	}
	return Config{
		Enabled:       false,
		WorkspacePath: workspacePath,
		NetworkPolicy: NetworkDenyAll,
		DenyReadPaths: denyRead,
	}
}

// writablePaths returns {workspacePath} ∪ writablePaths, per §4.4.
func (c Config) writablePaths() []string {
	paths := make([]string, 0, len(c.WritablePaths)+1)
	if c.WorkspacePath != "" {
		paths = append(paths, c.WorkspacePath)
	}
	paths = append(paths, c.WritablePaths...)
	return paths
}

// networkRestricted reports whether the exported runtime config should
// carry an explicit (possibly empty) allowed-domain list, per §4.4: only
// deny-all and allow-list apply restrictions; disabled/monitor omit the
// network section entirely so the runtime applies none.
func (c Config) networkRestricted() bool {
	return c.NetworkPolicy == NetworkDenyAll || c.NetworkPolicy == NetworkAllowList
}

// Override is applied to a Config by createInstance's optional overrides
// parameter.
type Override func(*Config)

func (c Config) withOverrides(overrides ...Override) Config {
	for _, o := range overrides {
		if o != nil {
			o(&c)
		}
	}
	return c
}
