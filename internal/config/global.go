package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GitProtocol selects how the git pipeline clones/pushes.
type GitProtocol string

const (
	GitProtocolSSH   GitProtocol = "ssh"
	GitProtocolHTTPS GitProtocol = "https"
)

// AgentDefaults is one agent's block under agents.<name> in the global
// config (§6.1): its default model, the models it's allowed to switch to,
// and its tool allow/deny lists.
type AgentDefaults struct {
	DefaultModel string   `yaml:"defaultModel"`
	Models       []string `yaml:"models"`
	AllowedTools []string `yaml:"allowedTools"`
	DeniedTools  []string `yaml:"deniedTools"`
}

// GlobalConfig is $BLOOM_HOME/config.yaml, shared across every workspace
// on the machine (§6.1). Kept as its own strict-decoded struct, distinct
// from WorkspaceConfig, because the two files have unrelated schemas and
// different lifetimes: this one belongs to the user's machine, not to any
// one tasks.yaml.
type GlobalConfig struct {
	GitProtocol           GitProtocol              `yaml:"gitProtocol"`
	DefaultInteractive    string                   `yaml:"defaultInteractive"`
	DefaultNonInteractive string                   `yaml:"defaultNonInteractive"`
	Timeout               int                      `yaml:"timeout"` // seconds
	Agents                map[string]AgentDefaults `yaml:"agents"`
}

// Home resolves $BLOOM_HOME, defaulting to ~/.bloom.
func Home() string {
	if h := os.Getenv("BLOOM_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bloom"
	}
	return filepath.Join(home, ".bloom")
}

// LoadGlobalConfig reads $BLOOM_HOME/config.yaml. A missing file yields the
// zero value; gitProtocol defaults to ssh at the call site, not here, so
// the zero value stays a faithful "nothing configured" signal.
func LoadGlobalConfig(path string) (GlobalConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return GlobalConfig{}, nil
		}
		return GlobalConfig{}, fmt.Errorf("open global config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var cfg GlobalConfig
	if err := dec.Decode(&cfg); err != nil {
		return GlobalConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return GlobalConfig{}, err
	}
	return cfg, nil
}

// Validate enforces §6.1's one cross-field rule: an opencode agent block
// must name a default model, since opencode (unlike the others) has no
// hardcoded fallback model of its own.
func (c GlobalConfig) Validate() error {
	if oc, ok := c.Agents["opencode"]; ok && oc.DefaultModel == "" {
		return fmt.Errorf("global config: agents.opencode.defaultModel is required when an opencode section exists")
	}
	return nil
}

// ProtocolOrDefault returns the configured git protocol, defaulting to ssh.
func (c GlobalConfig) ProtocolOrDefault() GitProtocol {
	if c.GitProtocol == "" {
		return GitProtocolSSH
	}
	return c.GitProtocol
}
