package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WorkspaceConfig is bloom.config.yaml (§6.1): the workspace-level knobs
// that live alongside tasks.yaml rather than in the user's global config.
// Grounded on internal/task/store.go's parseDocument: a strict yaml.v3
// decode so a malformed file fails with the line yaml.v3 itself reports,
// rather than the viper-based global Load in load.go (which has no
// document to point a line number at).
type WorkspaceConfig struct {
	Repos      []string `yaml:"repos"`
	ReposDir   string   `yaml:"reposDir"`
	AutoDetect bool     `yaml:"autoDetect"`

	// Agents maps a task's routing name (tasks.yaml's agent_name, e.g.
	// "frontend") to the provider.ByName key that actually runs it (e.g.
	// "claude"). A routing name absent from this map falls back to using
	// itself as the provider key, so the common single-provider case needs
	// no entry at all.
	Agents map[string]string `yaml:"agents,omitempty"`
}

// ProviderFor resolves a tasks.yaml agent_name to a provider.ByName key.
func (c WorkspaceConfig) ProviderFor(agentName string) string {
	if p, ok := c.Agents[agentName]; ok {
		return p
	}
	return agentName
}

// LoadWorkspaceConfig reads bloom.config.yaml at path. A missing file is
// not an error: it returns the zero value, since every field has a usable
// default (ReposDir falls back to "<workspace>/repos"; AutoDetect stays
// false and is not read by any command).
func LoadWorkspaceConfig(path string) (WorkspaceConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return WorkspaceConfig{}, nil
		}
		return WorkspaceConfig{}, fmt.Errorf("open workspace config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var cfg WorkspaceConfig
	if err := dec.Decode(&cfg); err != nil {
		return WorkspaceConfig{}, fmt.Errorf("parse bloom.config.yaml: %w", err)
	}
	return cfg, nil
}
