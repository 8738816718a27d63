// Package config loads project settings from onesheet.yml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/onesheet/internal/assembler"
)

// FileNames are the config file names tried, in order.
var FileNames = []string{"onesheet.yml", "onesheet.yaml"}

// ProjectConfig holds project-level settings loaded from onesheet.yml.
type ProjectConfig struct {
	// Model is passed to the provider as the model id.
	Model string `yaml:"model,omitempty"`
	// AgentEndpoint is the A2A endpoint of the generation agent. Empty means
	// the built-in draft agent runs in-process.
	AgentEndpoint string `yaml:"agentEndpoint,omitempty"`
	// StageTimeout bounds each provider call, e.g. "90s".
	StageTimeout Duration `yaml:"stageTimeout,omitempty"`
	// StorePath is the KuzuDB directory. Empty keeps OneSheets in memory.
	StorePath  string `yaml:"storePath,omitempty"`
	ListenAddr string `yaml:"listenAddr,omitempty"`
	// ContextFlags are the defaults applied when a request carries none.
	ContextFlags *assembler.ContextFlags `yaml:"contextFlags,omitempty"`
	Verbose      bool                    `yaml:"verbose,omitempty"`
}

// Duration is a time.Duration written as a Go duration string in YAML.
type Duration time.Duration

// UnmarshalYAML parses strings like "90s" or "2m".
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: line %d: %w", node.Line, err)
	}
	if v < 0 {
		return fmt.Errorf("config: line %d: negative duration %q", node.Line, s)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML writes d as a duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Load attempts to read onesheet.yml or onesheet.yaml from the given
// directory. Returns a zero-value config (not an error) if no config file
// exists.
func Load(dir string) (*ProjectConfig, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var cfg ProjectConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
		return &cfg, nil
	}
	return &ProjectConfig{}, nil
}
