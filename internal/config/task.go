// Package config handles configuration structures.
package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// TaskConfig represents dynamic per-task configuration: a worker pool that
// dispatches arriving items across goroutines and reports the outcome of
// each through one or more Reporters.
type TaskConfig struct {
	ID               string                `json:"id" yaml:"id"`
	Workers          int                   `json:"workers" yaml:"workers"`
	DispatchStrategy string                `json:"dispatch_strategy" yaml:"dispatch_strategy"` // "flow-hash" (default) | "round-robin"
	Reporters        []ReporterConfig      `json:"reporters" yaml:"reporters"`
	ChannelCapacity  ChannelCapacityConfig `json:"channel_capacity" yaml:"channel_capacity"`
}

// ChannelCapacityConfig allows tuning internal channel buffer sizes.
type ChannelCapacityConfig struct {
	Intake     int `json:"intake" yaml:"intake"`           // per-worker intake channel (default 1000)
	SendBuffer int `json:"send_buffer" yaml:"send_buffer"` // worker->sender channel (default 10000)
}

// ReporterConfig contains reporter plugin configuration.
type ReporterConfig struct {
	Name         string         `json:"name" yaml:"name"`
	Config       map[string]any `json:"config" yaml:"config"`
	BatchSize    int            `json:"batch_size" yaml:"batch_size"`       // Wrapper batch size (default 100)
	BatchTimeout string         `json:"batch_timeout" yaml:"batch_timeout"` // Wrapper batch timeout (default 50ms)
	Fallback     string         `json:"fallback" yaml:"fallback"`           // Fallback reporter name (optional)
}

// Validate validates task configuration and fills in defaults.
func (tc *TaskConfig) Validate() error {
	if tc.ID == "" {
		return fmt.Errorf("task ID is required")
	}

	if tc.Workers < 1 {
		tc.Workers = 1
	}

	if tc.DispatchStrategy == "" {
		tc.DispatchStrategy = "flow-hash"
	}
	if tc.DispatchStrategy != "flow-hash" && tc.DispatchStrategy != "round-robin" {
		return fmt.Errorf("dispatch_strategy must be 'flow-hash' or 'round-robin', got %q", tc.DispatchStrategy)
	}

	if len(tc.Reporters) == 0 {
		return fmt.Errorf("at least one reporter is required")
	}
	for i, reporter := range tc.Reporters {
		if reporter.Name == "" {
			return fmt.Errorf("reporter[%d]: name is required", i)
		}
	}

	if tc.ChannelCapacity.Intake <= 0 {
		tc.ChannelCapacity.Intake = 1000
	}
	if tc.ChannelCapacity.SendBuffer <= 0 {
		tc.ChannelCapacity.SendBuffer = 10000
	}

	return nil
}

// ParseTaskConfig parses task configuration from JSON.
func ParseTaskConfig(data []byte) (*TaskConfig, error) {
	var tc TaskConfig
	if err := json.Unmarshal(data, &tc); err != nil {
		return nil, fmt.Errorf("failed to parse task config: %w", err)
	}

	if err := tc.Validate(); err != nil {
		return nil, err
	}

	return &tc, nil
}

// ParseTaskConfigAuto detects format (JSON/YAML) based on file extension
// and parses the task configuration accordingly.
func ParseTaskConfigAuto(data []byte, filename string) (*TaskConfig, error) {
	var tc TaskConfig

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &tc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML task config: %w", err)
		}
	case ".json", "":
		if err := json.Unmarshal(data, &tc); err != nil {
			return nil, fmt.Errorf("failed to parse JSON task config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &tc); err != nil {
			if err2 := yaml.Unmarshal(data, &tc); err2 != nil {
				return nil, fmt.Errorf("failed to parse task config (tried JSON and YAML): JSON: %v; YAML: %v", err, err2)
			}
		}
	}

	if err := tc.Validate(); err != nil {
		return nil, err
	}

	return &tc, nil
}
