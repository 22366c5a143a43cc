// File: config/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// YAML acquisition plans for example programs and frontends.

// Package config loads acquisition plans: a declarative description of a
// demo device, its channels, the timer cadence and the run duration.
// The session core itself never reads files; plans are a convenience for
// programs embedding it.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "10ms" or "1s", or from plain nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	return fmt.Errorf("config: invalid duration node at line %d", value.Line)
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Plan is a complete acquisition run description.
type Plan struct {
	Device  DeviceSpec  `yaml:"device"`
	Feed    FeedSpec    `yaml:"feed"`
	RunFor  Duration    `yaml:"run_for"`
	Logging LoggingSpec `yaml:"logging"`
}

// DeviceSpec describes the demo device to instantiate.
type DeviceSpec struct {
	Vendor   string         `yaml:"vendor"`
	Model    string         `yaml:"model"`
	Channels []ChannelSpec  `yaml:"channels"`
	Config   map[string]any `yaml:"config"`
}

// ChannelSpec describes one channel of the demo device.
type ChannelSpec struct {
	Name    string `yaml:"name"`
	Analog  bool   `yaml:"analog"`
	Enabled *bool  `yaml:"enabled"`
}

// FeedSpec describes the synthetic feed cadence.
type FeedSpec struct {
	Interval   Duration `yaml:"interval"`
	UnitSize   int      `yaml:"unit_size"`
	ChunkUnits int      `yaml:"chunk_units"`
	Chunks     int      `yaml:"chunks"`
}

// LoggingSpec selects the slog level.
type LoggingSpec struct {
	Level string `yaml:"level"`
}

func defaultPlan() *Plan {
	return &Plan{
		Device: DeviceSpec{
			Vendor: "sigcore",
			Model:  "demo-la8",
			Channels: []ChannelSpec{
				{Name: "D0"}, {Name: "D1"}, {Name: "D2"}, {Name: "D3"},
			},
		},
		Feed: FeedSpec{
			Interval:   Duration(10 * time.Millisecond),
			UnitSize:   1,
			ChunkUnits: 64,
			Chunks:     8,
		},
		RunFor:  Duration(time.Second),
		Logging: LoggingSpec{Level: "info"},
	}
}

// Load reads a plan from the given YAML file, filling unset fields with
// defaults.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a plan from YAML bytes over the defaults.
func Parse(data []byte) (*Plan, error) {
	plan := defaultPlan()
	if err := yaml.Unmarshal(data, plan); err != nil {
		return nil, fmt.Errorf("config: parse plan: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// Default returns the built-in plan.
func Default() *Plan { return defaultPlan() }

// Validate checks the plan invariants the session core relies on.
func (p *Plan) Validate() error {
	if len(p.Device.Channels) == 0 {
		return fmt.Errorf("config: device has no channels")
	}
	if p.Feed.Interval <= 0 {
		return fmt.Errorf("config: feed interval must be positive")
	}
	if p.Feed.UnitSize <= 0 || p.Feed.ChunkUnits <= 0 {
		return fmt.Errorf("config: feed chunk geometry must be positive")
	}
	if p.Feed.Chunks <= 0 {
		return fmt.Errorf("config: feed must produce at least one chunk")
	}
	return nil
}
