package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/i5heu/GoSPSC/internal/testbench"
)

// Config is an alias for testbench.Config. This allows other programs to import
// the scenario configuration without pulling in the entire testbench package.
type Config = testbench.Config

// File is the layout of a scenario file:
//
//	defaults:
//	  duration: 2s
//	  max_burst: 32
//	scenarios:
//	  - name: tiny
//	    capacity: 1
//	  - name: large
//	    capacity: 65536
//	    duration: 5s
type File struct {
	Defaults  Config   `yaml:"defaults"`
	Scenarios []Config `yaml:"scenarios"`
}

// ErrNoScenarios is returned when a file lists no scenarios.
var ErrNoScenarios = errors.New("config: no scenarios")

// Default values for fields left empty in both the scenario and the file defaults.
const (
	DefaultDuration = 2 * time.Second
	DefaultMaxBurst = 32
)

// DefaultScenarios is used by the bench command when no file is given.
func DefaultScenarios() []Config {
	return []Config{
		{Name: "cap-1", Capacity: 1, Duration: DefaultDuration, MaxBurst: DefaultMaxBurst},
		{Name: "cap-16", Capacity: 16, Duration: DefaultDuration, MaxBurst: DefaultMaxBurst},
		{Name: "cap-1024", Capacity: 1024, Duration: DefaultDuration, MaxBurst: DefaultMaxBurst},
		{Name: "cap-65536", Capacity: 65536, Duration: DefaultDuration, MaxBurst: DefaultMaxBurst},
	}
}

// Load reads and validates a scenario file.
func Load(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a scenario file, fills unset fields from the file defaults and
// then from the package defaults, and validates every scenario.
func Parse(data []byte) ([]Config, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if len(f.Scenarios) == 0 {
		return nil, ErrNoScenarios
	}

	if f.Defaults.Duration == 0 {
		f.Defaults.Duration = DefaultDuration
	}
	if f.Defaults.MaxBurst == 0 {
		f.Defaults.MaxBurst = DefaultMaxBurst
	}

	out := make([]Config, 0, len(f.Scenarios))
	for i, sc := range f.Scenarios {
		if sc.Name == "" {
			sc.Name = fmt.Sprintf("cap-%d", sc.Capacity)
		}
		if sc.Duration == 0 {
			sc.Duration = f.Defaults.Duration
		}
		if sc.MaxBurst == 0 {
			sc.MaxBurst = f.Defaults.MaxBurst
		}
		if err := sc.Validate(); err != nil {
			return nil, fmt.Errorf("config: scenario %d: %w", i, err)
		}
		out = append(out, sc)
	}
	return out, nil
}
