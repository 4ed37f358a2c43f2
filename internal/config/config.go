// Package config provides unified configuration loading for curvetrace.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/warp-metrics/curvetrace/internal/detect"
	"github.com/warp-metrics/curvetrace/internal/extract"
	"github.com/warp-metrics/curvetrace/internal/solver"
)

// Duration wraps time.Duration so YAML configs can use Go duration strings
// ("90s", "2m") instead of nanosecond integers.
type Duration time.Duration

// UnmarshalYAML accepts either a duration string or a bare integer of
// nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration: %s", value.Value)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(n)
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config contains all curvetrace configuration settings.
type Config struct {
	// Solver configures how the external solver process is invoked.
	Solver SolverConfig `json:"solver" yaml:"solver"`

	// Thresholds configures event detection.
	Thresholds ThresholdConfig `json:"thresholds" yaml:"thresholds"`

	// Logging configures operational logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Archive configures the optional run archive.
	Archive ArchiveConfig `json:"archive" yaml:"archive"`
}

// SolverConfig configures the solver gateway and the extraction batch.
type SolverConfig struct {
	// Command is the solver executable.
	Command string `json:"command" yaml:"command"`

	// Args are passed to the executable ahead of the stdin payload.
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`

	// Timeout bounds one solver invocation.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Workers bounds concurrent solver processes.
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty"`
}

// ThresholdConfig holds the event-detection thresholds. Both comparisons are
// strict (see internal/detect).
type ThresholdConfig struct {
	// Curvature is the max_R threshold for curvature_peak events.
	Curvature float64 `json:"curvature" yaml:"curvature"`

	// Violation is the magnitude threshold for constraint_violation events.
	Violation float64 `json:"violation" yaml:"violation"`
}

// LoggingConfig configures curvetrace's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "trace" includes full solver stdin/stdout payloads.
	Level string `json:"level" yaml:"level"`
}

// ArchiveConfig configures the optional SQLite run archive.
type ArchiveConfig struct {
	// Path is the archive database file. Empty disables archiving.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Solver: SolverConfig{
			Command: "python3",
			Args:    []string{"solver.py"},
			Timeout: Duration(solver.DefaultTimeout),
			Workers: extract.DefaultWorkers,
		},
		Thresholds: ThresholdConfig{
			Curvature: detect.DefaultCurvatureThreshold,
			Violation: detect.DefaultViolationThreshold,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the default locations and environment
// variables. Order: defaults -> ~/.curvetrace/config.yaml -> environment.
func Load() (*Config, error) {
	config := Default()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".curvetrace", "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file, then applies
// environment overrides.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(config)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Solver.Command == "" {
		return fmt.Errorf("solver command must not be empty")
	}
	if c.Solver.Timeout < 0 {
		return fmt.Errorf("solver timeout must be non-negative, got %v", time.Duration(c.Solver.Timeout))
	}
	if c.Solver.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Solver.Workers)
	}
	if c.Thresholds.Violation < 0 {
		return fmt.Errorf("violation threshold must be non-negative, got %g", c.Thresholds.Violation)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("CURVETRACE_SOLVER_COMMAND"); v != "" {
		config.Solver.Command = v
	}

	if v := os.Getenv("CURVETRACE_SOLVER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Solver.Timeout = Duration(d)
		}
	}

	if v := os.Getenv("CURVETRACE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Solver.Workers = n
		}
	}

	if v := os.Getenv("CURVETRACE_CURVATURE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Thresholds.Curvature = f
		}
	}

	if v := os.Getenv("CURVETRACE_VIOLATION_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Thresholds.Violation = f
		}
	}

	if v := os.Getenv("CURVETRACE_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("CURVETRACE_ARCHIVE"); v != "" {
		config.Archive.Path = v
	}
}
