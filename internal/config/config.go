// Package config resolves the controller's run-time configuration:
// an on-disk YAML profile file overlaid with the documented
// environment variables, defaulted the way the teacher's
// collector.DefaultConfig builds a CollectConfig.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names the core consumes directly, independent
// of the YAML profile file.
const (
	EnvPolicyPath   = "GEOPM_POLICY_PATH"
	EnvTracePath    = "GEOPM_TRACE_PATH"
	EnvReportPath   = "GEOPM_REPORT_PATH"
	EnvPeriod       = "GEOPM_PERIOD" // seconds, float
	EnvPluginPath   = "GEOPM_PLUGIN_PATH"
	EnvProfileName  = "GEOPM_PROFILE"
	EnvRecordLogDir = "GEOPM_SHMEM_PREFIX"
)

// Config is the resolved set of knobs a controller run needs: where
// to read its starting policy, where to write its trace and report,
// how often to tick, where to look for out-of-tree agent plugins, and
// the profile name tagging the run.
type Config struct {
	AgentName     string        `yaml:"agent"`
	Period        time.Duration `yaml:"-"`
	PeriodSeconds float64       `yaml:"period_seconds"`
	ProfileName   string        `yaml:"profile"`
	PolicyParams  []float64     `yaml:"policy_params"`

	PolicyPath string `yaml:"policy_path"`
	TracePath  string `yaml:"trace_path"`
	ReportPath string `yaml:"report_path"`
	PluginPath string `yaml:"plugin_path"`

	// SharedMemoryPrefix is <base> in the documented shared-memory
	// naming scheme "<base>-record-log-<pid>" / "<base>-status".
	SharedMemoryPrefix string `yaml:"shmem_prefix"`
}

// Default returns the built-in defaults, matching
// collector.DefaultConfig's "sensible defaults, overridable" shape.
func Default() Config {
	return Config{
		AgentName:          "monitor",
		Period:             100 * time.Millisecond,
		PeriodSeconds:      0.1,
		ProfileName:        "default",
		TracePath:          "-",
		ReportPath:         "-",
		PluginPath:         "",
		SharedMemoryPrefix: "/tmp/geopm",
	}
}

// Load reads a YAML profile file at path on top of Default, then
// overlays the documented environment variables (which always win
// over both the file and the built-in defaults). An empty path skips
// the file and applies environment overlay to Default alone.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.Period = time.Duration(cfg.PeriodSeconds * float64(time.Second))

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overlays the documented environment variables onto cfg.
func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv(EnvPolicyPath); ok {
		cfg.PolicyPath = v
	}
	if v, ok := os.LookupEnv(EnvTracePath); ok {
		cfg.TracePath = v
	}
	if v, ok := os.LookupEnv(EnvReportPath); ok {
		cfg.ReportPath = v
	}
	if v, ok := os.LookupEnv(EnvPluginPath); ok {
		cfg.PluginPath = v
	}
	if v, ok := os.LookupEnv(EnvProfileName); ok {
		cfg.ProfileName = v
	}
	if v, ok := os.LookupEnv(EnvRecordLogDir); ok {
		cfg.SharedMemoryPrefix = v
	}
	if v, ok := os.LookupEnv(EnvPeriod); ok {
		if seconds, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.PeriodSeconds = seconds
			cfg.Period = time.Duration(seconds * float64(time.Second))
		}
	}
}

// RecordLogPath returns the per-process record-log shared-memory
// path for pid, per the documented "<base>-record-log-<pid>" naming.
func (c Config) RecordLogPath(pid int) string {
	return fmt.Sprintf("%s-record-log-%d", c.SharedMemoryPrefix, pid)
}

// StatusPath returns the shared status-map path, per the documented
// "<base>-status" naming.
func (c Config) StatusPath() string {
	return c.SharedMemoryPrefix + "-status"
}
