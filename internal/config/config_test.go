package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultMatchesDocumentedDefaults(t *testing.T) {
	cfg := Default()
	if cfg.AgentName != "monitor" {
		t.Errorf("AgentName = %q, want monitor", cfg.AgentName)
	}
	if cfg.Period != 100*time.Millisecond {
		t.Errorf("Period = %v, want 100ms", cfg.Period)
	}
	if cfg.ProfileName != "default" {
		t.Errorf("ProfileName = %q, want default", cfg.ProfileName)
	}
}

func TestLoadParsesYAMLProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	yamlDoc := "agent: governor\nperiod_seconds: 0.005\nprofile: bench\n"
	if err := os.WriteFile(path, []byte(yamlDoc), 0600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.AgentName != "governor" {
		t.Errorf("AgentName = %q, want governor", cfg.AgentName)
	}
	if cfg.Period != 5*time.Millisecond {
		t.Errorf("Period = %v, want 5ms", cfg.Period)
	}
	if cfg.ProfileName != "bench" {
		t.Errorf("ProfileName = %q, want bench", cfg.ProfileName)
	}
}

func TestEnvironmentOverridesFileAndDefaults(t *testing.T) {
	t.Setenv(EnvProfileName, "from-env")
	t.Setenv(EnvPeriod, "0.25")
	t.Setenv(EnvTracePath, "/tmp/trace.tsv")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.ProfileName != "from-env" {
		t.Errorf("ProfileName = %q, want from-env", cfg.ProfileName)
	}
	if cfg.Period != 250*time.Millisecond {
		t.Errorf("Period = %v, want 250ms", cfg.Period)
	}
	if cfg.TracePath != "/tmp/trace.tsv" {
		t.Errorf("TracePath = %q, want /tmp/trace.tsv", cfg.TracePath)
	}
}

func TestSharedMemoryPathNaming(t *testing.T) {
	cfg := Default()
	cfg.SharedMemoryPrefix = "/tmp/geopm"
	if got, want := cfg.RecordLogPath(4242), "/tmp/geopm-record-log-4242"; got != want {
		t.Errorf("RecordLogPath() = %q, want %q", got, want)
	}
	if got, want := cfg.StatusPath(), "/tmp/geopm-status"; got != want {
		t.Errorf("StatusPath() = %q, want %q", got, want)
	}
}
