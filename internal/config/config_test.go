package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"docflow/internal/config"
)

func TestLoadDefaultsAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "docflow", "data")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.APIBind != "127.0.0.1:8287" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Pipeline.StageTimeoutSeconds != 60 {
		t.Fatalf("unexpected stage timeout: %d", cfg.Pipeline.StageTimeoutSeconds)
	}
	if !cfg.Pipeline.SimulateLatency {
		t.Fatal("expected latency simulation on by default")
	}
	if cfg.Events.SubscriberBuffer != 64 {
		t.Fatalf("unexpected subscriber buffer: %d", cfg.Events.SubscriberBuffer)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "docflow.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docflow.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"
api_bind = "127.0.0.1:9001"

[pipeline]
stage_timeout_seconds = 5
simulate_latency = false
failure_rate = 0.25

[logging]
format = "json"
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %s to be used, got %s (exists %t)", path, resolved, exists)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9001" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Pipeline.StageTimeoutSeconds != 5 || cfg.Pipeline.SimulateLatency {
		t.Fatalf("unexpected pipeline config: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.FailureRate != 0.25 {
		t.Fatalf("unexpected failure rate: %f", cfg.Pipeline.FailureRate)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
	// Defaults survive for sections the file omits.
	if cfg.Events.SubscriberBuffer != 64 {
		t.Fatalf("unexpected subscriber buffer: %d", cfg.Events.SubscriberBuffer)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero timeout", func(c *config.Config) { c.Pipeline.StageTimeoutSeconds = 0 }},
		{"failure rate above one", func(c *config.Config) { c.Pipeline.FailureRate = 1.5 }},
		{"negative failure rate", func(c *config.Config) { c.Pipeline.FailureRate = -0.1 }},
		{"zero buffer", func(c *config.Config) { c.Events.SubscriberBuffer = 0 }},
		{"bad format", func(c *config.Config) { c.Logging.Format = "pretty" }},
		{"bad level", func(c *config.Config) { c.Logging.Level = "verbose" }},
		{"empty bind", func(c *config.Config) { c.Paths.APIBind = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCreateSampleIsValidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.Paths.APIBind != "127.0.0.1:8287" {
		t.Fatalf("unexpected sample api bind: %q", cfg.Paths.APIBind)
	}
}
