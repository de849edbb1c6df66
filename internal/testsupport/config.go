package testsupport

import (
	"path/filepath"
	"testing"

	"docflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Latency simulation is off so stages complete immediately.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Pipeline.SimulateLatency = false
	cfg.Pipeline.FailureRate = 0

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithFailureRate sets the injected analyzer failure probability.
func WithFailureRate(rate float64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.FailureRate = rate
	}
}

// WithStageTimeout overrides the per-stage execution bound, in seconds.
func WithStageTimeout(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.StageTimeoutSeconds = seconds
	}
}
