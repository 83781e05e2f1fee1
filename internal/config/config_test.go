package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default("weekend-soak")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 48*time.Hour, cfg.Duration)
	assert.Equal(t, 10, cfg.BaseRequestRate)
	assert.True(t, cfg.Toggles.Chaos)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RunConfig)
	}{
		{"empty name", func(c *RunConfig) { c.Name = "" }},
		{"short duration", func(c *RunConfig) { c.Duration = 30 * time.Minute }},
		{"zero rate", func(c *RunConfig) { c.BaseRequestRate = 0 }},
		{"zero concurrency", func(c *RunConfig) { c.Concurrency = 0 }},
		{"zero timeout", func(c *RunConfig) { c.RequestTimeout = 0 }},
		{"valid percent too high", func(c *RunConfig) { c.ValidPercent = 120 }},
		{"negative weight", func(c *RunConfig) { c.ScenarioWeights["injection"] = -1 }},
		{"weights exceed 100", func(c *RunConfig) { c.ScenarioWeights["injection"] = 80 }},
		{"zero error threshold", func(c *RunConfig) { c.Thresholds.ErrorRatePercent = 0 }},
		{"zero response threshold", func(c *RunConfig) { c.Thresholds.ResponseTimeMs = 0 }},
		{"zero memory threshold", func(c *RunConfig) { c.Thresholds.MemoryMB = 0 }},
		{"tiny sample window", func(c *RunConfig) { c.SampleWindow = 10 }},
		{"tiny trend window", func(c *RunConfig) { c.TrendWindow = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default("t")
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")

	yaml := `
name: overnight
duration: 72h
base_request_rate: 25
concurrency: 8
valid_percent: 80
scenario_weights:
  injection: 10
  malformed-amount: 10
thresholds:
  memory_mb: 1024
  response_time_ms: 1500
  error_rate_percent: 2
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "overnight", cfg.Name)
	assert.Equal(t, 72*time.Hour, cfg.Duration)
	assert.Equal(t, 25, cfg.BaseRequestRate)
	assert.Equal(t, 1024.0, cfg.Thresholds.MemoryMB)
	// Defaults survive for fields the file omits.
	assert.Equal(t, 3000, cfg.SampleWindow)
	// The file's weight map replaces the default mix, it is not merged
	// into it.
	assert.Equal(t, map[string]float64{"injection": 10, "malformed-amount": 10}, cfg.ScenarioWeights)
}

func TestLoad_OmittedWeightsKeepDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: plain\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default("plain").ScenarioWeights, cfg.ScenarioWeights)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/run.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: bad\nduration: 10m\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
