// Package config defines the immutable run configuration for the
// marathon harness. A RunConfig is validated and snapshotted when a run
// starts; it is never mutated afterwards.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Thresholds define the alerting boundaries for a run.
type Thresholds struct {
	MemoryMB         float64 `yaml:"memory_mb" json:"memory_mb"`
	ResponseTimeMs   float64 `yaml:"response_time_ms" json:"response_time_ms"`
	ErrorRatePercent float64 `yaml:"error_rate_percent" json:"error_rate_percent"`
	CPUPercent       float64 `yaml:"cpu_percent" json:"cpu_percent"`
	NetworkLatencyMs float64 `yaml:"network_latency_ms" json:"network_latency_ms"`
	DiskPercent      float64 `yaml:"disk_percent" json:"disk_percent"`
	CacheHitPercent  float64 `yaml:"cache_hit_percent" json:"cache_hit_percent"`
}

// Toggles enable or disable optional harness behavior. They are fixed
// for the lifetime of a run.
type Toggles struct {
	LeakDetection   bool `yaml:"leak_detection" json:"leak_detection"`
	Baselining      bool `yaml:"baselining" json:"baselining"`
	Chaos           bool `yaml:"chaos" json:"chaos"`
	BusinessMetrics bool `yaml:"business_metrics" json:"business_metrics"`
	LoadVariation   bool `yaml:"load_variation" json:"load_variation"`
}

// LoadVariation describes the time-of-day and day-of-week rate modifiers.
type LoadVariation struct {
	NightReductionPercent   float64 `yaml:"night_reduction_percent" json:"night_reduction_percent"`
	WeekendReductionPercent float64 `yaml:"weekend_reduction_percent" json:"weekend_reduction_percent"`
	BusinessHoursBoost      float64 `yaml:"business_hours_boost" json:"business_hours_boost"`
}

// Intervals control the cadence of the background analyzers. Defaults
// suit multi-day runs; tests shrink them to milliseconds.
type Intervals struct {
	Reporting time.Duration `yaml:"reporting" json:"reporting"`
	Stability time.Duration `yaml:"stability" json:"stability"`
	Alerting  time.Duration `yaml:"alerting" json:"alerting"`
	Leak      time.Duration `yaml:"leak" json:"leak"`
	Chaos     time.Duration `yaml:"chaos" json:"chaos"`
	Business  time.Duration `yaml:"business" json:"business"`
	Telemetry time.Duration `yaml:"telemetry" json:"telemetry"`
}

// RunConfig defines a single soak run.
type RunConfig struct {
	Name                string             `yaml:"name" json:"name"`
	Duration            time.Duration      `yaml:"duration" json:"duration"`
	BaseRequestRate     int                `yaml:"base_request_rate" json:"base_request_rate"`
	Concurrency         int                `yaml:"concurrency" json:"concurrency"`
	RequestTimeout      time.Duration      `yaml:"request_timeout" json:"request_timeout"`
	ValidPercent        float64            `yaml:"valid_percent" json:"valid_percent"`
	ScenarioWeights     map[string]float64 `yaml:"scenario_weights" json:"scenario_weights"`
	Thresholds          Thresholds         `yaml:"thresholds" json:"thresholds"`
	Toggles             Toggles            `yaml:"toggles" json:"toggles"`
	Variation           LoadVariation      `yaml:"variation" json:"variation"`
	Intervals           Intervals          `yaml:"intervals" json:"intervals"`
	SampleWindow        int                `yaml:"sample_window" json:"sample_window"`
	TrendWindow         int                `yaml:"trend_window" json:"trend_window"`
	BaselineWarmup      time.Duration      `yaml:"baseline_warmup" json:"baseline_warmup"`
	ChaosExperimentTime time.Duration      `yaml:"chaos_experiment_time" json:"chaos_experiment_time"`
}

// Default returns a configuration suitable for a 48 hour soak run.
func Default(name string) *RunConfig {
	return &RunConfig{
		Name:            name,
		Duration:        48 * time.Hour,
		BaseRequestRate: 10,
		Concurrency:     5,
		RequestTimeout:  10 * time.Second,
		ValidPercent:    70,
		ScenarioWeights: map[string]float64{
			"malformed-amount":      6,
			"invalid-currency-code": 6,
			"negative-amount":       5,
			"precision-abuse":       5,
			"oversized-payload":     4,
			"injection":             4,
		},
		Thresholds: Thresholds{
			MemoryMB:         512,
			ResponseTimeMs:   2000,
			ErrorRatePercent: 5,
			CPUPercent:       80,
			NetworkLatencyMs: 500,
			DiskPercent:      90,
			CacheHitPercent:  70,
		},
		Toggles: Toggles{
			LeakDetection:   true,
			Baselining:      true,
			Chaos:           true,
			BusinessMetrics: true,
			LoadVariation:   true,
		},
		Variation: LoadVariation{
			NightReductionPercent:   40,
			WeekendReductionPercent: 30,
			BusinessHoursBoost:      1.3,
		},
		Intervals: Intervals{
			Reporting: 15 * time.Minute,
			Stability: 5 * time.Minute,
			Alerting:  2 * time.Minute,
			Leak:      30 * time.Minute,
			Chaos:     4 * time.Hour,
			Business:  5 * time.Minute,
			Telemetry: time.Minute,
		},
		SampleWindow:        3000,
		TrendWindow:         500,
		BaselineWarmup:      30 * time.Minute,
		ChaosExperimentTime: 2 * time.Minute,
	}
}

// Validate checks the configuration for sane ranges.
func (c *RunConfig) Validate() error {
	if c.Name == "" {
		return errors.New("config: name is required")
	}
	if c.Duration < time.Hour {
		return fmt.Errorf("config: duration %s is below the 1h minimum", c.Duration)
	}
	if c.BaseRequestRate < 1 {
		return fmt.Errorf("config: base request rate %d must be >= 1", c.BaseRequestRate)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("config: concurrency %d must be >= 1", c.Concurrency)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("config: request timeout must be positive")
	}
	if c.ValidPercent < 0 || c.ValidPercent > 100 {
		return fmt.Errorf("config: valid percent %.1f outside [0,100]", c.ValidPercent)
	}
	var adversarial float64
	for name, w := range c.ScenarioWeights {
		if w < 0 {
			return fmt.Errorf("config: scenario %q has negative weight", name)
		}
		adversarial += w
	}
	if total := c.ValidPercent + adversarial; total > 100.5 {
		return fmt.Errorf("config: scenario weights sum to %.1f%%, must not exceed 100%%", total)
	}
	if c.Thresholds.ErrorRatePercent <= 0 {
		return errors.New("config: error rate threshold must be positive")
	}
	if c.Thresholds.ResponseTimeMs <= 0 {
		return errors.New("config: response time threshold must be positive")
	}
	if c.Thresholds.MemoryMB <= 0 {
		return errors.New("config: memory threshold must be positive")
	}
	if c.SampleWindow < 100 {
		return fmt.Errorf("config: sample window %d too small, minimum 100", c.SampleWindow)
	}
	if c.TrendWindow < 10 {
		return fmt.Errorf("config: trend window %d too small, minimum 10", c.TrendWindow)
	}
	return nil
}

// Load reads a RunConfig from a YAML file. Fields absent from the file
// keep their defaults.
func Load(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default("")
	// yaml merges into a non-nil map, which would mix file-provided
	// scenario weights with the defaults. A weights key in the file
	// replaces the default mix wholesale.
	defaults := cfg.ScenarioWeights
	cfg.ScenarioWeights = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.ScenarioWeights == nil {
		cfg.ScenarioWeights = defaults
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
