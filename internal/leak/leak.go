// Package leak analyzes the resource-usage trend for slow memory
// growth, the kind of drift only visible over hours of soak time.
package leak

import (
	"time"

	"github.com/ratewatch/marathon/internal/metrics"
)

// Growth-rate breakpoints, in percent across the analysis window.
const (
	trendBand        = 5 // +/- band for increasing/decreasing vs stable
	severityLow      = 2
	severityMedium   = 5
	severityHigh     = 10
	severityCritical = 15
	minWindowSamples = 4
)

// Detector classifies memory growth over a trailing window.
type Detector struct {
	window time.Duration
}

// NewDetector creates a detector; window is how far back samples are
// considered (30-45 minutes in production).
func NewDetector(window time.Duration) *Detector {
	return &Detector{window: window}
}

// Window returns the analysis window.
func (d *Detector) Window() time.Duration { return d.window }

// Analyze splits the window's samples into halves and derives the
// growth rate of the memory signal between them. With fewer than
// minWindowSamples samples the series is reported stable.
func (d *Detector) Analyze(samples []metrics.TrendSample, now time.Time) metrics.LeakEntry {
	entry := metrics.LeakEntry{
		Timestamp:     now,
		WindowSamples: len(samples),
		Trend:         "stable",
		Severity:      metrics.SeverityNone,
	}
	if len(samples) < minWindowSamples {
		return entry
	}

	half := len(samples) / 2
	entry.FirstHalfAvgMB = avgMemory(samples[:half])
	entry.SecondHalfAvgMB = avgMemory(samples[half:])
	if entry.FirstHalfAvgMB <= 0 {
		return entry
	}

	entry.GrowthRate = (entry.SecondHalfAvgMB - entry.FirstHalfAvgMB) / entry.FirstHalfAvgMB * 100

	switch {
	case entry.GrowthRate > trendBand:
		entry.Trend = "increasing"
	case entry.GrowthRate < -trendBand:
		entry.Trend = "decreasing"
	}

	switch {
	case entry.GrowthRate > severityCritical:
		entry.Severity = metrics.SeverityCritical
	case entry.GrowthRate > severityHigh:
		entry.Severity = metrics.SeverityHigh
	case entry.GrowthRate > severityMedium:
		entry.Severity = metrics.SeverityMedium
	case entry.GrowthRate > severityLow:
		entry.Severity = metrics.SeverityLow
	}
	return entry
}

func avgMemory(samples []metrics.TrendSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s.MemoryMB
	}
	return sum / float64(len(samples))
}
