// Package alerting evaluates threshold rules against the latest
// metrics snapshot and produces severity-tiered alerts. Evaluation is
// pure rule checking; the aggregator owns the alert log.
package alerting

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ratewatch/marathon/internal/config"
	"github.com/ratewatch/marathon/internal/metrics"
)

// Engine holds the threshold configuration and the little state needed
// to alert on newly observed validation bypasses.
type Engine struct {
	thresholds config.Thresholds

	lastBypasses int64
}

// NewEngine creates an alerting engine.
func NewEngine(thresholds config.Thresholds) *Engine {
	return &Engine{thresholds: thresholds}
}

// Health describes the ancillary signals the marathon rules consume.
type Health struct {
	BreakerOpen bool
	TargetAlive bool
}

// Evaluate runs every rule against the snapshot and returns the alerts
// to append. Duplicates across ticks are allowed; no suppression
// window is applied.
func (e *Engine) Evaluate(snap metrics.Snapshot, health Health) []*metrics.Alert {
	var out []*metrics.Alert
	res := snap.Resources
	t := e.thresholds

	if a := thresholdAlert(metrics.AlertMemory, res.MemoryMB, t.MemoryMB,
		"memory usage %.0f MB exceeds threshold %.0f MB", []string{"target", "harness"}); a != nil {
		out = append(out, a)
	}
	if a := thresholdAlert(metrics.AlertPerformance, res.CPUPercent, t.CPUPercent,
		"cpu usage %.0f%% exceeds threshold %.0f%%", []string{"target"}); a != nil {
		out = append(out, a)
	}
	if a := thresholdAlert(metrics.AlertError, snap.ErrorRate, t.ErrorRatePercent,
		"error rate %.2f%% exceeds threshold %.2f%%", []string{"target", "conversion-api"}); a != nil {
		out = append(out, a)
	}
	avgMs := float64(snap.AvgResponse.Milliseconds())
	if a := thresholdAlert(metrics.AlertPerformance, avgMs, t.ResponseTimeMs,
		"average response time %.0fms exceeds threshold %.0fms", []string{"conversion-api"}); a != nil {
		out = append(out, a)
	}
	if a := thresholdAlert(metrics.AlertNetwork, res.NetworkLatencyMs, t.NetworkLatencyMs,
		"network latency %.0fms exceeds threshold %.0fms", []string{"network"}); a != nil {
		out = append(out, a)
	}
	if a := thresholdAlert(metrics.AlertDisk, res.DiskPercent, t.DiskPercent,
		"disk usage %.0f%% exceeds threshold %.0f%%", []string{"storage"}); a != nil {
		out = append(out, a)
	}

	// Cache hit rate alerts when it falls below the threshold.
	if t.CacheHitPercent > 0 && res.CacheHitPercent > 0 && res.CacheHitPercent < t.CacheHitPercent {
		severity := metrics.SeverityMedium
		if res.CacheHitPercent < t.CacheHitPercent/2 {
			severity = metrics.SeverityHigh
		}
		out = append(out, newAlert(metrics.AlertPerformance, severity,
			fmt.Sprintf("cache hit rate %.0f%% below threshold %.0f%%", res.CacheHitPercent, t.CacheHitPercent),
			[]string{"cache"}))
	}

	if health.BreakerOpen {
		out = append(out, newAlert(metrics.AlertStability, metrics.SeverityCritical,
			"circuit breaker open: target is shedding all requests", []string{"target", "circuit-breaker"}))
	}
	if !health.TargetAlive {
		out = append(out, newAlert(metrics.AlertHealth, metrics.SeverityHigh,
			"health check failed: target not responding", []string{"target"}))
	}

	if snap.ValidationBypasses > e.lastBypasses {
		delta := snap.ValidationBypasses - e.lastBypasses
		out = append(out, newAlert(metrics.AlertSecurity, metrics.SeverityHigh,
			fmt.Sprintf("%d adversarial input(s) passed validation", delta),
			[]string{"validator"}))
		e.lastBypasses = snap.ValidationBypasses
	}

	return out
}

// thresholdAlert builds an alert when value exceeds threshold, with
// severity tiered by how far the threshold is exceeded.
func thresholdAlert(typ metrics.AlertType, value, threshold float64, format string, systems []string) *metrics.Alert {
	if threshold <= 0 || value <= threshold {
		return nil
	}
	return newAlert(typ, tier(value, threshold), fmt.Sprintf(format, value, threshold), systems)
}

// tier maps the breach magnitude to a severity: more than 3x the
// threshold is critical, more than 2x high, anything else medium.
func tier(value, threshold float64) metrics.Severity {
	switch {
	case value > threshold*3:
		return metrics.SeverityCritical
	case value > threshold*2:
		return metrics.SeverityHigh
	default:
		return metrics.SeverityMedium
	}
}

func newAlert(typ metrics.AlertType, severity metrics.Severity, message string, systems []string) *metrics.Alert {
	return &metrics.Alert{
		ID:              uuid.New().String(),
		Timestamp:       time.Now(),
		Type:            typ,
		Severity:        severity,
		Message:         message,
		AffectedSystems: systems,
		BusinessImpact:  metrics.ImpactForSeverity(severity),
		Escalated:       severity == metrics.SeverityCritical,
	}
}

// NewChaosAlert builds the announcement or recovery alert for a chaos
// experiment. Recovery alerts are created resolved.
func NewChaosAlert(severity metrics.Severity, message string, systems []string) *metrics.Alert {
	return newAlert(metrics.AlertChaos, severity, message, systems)
}

// NewLeakAlert builds a memory alert from a leak finding.
func NewLeakAlert(severity metrics.Severity, growthRate float64) *metrics.Alert {
	return newAlert(metrics.AlertMemory, severity,
		fmt.Sprintf("memory growth trend %.1f%% over analysis window", growthRate),
		[]string{"target", "harness"})
}
