package alerting

import (
	"testing"
	"time"

	"github.com/ratewatch/marathon/internal/config"
	"github.com/ratewatch/marathon/internal/metrics"
)

func testThresholds() config.Thresholds {
	return config.Thresholds{
		MemoryMB:         100,
		ResponseTimeMs:   1000,
		ErrorRatePercent: 2,
		CPUPercent:       80,
		NetworkLatencyMs: 200,
		DiskPercent:      90,
		CacheHitPercent:  70,
	}
}

func quietSnapshot() metrics.Snapshot {
	return metrics.Snapshot{
		ErrorRate:   1,
		AvgResponse: 100 * time.Millisecond,
		Resources: metrics.TrendSample{
			MemoryMB:         50,
			CPUPercent:       30,
			NetworkLatencyMs: 40,
			DiskPercent:      35,
			CacheHitPercent:  95,
		},
	}
}

func healthyOK() Health {
	return Health{BreakerOpen: false, TargetAlive: true}
}

func TestEvaluate_QuietRunRaisesNothing(t *testing.T) {
	e := NewEngine(testThresholds())
	if alerts := e.Evaluate(quietSnapshot(), healthyOK()); len(alerts) != 0 {
		t.Errorf("expected no alerts, got %d: %+v", len(alerts), alerts)
	}
}

func TestEvaluate_ErrorRateBelowThresholdSilent(t *testing.T) {
	// A 1% failure rate with a 2% threshold must not fire error alerts.
	e := NewEngine(testThresholds())
	snap := quietSnapshot()
	snap.ErrorRate = 1
	for _, a := range e.Evaluate(snap, healthyOK()) {
		if a.Type == metrics.AlertError {
			t.Errorf("error alert fired below threshold: %+v", a)
		}
	}
}

func TestEvaluate_ErrorRateAboveThreshold(t *testing.T) {
	e := NewEngine(testThresholds())
	snap := quietSnapshot()
	snap.ErrorRate = 3 // 1.5x threshold

	alerts := e.Evaluate(snap, healthyOK())
	var found *metrics.Alert
	for _, a := range alerts {
		if a.Type == metrics.AlertError {
			found = a
		}
	}
	if found == nil {
		t.Fatal("expected an error alert")
	}
	if found.Severity.Rank() < metrics.SeverityMedium.Rank() {
		t.Errorf("severity = %s, want at least medium", found.Severity)
	}
	if found.BusinessImpact == "" {
		t.Error("business impact tier missing")
	}
}

func TestEvaluate_SeverityTiers(t *testing.T) {
	tests := []struct {
		errorRate float64
		want      metrics.Severity
	}{
		{3, metrics.SeverityMedium},   // 1.5x
		{5, metrics.SeverityHigh},     // 2.5x
		{7, metrics.SeverityCritical}, // 3.5x
	}
	for _, tt := range tests {
		e := NewEngine(testThresholds())
		snap := quietSnapshot()
		snap.ErrorRate = tt.errorRate

		var got metrics.Severity
		for _, a := range e.Evaluate(snap, healthyOK()) {
			if a.Type == metrics.AlertError {
				got = a.Severity
			}
		}
		if got != tt.want {
			t.Errorf("error rate %.0f%%: severity = %s, want %s", tt.errorRate, got, tt.want)
		}
	}
}

func TestEvaluate_CriticalAlertsEscalate(t *testing.T) {
	e := NewEngine(testThresholds())
	snap := quietSnapshot()
	snap.Resources.MemoryMB = 400 // 4x threshold

	for _, a := range e.Evaluate(snap, healthyOK()) {
		if a.Type == metrics.AlertMemory {
			if a.Severity != metrics.SeverityCritical {
				t.Errorf("severity = %s, want critical", a.Severity)
			}
			if !a.Escalated {
				t.Error("critical alert should be escalated")
			}
		}
	}
}

func TestEvaluate_CacheHitBelowThreshold(t *testing.T) {
	e := NewEngine(testThresholds())
	snap := quietSnapshot()
	snap.Resources.CacheHitPercent = 50

	var found bool
	for _, a := range e.Evaluate(snap, healthyOK()) {
		if a.Type == metrics.AlertPerformance {
			found = true
		}
	}
	if !found {
		t.Error("expected cache hit alert")
	}
}

func TestEvaluate_BreakerAndHealth(t *testing.T) {
	e := NewEngine(testThresholds())
	alerts := e.Evaluate(quietSnapshot(), Health{BreakerOpen: true, TargetAlive: false})

	var breaker, health bool
	for _, a := range alerts {
		switch a.Type {
		case metrics.AlertStability:
			breaker = a.Severity == metrics.SeverityCritical
		case metrics.AlertHealth:
			health = true
		}
	}
	if !breaker {
		t.Error("expected critical stability alert for open breaker")
	}
	if !health {
		t.Error("expected health alert for dead target")
	}
}

func TestEvaluate_ValidationBypassAlertsOnce(t *testing.T) {
	e := NewEngine(testThresholds())
	snap := quietSnapshot()
	snap.ValidationBypasses = 2

	first := e.Evaluate(snap, healthyOK())
	var security int
	for _, a := range first {
		if a.Type == metrics.AlertSecurity {
			security++
		}
	}
	if security != 1 {
		t.Fatalf("security alerts = %d, want 1", security)
	}

	// Same count again: no new bypass, no new alert.
	for _, a := range e.Evaluate(snap, healthyOK()) {
		if a.Type == metrics.AlertSecurity {
			t.Error("repeated bypass alert for unchanged count")
		}
	}

	// A new bypass re-alerts.
	snap.ValidationBypasses = 3
	var again bool
	for _, a := range e.Evaluate(snap, healthyOK()) {
		if a.Type == metrics.AlertSecurity {
			again = true
		}
	}
	if !again {
		t.Error("new bypass did not alert")
	}
}
