// Package chaos injects bounded failure experiments and tracks their
// recovery. Experiments are telemetry-only: they never block the
// foreground request loop.
package chaos

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ratewatch/marathon/internal/alerting"
	"github.com/ratewatch/marathon/internal/metrics"
)

// ExperimentSeverity grades how disruptive an experiment is.
type ExperimentSeverity string

const (
	SeverityMild     ExperimentSeverity = "mild"
	SeverityModerate ExperimentSeverity = "moderate"
	SeveritySevere   ExperimentSeverity = "severe"
)

// profile describes one catalog entry: the experiment type, its allowed
// severities, and the duration range per severity step.
type profile struct {
	Type        string
	Impact      string
	Business    string
	Systems     []string
	MinDuration time.Duration
	MaxDuration time.Duration
}

// catalog is the fixed set of experiments the scheduler draws from.
var catalog = []profile{
	{
		Type:        "network-partition",
		Impact:      "target unreachable from a subset of clients",
		Business:    "conversion requests time out for affected users",
		Systems:     []string{"network", "target"},
		MinDuration: 15 * time.Second,
		MaxDuration: 2 * time.Minute,
	},
	{
		Type:        "cpu-spike",
		Impact:      "target compute saturated, latency inflated",
		Business:    "slow conversions, possible SLA breach",
		Systems:     []string{"target"},
		MinDuration: 30 * time.Second,
		MaxDuration: 3 * time.Minute,
	},
	{
		Type:        "memory-pressure",
		Impact:      "target under allocation pressure, GC churn",
		Business:    "intermittent conversion slowdowns",
		Systems:     []string{"target"},
		MinDuration: 30 * time.Second,
		MaxDuration: 4 * time.Minute,
	},
	{
		Type:        "disk-exhaustion",
		Impact:      "rate cache spill fails, writes rejected",
		Business:    "stale conversion rates served",
		Systems:     []string{"storage"},
		MinDuration: 20 * time.Second,
		MaxDuration: 2 * time.Minute,
	},
	{
		Type:        "service-crash",
		Impact:      "target process restart mid-run",
		Business:    "burst of failed conversions until recovery",
		Systems:     []string{"target"},
		MinDuration: 10 * time.Second,
		MaxDuration: time.Minute,
	},
	{
		Type:        "slow-dependency",
		Impact:      "upstream rate provider degraded",
		Business:    "conversion latency doubles",
		Systems:     []string{"rate-provider"},
		MinDuration: 30 * time.Second,
		MaxDuration: 5 * time.Minute,
	},
	{
		Type:        "cache-miss-storm",
		Impact:      "rate cache flushed, every lookup goes upstream",
		Business:    "latency spike until cache rewarms",
		Systems:     []string{"cache", "rate-provider"},
		MinDuration: 15 * time.Second,
		MaxDuration: 90 * time.Second,
	},
}

// Scheduler picks and tracks chaos experiments.
type Scheduler struct {
	mu  sync.Mutex
	rng *rand.Rand

	active     *metrics.ChaosExperiment
	recoveries int
}

// NewScheduler creates a scheduler with a seeded source so tests can
// fix the draw.
func NewScheduler(seed int64) *Scheduler {
	return &Scheduler{rng: rand.New(rand.NewSource(seed))}
}

// Begin starts one experiment drawn uniformly from the catalog,
// returning the experiment record and its announcement alert. Only one
// experiment runs at a time; Begin returns nil, nil while one is
// active.
func (s *Scheduler) Begin(maxDuration time.Duration) (*metrics.ChaosExperiment, *metrics.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return nil, nil
	}

	sp := catalog[s.rng.Intn(len(catalog))]
	severity := s.pickSeverity()
	duration := s.pickDuration(sp, severity)
	if maxDuration > 0 && duration > maxDuration {
		duration = maxDuration
	}

	exp := &metrics.ChaosExperiment{
		ID:             uuid.New().String(),
		Type:           sp.Type,
		Severity:       string(severity),
		StartedAt:      time.Now(),
		Duration:       duration,
		Impact:         sp.Impact,
		BusinessImpact: sp.Business,
	}
	s.active = exp

	alert := alerting.NewChaosAlert(alertSeverity(severity),
		fmt.Sprintf("chaos experiment started: %s (%s) for %s", sp.Type, severity, duration),
		sp.Systems)
	return exp, alert
}

// Finish closes out the active experiment and returns the recovery
// alert, pre-resolved since the perturbation was expected.
func (s *Scheduler) Finish(exp *metrics.ChaosExperiment) *metrics.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil || s.active.ID != exp.ID {
		return nil
	}
	s.active = nil
	s.recoveries++

	now := time.Now()
	alert := alerting.NewChaosAlert(metrics.SeverityLow,
		fmt.Sprintf("chaos experiment completed: %s recovered after %s",
			exp.Type, now.Sub(exp.StartedAt).Round(time.Second)),
		[]string{"target"})
	alert.Resolved = true
	alert.AutoResolved = true
	alert.ResolutionTime = &now
	return alert
}

// Recoveries returns how many experiments have completed.
func (s *Scheduler) Recoveries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recoveries
}

func (s *Scheduler) pickSeverity() ExperimentSeverity {
	switch s.rng.Intn(3) {
	case 0:
		return SeverityMild
	case 1:
		return SeverityModerate
	default:
		return SeveritySevere
	}
}

// pickDuration scales within the profile range: milder experiments sit
// toward the low end.
func (s *Scheduler) pickDuration(sp profile, severity ExperimentSeverity) time.Duration {
	span := sp.MaxDuration - sp.MinDuration
	var lo, hi float64
	switch severity {
	case SeverityMild:
		lo, hi = 0, 0.33
	case SeverityModerate:
		lo, hi = 0.33, 0.66
	default:
		lo, hi = 0.66, 1
	}
	f := lo + s.rng.Float64()*(hi-lo)
	return sp.MinDuration + time.Duration(f*float64(span))
}

func alertSeverity(s ExperimentSeverity) metrics.Severity {
	switch s {
	case SeveritySevere:
		return metrics.SeverityHigh
	case SeverityModerate:
		return metrics.SeverityMedium
	default:
		return metrics.SeverityLow
	}
}
