// Package stability derives the composite health score, captures the
// one-shot performance baseline, and computes degradation and
// reliability figures against it.
package stability

import (
	"time"

	"github.com/ratewatch/marathon/internal/config"
	"github.com/ratewatch/marathon/internal/metrics"
)

// Sub-score weights for the composite score. Tuned so no single factor
// can zero the score on its own.
const (
	weightMemory    = 0.20
	weightCPU       = 0.15
	weightErrorRate = 0.25
	weightNetwork   = 0.10
	weightDisk      = 0.10
	weightCache     = 0.10
	weightEndurance = 0.10

	errorRatePenalty = 8 // score points per percentage point of errors
)

// Analyzer computes stability and degradation for one run.
type Analyzer struct {
	thresholds config.Thresholds
	warmup     time.Duration
	duration   time.Duration
}

// NewAnalyzer creates an analyzer from the run configuration.
func NewAnalyzer(cfg *config.RunConfig) *Analyzer {
	return &Analyzer{
		thresholds: cfg.Thresholds,
		warmup:     cfg.BaselineWarmup,
		duration:   cfg.Duration,
	}
}

// Score blends normalized sub-scores into a [0,100] composite.
func (a *Analyzer) Score(snap metrics.Snapshot) float64 {
	res := snap.Resources

	memory := clamp(100 - res.MemoryMB/a.thresholds.MemoryMB*60)
	cpu := clamp(100 - res.CPUPercent/a.thresholds.CPUPercent*60)
	errors := clamp(100 - snap.ErrorRate*errorRatePenalty)
	network := clamp(100 - res.NetworkLatencyMs/a.thresholds.NetworkLatencyMs*50)
	disk := clamp(100 - res.DiskPercent/a.thresholds.DiskPercent*50)
	cache := clamp(res.CacheHitPercent)

	progress := snap.Elapsed.Hours() / a.duration.Hours()
	if progress > 1 {
		progress = 1
	}
	endurance := clamp(100 - progress*20)

	score := memory*weightMemory +
		cpu*weightCPU +
		errors*weightErrorRate +
		network*weightNetwork +
		disk*weightDisk +
		cache*weightCache +
		endurance*weightEndurance
	return clamp(score)
}

// BaselineDue reports whether the warm-up delay has elapsed and no
// baseline exists yet.
func (a *Analyzer) BaselineDue(snap metrics.Snapshot) bool {
	return !snap.Baseline.Established && snap.Elapsed >= a.warmup && snap.TotalRequests > 0
}

// BaselineFrom snapshots the current performance as the immutable
// reference point.
func (a *Analyzer) BaselineFrom(snap metrics.Snapshot) metrics.Baseline {
	return metrics.Baseline{
		CapturedAt:     time.Now(),
		AvgResponse:    snap.AvgResponse,
		P95Response:    snap.P95Response,
		MemoryMB:       snap.Resources.MemoryMB,
		CPUPercent:     snap.Resources.CPUPercent,
		RequestsPerSec: snap.RequestsPerSec,
		ErrorRate:      snap.ErrorRate,
	}
}

// Degrade compares current metrics against the established baseline.
// Response-time and throughput deltas are floored at zero: an
// improvement is not negative degradation.
func (a *Analyzer) Degrade(snap metrics.Snapshot, alerts []metrics.Alert) metrics.Degradation {
	base := snap.Baseline
	d := metrics.Degradation{ComputedAt: time.Now()}
	if !base.Established {
		return d
	}

	if base.AvgResponse > 0 {
		change := (snap.AvgResponse.Seconds() - base.AvgResponse.Seconds()) / base.AvgResponse.Seconds() * 100
		if change > 0 {
			d.ResponseTimeChangePct = change
		}
	}

	sinceBaseline := time.Since(base.CapturedAt)
	if days := sinceBaseline.Hours() / 24; days > 0 {
		d.MemoryGrowthMBPerDay = (snap.Resources.MemoryMB - base.MemoryMB) / days
	}

	if base.CPUPercent > 0 {
		d.CPUTrendPct = (snap.Resources.CPUPercent - base.CPUPercent) / base.CPUPercent * 100
	}

	if base.RequestsPerSec > 0 {
		decline := (base.RequestsPerSec - snap.RequestsPerSec) / base.RequestsPerSec * 100
		if decline > 0 {
			d.ThroughputDeclinePct = decline
		}
	}

	d.MTBFHours = mtbf(snap.Elapsed, alerts)
	d.MTTRMinutes = mttr(alerts)
	return d
}

// mtbf is elapsed hours divided by the count of high and critical
// alerts. With no such alerts the run has had no failures to space.
func mtbf(elapsed time.Duration, alerts []metrics.Alert) float64 {
	var failures int
	for _, al := range alerts {
		if al.Severity == metrics.SeverityHigh || al.Severity == metrics.SeverityCritical {
			failures++
		}
	}
	if failures == 0 {
		return elapsed.Hours()
	}
	return elapsed.Hours() / float64(failures)
}

// mttr is the mean creation-to-resolution latency, in minutes, over
// alerts that have a resolution timestamp.
func mttr(alerts []metrics.Alert) float64 {
	var total time.Duration
	var resolved int
	for _, al := range alerts {
		if al.ResolutionTime == nil {
			continue
		}
		total += al.ResolutionTime.Sub(al.Timestamp)
		resolved++
	}
	if resolved == 0 {
		return 0
	}
	return total.Minutes() / float64(resolved)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
