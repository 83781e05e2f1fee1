// Package report renders the end-of-run assessment from an exported
// run state. Generation is deterministic: the same export always
// produces the same report.
package report

import (
	"fmt"
	"time"

	"github.com/ratewatch/marathon/internal/metrics"
)

// Report is the final human-facing assessment of a run.
type Report struct {
	GeneratedAt      time.Time          `json:"generated_at"`
	RunName          string             `json:"run_name"`
	Verdict          string             `json:"verdict"`
	ExecutiveSummary string             `json:"executive_summary"`
	KeyFindings      []string           `json:"key_findings"`
	Performance      PerformanceSection `json:"performance"`
	Stability        StabilitySection   `json:"stability"`
	Memory           MemorySection      `json:"memory"`
	Chaos            ChaosSection       `json:"chaos"`
	Business         BusinessSection    `json:"business"`
	Recommendations  []string           `json:"recommendations"`
	RiskAssessment   string             `json:"risk_assessment"`
	ReadinessScore   float64            `json:"readiness_score"`
}

type PerformanceSection struct {
	TotalRequests    int64         `json:"total_requests"`
	ErrorRatePct     float64       `json:"error_rate_pct"`
	AvgResponse      time.Duration `json:"avg_response"`
	P95Response      time.Duration `json:"p95_response"`
	P99Response      time.Duration `json:"p99_response"`
	ResponseDriftPct float64       `json:"response_drift_pct"`
	ThroughputRPS    float64       `json:"throughput_rps"`
}

type StabilitySection struct {
	FinalScore     float64 `json:"final_score"`
	MTBFHours      float64 `json:"mtbf_hours"`
	MTTRMinutes    float64 `json:"mttr_minutes"`
	TotalAlerts    int     `json:"total_alerts"`
	CriticalAlerts int     `json:"critical_alerts"`
	UnresolvedHigh int     `json:"unresolved_high"`
}

type MemorySection struct {
	GrowthMBPerDay float64 `json:"growth_mb_per_day"`
	WorstSeverity  string  `json:"worst_severity"`
	Analyses       int     `json:"analyses"`
	LeakSuspected  bool    `json:"leak_suspected"`
}

type ChaosSection struct {
	Experiments  int           `json:"experiments"`
	Recovered    int           `json:"recovered"`
	MaxRecovery  time.Duration `json:"max_recovery"`
	AllRecovered bool          `json:"all_recovered"`
}

type BusinessSection struct {
	AvailabilityPct      float64 `json:"availability_pct"`
	SLACompliancePct     float64 `json:"sla_compliance_pct"`
	CustomerImpactPct    float64 `json:"customer_impact_pct"`
	RevenueProtectionPct float64 `json:"revenue_protection_pct"`
}

// Generate builds the final report from the exported run state.
func Generate(runName string, exp metrics.Export) Report {
	snap := exp.Snapshot

	perf := PerformanceSection{
		TotalRequests:    snap.TotalRequests,
		ErrorRatePct:     snap.ErrorRate,
		AvgResponse:      snap.AvgResponse,
		P95Response:      snap.P95Response,
		P99Response:      snap.P99Response,
		ResponseDriftPct: snap.Degradation.ResponseTimeChangePct,
		ThroughputRPS:    snap.RequestsPerSec,
	}

	stab := stabilitySection(snap, exp.Alerts)
	mem := memorySection(snap, exp.Leaks)
	chaos := chaosSection(exp.Chaos)
	biz := BusinessSection{
		AvailabilityPct:      snap.Business.AvailabilityPct,
		SLACompliancePct:     snap.Business.SLACompliancePct,
		CustomerImpactPct:    snap.Business.CustomerImpactPct,
		RevenueProtectionPct: snap.Business.RevenueProtectionPct,
	}

	score := readinessScore(snap, stab, mem, chaos)
	verdict := verdictFor(score)

	return Report{
		GeneratedAt:      time.Now().UTC(),
		RunName:          runName,
		Verdict:          verdict,
		ExecutiveSummary: summary(runName, snap, score, verdict),
		KeyFindings:      findings(snap, stab, mem, chaos),
		Performance:      perf,
		Stability:        stab,
		Memory:           mem,
		Chaos:            chaos,
		Business:         biz,
		Recommendations:  recommendations(snap, stab, mem, chaos),
		RiskAssessment:   risk(stab, mem),
		ReadinessScore:   score,
	}
}

func stabilitySection(snap metrics.Snapshot, alerts []metrics.Alert) StabilitySection {
	s := StabilitySection{
		FinalScore:  snap.StabilityScore,
		MTBFHours:   snap.Degradation.MTBFHours,
		MTTRMinutes: snap.Degradation.MTTRMinutes,
		TotalAlerts: len(alerts),
	}
	for _, a := range alerts {
		if a.Severity == metrics.SeverityCritical {
			s.CriticalAlerts++
		}
		if !a.Resolved && a.Severity.Rank() >= metrics.SeverityHigh.Rank() {
			s.UnresolvedHigh++
		}
	}
	return s
}

func memorySection(snap metrics.Snapshot, leaks []metrics.LeakEntry) MemorySection {
	m := MemorySection{
		GrowthMBPerDay: snap.Degradation.MemoryGrowthMBPerDay,
		WorstSeverity:  string(metrics.SeverityNone),
		Analyses:       len(leaks),
	}
	worst := metrics.SeverityNone
	for _, l := range leaks {
		if l.Severity.Rank() > worst.Rank() {
			worst = l.Severity
		}
	}
	m.WorstSeverity = string(worst)
	m.LeakSuspected = worst.Rank() >= metrics.SeverityMedium.Rank()
	return m
}

func chaosSection(experiments []metrics.ChaosExperiment) ChaosSection {
	c := ChaosSection{Experiments: len(experiments), AllRecovered: true}
	for _, e := range experiments {
		if e.Completed {
			c.Recovered++
			if e.RecoveryTime > c.MaxRecovery {
				c.MaxRecovery = e.RecoveryTime
			}
		} else {
			c.AllRecovered = false
		}
	}
	if len(experiments) == 0 {
		c.AllRecovered = true
	}
	return c
}

// readinessScore folds the run's health domains into one 0-100 figure.
func readinessScore(snap metrics.Snapshot, stab StabilitySection, mem MemorySection, chaos ChaosSection) float64 {
	score := snap.StabilityScore

	if snap.ErrorRate > 1 {
		score -= (snap.ErrorRate - 1) * 5
	}
	if mem.LeakSuspected {
		score -= 15
	}
	score -= float64(stab.CriticalAlerts) * 3
	score -= float64(stab.UnresolvedHigh) * 2
	if chaos.Experiments > 0 && !chaos.AllRecovered {
		score -= 10
	}
	if snap.ValidationBypasses > 0 {
		score -= 10
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

func verdictFor(score float64) string {
	switch {
	case score >= 90:
		return "production ready"
	case score >= 75:
		return "ready with observations"
	case score >= 50:
		return "needs remediation"
	default:
		return "not production ready"
	}
}

func summary(name string, snap metrics.Snapshot, score float64, verdict string) string {
	return fmt.Sprintf(
		"Run %q processed %d requests over %s at %.1f req/s with a %.2f%% error rate. "+
			"Final stability score %.1f, readiness %.1f: %s.",
		name, snap.TotalRequests, snap.Elapsed.Round(time.Minute),
		snap.RequestsPerSec, snap.ErrorRate, snap.StabilityScore, score, verdict)
}

func findings(snap metrics.Snapshot, stab StabilitySection, mem MemorySection, chaos ChaosSection) []string {
	var f []string
	if snap.ErrorRate <= 1 {
		f = append(f, fmt.Sprintf("error rate held at %.2f%%, within the 1%% soak target", snap.ErrorRate))
	} else {
		f = append(f, fmt.Sprintf("error rate %.2f%% exceeded the 1%% soak target", snap.ErrorRate))
	}
	if snap.Degradation.ResponseTimeChangePct > 20 {
		f = append(f, fmt.Sprintf("response time drifted %.1f%% above baseline", snap.Degradation.ResponseTimeChangePct))
	}
	if mem.LeakSuspected {
		f = append(f, fmt.Sprintf("memory growth trend flagged %s, %.1f MB/day against baseline", mem.WorstSeverity, mem.GrowthMBPerDay))
	} else if mem.Analyses > 0 {
		f = append(f, "no sustained memory growth detected")
	}
	if snap.UncaughtFailures > 0 {
		f = append(f, fmt.Sprintf("%d requests failed without validation catching them", snap.UncaughtFailures))
	}
	if snap.ValidationBypasses > 0 {
		f = append(f, fmt.Sprintf("%d adversarial payloads bypassed validation", snap.ValidationBypasses))
	}
	if chaos.Experiments > 0 {
		if chaos.AllRecovered {
			f = append(f, fmt.Sprintf("all %d chaos experiments recovered, worst recovery %s", chaos.Experiments, chaos.MaxRecovery.Round(time.Second)))
		} else {
			f = append(f, fmt.Sprintf("%d of %d chaos experiments did not recover", chaos.Experiments-chaos.Recovered, chaos.Experiments))
		}
	}
	if stab.CriticalAlerts > 0 {
		f = append(f, fmt.Sprintf("%d critical alerts raised during the run", stab.CriticalAlerts))
	}
	return f
}

func recommendations(snap metrics.Snapshot, stab StabilitySection, mem MemorySection, chaos ChaosSection) []string {
	var r []string
	if snap.ErrorRate > 1 {
		r = append(r, "investigate dominant error categories before extending run duration")
	}
	if mem.LeakSuspected {
		r = append(r, "profile heap allocations; memory trend indicates a possible leak")
	}
	if snap.ValidationBypasses > 0 {
		r = append(r, "harden input validation; adversarial payloads reached execution")
	}
	if snap.Degradation.ResponseTimeChangePct > 20 {
		r = append(r, "compare current profile against the warm-up baseline to locate the latency regression")
	}
	if stab.UnresolvedHigh > 0 {
		r = append(r, fmt.Sprintf("resolve %d outstanding high-severity alerts", stab.UnresolvedHigh))
	}
	if chaos.Experiments > 0 && !chaos.AllRecovered {
		r = append(r, "review unrecovered chaos experiments for missing failover paths")
	}
	if len(r) == 0 {
		r = append(r, "no remediation required; extend soak duration to build further confidence")
	}
	return r
}

func risk(stab StabilitySection, mem MemorySection) string {
	switch {
	case stab.CriticalAlerts > 0 || mem.LeakSuspected:
		return "high: unresolved critical signals present"
	case stab.UnresolvedHigh > 0:
		return "medium: high-severity alerts outstanding"
	default:
		return "low: no outstanding critical or high-severity signals"
	}
}
