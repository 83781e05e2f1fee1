// Package metrics owns the run-state data model: request outcomes, the
// aggregate counters and percentile window, and the append-only alert,
// leak and chaos logs shared by the foreground loop and the background
// analyzers.
package metrics

import "time"

// Severity grades alerts and leak findings.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities for comparison; higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// AlertType categorizes alerts by the subsystem that raised them.
type AlertType string

const (
	AlertPerformance AlertType = "performance"
	AlertMemory      AlertType = "memory"
	AlertError       AlertType = "error"
	AlertStability   AlertType = "stability"
	AlertNetwork     AlertType = "network"
	AlertDisk        AlertType = "disk"
	AlertSecurity    AlertType = "security"
	AlertChaos       AlertType = "chaos"
	AlertHealth      AlertType = "health"
)

// ImpactTier expresses the business impact of an alert.
type ImpactTier string

const (
	ImpactMinimal     ImpactTier = "minimal"
	ImpactModerate    ImpactTier = "moderate"
	ImpactSignificant ImpactTier = "significant"
	ImpactSevere      ImpactTier = "severe"
)

// ImpactForSeverity derives the business-impact tier from alert severity.
func ImpactForSeverity(s Severity) ImpactTier {
	switch s {
	case SeverityCritical:
		return ImpactSevere
	case SeverityHigh:
		return ImpactSignificant
	case SeverityMedium:
		return ImpactModerate
	default:
		return ImpactMinimal
	}
}

// Outcome is the record of one executed request. It is produced once by
// the executor, consumed once by the aggregator, and never mutated.
type Outcome struct {
	Timestamp          time.Time     `json:"timestamp"`
	Success            bool          `json:"success"`
	ResponseTime       time.Duration `json:"response_time"`
	ErrorKind          string        `json:"error_kind,omitempty"`
	Severity           Severity      `json:"severity,omitempty"`
	Category           string        `json:"category,omitempty"`
	Caught             bool          `json:"caught"`
	Uncaught           bool          `json:"uncaught"`
	ValidationBypassed bool          `json:"validation_bypassed"`
}

// Alert is an operator-visible record of a threshold breach or notable
// event. Alerts are append-only; resolution is a separate mutation.
type Alert struct {
	ID              string     `json:"id"`
	Timestamp       time.Time  `json:"timestamp"`
	Type            AlertType  `json:"type"`
	Severity        Severity   `json:"severity"`
	Message         string     `json:"message"`
	Resolved        bool       `json:"resolved"`
	AutoResolved    bool       `json:"auto_resolved"`
	ResolutionTime  *time.Time `json:"resolution_time,omitempty"`
	Escalated       bool       `json:"escalated"`
	AffectedSystems []string   `json:"affected_systems,omitempty"`
	BusinessImpact  ImpactTier `json:"business_impact"`
}

// TrendSample is one point in the bounded performance-trend buffer.
type TrendSample struct {
	Timestamp        time.Time `json:"timestamp"`
	MemoryMB         float64   `json:"memory_mb"`
	CPUPercent       float64   `json:"cpu_percent"`
	NetworkLatencyMs float64   `json:"network_latency_ms"`
	DiskPercent      float64   `json:"disk_percent"`
	CacheHitPercent  float64   `json:"cache_hit_percent"`
	Goroutines       int       `json:"goroutines"`
	AvgResponseMs    float64   `json:"avg_response_ms"`
	RequestsPerSec   float64   `json:"requests_per_sec"`
	ErrorRate        float64   `json:"error_rate"`
}

// HourlyStats summarizes one elapsed hour of the run. Records are
// write-once: an hour is rolled up exactly once when the next hour
// begins.
type HourlyStats struct {
	Hour          int           `json:"hour"`
	Requests      int64         `json:"requests"`
	Failures      int64         `json:"failures"`
	ErrorRate     float64       `json:"error_rate"`
	AvgResponse   time.Duration `json:"avg_response"`
	MaxResponse   time.Duration `json:"max_response"`
	AlertsRaised  int           `json:"alerts_raised"`
	RecordedAtUTC time.Time     `json:"recorded_at_utc"`
}

// LeakEntry is one memory-trend analysis result.
type LeakEntry struct {
	Timestamp       time.Time `json:"timestamp"`
	WindowSamples   int       `json:"window_samples"`
	FirstHalfAvgMB  float64   `json:"first_half_avg_mb"`
	SecondHalfAvgMB float64   `json:"second_half_avg_mb"`
	GrowthRate      float64   `json:"growth_rate"`
	Trend           string    `json:"trend"`
	Severity        Severity  `json:"severity"`
}

// ChaosExperiment records one injected failure experiment. Immutable
// once logged except for the completion fields set on recovery.
type ChaosExperiment struct {
	ID             string        `json:"id"`
	Type           string        `json:"type"`
	Severity       string        `json:"severity"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	Impact         string        `json:"impact"`
	BusinessImpact string        `json:"business_impact"`
	Completed      bool          `json:"completed"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	RecoveryTime   time.Duration `json:"recovery_time,omitempty"`
}

// Baseline is the one-shot warm-up performance reference. Once
// Established it is never overwritten.
type Baseline struct {
	Established    bool          `json:"established"`
	CapturedAt     time.Time     `json:"captured_at"`
	AvgResponse    time.Duration `json:"avg_response"`
	P95Response    time.Duration `json:"p95_response"`
	MemoryMB       float64       `json:"memory_mb"`
	CPUPercent     float64       `json:"cpu_percent"`
	RequestsPerSec float64       `json:"requests_per_sec"`
	ErrorRate      float64       `json:"error_rate"`
}

// Degradation is the per-tick comparison against the baseline.
type Degradation struct {
	ComputedAt            time.Time `json:"computed_at"`
	ResponseTimeChangePct float64   `json:"response_time_change_pct"`
	MemoryGrowthMBPerDay  float64   `json:"memory_growth_mb_per_day"`
	CPUTrendPct           float64   `json:"cpu_trend_pct"`
	ThroughputDeclinePct  float64   `json:"throughput_decline_pct"`
	MTBFHours             float64   `json:"mtbf_hours"`
	MTTRMinutes           float64   `json:"mttr_minutes"`
}

// BusinessMetrics holds the heuristic customer-facing indicators,
// recomputed from scratch each tick.
type BusinessMetrics struct {
	ComputedAt           time.Time `json:"computed_at"`
	AvailabilityPct      float64   `json:"availability_pct"`
	ErrorBudgetRemaining float64   `json:"error_budget_remaining"`
	SLACompliancePct     float64   `json:"sla_compliance_pct"`
	CustomerImpactPct    float64   `json:"customer_impact_pct"`
	RevenueProtectionPct float64   `json:"revenue_protection_pct"`
	BrandReputationPct   float64   `json:"brand_reputation_pct"`
}

// Snapshot is a consistent read-only view of the aggregate, handed to
// the background analyzers.
type Snapshot struct {
	StartTime          time.Time       `json:"start_time"`
	Elapsed            time.Duration   `json:"elapsed"`
	TotalRequests      int64           `json:"total_requests"`
	SuccessfulRequests int64           `json:"successful_requests"`
	FailedRequests     int64           `json:"failed_requests"`
	CaughtRequests     int64           `json:"caught_requests"`
	UncaughtFailures   int64           `json:"uncaught_failures"`
	ValidationBypasses int64           `json:"validation_bypasses"`
	MinResponse        time.Duration   `json:"min_response"`
	MaxResponse        time.Duration   `json:"max_response"`
	AvgResponse        time.Duration   `json:"avg_response"`
	P95Response        time.Duration   `json:"p95_response"`
	P99Response        time.Duration   `json:"p99_response"`
	P999Response       time.Duration   `json:"p999_response"`
	ErrorRate          float64         `json:"error_rate"`
	RequestsPerSec     float64         `json:"requests_per_sec"`
	StabilityScore     float64         `json:"stability_score"`
	Resources          TrendSample     `json:"resources"`
	Baseline           Baseline        `json:"baseline"`
	Degradation        Degradation     `json:"degradation"`
	Business           BusinessMetrics `json:"business"`
	ActiveAlerts       int             `json:"active_alerts"`
	CriticalAlerts     int             `json:"critical_alerts"`
	HighAlerts         int             `json:"high_alerts"`
}

// Export is the full serializable run-state, embedded in a RunResult.
// It round-trips losslessly through JSON.
type Export struct {
	Snapshot Snapshot          `json:"snapshot"`
	Hourly   []HourlyStats     `json:"hourly"`
	Trend    []TrendSample     `json:"trend"`
	Alerts   []Alert           `json:"alerts"`
	Leaks    []LeakEntry       `json:"leaks"`
	Chaos    []ChaosExperiment `json:"chaos"`
}
