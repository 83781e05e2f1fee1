package metrics

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Aggregator maintains the single shared run-state record. All
// mutation goes through its mutex; the foreground loop records
// outcomes, the background analyzers append to the logs and update the
// derived snapshots.
type Aggregator struct {
	mu sync.RWMutex

	startTime    time.Time
	sampleWindow int
	trendWindow  int

	total    int64
	success  int64
	failed   int64
	caught   int64
	uncaught int64
	bypasses int64

	minResponse time.Duration
	maxResponse time.Duration
	sumResponse time.Duration

	recent []time.Duration // capped at sampleWindow, oldest evicted

	errorRate float64
	rps       float64

	stabilityScore float64
	resources      TrendSample
	baseline       Baseline
	degradation    Degradation
	business       BusinessMetrics

	hourly    []HourlyStats
	lastHour  int
	hourReqs  int64
	hourFails int64
	hourSum   time.Duration
	hourMax   time.Duration

	trend  []TrendSample
	alerts []*Alert
	leaks  []LeakEntry
	chaos  []*ChaosExperiment

	instruments *Instruments
}

// NewAggregator creates an aggregator for a run starting at start.
// instruments may be nil.
func NewAggregator(start time.Time, sampleWindow, trendWindow int, instruments *Instruments) *Aggregator {
	return &Aggregator{
		startTime:    start,
		sampleWindow: sampleWindow,
		trendWindow:  trendWindow,
		recent:       make([]time.Duration, 0, sampleWindow),
		trend:        make([]TrendSample, 0, trendWindow),
		lastHour:     -1,
		instruments:  instruments,
	}
}

// Record folds one outcome into the aggregate. Counters stay exactly
// reconciled: total == success + failed and errorRate is recomputed
// from the counters on every call.
func (a *Aggregator) Record(o Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	if o.Success {
		a.success++
	} else {
		a.failed++
	}
	if o.Caught {
		a.caught++
	}
	if o.Uncaught {
		a.uncaught++
	}
	if o.ValidationBypassed {
		a.bypasses++
	}

	if a.minResponse == 0 || o.ResponseTime < a.minResponse {
		a.minResponse = o.ResponseTime
	}
	if o.ResponseTime > a.maxResponse {
		a.maxResponse = o.ResponseTime
	}
	a.sumResponse += o.ResponseTime

	a.recent = append(a.recent, o.ResponseTime)
	if len(a.recent) > a.sampleWindow {
		a.recent = a.recent[1:]
	}

	a.errorRate = float64(a.failed) / float64(a.total) * 100
	elapsed := o.Timestamp.Sub(a.startTime).Seconds()
	if elapsed > 0 {
		a.rps = float64(a.total) / elapsed
	}

	a.rollupHourLocked(o)

	if a.instruments != nil {
		a.instruments.observe(o)
	}
}

// rollupHourLocked accumulates per-hour counters and, on entering a new
// elapsed hour, writes exactly one summary record for the hour just
// finished.
func (a *Aggregator) rollupHourLocked(o Outcome) {
	hour := int(o.Timestamp.Sub(a.startTime).Hours())
	if a.lastHour == -1 {
		a.lastHour = hour
	}
	if hour > a.lastHour {
		a.flushHourLocked(a.lastHour)
		a.lastHour = hour
	}

	a.hourReqs++
	if !o.Success {
		a.hourFails++
	}
	a.hourSum += o.ResponseTime
	if o.ResponseTime > a.hourMax {
		a.hourMax = o.ResponseTime
	}
}

func (a *Aggregator) flushHourLocked(hour int) {
	a.hourly = append(a.hourly, a.hourStatsLocked(hour))
	a.hourReqs, a.hourFails, a.hourSum, a.hourMax = 0, 0, 0, 0
}

// hourStatsLocked summarizes the in-progress hour counters without
// resetting them.
func (a *Aggregator) hourStatsLocked(hour int) HourlyStats {
	stats := HourlyStats{
		Hour:          hour,
		Requests:      a.hourReqs,
		Failures:      a.hourFails,
		MaxResponse:   a.hourMax,
		RecordedAtUTC: time.Now().UTC(),
	}
	if a.hourReqs > 0 {
		stats.ErrorRate = float64(a.hourFails) / float64(a.hourReqs) * 100
		stats.AvgResponse = a.hourSum / time.Duration(a.hourReqs)
	}
	for _, al := range a.alerts {
		if int(al.Timestamp.Sub(a.startTime).Hours()) == hour {
			stats.AlertsRaised++
		}
	}
	return stats
}

// AppendTrend adds a sample to the bounded performance-trend buffer,
// evicting the oldest once the window is full.
func (a *Aggregator) AppendTrend(s TrendSample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resources = s
	a.trend = append(a.trend, s)
	if len(a.trend) > a.trendWindow {
		a.trend = a.trend[1:]
	}
	if a.instruments != nil {
		a.instruments.observeResources(s)
	}
}

// TrendSince returns trend samples newer than cutoff.
func (a *Aggregator) TrendSince(cutoff time.Time) []TrendSample {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []TrendSample
	for _, s := range a.trend {
		if s.Timestamp.After(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// AppendAlert adds an alert to the append-only log.
func (a *Aggregator) AppendAlert(alert *Alert) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert)
	if a.instruments != nil {
		a.instruments.observeAlert(alert)
	}
}

// ResolveAlert marks the alert resolved. Resolution never precedes
// creation and an alert resolves at most once.
func (a *Aggregator) ResolveAlert(id string, auto bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, al := range a.alerts {
		if al.ID != id {
			continue
		}
		if al.Resolved {
			return fmt.Errorf("metrics: alert %s already resolved", id)
		}
		now := time.Now()
		if now.Before(al.Timestamp) {
			now = al.Timestamp
		}
		al.Resolved = true
		al.AutoResolved = auto
		al.ResolutionTime = &now
		return nil
	}
	return fmt.Errorf("metrics: alert %s not found", id)
}

// Alerts returns a copy of the alert log.
func (a *Aggregator) Alerts() []Alert {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Alert, len(a.alerts))
	for i, al := range a.alerts {
		out[i] = *al
	}
	return out
}

// AppendLeak records a memory-trend analysis result.
func (a *Aggregator) AppendLeak(e LeakEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.leaks = append(a.leaks, e)
}

// AppendChaos logs a newly started chaos experiment.
func (a *Aggregator) AppendChaos(e *ChaosExperiment) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chaos = append(a.chaos, e)
}

// CompleteChaos marks the experiment recovered, recording the wall
// clock recovery time.
func (a *Aggregator) CompleteChaos(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.chaos {
		if e.ID != id {
			continue
		}
		if e.Completed {
			return fmt.Errorf("metrics: experiment %s already completed", id)
		}
		now := time.Now()
		e.Completed = true
		e.CompletedAt = &now
		e.RecoveryTime = now.Sub(e.StartedAt)
		return nil
	}
	return fmt.Errorf("metrics: experiment %s not found", id)
}

// SetBaseline captures the baseline exactly once. Subsequent calls are
// no-ops so an established baseline is never overwritten.
func (a *Aggregator) SetBaseline(b Baseline) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.baseline.Established {
		return false
	}
	b.Established = true
	a.baseline = b
	return true
}

// SetDegradation stores the latest degradation analysis.
func (a *Aggregator) SetDegradation(d Degradation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.degradation = d
}

// SetBusiness stores the latest business metrics.
func (a *Aggregator) SetBusiness(b BusinessMetrics) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.business = b
}

// SetStabilityScore stores the latest composite stability score.
func (a *Aggregator) SetStabilityScore(score float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stabilityScore = score
	if a.instruments != nil {
		a.instruments.observeStability(score)
	}
}

// Snapshot returns a consistent copy of the aggregate state.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snap := Snapshot{
		StartTime:          a.startTime,
		Elapsed:            time.Since(a.startTime),
		TotalRequests:      a.total,
		SuccessfulRequests: a.success,
		FailedRequests:     a.failed,
		CaughtRequests:     a.caught,
		UncaughtFailures:   a.uncaught,
		ValidationBypasses: a.bypasses,
		MinResponse:        a.minResponse,
		MaxResponse:        a.maxResponse,
		ErrorRate:          a.errorRate,
		RequestsPerSec:     a.rps,
		StabilityScore:     a.stabilityScore,
		Resources:          a.resources,
		Baseline:           a.baseline,
		Degradation:        a.degradation,
		Business:           a.business,
	}
	if a.total > 0 {
		snap.AvgResponse = a.sumResponse / time.Duration(a.total)
	}
	snap.P95Response, snap.P99Response, snap.P999Response = percentilesLocked(a.recent)

	for _, al := range a.alerts {
		if !al.Resolved {
			snap.ActiveAlerts++
		}
		switch al.Severity {
		case SeverityCritical:
			snap.CriticalAlerts++
		case SeverityHigh:
			snap.HighAlerts++
		}
	}
	return snap
}

// Export returns the full serializable run-state. The current partial
// hour is summarized into the exported copy only; the live counters
// keep accumulating so the in-progress hour is still written exactly
// once when it ends.
func (a *Aggregator) Export() Export {
	snap := a.Snapshot()

	a.mu.RLock()
	defer a.mu.RUnlock()
	exp := Export{
		Snapshot: snap,
		Hourly:   append([]HourlyStats(nil), a.hourly...),
		Trend:    append([]TrendSample(nil), a.trend...),
		Leaks:    append([]LeakEntry(nil), a.leaks...),
	}
	if a.hourReqs > 0 {
		exp.Hourly = append(exp.Hourly, a.hourStatsLocked(a.lastHour))
	}
	exp.Alerts = make([]Alert, len(a.alerts))
	for i, al := range a.alerts {
		exp.Alerts[i] = *al
	}
	exp.Chaos = make([]ChaosExperiment, len(a.chaos))
	for i, e := range a.chaos {
		exp.Chaos[i] = *e
	}
	return exp
}

// percentilesLocked computes order-statistic percentiles from the
// recent sample window: every returned value is an element of the
// observed set, and p95 <= p99 <= p99.9 <= max.
func percentilesLocked(samples []time.Duration) (p95, p99, p999 time.Duration) {
	n := len(samples)
	if n == 0 {
		return 0, 0, 0
	}
	sorted := make([]time.Duration, n)
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := func(q float64) int {
		i := int(float64(n) * q)
		if i >= n {
			i = n - 1
		}
		return i
	}
	return sorted[idx(0.95)], sorted[idx(0.99)], sorted[idx(0.999)]
}
