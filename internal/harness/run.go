// Package harness drives a soak run: the foreground request loop, the
// background analyzers, and the run lifecycle.
package harness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	xrate "golang.org/x/time/rate"

	"github.com/ratewatch/marathon/internal/alerting"
	"github.com/ratewatch/marathon/internal/business"
	"github.com/ratewatch/marathon/internal/chaos"
	"github.com/ratewatch/marathon/internal/config"
	"github.com/ratewatch/marathon/internal/leak"
	"github.com/ratewatch/marathon/internal/metrics"
	"github.com/ratewatch/marathon/internal/rate"
	"github.com/ratewatch/marathon/internal/report"
	"github.com/ratewatch/marathon/internal/scenario"
	"github.com/ratewatch/marathon/internal/stability"
	"github.com/ratewatch/marathon/internal/target"
	"github.com/ratewatch/marathon/internal/telemetry"
)

// State is the run lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

func (s State) terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Options supplies the run's collaborators. Zero values pick sensible
// defaults: the in-process simulated target, runtime telemetry, and
// built-in fixtures.
type Options struct {
	Target   target.Target
	Sampler  telemetry.Sampler
	Fixtures scenario.FixtureSource
	Registry *prometheus.Registry
	Seed     int64
}

// Run is one soak run. A Run starts at most once; pause and resume
// take effect at batch boundaries so no request is abandoned mid
// flight.
type Run struct {
	ID     string
	cfg    *config.RunConfig
	logger *zap.Logger

	// startedAt is set once in NewRun and never reassigned; pacing,
	// the hourly rollup, and listing all share this timing origin.
	startedAt time.Time

	mu    sync.Mutex
	cond  *sync.Cond
	state State

	agg       *metrics.Aggregator
	seq       *scenario.Sequence
	tgt       target.Target
	exec      *target.Executor
	sampler   telemetry.Sampler
	analyzer  *stability.Analyzer
	engine    *alerting.Engine
	detector  *leak.Detector
	scheduler *chaos.Scheduler

	limiter *xrate.Limiter
	sem     chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}

	reportOnce sync.Once
	report     *report.Report
}

// NewRun builds a run from a validated configuration.
func NewRun(cfg *config.RunConfig, opts Options, logger *zap.Logger) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	seq, err := scenario.NewBuilder(opts.Fixtures, opts.Seed).
		Build(cfg.ValidPercent, cfg.ScenarioWeights)
	if err != nil {
		return nil, err
	}

	tgt := opts.Target
	if tgt == nil {
		tgt = target.NewSim(target.DefaultSimConfig())
	}
	sampler := opts.Sampler
	if sampler == nil {
		sampler = telemetry.NewRuntimeSampler()
	}

	id := uuid.New().String()
	r := &Run{
		ID:        id,
		cfg:       cfg,
		logger:    logger.With(zap.String("run", cfg.Name), zap.String("run_id", id)),
		state:     StateIdle,
		seq:       seq,
		tgt:       tgt,
		exec:      target.NewExecutor(tgt, cfg.RequestTimeout, logger),
		sampler:   sampler,
		analyzer:  stability.NewAnalyzer(cfg),
		engine:    alerting.NewEngine(cfg.Thresholds),
		detector:  leak.NewDetector(cfg.Intervals.Leak * 2),
		scheduler: chaos.NewScheduler(opts.Seed),
		limiter:   xrate.NewLimiter(xrate.Limit(cfg.BaseRequestRate), cfg.Concurrency),
		sem:       make(chan struct{}, cfg.Concurrency),
		done:      make(chan struct{}),
	}
	r.cond = sync.NewCond(&r.mu)

	var ins *metrics.Instruments
	if opts.Registry != nil {
		ins = metrics.NewInstruments(opts.Registry, id)
	}
	r.startedAt = time.Now()
	r.agg = metrics.NewAggregator(r.startedAt, cfg.SampleWindow, cfg.TrendWindow, ins)
	return r, nil
}

// Start begins the run. It returns immediately; the foreground loop
// and background analyzers run until the configured duration elapses
// or the run is stopped.
func (r *Run) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		cancel()
		return fmt.Errorf("harness: run %s already started (state %s)", r.ID, r.state)
	}
	r.state = StateRunning
	r.cancel = cancel
	r.mu.Unlock()

	r.logger.Info("run starting",
		zap.Duration("duration", r.cfg.Duration),
		zap.Int("base_rate", r.cfg.BaseRequestRate),
		zap.Int("concurrency", r.cfg.Concurrency),
		zap.Int("scenarios", r.seq.Len()))

	r.wg.Add(1)
	go r.loop(ctx)

	r.spawnTicker(ctx, "telemetry", r.cfg.Intervals.Telemetry, r.telemetryTick)
	r.spawnTicker(ctx, "stability", r.cfg.Intervals.Stability, r.stabilityTick)
	r.spawnTicker(ctx, "alerting", r.cfg.Intervals.Alerting, func(now time.Time) {
		r.alertingTick(ctx, now)
	})
	if r.cfg.Toggles.LeakDetection {
		r.spawnTicker(ctx, "leak", r.cfg.Intervals.Leak, r.leakTick)
	}
	if r.cfg.Toggles.Chaos {
		r.spawnTicker(ctx, "chaos", r.cfg.Intervals.Chaos, func(now time.Time) {
			r.chaosTick(ctx, now)
		})
	}
	if r.cfg.Toggles.BusinessMetrics {
		r.spawnTicker(ctx, "business", r.cfg.Intervals.Business, r.businessTick)
	}
	r.spawnTicker(ctx, "reporting", r.cfg.Intervals.Reporting, r.progressTick)

	go func() {
		r.wg.Wait()
		r.finish(StateCancelled)
		close(r.done)
	}()
	return nil
}

// loop is the foreground request loop. It paces batches to the current
// target rate and honors pause at batch boundaries.
func (r *Run) loop(ctx context.Context) {
	defer r.wg.Done()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("run panicked", zap.Any("panic", p))
			r.finish(StateFailed)
		}
	}()

	deadline := r.startedAt.Add(r.cfg.Duration)
	mods := rate.Modifiers{
		Enabled:                 r.cfg.Toggles.LoadVariation,
		NightReductionPercent:   r.cfg.Variation.NightReductionPercent,
		WeekendReductionPercent: r.cfg.Variation.WeekendReductionPercent,
		BusinessHoursBoost:      r.cfg.Variation.BusinessHoursBoost,
	}

	for {
		if !r.waitRunnable(ctx) {
			return
		}
		now := time.Now()
		if !now.Before(deadline) {
			r.logger.Info("run duration elapsed")
			r.finish(StateCompleted)
			return
		}
		n := rate.TargetRate(r.cfg.BaseRequestRate, now.Sub(r.startedAt), r.cfg.Duration, now, mods)
		r.limiter.SetLimit(xrate.Limit(n))
		r.batch(ctx, n)
	}
}

// batch issues n requests, at most Concurrency in flight, and waits
// for all of them before returning.
func (r *Run) batch(ctx context.Context, n int) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if err := r.limiter.Wait(ctx); err != nil {
			break
		}
		d := r.seq.Next()
		select {
		case r.sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-r.sem }()
			r.agg.Record(r.exec.Do(ctx, d))
		}()
	}
	wg.Wait()
}

// waitRunnable blocks while paused and reports whether the run should
// keep going.
func (r *Run) waitRunnable(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.state == StatePaused {
		r.cond.Wait()
	}
	if ctx.Err() != nil {
		return false
	}
	return r.state == StateRunning
}

// Pause suspends the foreground loop at the next batch boundary.
// Pausing an already paused run is a no-op.
func (r *Run) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case StateRunning:
		r.state = StatePaused
		r.logger.Info("run paused")
		return nil
	case StatePaused:
		return nil
	default:
		return fmt.Errorf("harness: cannot pause run in state %s", r.state)
	}
}

// Resume restarts a paused run. Resuming a running run is a no-op.
func (r *Run) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case StatePaused:
		r.state = StateRunning
		r.cond.Broadcast()
		r.logger.Info("run resumed")
		return nil
	case StateRunning:
		return nil
	default:
		return fmt.Errorf("harness: cannot resume run in state %s", r.state)
	}
}

// Stop cancels the run. Stopping a finished run is a no-op.
func (r *Run) Stop() {
	r.finish(StateCancelled)
}

// finish transitions the run into a terminal state exactly once and
// produces the final report.
func (r *Run) finish(final State) {
	r.mu.Lock()
	if r.state.terminal() {
		r.mu.Unlock()
		return
	}
	r.state = final
	r.cond.Broadcast()
	r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}
	r.reportOnce.Do(func() {
		rep := report.Generate(r.cfg.Name, r.agg.Export())
		r.mu.Lock()
		r.report = &rep
		r.mu.Unlock()
		r.logger.Info("run finished",
			zap.String("state", string(final)),
			zap.String("verdict", rep.Verdict),
			zap.Float64("readiness", rep.ReadinessScore))
	})
}

// Wait blocks until the run has fully stopped.
func (r *Run) Wait() {
	<-r.done
}

// State returns the current lifecycle state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Snapshot returns the current aggregate view.
func (r *Run) Snapshot() metrics.Snapshot {
	return r.agg.Snapshot()
}

// Result serializes the run for export. The report is present only
// once the run has finished.
func (r *Run) Result() Result {
	r.mu.Lock()
	state := r.state
	rep := r.report
	r.mu.Unlock()

	return Result{
		ID:        r.ID,
		Name:      r.cfg.Name,
		State:     state,
		StartedAt: r.startedAt,
		Config:    r.cfg,
		Export:    r.agg.Export(),
		Report:    rep,
	}
}

// Result is the full serializable view of a run.
type Result struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	State     State             `json:"state"`
	StartedAt time.Time         `json:"started_at"`
	Config    *config.RunConfig `json:"config"`
	Export    metrics.Export    `json:"export"`
	Report    *report.Report    `json:"report,omitempty"`
}

func (r *Run) spawnTicker(ctx context.Context, name string, interval time.Duration, fn func(now time.Time)) {
	if interval <= 0 {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				if r.State() != StateRunning {
					continue
				}
				fn(now)
			}
		}
	}()
}

func (r *Run) telemetryTick(now time.Time) {
	s := r.sampler.Sample(now)
	snap := r.agg.Snapshot()
	s.AvgResponseMs = float64(snap.AvgResponse.Milliseconds())
	s.RequestsPerSec = snap.RequestsPerSec
	s.ErrorRate = snap.ErrorRate
	r.agg.AppendTrend(s)
}

func (r *Run) stabilityTick(now time.Time) {
	snap := r.agg.Snapshot()
	r.agg.SetStabilityScore(r.analyzer.Score(snap))

	if r.cfg.Toggles.Baselining && r.analyzer.BaselineDue(snap) {
		if r.agg.SetBaseline(r.analyzer.BaselineFrom(snap)) {
			r.logger.Info("baseline established",
				zap.Duration("avg_response", snap.AvgResponse),
				zap.Float64("memory_mb", snap.Resources.MemoryMB))
		}
	}
	if snap.Baseline.Established {
		r.agg.SetDegradation(r.analyzer.Degrade(snap, r.agg.Alerts()))
	}
}

func (r *Run) alertingTick(ctx context.Context, now time.Time) {
	snap := r.agg.Snapshot()
	health := alerting.Health{
		BreakerOpen: r.exec.BreakerOpen(),
		TargetAlive: r.probeTarget(ctx),
	}
	for _, a := range r.engine.Evaluate(snap, health) {
		r.agg.AppendAlert(a)
		r.logger.Warn("alert raised",
			zap.String("type", string(a.Type)),
			zap.String("severity", string(a.Severity)),
			zap.String("message", a.Message))
	}
}

// healthProbePayload is a known-good conversion request; the target is
// considered alive when validation answers at all, regardless of the
// verdict.
const healthProbePayload = `{"from":"USD","to":"EUR","amount":"1.00"}`

func (r *Run) probeTarget(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()
	_, err := r.tgt.Validate(probeCtx, healthProbePayload)
	return err == nil
}

func (r *Run) leakTick(now time.Time) {
	samples := r.agg.TrendSince(now.Add(-r.detector.Window()))
	entry := r.detector.Analyze(samples, now)
	r.agg.AppendLeak(entry)
	if entry.Severity != metrics.SeverityNone {
		r.agg.AppendAlert(alerting.NewLeakAlert(entry.Severity, entry.GrowthRate))
		r.logger.Warn("memory growth detected",
			zap.Float64("growth_rate", entry.GrowthRate),
			zap.String("severity", string(entry.Severity)))
	}
}

func (r *Run) chaosTick(ctx context.Context, now time.Time) {
	exp, alert := r.scheduler.Begin(r.cfg.ChaosExperimentTime)
	if exp == nil {
		return
	}
	r.agg.AppendChaos(exp)
	r.agg.AppendAlert(alert)
	r.logger.Info("chaos experiment started",
		zap.String("type", exp.Type),
		zap.String("severity", exp.Severity),
		zap.Duration("duration", exp.Duration))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		select {
		case <-ctx.Done():
			return
		case <-time.After(exp.Duration):
		}
		if recovery := r.scheduler.Finish(exp); recovery != nil {
			if err := r.agg.CompleteChaos(exp.ID); err != nil {
				r.logger.Warn("chaos completion", zap.Error(err))
			}
			r.agg.AppendAlert(recovery)
			r.logger.Info("chaos experiment recovered", zap.String("type", exp.Type))
		}
	}()
}

func (r *Run) businessTick(now time.Time) {
	snap := r.agg.Snapshot()
	r.agg.SetBusiness(business.Estimate(business.Inputs{
		ErrorRatePercent:  snap.ErrorRate,
		AvgResponseMs:     float64(snap.AvgResponse.Milliseconds()),
		ResponseThreshold: r.cfg.Thresholds.ResponseTimeMs,
		CriticalAlerts:    snap.CriticalAlerts,
	}))
}

func (r *Run) progressTick(now time.Time) {
	snap := r.agg.Snapshot()
	r.logger.Info("run progress",
		zap.Duration("elapsed", snap.Elapsed.Round(time.Second)),
		zap.Int64("requests", snap.TotalRequests),
		zap.Float64("error_rate", snap.ErrorRate),
		zap.Duration("avg_response", snap.AvgResponse),
		zap.Duration("p95", snap.P95Response),
		zap.Float64("stability", snap.StabilityScore),
		zap.Int("active_alerts", snap.ActiveAlerts))
}
