package harness

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ratewatch/marathon/internal/config"
	"github.com/ratewatch/marathon/internal/metrics"
	"github.com/ratewatch/marathon/internal/target"
)

// fastConfig shrinks the default soak configuration to test scale:
// high request rate, millisecond analyzer intervals, optional
// subsystems off unless a test turns them back on.
func fastConfig(name string) *config.RunConfig {
	cfg := config.Default(name)
	cfg.BaseRequestRate = 100
	cfg.Concurrency = 8
	cfg.RequestTimeout = time.Second
	cfg.SampleWindow = 100
	cfg.TrendWindow = 10
	cfg.Toggles.Chaos = false
	cfg.Toggles.LeakDetection = false
	cfg.Toggles.LoadVariation = false
	cfg.Intervals.Telemetry = 20 * time.Millisecond
	cfg.Intervals.Stability = 30 * time.Millisecond
	cfg.Intervals.Alerting = 40 * time.Millisecond
	cfg.Intervals.Business = 50 * time.Millisecond
	cfg.Intervals.Reporting = time.Hour
	return cfg
}

func quickSim(failureRate float64) target.Target {
	return target.NewSim(target.SimConfig{
		FailureRate: failureRate,
		BaseLatency: time.Millisecond,
		Seed:        1,
	})
}

func TestRun_LifecycleAndPauseResume(t *testing.T) {
	cfg := fastConfig("lifecycle")
	r, err := NewRun(cfg, Options{Target: quickSim(0), Seed: 1}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if r.State() != StateIdle {
		t.Fatalf("state = %s, want idle", r.State())
	}

	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if r.State() != StateRunning {
		t.Fatalf("state = %s, want running", r.State())
	}
	time.Sleep(300 * time.Millisecond)

	if err := r.Pause(); err != nil {
		t.Fatal(err)
	}
	// Pausing twice is a no-op.
	if err := r.Pause(); err != nil {
		t.Fatalf("second pause: %v", err)
	}
	if r.State() != StatePaused {
		t.Fatalf("state = %s, want paused", r.State())
	}

	// The in-flight batch drains, then no further requests are issued.
	time.Sleep(1500 * time.Millisecond)
	before := r.Snapshot().TotalRequests
	time.Sleep(300 * time.Millisecond)
	if after := r.Snapshot().TotalRequests; after != before {
		t.Errorf("requests advanced while paused: %d -> %d", before, after)
	}

	if err := r.Resume(); err != nil {
		t.Fatal(err)
	}
	// Resuming twice is a no-op.
	if err := r.Resume(); err != nil {
		t.Fatalf("second resume: %v", err)
	}
	time.Sleep(400 * time.Millisecond)
	if after := r.Snapshot().TotalRequests; after <= before {
		t.Errorf("requests did not advance after resume: still %d", after)
	}

	r.Stop()
	r.Wait()
	if r.State() != StateCancelled {
		t.Fatalf("state = %s, want cancelled", r.State())
	}
	res := r.Result()
	if res.Report == nil {
		t.Fatal("finished run has no report")
	}
	if res.Export.Snapshot.TotalRequests == 0 {
		t.Fatal("export recorded no requests")
	}
}

func TestRun_StartTwiceFails(t *testing.T) {
	r, err := NewRun(fastConfig("twice"), Options{Target: quickSim(0)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer func() { r.Stop(); r.Wait() }()
	if err := r.Start(context.Background()); err == nil {
		t.Fatal("second Start succeeded")
	}
}

func TestRun_PauseAfterFinishFails(t *testing.T) {
	r, err := NewRun(fastConfig("finished"), Options{Target: quickSim(0)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	r.Stop()
	r.Wait()
	if err := r.Pause(); err == nil {
		t.Fatal("pause on finished run succeeded")
	}
	if err := r.Resume(); err == nil {
		t.Fatal("resume on finished run succeeded")
	}
	// Stopping again is harmless.
	r.Stop()
}

func TestRun_LowFailureRateRaisesNoErrorAlerts(t *testing.T) {
	cfg := fastConfig("quiet")
	r, err := NewRun(cfg, Options{Target: quickSim(0.01), Seed: 7}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(1200 * time.Millisecond)
	r.Stop()
	r.Wait()

	snap := r.Snapshot()
	if snap.TotalRequests == 0 {
		t.Fatal("no requests executed")
	}
	if snap.ErrorRate > 3 {
		t.Errorf("error rate %.2f%% far above the 1%% failure injection", snap.ErrorRate)
	}
	for _, a := range r.Result().Export.Alerts {
		if a.Type == metrics.AlertError {
			t.Errorf("unexpected error alert: %s", a.Message)
		}
	}
}

func TestRun_HighFailureRateRaisesErrorAlert(t *testing.T) {
	cfg := fastConfig("noisy")
	r, err := NewRun(cfg, Options{Target: quickSim(0.5), Seed: 7}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(1200 * time.Millisecond)
	r.Stop()
	r.Wait()

	var found bool
	for _, a := range r.Result().Export.Alerts {
		if a.Type == metrics.AlertError && a.Severity.Rank() >= metrics.SeverityMedium.Rank() {
			found = true
		}
	}
	if !found {
		t.Errorf("no error alert raised at %.2f%% error rate", r.Snapshot().ErrorRate)
	}
}

func TestRun_LeakTickRaisesLowSeverityAlert(t *testing.T) {
	cfg := fastConfig("leak-low")
	cfg.Toggles.LeakDetection = true
	r, err := NewRun(cfg, Options{Target: quickSim(0), Seed: 1}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	// Two flat samples then two 3% higher: half-window growth lands in
	// the low band.
	now := time.Now()
	for i, mb := range []float64{100, 100, 103, 103} {
		r.agg.AppendTrend(metrics.TrendSample{
			Timestamp: now.Add(time.Duration(i-4) * time.Minute),
			MemoryMB:  mb,
		})
	}
	r.leakTick(now)

	var found bool
	for _, a := range r.agg.Alerts() {
		if a.Type == metrics.AlertMemory && a.Severity == metrics.SeverityLow {
			found = true
		}
	}
	if !found {
		t.Errorf("no low-severity memory alert raised, alerts: %+v", r.agg.Alerts())
	}
}

func TestRun_ChaosExperimentLogged(t *testing.T) {
	cfg := fastConfig("chaotic")
	cfg.Toggles.Chaos = true
	cfg.Intervals.Chaos = 50 * time.Millisecond
	cfg.ChaosExperimentTime = 100 * time.Millisecond

	r, err := NewRun(cfg, Options{Target: quickSim(0), Seed: 3}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(600 * time.Millisecond)
	r.Stop()
	r.Wait()

	exp := r.Result().Export
	if len(exp.Chaos) == 0 {
		t.Fatal("no chaos experiments logged")
	}
	first := exp.Chaos[0]
	if !first.Completed {
		t.Errorf("first experiment %s not completed", first.Type)
	}
	var starts, recoveries int
	for _, a := range exp.Alerts {
		if a.Type != metrics.AlertChaos {
			continue
		}
		if a.AutoResolved {
			recoveries++
		} else {
			starts++
		}
	}
	if starts == 0 || recoveries == 0 {
		t.Errorf("chaos alerts: %d starts, %d recoveries", starts, recoveries)
	}
}

func TestRun_ResultRoundTrip(t *testing.T) {
	r, err := NewRun(fastConfig("export"), Options{Target: quickSim(0)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	r.Stop()
	r.Wait()

	data, err := json.Marshal(r.Result())
	if err != nil {
		t.Fatal(err)
	}
	var got Result
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != r.ID || got.State != StateCancelled {
		t.Errorf("round trip lost identity: %+v", got)
	}
	if got.Export.Snapshot.TotalRequests != r.Snapshot().TotalRequests {
		t.Error("round trip lost request counts")
	}
}

func TestManager_Registry(t *testing.T) {
	m := NewManager(zap.NewNop(), nil)

	r, err := m.Launch(context.Background(), fastConfig("managed"), Options{Target: quickSim(0)})
	if err != nil {
		t.Fatal(err)
	}
	got, err := m.Get(r.ID)
	if err != nil || got.ID != r.ID {
		t.Fatalf("Get(%s) = %v, %v", r.ID, got, err)
	}
	if _, err := m.Get("nope"); err == nil {
		t.Fatal("Get on unknown id succeeded")
	}
	if len(m.List()) != 1 {
		t.Fatalf("List() = %d runs, want 1", len(m.List()))
	}

	m.StopAll()
	if got.State() != StateCancelled {
		t.Fatalf("state after StopAll = %s", got.State())
	}
	// Finished runs stay listed for export.
	if len(m.List()) != 1 {
		t.Fatal("finished run dropped from registry")
	}
}

func TestManager_RejectsInvalidConfig(t *testing.T) {
	m := NewManager(nil, nil)
	cfg := fastConfig("bad")
	cfg.BaseRequestRate = 0
	if _, err := m.Create(cfg, Options{}); err == nil {
		t.Fatal("invalid config accepted")
	}
}
