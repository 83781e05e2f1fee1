package telemetry

import (
	"testing"
	"time"
)

func TestRuntimeSampler_ReadsProcessStats(t *testing.T) {
	s := NewRuntimeSampler()
	sample := s.Sample(time.Now())

	if sample.MemoryMB <= 0 {
		t.Error("expected positive heap usage")
	}
	if sample.Goroutines < 1 {
		t.Error("expected at least one goroutine")
	}
	if sample.CPUPercent < 0 || sample.CPUPercent > 100 {
		t.Errorf("cpu estimate %f outside [0,100]", sample.CPUPercent)
	}
}

func TestSimulatedSampler_Deterministic(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a := NewSimulatedSampler(5, start)
	b := NewSimulatedSampler(5, start)

	for i := 0; i < 50; i++ {
		now := start.Add(time.Duration(i) * time.Minute)
		if a.Sample(now) != b.Sample(now) {
			t.Fatalf("same seed diverged at sample %d", i)
		}
	}
}

func TestSimulatedSampler_DriftModelsLeak(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewSimulatedSampler(9, start)
	s.MemoryDrift = 10 // MB per hour
	s.NoiseScale = 0

	early := s.Sample(start.Add(time.Hour))
	late := s.Sample(start.Add(10 * time.Hour))

	if late.MemoryMB-early.MemoryMB < 60 {
		t.Errorf("drift not visible: early=%.1f late=%.1f", early.MemoryMB, late.MemoryMB)
	}
}

func TestSimulatedSampler_Bounds(t *testing.T) {
	start := time.Now()
	s := NewSimulatedSampler(123, start)
	for i := 0; i < 200; i++ {
		sample := s.Sample(start.Add(time.Duration(i) * 30 * time.Minute))
		if sample.CPUPercent < 0 || sample.CPUPercent > 100 {
			t.Errorf("cpu %f outside [0,100]", sample.CPUPercent)
		}
		if sample.DiskPercent < 0 || sample.DiskPercent > 100 {
			t.Errorf("disk %f outside [0,100]", sample.DiskPercent)
		}
		if sample.CacheHitPercent < 0 || sample.CacheHitPercent > 100 {
			t.Errorf("cache %f outside [0,100]", sample.CacheHitPercent)
		}
	}
}
