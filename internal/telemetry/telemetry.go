// Package telemetry supplies resource-usage samples to the analyzers.
// The Sampler interface keeps the source pluggable: production runs
// read live process stats, tests feed deterministic synthetic series.
package telemetry

import (
	"math"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/ratewatch/marathon/internal/metrics"
)

// Sampler produces one resource sample per call.
type Sampler interface {
	Sample(now time.Time) metrics.TrendSample
}

// RuntimeSampler reads live process statistics. Memory and goroutine
// figures come from the Go runtime; the host-level signals the process
// cannot observe directly (network, disk, cache) are modeled from the
// process's own activity level.
type RuntimeSampler struct {
	mu     sync.Mutex
	lastGC uint32
}

// NewRuntimeSampler creates a sampler for the current process.
func NewRuntimeSampler() *RuntimeSampler {
	return &RuntimeSampler{}
}

// Sample captures the current resource usage.
func (r *RuntimeSampler) Sample(now time.Time) metrics.TrendSample {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	r.mu.Lock()
	gcDelta := ms.NumGC - r.lastGC
	r.lastGC = ms.NumGC
	r.mu.Unlock()

	goroutines := runtime.NumGoroutine()
	cpu := float64(goroutines) / float64(runtime.GOMAXPROCS(0)) * 10
	if gcDelta > 0 {
		cpu += float64(gcDelta) * 2
	}
	if cpu > 100 {
		cpu = 100
	}

	return metrics.TrendSample{
		Timestamp:        now,
		MemoryMB:         float64(ms.HeapAlloc) / (1024 * 1024),
		CPUPercent:       cpu,
		NetworkLatencyMs: 0,
		DiskPercent:      0,
		CacheHitPercent:  100,
		Goroutines:       goroutines,
	}
}

// SimulatedSampler generates a deterministic synthetic resource series:
// a smooth daily cycle plus optional linear drift and seeded noise. It
// backs demo mode and lets the leak and stability analyzers be tested
// against controlled inputs.
type SimulatedSampler struct {
	mu  sync.Mutex
	rng *rand.Rand

	start        time.Time
	BaseMemoryMB float64
	MemoryDrift  float64 // MB per hour, models a slow leak
	BaseCPU      float64
	NoiseScale   float64
}

// NewSimulatedSampler creates a sampler with the given seed and a
// healthy default profile.
func NewSimulatedSampler(seed int64, start time.Time) *SimulatedSampler {
	return &SimulatedSampler{
		rng:          rand.New(rand.NewSource(seed)),
		start:        start,
		BaseMemoryMB: 128,
		MemoryDrift:  0,
		BaseCPU:      35,
		NoiseScale:   1,
	}
}

// Sample produces the synthetic reading for the given instant.
func (s *SimulatedSampler) Sample(now time.Time) metrics.TrendSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	noise := func(scale float64) float64 { return (s.rng.Float64() - 0.5) * 2 * scale * s.NoiseScale }

	elapsedHours := now.Sub(s.start).Hours()
	daily := math.Sin(2 * math.Pi * float64(now.Hour()) / 24)

	mem := s.BaseMemoryMB + s.MemoryDrift*elapsedHours + daily*8 + noise(4)
	cpu := clamp(s.BaseCPU+daily*12+noise(6), 0, 100)
	net := clamp(45+daily*20+noise(10), 1, 2000)
	disk := clamp(30+elapsedHours*0.05+noise(2), 0, 100)
	cache := clamp(92-daily*4+noise(3), 0, 100)

	return metrics.TrendSample{
		Timestamp:        now,
		MemoryMB:         mem,
		CPUPercent:       cpu,
		NetworkLatencyMs: net,
		DiskPercent:      disk,
		CacheHitPercent:  cache,
		Goroutines:       40 + int(daily*10),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
