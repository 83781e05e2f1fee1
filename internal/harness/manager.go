package harness

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ratewatch/marathon/internal/config"
)

// Manager owns the run registry. Runs stay registered after they
// finish so their exports remain retrievable.
type Manager struct {
	logger   *zap.Logger
	registry *prometheus.Registry

	mu       sync.RWMutex
	runs     map[string]*Run
	defaults Options
}

// NewManager creates a manager. registry may be nil to disable
// instrument registration.
func NewManager(logger *zap.Logger, registry *prometheus.Registry) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		logger:   logger,
		registry: registry,
		runs:     make(map[string]*Run),
	}
}

// SetDefaults installs collaborators applied to every run whose
// options leave them unset. Call before serving requests.
func (m *Manager) SetDefaults(opts Options) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaults = opts
}

// Create builds and registers a run without starting it.
func (m *Manager) Create(cfg *config.RunConfig, opts Options) (*Run, error) {
	m.mu.RLock()
	def := m.defaults
	m.mu.RUnlock()
	if opts.Target == nil {
		opts.Target = def.Target
	}
	if opts.Sampler == nil {
		opts.Sampler = def.Sampler
	}
	if opts.Fixtures == nil {
		opts.Fixtures = def.Fixtures
	}
	if opts.Registry == nil {
		opts.Registry = m.registry
	}
	r, err := NewRun(cfg, opts, m.logger)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.runs[r.ID] = r
	m.mu.Unlock()
	return r, nil
}

// Launch creates and immediately starts a run.
func (m *Manager) Launch(ctx context.Context, cfg *config.RunConfig, opts Options) (*Run, error) {
	r, err := m.Create(cfg, opts)
	if err != nil {
		return nil, err
	}
	if err := r.Start(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns the run with the given id.
func (m *Manager) Get(id string) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("harness: run %s not found", id)
	}
	return r, nil
}

// List returns all registered runs ordered by start time. startedAt is
// immutable after NewRun, so the read needs no per-run lock.
func (m *Manager) List() []*Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Run, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].startedAt.Before(out[j].startedAt)
	})
	return out
}

// StopAll cancels every non-terminal run and waits for them to drain.
// Used on shutdown.
func (m *Manager) StopAll() {
	m.mu.RLock()
	runs := make([]*Run, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, r)
	}
	m.mu.RUnlock()

	for _, r := range runs {
		if st := r.State(); !st.terminal() && st != StateIdle {
			r.Stop()
			r.Wait()
		}
	}
}
