// Package scenario builds the weighted request mix a run consumes: a
// shuffled sequence of valid and adversarial request descriptors drawn
// cyclically from per-category fixture pools.
package scenario

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
)

// Kind distinguishes valid requests from adversarial ones.
type Kind string

const (
	KindValid       Kind = "valid"
	KindAdversarial Kind = "adversarial"
)

// Descriptor describes one request to issue. Immutable.
type Descriptor struct {
	Kind     Kind   `json:"kind"`
	Category string `json:"category,omitempty"`
	Payload  string `json:"payload"`
	Severity string `json:"severity,omitempty"`
}

// Sequence is a finite ordered descriptor list consumed cyclically.
// It is regenerated per run and never reshuffled mid-run.
type Sequence struct {
	descriptors []Descriptor
	mu          sync.Mutex
	index       int
}

// Next returns the next descriptor, wrapping at the end.
func (s *Sequence) Next() Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.descriptors[s.index%len(s.descriptors)]
	s.index++
	return d
}

// Len returns the sequence length.
func (s *Sequence) Len() int { return len(s.descriptors) }

// Descriptors returns the underlying ordered slice (read-only use).
func (s *Sequence) Descriptors() []Descriptor { return s.descriptors }

// Builder assembles sequences from a fixture source.
type Builder struct {
	fixtures FixtureSource
	rng      *rand.Rand
}

// FixtureSource provides payload pools per category. The empty
// category name addresses the valid pool.
type FixtureSource interface {
	Pool(category string) []Fixture
}

// Fixture is one reusable request payload with its declared severity.
type Fixture struct {
	Payload  string `json:"payload"`
	Severity string `json:"severity,omitempty"`
}

// NewBuilder creates a builder. A nil fixture source falls back to the
// built-in currency-conversion fixtures. The seed makes sequence
// generation reproducible in tests.
func NewBuilder(fixtures FixtureSource, seed int64) *Builder {
	if fixtures == nil {
		fixtures = builtinFixtures{}
	}
	return &Builder{
		fixtures: fixtures,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Build creates a shuffled sequence of about 100 descriptors matching
// the configured mix: floor(weight) descriptors per adversarial
// category plus floor(validPercent) valid ones, each drawn cyclically
// from its pool, then Fisher-Yates shuffled to avoid category runs.
func (b *Builder) Build(validPercent float64, weights map[string]float64) (*Sequence, error) {
	if validPercent < 0 || validPercent > 100 {
		return nil, fmt.Errorf("scenario: valid percent %.1f outside [0,100]", validPercent)
	}

	var out []Descriptor

	validPool := b.fixtures.Pool("")
	if len(validPool) == 0 {
		return nil, fmt.Errorf("scenario: no valid fixtures available")
	}
	validCount := int(math.Floor(validPercent))
	for i := 0; i < validCount; i++ {
		f := validPool[i%len(validPool)]
		out = append(out, Descriptor{Kind: KindValid, Payload: f.Payload})
	}

	for _, category := range sortedKeys(weights) {
		weight := weights[category]
		if weight <= 0 {
			continue
		}
		pool := b.fixtures.Pool(category)
		if len(pool) == 0 {
			return nil, fmt.Errorf("scenario: no fixtures for category %q", category)
		}
		count := int(math.Floor(weight))
		for i := 0; i < count; i++ {
			f := pool[i%len(pool)]
			out = append(out, Descriptor{
				Kind:     KindAdversarial,
				Category: category,
				Payload:  f.Payload,
				Severity: f.Severity,
			})
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("scenario: empty mix, check weights")
	}

	// Fisher-Yates.
	for i := len(out) - 1; i > 0; i-- {
		j := b.rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}

	return &Sequence{descriptors: out}, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
