package target

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SimConfig tunes the simulated currency-conversion target.
type SimConfig struct {
	FailureRate float64       // fraction of accepted executions that fail
	BaseLatency time.Duration // mean simulated service latency
	Jitter      time.Duration // max extra random latency
	Seed        int64
}

// DefaultSimConfig returns a healthy target: 1% failures, ~5ms calls.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		FailureRate: 0.01,
		BaseLatency: 5 * time.Millisecond,
		Jitter:      3 * time.Millisecond,
		Seed:        time.Now().UnixNano(),
	}
}

var knownCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true, "CHF": true,
	"CAD": true, "AUD": true, "NZD": true, "SEK": true, "NOK": true,
}

type conversionRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// Sim is an in-process currency-conversion target used for tests and
// demo runs. Validation is deterministic; execution failures and
// latency are drawn from a seeded source so runs are reproducible.
type Sim struct {
	cfg SimConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSim creates a simulated target.
func NewSim(cfg SimConfig) *Sim {
	return &Sim{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// Validate checks a conversion payload the way the real service does:
// well-formed JSON, known 3-letter uppercase codes, a positive decimal
// amount of sane size, no control characters.
func (s *Sim) Validate(ctx context.Context, payload string) (ValidationResult, error) {
	if err := s.sleep(ctx); err != nil {
		return ValidationResult{}, err
	}

	if len(payload) > 2048 {
		return ValidationResult{Reason: "payload too large"}, nil
	}
	if strings.ContainsRune(payload, 0) {
		return ValidationResult{Reason: "control character in payload"}, nil
	}

	var req conversionRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return ValidationResult{Reason: "malformed request body"}, nil
	}
	if !validCode(req.From) {
		return ValidationResult{Reason: "unknown source currency"}, nil
	}
	if !validCode(req.To) {
		return ValidationResult{Reason: "unknown target currency"}, nil
	}
	if strings.ContainsAny(req.Amount, "<>';$\\") {
		return ValidationResult{Reason: "suspicious characters in amount"}, nil
	}
	amount, err := strconv.ParseFloat(req.Amount, 64)
	if err != nil || amount != amount { // rejects NaN
		return ValidationResult{Reason: "amount is not a number"}, nil
	}
	if amount <= 0 {
		return ValidationResult{Reason: "amount must be positive"}, nil
	}
	if amount > 1e12 {
		return ValidationResult{Reason: "amount exceeds limit"}, nil
	}
	return ValidationResult{Valid: true}, nil
}

// Execute performs the conversion, failing at the configured rate.
func (s *Sim) Execute(ctx context.Context, payload string) (ExecutionResult, error) {
	if err := s.sleep(ctx); err != nil {
		return ExecutionResult{}, err
	}

	s.mu.Lock()
	fail := s.rng.Float64() < s.cfg.FailureRate
	s.mu.Unlock()

	if fail {
		return ExecutionResult{Success: false, Reason: "rate provider unavailable"}, nil
	}
	return ExecutionResult{Success: true}, nil
}

func (s *Sim) sleep(ctx context.Context) error {
	d := s.cfg.BaseLatency
	if s.cfg.Jitter > 0 {
		s.mu.Lock()
		d += time.Duration(s.rng.Int63n(int64(s.cfg.Jitter)))
		s.mu.Unlock()
	}
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func validCode(code string) bool {
	return len(code) == 3 && code == strings.ToUpper(code) && knownCurrencies[code]
}
