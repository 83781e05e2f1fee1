package target

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/ratewatch/marathon/internal/metrics"
	"github.com/ratewatch/marathon/internal/scenario"
)

// Executor issues one request at a time against the target,
// classifies the outcome, and times it. Calls go through a circuit
// breaker whose state feeds the marathon health rules.
type Executor struct {
	target  Target
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewExecutor wraps the target with a per-call timeout and a circuit
// breaker that trips after five consecutive failures.
func NewExecutor(t Target, timeout time.Duration, logger *zap.Logger) *Executor {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "target",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Executor{target: t, timeout: timeout, breaker: cb, logger: logger}
}

// BreakerOpen reports whether the circuit breaker is currently open.
func (e *Executor) BreakerOpen() bool {
	return e.breaker.State() == gobreaker.StateOpen
}

// Do executes one descriptor and returns its classified outcome.
//
// Valid descriptors succeed when the target reports success.
// Adversarial descriptors are expected to be rejected by validation
// ("caught"); when the validator unexpectedly accepts one, the request
// is still executed and the target's answer is reported as ground
// truth, flagged as a validation bypass. Call-level failures are
// always severity high, category system.
func (e *Executor) Do(ctx context.Context, d scenario.Descriptor) metrics.Outcome {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	out := metrics.Outcome{
		Timestamp: start,
		Category:  d.Category,
		Severity:  metrics.Severity(d.Severity),
	}

	validation, err := e.validate(ctx, d.Payload)
	if err != nil {
		return e.systemFailure(out, start, err)
	}

	if d.Kind == scenario.KindAdversarial {
		if !validation.Valid {
			// The expected outcome: the validator caught the bad input.
			out.Success = true
			out.Caught = true
			out.ResponseTime = time.Since(start)
			return out
		}
		out.ValidationBypassed = true
		e.logger.Warn("adversarial input passed validation",
			zap.String("category", d.Category))
	} else if !validation.Valid {
		// A valid request the target wrongly rejected.
		out.Success = false
		out.ErrorKind = validation.Reason
		out.Category = "validation"
		if out.Severity == "" {
			out.Severity = metrics.SeverityMedium
		}
		out.ResponseTime = time.Since(start)
		return out
	}

	execution, err := e.execute(ctx, d.Payload)
	if err != nil {
		return e.systemFailure(out, start, err)
	}

	out.Success = execution.Success
	out.ResponseTime = time.Since(start)
	if !execution.Success {
		out.ErrorKind = execution.Reason
		if out.Severity == "" {
			out.Severity = metrics.SeverityMedium
		}
		if out.Category == "" {
			out.Category = "execution"
		}
	}
	return out
}

func (e *Executor) validate(ctx context.Context, payload string) (ValidationResult, error) {
	res, err := e.breaker.Execute(func() (interface{}, error) {
		return e.target.Validate(ctx, payload)
	})
	if err != nil {
		return ValidationResult{}, err
	}
	return res.(ValidationResult), nil
}

func (e *Executor) execute(ctx context.Context, payload string) (ExecutionResult, error) {
	res, err := e.breaker.Execute(func() (interface{}, error) {
		return e.target.Execute(ctx, payload)
	})
	if err != nil {
		return ExecutionResult{}, err
	}
	return res.(ExecutionResult), nil
}

// systemFailure classifies a call-level error: severity high, category
// system, counted as uncaught regardless of the descriptor's own tags.
func (e *Executor) systemFailure(out metrics.Outcome, start time.Time, err error) metrics.Outcome {
	out.Success = false
	out.Uncaught = true
	out.Severity = metrics.SeverityHigh
	out.Category = "system"
	out.ErrorKind = err.Error()
	out.ResponseTime = time.Since(start)
	return out
}
