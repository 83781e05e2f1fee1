// Package target defines the boundary to the system under test and the
// executor that drives it. The harness treats the target as a black
// box: it only measures and classifies results.
package target

import "context"

// ValidationResult is the target's verdict on an input.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// ExecutionResult is the target's outcome for an accepted request.
type ExecutionResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// Target is the system under test. Both operations are potentially
// latent and fallible; a returned error means the call itself failed
// (transport, timeout, crash) rather than the input being rejected.
type Target interface {
	Validate(ctx context.Context, payload string) (ValidationResult, error)
	Execute(ctx context.Context, payload string) (ExecutionResult, error)
}
