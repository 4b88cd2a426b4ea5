// Package ai defines the provider-agnostic surface of the generative model
// used for resume analysis. Concrete providers live in subpackages.
package ai

import (
	"context"
	"errors"
)

// Closed set of model-layer error kinds. Callers match them with errors.Is.
var (
	// ErrConfigurationMissing indicates the model credential is absent.
	ErrConfigurationMissing = errors.New("model credential is not configured")
	// ErrInvalidResponse indicates the model answered, but not in the shape
	// the prompt demanded (e.g. malformed JSON).
	ErrInvalidResponse = errors.New("invalid model response")
	// ErrResponseBlocked indicates the response was withheld for safety or
	// policy reasons. No partial data is available.
	ErrResponseBlocked = errors.New("model response blocked")
	// ErrGenerationFailed indicates the model finished abnormally without
	// usable output.
	ErrGenerationFailed = errors.New("model generation failed")
	// ErrTransport indicates an API or network level failure.
	ErrTransport = errors.New("model transport failure")
)

// Completion is the outcome of a single prompt.
type Completion struct {
	Text string
	// Truncated is set when the model stopped at its output token limit.
	// The text is whatever was produced before the cutoff.
	Truncated bool
}

// Generator issues a single prompt to the model and returns its textual reply.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*Completion, error)
}
