// Package llm invokes a language model for a batch of prompts.
//
// Invocation sits between task.GeneratePrompts and task.ParseResponses. Every
// Invoker returns exactly one response per prompt, in prompt order.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Invoker sends prompts to a model.
type Invoker interface {
	Invoke(ctx context.Context, prompts []string) ([]string, error)
}

var (
	// ErrOutputMismatch is returned when a model produced a different number of
	// responses than prompts.
	ErrOutputMismatch = errors.New("model returned a different number of responses than prompts")

	// ErrEmptyResponse is returned when the model reply carries no choices.
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// RateLimitError reports a 429 from the model endpoint.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	StatusCode int
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// IsRateLimitError unwraps err to a RateLimitError.
func IsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// CheckOutputs enforces 1:1 positional correspondence.
func CheckOutputs(prompts, responses []string) error {
	if len(prompts) != len(responses) {
		return fmt.Errorf("%w: %d prompts, %d responses", ErrOutputMismatch, len(prompts), len(responses))
	}
	return nil
}
