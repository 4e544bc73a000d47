package ai

import (
	"context"
	"errors"
	"fmt"
)

// ErrQuotaExhausted marks a generation request that kept hitting the
// provider's rate limit until the retry budget ran out.
var ErrQuotaExhausted = errors.New("generation quota exhausted")

// QuotaHint is shown to users when ErrQuotaExhausted reaches the UI.
const QuotaHint = "retry in 1-2 minutes, shorten the job description, or raise the quota/billing of the project"

// Generator issues a single logical generation request and returns its text.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// QuotaExhaustedError carries the last rate-limit failure after all attempts.
type QuotaExhaustedError struct {
	Attempts int
	Err      error
}

func (e *QuotaExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrQuotaExhausted, e.Attempts, e.Err)
}

func (e *QuotaExhaustedError) Unwrap() []error {
	return []error{ErrQuotaExhausted, e.Err}
}
