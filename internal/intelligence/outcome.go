package intelligence

import (
	"errors"

	"github.com/alexanderramin/sortir/internal/llm"
)

// Outcome reports how an optional capability (judge, digest writer) fared.
// Every non-OK outcome is paired with the deterministic fallback.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeSkipped     Outcome = "skipped"     // capability not invoked (empty input)
	OutcomeUnavailable Outcome = "unavailable" // not configured or unreachable
	OutcomeErrored     Outcome = "errored"     // call failed: timeout, HTTP error, retries exhausted
	OutcomeInvalid     Outcome = "invalid"     // call succeeded, output unusable
)

// UsedFallback reports whether the deterministic path produced the result.
func (o Outcome) UsedFallback() bool {
	return o != OutcomeOK && o != OutcomeSkipped
}

// OutcomeFromError maps an llm error onto an Outcome.
func OutcomeFromError(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, llm.ErrNotConfigured), errors.Is(err, llm.ErrUnavailable):
		return OutcomeUnavailable
	case errors.Is(err, llm.ErrInvalidOutput):
		return OutcomeInvalid
	default:
		return OutcomeErrored
	}
}
