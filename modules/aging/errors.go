package aging

import (
	"errors"
	"fmt"
)

// Regenerate is only legal from a terminal status.
var ErrRegenerateNotAllowed = errors.New("simulation is not in a terminal state")

// Another caller holds the run gate for this scan.
var ErrRunInFlight = errors.New("a simulation run is already in flight for this scan")

// PreparationError means the source image could not be fetched, decoded or
// re-encoded. Fatal to the whole run - no horizon can proceed without it.
type PreparationError struct {
	Path string
	Err  error
}

func (e *PreparationError) Error() string {
	return fmt.Sprintf("image preparation failed for %s: %v", e.Path, e.Err)
}

func (e *PreparationError) Unwrap() error {
	return e.Err
}

// GenerationError reasons. Transport-level failures are generation errors
// too - both are recoverable by the orchestrator's per-horizon retries.
const (
	ReasonTransport     = "transport"
	ReasonRateLimited   = "rate_limited"
	ReasonContentFilter = "content_filter"
	ReasonEmptyResponse = "empty_response"
	ReasonInvalidImage  = "invalid_image"
)

// GenerationError is scoped to a single horizon attempt.
type GenerationError struct {
	Reason  string
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed (%s): %s: %v", e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("generation failed (%s): %s", e.Reason, e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
