package scorer

import "fmt"

// ScoringError means a sequence could not be measured, e.g. no coverage
// driver is configured or its output is unreadable. The record returned
// alongside is kept with Unmeasured set.
type ScoringError struct {
	Reason string
	Err    error
}

func (e *ScoringError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scoring failed: %s: %v", e.Reason, e.Err)
	}
	return "scoring failed: " + e.Reason
}

func (e *ScoringError) Unwrap() error { return e.Err }
