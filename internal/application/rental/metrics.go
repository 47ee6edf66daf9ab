package rental

import "time"

// Metrics records wizard activity. Implementations must be safe for concurrent use.
type Metrics interface {
	DraftSaved(outcome string, latency time.Duration)
	DraftRestored(outcome string)
	ConflictDetected(stage string)
	ResultSuperseded(op string)
	SubmissionFinished(outcome string)
}

// Outcome labels
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeRestored  = "restored"
	OutcomeFresh     = "fresh"
	OutcomeDiscarded = "discarded"
	OutcomeFailed    = "failed"
	OutcomeConflict  = "conflict"
	OutcomeInvalid   = "invalid"
)

type nopMetrics struct{}

func (nopMetrics) DraftSaved(string, time.Duration) {}
func (nopMetrics) DraftRestored(string)             {}
func (nopMetrics) ConflictDetected(string)          {}
func (nopMetrics) ResultSuperseded(string)          {}
func (nopMetrics) SubmissionFinished(string)        {}
