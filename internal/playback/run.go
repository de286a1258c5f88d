package playback

import (
	"time"

	"github.com/tapedeck/tapedeck/internal/action"
)

// Status is the overall state of a playback run.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
)

// Terminal reports whether the status ends a run.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusAborted:
		return true
	}
	return false
}

// Outcome is the per-action result category.
type Outcome string

const (
	// OutcomeSucceeded means the action executed, possibly after
	// retried verification (Retries > 0).
	OutcomeSucceeded Outcome = "succeeded"

	// OutcomeFailed means the action exhausted retries or errored
	// fatally, ending the run.
	OutcomeFailed Outcome = "failed"

	// OutcomeSkipped means the action never started because the run
	// ended first.
	OutcomeSkipped Outcome = "skipped"
)

// ActionResult records how one action played back. Error holds a
// message only; secret material never appears in any field.
type ActionResult struct {
	ActionID string      `json:"action_id"`
	Type     action.Type `json:"type"`
	Outcome  Outcome     `json:"outcome"`

	// Retries counts verification attempts beyond the first.
	Retries int `json:"retries,omitempty"`

	// MatchScore is the final verification similarity, when verified.
	MatchScore float64 `json:"match_score,omitempty"`

	// StabilizedMS is the measured settle time after a navigation
	// action; -1 records a stability timeout (warning, not failure).
	StabilizedMS int64 `json:"stabilized_ms,omitempty"`

	// Screenshot references an artifact captured by this action:
	// a screenshot action's capture, or failure evidence.
	Screenshot *action.ScreenshotRef `json:"screenshot,omitempty"`

	Error string `json:"error,omitempty"`
}

// Run is the ephemeral record of one playback execution. The engine
// mutates it as actions execute and hands it to external collaborators
// at any terminal state; the engine itself does not persist it.
type Run struct {
	ID            string    `json:"id"`
	RecordingID   string    `json:"recording_id"`
	RecordingName string    `json:"recording_name"`
	Status        Status    `json:"status"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at,omitzero"`

	// StartupStabilizedMS measures the settle time after opening the
	// recording's starting URL, when one is set.
	StartupStabilizedMS int64 `json:"startup_stabilized_ms,omitempty"`

	Results []ActionResult `json:"results"`

	CompletedActions int    `json:"completed_actions"`
	FailedActions    int    `json:"failed_actions"`
	Error            string `json:"error,omitempty"`
}

// Duration is the wall time the run took so far or in total.
func (r *Run) Duration(now time.Time) time.Duration {
	if !r.CompletedAt.IsZero() {
		return r.CompletedAt.Sub(r.StartedAt)
	}
	return now.Sub(r.StartedAt)
}
