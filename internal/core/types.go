package core

import "time"

// Artifact is one captured handshake file in hashcat 22000 format.
type Artifact struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	MarkerPath string `json:"marker_path"`
	// CaptureName is the raw capture file name the host whitelists against.
	CaptureName string `json:"capture_name"`
}

// OutcomeKind classifies the result of a single submission attempt.
type OutcomeKind string

const (
	OutcomeAccepted       OutcomeKind = "accepted"
	OutcomeThrottled      OutcomeKind = "throttled"
	OutcomeRemoteError    OutcomeKind = "remote_error"
	OutcomeTransportError OutcomeKind = "transport_error"
)

// Outcome reports what happened to one submission.
type Outcome struct {
	Kind         OutcomeKind   `json:"kind"`
	StatusCode   int           `json:"status_code,omitempty"`
	Message      string        `json:"message,omitempty"`
	RetryAfter   time.Duration `json:"retry_after,omitempty"`
	SubmissionID string        `json:"submission_id"`
	SubmittedAt  time.Time     `json:"submitted_at"`
}

// Accepted reports whether the remote service took the artifact.
func (o Outcome) Accepted() bool {
	return o.Kind == OutcomeAccepted
}

// Failed reports whether the outcome is one of the failure kinds.
func (o Outcome) Failed() bool {
	return o.Kind != OutcomeAccepted
}

// QuotaState captures the process-wide submission quota.
type QuotaState struct {
	UploadsThisWindow int       `json:"uploads_this_window"`
	WindowStart       time.Time `json:"window_start"`
	LastSubmissionAt  time.Time `json:"last_submission_at"`
	CooldownActive    bool      `json:"cooldown_active"`
}

// Credentials authenticate submissions against the cracking service.
type Credentials struct {
	APIKey string `json:"-"`
	Email  string `json:"email"`
}

// RunSummary describes one batch invocation.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Candidates  int       `json:"candidates"`
	Accepted    int       `json:"accepted"`
	Skipped     int       `json:"skipped"`
	Attempted   int       `json:"attempted"`
	Aborted     bool      `json:"aborted"`
	AbortReason string    `json:"abort_reason,omitempty"`
	LastOutcome *Outcome  `json:"last_outcome,omitempty"`
}
