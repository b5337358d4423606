package engine

import (
	"fmt"
	"strings"

	"github.com/ohcupload/ohcupload/internal/core"
)

// Action is what the batch does after a failed submission.
type Action int

const (
	ActionContinue Action = iota
	ActionAbort
)

// FailurePolicy decides how a batch reacts to a failed submission.
type FailurePolicy interface {
	Decide(outcome core.Outcome) Action
	Name() string
}

// AbortOnFailure stops the batch at the first failure. A failure nearly
// always means quota, outage or bad credentials, all of which recur.
type AbortOnFailure struct{}

// Decide implements FailurePolicy.
func (AbortOnFailure) Decide(outcome core.Outcome) Action {
	if outcome.Accepted() {
		return ActionContinue
	}
	return ActionAbort
}

// Name implements FailurePolicy.
func (AbortOnFailure) Name() string { return "abort" }

// SkipOnFailure keeps going after remote and transport errors. Throttling
// still aborts since every later attempt would wait out the cooldown anyway.
type SkipOnFailure struct{}

// Decide implements FailurePolicy.
func (SkipOnFailure) Decide(outcome core.Outcome) Action {
	if outcome.Kind == core.OutcomeThrottled {
		return ActionAbort
	}
	return ActionContinue
}

// Name implements FailurePolicy.
func (SkipOnFailure) Name() string { return "skip" }

// PolicyByName resolves a configured policy name.
func PolicyByName(name string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "abort":
		return AbortOnFailure{}, nil
	case "skip":
		return SkipOnFailure{}, nil
	default:
		return nil, fmt.Errorf("unknown failure policy %q (want abort or skip)", name)
	}
}
