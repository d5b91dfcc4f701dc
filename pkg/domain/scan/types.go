// Package scan provides the scan job and scan task aggregates and their
// shared state machine.
package scan

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ScanType is the kind of work a job or task performs.
type ScanType string

const (
	TypeConnect     ScanType = "connect"
	TypeInspect     ScanType = "inspect"
	TypeFingerprint ScanType = "fingerprint"
)

// AllScanTypes returns all valid scan types.
func AllScanTypes() []ScanType {
	return []ScanType{TypeConnect, TypeInspect, TypeFingerprint}
}

// IsValid checks if the scan type is valid.
func (t ScanType) IsValid() bool {
	return slices.Contains(AllScanTypes(), t)
}

// String returns the string representation.
func (t ScanType) String() string {
	return string(t)
}

// ParseScanType parses a string into a ScanType.
func ParseScanType(s string) (ScanType, error) {
	t := ScanType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("invalid scan type: %s", s)
	}
	return t, nil
}

// Status is shared by ScanJob and ScanTask.
type Status string

const (
	StatusCreated   Status = "created"
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCanceled  Status = "canceled"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// AllStatuses returns all valid statuses.
func AllStatuses() []Status {
	return []Status{StatusCreated, StatusPending, StatusRunning, StatusPaused, StatusCanceled, StatusCompleted, StatusFailed}
}

// IsValid checks if the status is a valid status value.
func (s Status) IsValid() bool {
	return slices.Contains(AllStatuses(), s)
}

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCanceled, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}

// Transition names an operation on the state machine.
type Transition string

const (
	TransitionQueue    Transition = "queue"
	TransitionStart    Transition = "start"
	TransitionRestart  Transition = "restart"
	TransitionPause    Transition = "pause"
	TransitionCancel   Transition = "cancel"
	TransitionComplete Transition = "complete"
	TransitionFail     Transition = "fail"
)

// jobTransitions lists the states a job transition may be applied from.
var jobTransitions = map[Transition][]Status{
	TransitionQueue:    {StatusCreated},
	TransitionStart:    {StatusPending},
	TransitionRestart:  {StatusPending, StatusPaused, StatusRunning},
	TransitionPause:    {StatusPending, StatusRunning},
	TransitionCancel:   {StatusCreated, StatusPending, StatusRunning, StatusPaused},
	TransitionComplete: {StatusRunning},
	TransitionFail:     {StatusRunning},
}

// taskTransitions lists the states a task transition may be applied from.
var taskTransitions = map[Transition][]Status{
	TransitionQueue:    {StatusCreated},
	TransitionStart:    {StatusPending},
	TransitionRestart:  {StatusPending, StatusPaused},
	TransitionPause:    {StatusCreated, StatusPending, StatusRunning},
	TransitionCancel:   {StatusCreated, StatusPending, StatusRunning, StatusPaused},
	TransitionComplete: {StatusRunning},
	TransitionFail:     {StatusRunning},
}

// target maps a transition to the state it lands in.
var transitionTarget = map[Transition]Status{
	TransitionQueue:    StatusPending,
	TransitionStart:    StatusRunning,
	TransitionRestart:  StatusRunning,
	TransitionPause:    StatusPaused,
	TransitionCancel:   StatusCanceled,
	TransitionComplete: StatusCompleted,
	TransitionFail:     StatusFailed,
}

// InvalidTransitionError reports a transition attempted from a state it
// is not valid for. The state is left unchanged; callers log at ERROR.
type InvalidTransitionError struct {
	Entity     string
	Transition Transition
	From       Status
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s from state %s", e.Entity, e.Transition, e.From)
}

// NoOpTransitionError reports an idempotent transition (target equals
// current state). Callers log at DEBUG and carry on.
type NoOpTransitionError struct {
	Entity     string
	Transition Transition
	Status     Status
}

// Error implements the error interface.
func (e *NoOpTransitionError) Error() string {
	return fmt.Sprintf("%s: %s is a no-op, already %s", e.Entity, e.Transition, e.Status)
}

// checkTransition validates a transition against a rule table.
// A nil error means the transition may be applied.
func checkTransition(entity string, rules map[Transition][]Status, current Status, tr Transition) error {
	if transitionTarget[tr] == current && tr != TransitionRestart {
		return &NoOpTransitionError{Entity: entity, Transition: tr, Status: current}
	}
	if !slices.Contains(rules[tr], current) {
		return &InvalidTransitionError{Entity: entity, Transition: tr, From: current}
	}
	return nil
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var e *InvalidTransitionError
	return errors.As(err, &e)
}

// IsNoOpTransition reports whether err is a NoOpTransitionError.
func IsNoOpTransition(err error) bool {
	var e *NoOpTransitionError
	return errors.As(err, &e)
}
