package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is wrapped by every ValidationError.
	ErrValidation = errors.New("invalid workflow definition")

	// ErrNotFound is wrapped by the workflow and instance lookup errors.
	ErrNotFound = errors.New("not found")

	// ErrWorkflowNotFound is returned when no definition is registered under a name.
	ErrWorkflowNotFound = fmt.Errorf("workflow %w", ErrNotFound)

	// ErrInstanceNotFound is returned when an operation requires an existing instance.
	ErrInstanceNotFound = fmt.Errorf("instance %w", ErrNotFound)

	// ErrInvalidTransition is wrapped by InvalidTransitionError.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrGuardFailed is wrapped by GuardFailedError.
	ErrGuardFailed = errors.New("guard failed")
)

// Validation rules reported by ValidationError.
const (
	RuleNameRequired           = "name_required"
	RuleEntityTypeRequired     = "entity_type_required"
	RuleInitialStateRequired   = "initial_state_required"
	RuleStatesRequired         = "states_required"
	RuleInitialStateUndeclared = "initial_state_undeclared"
	RuleFromRequired           = "from_required"
	RuleFromStateUndeclared    = "from_state_undeclared"
	RuleToStateUndeclared      = "to_state_undeclared"
	RuleEventRequired          = "event_required"
	RuleCallbackRequired       = "callback_required"
	RuleEntityIDRequired       = "entity_id_required"
)

// ValidationError reports the first rule a workflow definition violates.
type ValidationError struct {
	Workflow string
	Rule     string
	Detail   string
}

func (e *ValidationError) Error() string {
	if e.Workflow == "" {
		return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Rule, e.Detail)
	}
	return fmt.Sprintf("%s %q: %s: %s", ErrValidation, e.Workflow, e.Rule, e.Detail)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// InvalidTransitionError is returned when no transition leaves State on Event.
type InvalidTransitionError struct {
	Workflow string
	State    string
	Event    string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: no transition from state %q on event %q in workflow %q",
		ErrInvalidTransition, e.State, e.Event, e.Workflow)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// GuardFailedError is returned when a guard rejects a transition.
// Cause is set when the guard errored, panicked or timed out rather than returning false.
type GuardFailedError struct {
	Workflow string
	From     string
	To       string
	Event    string
	Guard    string
	Cause    error
}

func (e *GuardFailedError) Error() string {
	msg := fmt.Sprintf("%s: transition %s -> %s on event %q in workflow %q rejected by guard %q",
		ErrGuardFailed, e.From, e.To, e.Event, e.Workflow, e.Guard)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *GuardFailedError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrGuardFailed}
	}
	return []error{ErrGuardFailed, e.Cause}
}
