package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventWorkflowDefined    EventType = "workflow.defined"
	EventInstanceCreated    EventType = "instance.created"
	EventInstanceReset      EventType = "instance.reset"
	EventInstanceDeleted    EventType = "instance.deleted"
	EventTransitionExecuted EventType = "transition.executed"
	EventStateEntered       EventType = "state.entered"
)

// StateTopic is the topic of the state-specific event published when an
// instance of workflowName enters state.
func StateTopic(workflowName, state string) string {
	return "workflow." + workflowName + ".state." + state
}

// TransitionRecord describes an executed state change.
type TransitionRecord struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Event string `json:"event"`
}

// Event is a notification published by the engine.
// Topic equals Type except for state events, which use StateTopic.
type Event struct {
	ID           string            `json:"id"`
	Topic        string            `json:"topic"`
	Type         EventType         `json:"type"`
	Timestamp    time.Time         `json:"timestamp"`
	WorkflowName string            `json:"workflow_name"`
	EntityID     string            `json:"entity_id,omitempty"`
	Instance     *WorkflowInstance `json:"instance,omitempty"`
	Transition   *TransitionRecord `json:"transition,omitempty"`
	// Replaced is set on workflow.defined when an existing definition was overwritten.
	Replaced bool `json:"replaced,omitempty"`
}

// HookPhase tells whether a hook ran before or after the state change.
type HookPhase string

const (
	PhaseBefore HookPhase = "before"
	PhaseAfter  HookPhase = "after"
)

// FailureReason classifies why a transition request did not complete.
type FailureReason string

const (
	FailureInvalidTransition FailureReason = "invalid_transition"
	FailureGuard             FailureReason = "guard_failed"
	FailureBeforeHook        FailureReason = "before_hook"
	FailureAfterHook         FailureReason = "after_hook"
	FailureStore             FailureReason = "store"
	FailureNotFound          FailureReason = "not_found"
	FailureValidation        FailureReason = "validation"
)

// GuardResult reports one guard evaluation.
type GuardResult struct {
	WorkflowName string
	EntityID     string
	Event        string
	Guard        string
	Allowed      bool
	Err          error
	Duration     time.Duration
}

// HookResult reports one hook execution.
type HookResult struct {
	WorkflowName string
	EntityID     string
	Event        string
	Hook         string
	Phase        HookPhase
	Err          error
	Duration     time.Duration
}

// TransitionFailure reports a transition request that returned an error.
type TransitionFailure struct {
	WorkflowName string
	EntityID     string
	Event        string
	Reason       FailureReason
	Err          error
}

// LifecycleHooks defines callbacks for engine observability.
// They are invoked synchronously; nil callbacks are skipped.
type LifecycleHooks struct {
	OnGuardEvaluated   func(context.Context, *GuardResult)
	OnHookExecuted     func(context.Context, *HookResult)
	OnTransitionFailed func(context.Context, *TransitionFailure)
}
