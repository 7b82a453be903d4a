package domain

import "time"

// TransitionContext is built for every transition attempt and handed to each guard and hook.
// It is never persisted.
type TransitionContext struct {
	EntityID     string
	EntityType   string
	CurrentState string
	TargetState  string
	Event        string
	Data         map[string]any
	UserID       string
	Timestamp    time.Time
}

// TransitionOptions carries the caller-supplied inputs of a transition request.
type TransitionOptions struct {
	UserID string
	Data   map[string]any
	// Force skips guard evaluation. Hooks still run.
	Force bool
}

// WorkflowStats summarizes the instances of one workflow.
type WorkflowStats struct {
	WorkflowName      string         `json:"workflow_name"`
	TotalInstances    int            `json:"total_instances"`
	StateDistribution map[string]int `json:"state_distribution"`
}
