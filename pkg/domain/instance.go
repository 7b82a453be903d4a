package domain

import (
	"maps"
	"time"
)

// Reserved history events.
const (
	EventInit  = "init"
	EventReset = "reset"
)

// InstanceKey builds the composite identifier of an instance.
func InstanceKey(workflowName, entityID string) string {
	return workflowName + ":" + entityID
}

// HistoryEntry is an immutable record of one executed state change.
type HistoryEntry struct {
	// From is nil only for the synthetic init entry.
	From      *string        `json:"from"`
	To        string         `json:"to"`
	Event     string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	UserID    string         `json:"user_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// WorkflowInstance is the live state of one entity under a workflow.
type WorkflowInstance struct {
	ID           string         `json:"id"`
	WorkflowName string         `json:"workflow_name"`
	EntityID     string         `json:"entity_id"`
	EntityType   string         `json:"entity_type"`
	CurrentState string         `json:"current_state"`
	History      []HistoryEntry `json:"history"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewInstance creates an instance in the definition's initial state
// with the synthetic init history entry.
func NewInstance(def *WorkflowDefinition, entityID string, data map[string]any, userID string, now time.Time) *WorkflowInstance {
	metadata := maps.Clone(data)
	if metadata == nil {
		metadata = make(map[string]any)
	}
	return &WorkflowInstance{
		ID:           InstanceKey(def.Name, entityID),
		WorkflowName: def.Name,
		EntityID:     entityID,
		EntityType:   def.EntityType,
		CurrentState: def.InitialState,
		History: []HistoryEntry{{
			From:      nil,
			To:        def.InitialState,
			Event:     EventInit,
			Timestamp: now,
			UserID:    userID,
			Data:      maps.Clone(data),
		}},
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Record moves the instance to state and appends the matching history entry.
func (i *WorkflowInstance) Record(to, event, userID string, data map[string]any, now time.Time) {
	from := i.CurrentState
	i.CurrentState = to
	i.History = append(i.History, HistoryEntry{
		From:      &from,
		To:        to,
		Event:     event,
		Timestamp: now,
		UserID:    userID,
		Data:      maps.Clone(data),
	})
	i.UpdatedAt = now
}

// MergeMetadata shallow-merges data into the instance metadata; last write wins per key.
func (i *WorkflowInstance) MergeMetadata(data map[string]any) {
	if len(data) == 0 {
		return
	}
	if i.Metadata == nil {
		i.Metadata = make(map[string]any, len(data))
	}
	maps.Copy(i.Metadata, data)
}

// Clone returns a copy that can be mutated without affecting the original.
// Values stored inside metadata and data maps are shared.
func (i *WorkflowInstance) Clone() *WorkflowInstance {
	if i == nil {
		return nil
	}
	c := *i
	c.Metadata = maps.Clone(i.Metadata)
	c.History = make([]HistoryEntry, len(i.History))
	for n, h := range i.History {
		if h.From != nil {
			from := *h.From
			h.From = &from
		}
		h.Data = maps.Clone(h.Data)
		c.History[n] = h
	}
	return &c
}
