package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/flowstate/internal/presentation/graph"
	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func ticketWorkflow() *domain.ExportedWorkflow {
	return &domain.ExportedWorkflow{
		Name:           "ticket",
		EntityType:     "ticket",
		InitialState:   "OPEN",
		States:         []string{"OPEN", "IN-PROGRESS", "CLOSED"},
		TerminalStates: []string{"CLOSED"},
		Transitions: []domain.ExportedTransition{
			{Event: "start", From: []string{"OPEN"}, To: "IN-PROGRESS", HasGuards: true, Guards: []string{"require_user"}},
			{Event: "close", From: []string{"OPEN", "IN-PROGRESS"}, To: "CLOSED"},
		},
	}
}

func TestGenerateMermaid(t *testing.T) {
	got := graph.GenerateMermaid(ticketWorkflow(), nil)

	for _, want := range []string{
		"graph TD\n",
		`OPEN(("OPEN"))`,
		`IN_PROGRESS["IN-PROGRESS"]`,
		`CLOSED(["CLOSED"])`,
		`OPEN -. "start [require_user]" .-> IN_PROGRESS`,
		`OPEN -- "close" --> CLOSED`,
		`IN_PROGRESS -- "close" --> CLOSED`,
	} {
		assert.Contains(t, got, want)
	}
	assert.NotContains(t, got, "classDef")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	from := "OPEN"
	inst := &domain.WorkflowInstance{
		CurrentState: "IN-PROGRESS",
		History: []domain.HistoryEntry{
			{To: "OPEN", Event: domain.EventInit},
			{From: &from, To: "IN-PROGRESS", Event: "start"},
		},
	}

	got := graph.GenerateMermaid(ticketWorkflow(), graph.OverlayFor(inst))

	assert.Contains(t, got, "class OPEN visited;")
	assert.Contains(t, got, "class IN_PROGRESS current;")
	assert.Equal(t, 1, strings.Count(got, "class IN_PROGRESS"))
	assert.Nil(t, graph.OverlayFor(nil))
}
