package graph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aretw0/flowstate/pkg/domain"
)

// Overlay marks an instance's path on the diagram.
type Overlay struct {
	VisitedStates []string
	CurrentState  string
}

// OverlayFor builds the overlay of an instance from its history.
func OverlayFor(inst *domain.WorkflowInstance) *Overlay {
	if inst == nil {
		return nil
	}
	o := &Overlay{CurrentState: inst.CurrentState}
	for _, h := range inst.History {
		o.VisitedStates = append(o.VisitedStates, h.To)
	}
	return o
}

// GenerateMermaid produces a Mermaid state flowchart for a workflow.
// Shapes:
// - Initial state: ((Circle))
// - Terminal state: ([Stadium])
// - Default: [Rectangle]
// Guarded transitions are drawn dotted. Overlay styles are applied if provided.
func GenerateMermaid(wf *domain.ExportedWorkflow, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, state := range wf.States {
		safeID := sanitizeMermaidID(state)
		opener, closer := "[", "]"
		switch {
		case state == wf.InitialState:
			opener, closer = "((", "))"
		case slices.Contains(wf.TerminalStates, state):
			opener, closer = "([", "])"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, state, closer)
	}

	for _, t := range wf.Transitions {
		label := strings.ReplaceAll(t.Event, "\"", "'")
		arrow := fmt.Sprintf("-- \"%s\" -->", label)
		if t.HasGuards {
			arrow = fmt.Sprintf("-. \"%s [%s]\" .->", label, strings.Join(t.Guards, ", "))
		}
		for _, from := range t.From {
			fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(from), arrow, sanitizeMermaidID(t.To))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, state := range overlay.VisitedStates {
			safeID := sanitizeMermaidID(state)
			if safeID == "" || seen[safeID] || state == overlay.CurrentState {
				continue
			}
			seen[safeID] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
		}
		if overlay.CurrentState != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentState))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}
