package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/flowstate/internal/presentation/graph"
	"github.com/aretw0/flowstate/pkg/domain"
)

// WorkflowMarkdown describes a workflow as markdown: summary, transition table,
// optional per-state counts and a Mermaid diagram.
func WorkflowMarkdown(wf *domain.ExportedWorkflow, stats *domain.WorkflowStats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", wf.Name)
	fmt.Fprintf(&sb, "- **Entity type:** `%s`\n", wf.EntityType)
	fmt.Fprintf(&sb, "- **Initial state:** `%s`\n", wf.InitialState)
	fmt.Fprintf(&sb, "- **States:** %s\n", codeList(wf.States))
	if len(wf.TerminalStates) > 0 {
		fmt.Fprintf(&sb, "- **Terminal states:** %s\n", codeList(wf.TerminalStates))
	}

	sb.WriteString("\n## Transitions\n\n")
	sb.WriteString("| Event | From | To | Guards | Before | After |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")
	for _, t := range wf.Transitions {
		fmt.Fprintf(&sb, "| `%s` | %s | `%s` | %s | %s | %s |\n",
			t.Event, codeList(t.From), t.To, dashIfEmpty(t.Guards), dashIfEmpty(t.BeforeHooks), dashIfEmpty(t.AfterHooks))
	}

	if stats != nil {
		fmt.Fprintf(&sb, "\n## Instances (%d)\n\n", stats.TotalInstances)
		states := make([]string, 0, len(stats.StateDistribution))
		for s := range stats.StateDistribution {
			states = append(states, s)
		}
		sort.Strings(states)
		for _, s := range states {
			fmt.Fprintf(&sb, "- `%s`: %d\n", s, stats.StateDistribution[s])
		}
	}

	sb.WriteString("\n## Diagram\n\n```mermaid\n")
	sb.WriteString(graph.GenerateMermaid(wf, nil))
	sb.WriteString("```\n")
	return sb.String()
}

func codeList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "`" + s + "`"
	}
	return strings.Join(quoted, ", ")
}

func dashIfEmpty(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
