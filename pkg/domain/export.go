package domain

import "maps"

// ExportedTransition is the serializable projection of a StateTransition.
// Callables are replaced by capability flags and their strategy names.
type ExportedTransition struct {
	From           []string       `json:"from"`
	To             string         `json:"to"`
	Event          string         `json:"event"`
	HasGuards      bool           `json:"hasGuards"`
	HasBeforeHooks bool           `json:"hasBeforeHooks"`
	HasAfterHooks  bool           `json:"hasAfterHooks"`
	Guards         []string       `json:"guards,omitempty"`
	BeforeHooks    []string       `json:"beforeHooks,omitempty"`
	AfterHooks     []string       `json:"afterHooks,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// ExportedWorkflow is the serializable projection of a WorkflowDefinition,
// meant for tooling and auditing.
type ExportedWorkflow struct {
	Name           string               `json:"name"`
	EntityType     string               `json:"entityType"`
	InitialState   string               `json:"initialState"`
	States         []string             `json:"states"`
	TerminalStates []string             `json:"terminalStates"`
	Transitions    []ExportedTransition `json:"transitions"`
	Metadata       map[string]any       `json:"metadata,omitempty"`
}

// Export projects a definition into its serializable form.
func Export(def *WorkflowDefinition) *ExportedWorkflow {
	out := &ExportedWorkflow{
		Name:           def.Name,
		EntityType:     def.EntityType,
		InitialState:   def.InitialState,
		States:         append([]string(nil), def.States...),
		TerminalStates: def.TerminalStates(),
		Transitions:    make([]ExportedTransition, 0, len(def.Transitions)),
		Metadata:       maps.Clone(def.Metadata),
	}
	for _, t := range def.Transitions {
		out.Transitions = append(out.Transitions, ExportTransition(t))
	}
	return out
}

// ExportTransition projects a single transition.
func ExportTransition(t StateTransition) ExportedTransition {
	return ExportedTransition{
		From:           append([]string(nil), t.From...),
		To:             t.To,
		Event:          t.Event,
		HasGuards:      len(t.Guards) > 0,
		HasBeforeHooks: len(t.Hooks.Before) > 0,
		HasAfterHooks:  len(t.Hooks.After) > 0,
		Guards:         guardNames(t.Guards),
		BeforeHooks:    hookNames(t.Hooks.Before),
		AfterHooks:     hookNames(t.Hooks.After),
		Metadata:       maps.Clone(t.Metadata),
	}
}

func guardNames(guards []Guard) []string {
	var names []string
	for _, g := range guards {
		if g.Name != "" {
			names = append(names, g.Name)
		}
	}
	return names
}

func hookNames(hooks []Hook) []string {
	var names []string
	for _, h := range hooks {
		if h.Name != "" {
			names = append(names, h.Name)
		}
	}
	return names
}
