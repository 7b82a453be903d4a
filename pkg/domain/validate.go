package domain

import "fmt"

// Validate checks the structural rules of a definition and reports the first violation.
func (d *WorkflowDefinition) Validate() error {
	fail := func(rule, format string, args ...any) error {
		return &ValidationError{Workflow: d.Name, Rule: rule, Detail: fmt.Sprintf(format, args...)}
	}

	if d.Name == "" {
		return fail(RuleNameRequired, "workflow name is required")
	}
	if d.EntityType == "" {
		return fail(RuleEntityTypeRequired, "entity type is required")
	}
	if d.InitialState == "" {
		return fail(RuleInitialStateRequired, "initial state is required")
	}
	if len(d.States) == 0 {
		return fail(RuleStatesRequired, "at least one state is required")
	}
	if !d.HasState(d.InitialState) {
		return fail(RuleInitialStateUndeclared, "initial state %q is not a declared state", d.InitialState)
	}

	for i, t := range d.Transitions {
		if t.Event == "" {
			return fail(RuleEventRequired, "transition #%d has no event", i)
		}
		if len(t.From) == 0 {
			return fail(RuleFromRequired, "transition #%d (%s) has no source state", i, t.Event)
		}
		for _, from := range t.From {
			if !d.HasState(from) {
				return fail(RuleFromStateUndeclared, "transition #%d (%s) leaves undeclared state %q", i, t.Event, from)
			}
		}
		if !d.HasState(t.To) {
			return fail(RuleToStateUndeclared, "transition #%d (%s) targets undeclared state %q", i, t.Event, t.To)
		}
		for _, g := range t.Guards {
			if g.Fn == nil {
				return fail(RuleCallbackRequired, "transition #%d (%s) has guard %q without implementation", i, t.Event, g.Name)
			}
		}
		for _, h := range append(append([]Hook(nil), t.Hooks.Before...), t.Hooks.After...) {
			if h.Fn == nil {
				return fail(RuleCallbackRequired, "transition #%d (%s) has hook %q without implementation", i, t.Event, h.Name)
			}
		}
	}
	return nil
}
