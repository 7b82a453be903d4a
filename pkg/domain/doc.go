/*
Package domain contains the core domain models of the flowstate engine.

It defines the workflow definitions, the live instances driven through them and
the events and errors the engine produces. This package is kept pure and free
of external dependencies like I/O or persistence, following Hexagonal
Architecture principles.

# Key Entities

  - WorkflowDefinition: A named template of states and transitions for an entity type.
  - StateTransition: A rule moving from one or more states to a target state on an event.
  - WorkflowInstance: The live state of one entity under a workflow, with its history.
  - TransitionContext: The snapshot handed to every guard and hook of a transition attempt.
  - Event: A lifecycle or transition notification published by the engine.
*/
package domain
