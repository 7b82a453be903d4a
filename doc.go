/*
Package flowstate is a domain-agnostic workflow engine: it tracks entities through
named state machines, gates transitions with guards, runs side-effect hooks around
them and keeps an append-only audit history per entity.

# Concept

A workflow definition declares the states of an entity type and the events that
move an entity between them. Each tracked entity has one instance per workflow,
identified by the workflow name and the entity ID. The engine serializes every
read-check-write cycle on an instance, so concurrent requests for the same entity
never interleave.

Definitions are pure data plus callables. Guards and hooks carry a name so that
definitions loaded from YAML (see pkg/loader) can resolve them from a registry
(see pkg/registry), and so that ExportWorkflow can describe them without code.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/flowstate"
		"github.com/aretw0/flowstate/pkg/domain"
		"github.com/aretw0/flowstate/pkg/dsl"
	)

	func main() {
		ctx := context.Background()
		eng := flowstate.New()

		def, err := dsl.New("order-processing", "order").
			Initial("PENDING").
			States("PENDING", "PROCESSING", "SHIPPED", "CANCELLED").
			On("process").From("PENDING").To("PROCESSING").
			On("ship").From("PROCESSING").To("SHIPPED").
			On("cancel").From("PENDING", "PROCESSING").To("CANCELLED").
			Build()
		if err != nil {
			log.Fatal(err)
		}
		if _, err := eng.DefineWorkflow(ctx, def); err != nil {
			log.Fatal(err)
		}

		eng.Events().Subscribe(domain.StateTopic("order-processing", "SHIPPED"), func(ctx context.Context, ev domain.Event) {
			log.Println("shipped:", ev.EntityID)
		})

		if _, err := eng.Transition(ctx, "order-processing", "order-1", "process", domain.TransitionOptions{}); err != nil {
			log.Fatal(err)
		}
	}
*/
package flowstate
