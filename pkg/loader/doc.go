// Package loader reads workflow definitions from YAML.
//
// A document looks like:
//
//	name: order-processing
//	entity_type: order
//	initial_state: PENDING
//	states: [PENDING, PROCESSING, SHIPPED, CANCELLED]
//	transitions:
//	  - event: process
//	    from: PENDING
//	    to: PROCESSING
//	    guards: [require_user]
//	  - event: cancel
//	    from: [PENDING, PROCESSING]
//	    to: CANCELLED
//	    hooks:
//	      after: [log]
//
// Guard and hook names are resolved against a registry.Registry. A file may hold
// several documents separated by "---".
package loader
