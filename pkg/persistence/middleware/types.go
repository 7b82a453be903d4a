// Package middleware wraps an InstanceStore with persistence-time behavior:
// at-rest encryption and PII masking.
package middleware

import "github.com/aretw0/flowstate/pkg/ports"

// Middleware allows wrapping an InstanceStore to add behavior.
type Middleware func(ports.InstanceStore) ports.InstanceStore

// Chain applies middlewares so that the first one sees calls first.
func Chain(store ports.InstanceStore, mws ...Middleware) ports.InstanceStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
