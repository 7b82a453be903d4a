/*
Package observability provides tools for monitoring the flowstate engine.

Metrics records engine events and lifecycle hooks as Prometheus metrics; it is
wired by subscribing Metrics.Listen to the engine's event bus and passing
Metrics.Hooks as lifecycle hooks. Combine merges several LifecycleHooks, e.g.
metrics plus LoggingHooks.
*/
package observability
