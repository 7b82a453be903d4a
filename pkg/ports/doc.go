/*
Package ports defines the driven ports (interfaces) for the flowstate engine.

These interfaces decouple the core logic from external implementations, allowing
the engine to work with various storage backends, lock services and event buses.

# Key Interfaces

  - InstanceStore: Responsible for persisting and loading workflow instances.
  - DistributedLocker: Provides distributed locking for concurrent instance access.
  - Publisher: Receives the lifecycle and transition events published by the engine.
*/
package ports
