/*
Package keylock serializes work per key.

The engine wraps every read-check-write cycle on a workflow instance in
Manager.WithLock, so at most one operation is in flight per instance. Locks are
reference counted and garbage collected once no caller holds or waits on them.
An optional ports.DistributedLocker extends the exclusion across replicas.
*/
package keylock
