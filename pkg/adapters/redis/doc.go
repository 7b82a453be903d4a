// Package redis provides Redis-backed adapters: an InstanceStore, a
// DistributedLocker and an event Publisher, so several engine replicas can
// share instances.
package redis
