// Package limits counts tenant resource usage and compares it against plan limits.
//
// Counters are registered per Resource at startup:
//
//	counters := limits.NewRegistry()
//	counters.Register(limits.ResourceStudents, studentRepo.CountByTenant)
//	counters.Register(limits.ResourceStorageBytes, storage.UsageCounter(bucket))
//
// A limit of Unlimited (-1) disables the check for that resource. Count
// reports ErrNoCounterRegistered for resources without a counter so that a
// missing registration fails closed instead of silently allowing creation.
package limits
