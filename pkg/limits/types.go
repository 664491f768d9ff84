package limits

import "slices"

// Resource represents a countable tenant resource type.
type Resource string

const (
	ResourceStudents     Resource = "student"
	ResourceTeachers     Resource = "teacher"
	ResourceStorageBytes Resource = "storageBytes"
)

// Unlimited represents a resource with no limit.
const Unlimited int64 = -1

// Resources lists every resource the registry knows how to report on.
func Resources() []Resource {
	return []Resource{ResourceStudents, ResourceTeachers, ResourceStorageBytes}
}

// Known reports whether r is one of Resources.
func (r Resource) Known() bool {
	return slices.Contains(Resources(), r)
}

// UsageInfo contains the current usage and limit for a resource.
type UsageInfo struct {
	Current int64 `json:"current"`
	Limit   int64 `json:"limit"`
}

// Allows reports whether adding incoming units keeps usage within limit.
// For countable resources incoming is 1, so current must be strictly below limit.
// The headroom comparison cannot overflow for any incoming.
func (u UsageInfo) Allows(incoming int64) bool {
	switch {
	case u.Limit == Unlimited:
		return true
	case incoming < 0 || u.Current > u.Limit:
		return false
	}
	return incoming <= u.Limit-u.Current
}

// Percentage returns usage as a percentage capped at 100, or -1 for unlimited.
func (u UsageInfo) Percentage() int {
	switch {
	case u.Limit == Unlimited:
		return -1
	case u.Limit == 0:
		return 100
	default:
		return min(int((u.Current*100)/u.Limit), 100)
	}
}
