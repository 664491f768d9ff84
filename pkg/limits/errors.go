package limits

import "errors"

var (
	ErrNoCounterRegistered        = errors.New("limits.errors.no_counter_registered")
	ErrFailedToCountResourceUsage = errors.New("limits.errors.failed_to_count_resource_usage")
)
