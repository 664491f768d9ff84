package file

import "errors"

var (
	ErrInvalidConfig = errors.New("file: invalid meter configuration")
	ErrInvalidTenant = errors.New("file: tenant id is required")

	ErrBucketNotFound     = errors.New("file: bucket not found")
	ErrAccessDenied       = errors.New("file: access denied")
	ErrServiceUnavailable = errors.New("file: storage temporarily unavailable")

	ErrOperationTimeout  = errors.New("file: metering timed out")
	ErrOperationCanceled = errors.New("file: metering canceled")
	ErrMeterFailed       = errors.New("file: metering failed")
)
