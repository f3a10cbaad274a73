package errors

import "errors"

var (
	ErrNotFound = errors.New("driver not found")

	ErrInvalidID = errors.New("invalid driver ID format")

	ErrDuplicateUser = errors.New("driver already registered for user")

	// ErrOnDutyElsewhere means the driver is OnDuty for a different booking.
	ErrOnDutyElsewhere = errors.New("driver is on duty for another booking")

	// ErrVersionChanged means the driver's status moved since it was read.
	ErrVersionChanged = errors.New("driver status changed concurrently")
)
