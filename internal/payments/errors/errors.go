package errors

import "errors"

var (
	ErrNotFound = errors.New("payment not found")

	// ErrAlreadyRecorded means a settled payment already exists for the booking.
	ErrAlreadyRecorded = errors.New("payment already recorded for booking")
)
