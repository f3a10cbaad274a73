package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrStatusChanged means the booking was modified between read and conditional write.
	ErrStatusChanged = errors.New("booking status changed concurrently")

	ErrAlreadyPaid = errors.New("booking is already paid")

	ErrCarLockContention = errors.New("car is being booked by another request")
)
