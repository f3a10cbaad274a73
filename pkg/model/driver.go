package model

import "time"

type DriverStatus string

const (
	DriverAvailable DriverStatus = "Available"
	DriverOnDuty    DriverStatus = "OnDuty"
	DriverOffDuty   DriverStatus = "OffDuty"
)

// DriverFreeStatus is where a driver lands when the booking they were attached to ends,
// whether through completion, cancellation or reconciliation.
const DriverFreeStatus = DriverAvailable

type Driver struct {
	ID               string       `json:"id" bson:"_id"`
	UserID           string       `json:"user_id" bson:"user_id"`
	Name             string       `json:"name" bson:"name"`
	Status           DriverStatus `json:"status" bson:"status"`
	CurrentBookingID string       `json:"current_booking_id,omitempty" bson:"current_booking_id,omitempty"`
	StatusVersion    int64        `json:"status_version" bson:"status_version"`
	StatusUpdatedAt  time.Time    `json:"status_updated_at" bson:"status_updated_at"`
	CreatedAt        time.Time    `json:"created_at" bson:"created_at"`
}

type DriverRegistration struct {
	UserID string `json:"user_id" validate:"required,max=64"`
	Name   string `json:"name" validate:"required,min=2,max=100"`
}
