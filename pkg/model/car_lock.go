package model

import "time"

// CarLock is a per-car guard document. Booking creation bumps Version inside its transaction,
// so two transactions creating bookings for the same car cannot both commit.
type CarLock struct {
	ID        string    `bson:"_id" json:"car_id"`
	Version   int64     `bson:"version" json:"version"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
