package model

import (
	"time"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "Pending"
	BookingAssigned  BookingStatus = "Assigned"
	BookingCompleted BookingStatus = "Completed"
	BookingCancelled BookingStatus = "Cancelled"
)

type PaymentState string

const (
	Unpaid PaymentState = "Unpaid"
	Paid   PaymentState = "Paid"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:  {BookingAssigned, BookingCancelled},
	BookingAssigned: {BookingAssigned, BookingCompleted, BookingCancelled},
}

// CanTransitionTo reports whether the booking state machine allows s -> next.
// Completed and Cancelled have no outgoing transitions.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

// IsActive reports whether a booking in this status holds its car's date range.
func (s BookingStatus) IsActive() bool {
	return s == BookingPending || s == BookingAssigned
}

// ActiveBookingStatuses are the statuses that count toward conflict checks and driver occupancy.
var ActiveBookingStatuses = []BookingStatus{BookingPending, BookingAssigned}

type Booking struct {
	ID         string `json:"id" bson:"_id"`
	CarID      string `json:"car_id" bson:"car_id"`
	CustomerID string `json:"customer_id" bson:"customer_id"`
	DriverID   string `json:"driver_id,omitempty" bson:"driver_id,omitempty"`
	// ReleasedDriverID keeps the driver of a cancelled assignment, since DriverID is cleared on cancel.
	ReleasedDriverID string        `json:"released_driver_id,omitempty" bson:"released_driver_id,omitempty"`
	StartDate        time.Time     `json:"start_date" bson:"start_date"`
	EndDate          time.Time     `json:"end_date" bson:"end_date"`
	Amount           int64         `json:"amount" bson:"amount"`
	Currency         string        `json:"currency" bson:"currency"`
	Status           BookingStatus `json:"status" bson:"status"`
	PaymentStatus    PaymentState  `json:"payment_status" bson:"payment_status"`
	IsPaid           bool          `json:"is_paid" bson:"is_paid"`
	StatusUpdatedAt  time.Time     `json:"status_updated_at" bson:"status_updated_at"`
	CreatedAt        time.Time     `json:"created_at" bson:"created_at"`
}

// Overlaps reports whether the booking's [StartDate, EndDate) intersects [start, end).
func (b *Booking) Overlaps(start, end time.Time) bool {
	return Overlaps(b.StartDate, b.EndDate, start, end)
}

// Overlaps is the half-open interval test: [s1,e1) and [s2,e2) intersect iff s1 < e2 and s2 < e1.
// Ranges that only touch at an endpoint do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// BookingCreate is the input of the booking creation operation.
type BookingCreate struct {
	CarID      string    `json:"car_id" validate:"required,max=64"`
	CustomerID string    `json:"customer_id" validate:"omitempty,max=64"`
	StartDate  time.Time `json:"start_date" validate:"required"`
	EndDate    time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
	Amount     int64     `json:"amount" validate:"gte=0"`
}

type DriverAssignment struct {
	DriverID string `json:"driver_id" validate:"required,uuid"`
}

// DateRange is a half-open [Start, End) interval of an active booking.
type DateRange struct {
	BookingID string    `json:"booking_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// BookingDetails is the staff view of a booking with the drivers that could be assigned to it.
type BookingDetails struct {
	Booking          *Booking  `json:"booking"`
	AvailableDrivers []*Driver `json:"available_drivers,omitempty"`
}
