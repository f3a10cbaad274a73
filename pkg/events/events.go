package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	BookingCreated   Type = "booking.created"
	BookingAssigned  Type = "booking.assigned"
	BookingCompleted Type = "booking.completed"
	BookingCancelled Type = "booking.cancelled"
	PaymentConfirmed Type = "payment.confirmed"
	DriverReleased   Type = "driver.released"
)

// Event is a fact emitted after the change it describes has been committed.
type Event struct {
	ID          string    `json:"event_id"`
	Type        Type      `json:"type"`
	AggregateID string    `json:"aggregate_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Payload     any       `json:"payload,omitempty"`
}

func New(t Type, aggregateID string, payload any) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        t,
		AggregateID: aggregateID,
		OccurredAt:  time.Now().UTC(),
		Payload:     payload,
	}
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }

// Nop discards every event. Used when events are disabled.
func Nop() Publisher { return nopPublisher{} }
