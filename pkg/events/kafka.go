package events

import (
	"context"
	"fmt"

	"movez/pkg/kafka"
	"movez/pkg/logger"
)

type producer interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaPublisher writes events to the events topic keyed by aggregate id, so all
// events for one booking, driver or payment stay ordered on one partition.
type KafkaPublisher struct {
	producer producer
	source   string
	log      *logger.Logger
}

func NewKafkaPublisher(p producer, source string, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: p, source: source, log: log}
}

// Publish never fails the caller's operation: the change is already committed,
// so delivery errors are logged and swallowed.
func (k *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	msg, err := kafka.NewMessage().
		WithKey(evt.AggregateID).
		WithEventID(evt.ID).
		WithEventType(string(evt.Type)).
		WithSource(k.source).
		WithCorrelationID(correlationID(ctx)).
		WithTimestamp(evt.OccurredAt).
		WithValue(evt).
		Build()
	if err != nil {
		k.log.Error("Failed to encode event", "event_type", evt.Type, "aggregate_id", evt.AggregateID, "error", err)
		return nil
	}

	if err := k.producer.Publish(ctx, msg); err != nil {
		k.log.Warn("Event not delivered",
			"event_id", evt.ID,
			"event_type", evt.Type,
			"aggregate_id", evt.AggregateID,
			"error", fmt.Errorf("publish: %w", err),
		)
	}
	return nil
}

type correlationKey struct{}

// WithCorrelationID tags ctx so events published under it carry the request id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func correlationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
