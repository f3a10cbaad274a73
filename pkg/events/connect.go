package events

import (
	"fmt"

	"movez/pkg/config"
	"movez/pkg/kafka"
	kafka_config "movez/pkg/kafka/config"
	kafka_middleware "movez/pkg/kafka/middleware"
)

// Connect returns a Kafka-backed publisher when events are enabled and Nop otherwise.
// The returned close func flushes and closes the producer.
func Connect(cfg *config.Config, source string) (Publisher, func(), error) {
	if !cfg.EventsEnabled {
		cfg.Log.Info("Domain events disabled")
		return Nop(), func() {}, nil
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid kafka configuration: %w", err)
	}

	log := cfg.Log.Component("events")
	producer, err := kafka.NewProducer(kafkaCfg, cfg.EventsTopic, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	producer.Use(kafka_middleware.Logging(log))

	log.Info("Publishing domain events", "topic", producer.Topic(), "brokers", kafkaCfg.Brokers)
	closeFn := func() {
		stats := producer.Stats()
		if err := producer.Close(); err != nil {
			log.Error("Failed to close kafka producer", "error", err)
			return
		}
		log.Info("Kafka producer closed", "messages", stats.Messages, "errors", stats.Errors)
	}
	return NewKafkaPublisher(producer, source, log), closeFn, nil
}
