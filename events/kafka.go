package events

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/jonwraymond/gateops/observe"
)

// KafkaEmitter publishes decision events to a Kafka topic, keyed by
// audit id. Writes are asynchronous; delivery failures are logged
// through the writer's completion callback.
type KafkaEmitter struct {
	writer *kafka.Writer
	logger observe.Logger
}

// NewKafkaEmitter creates a Kafka emitter for the brokers and topic.
func NewKafkaEmitter(brokers []string, topic string, logger observe.Logger) *KafkaEmitter {
	return &KafkaEmitter{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
			Async:    true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					logger.Error(context.Background(), "event_kafka_write_failed",
						observe.Field{Key: "messages", Value: len(messages)},
						observe.Field{Key: "error", Value: err.Error()},
					)
				}
			},
		},
		logger: logger,
	}
}

func (e *KafkaEmitter) Emit(event DecisionEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		e.logger.Error(context.Background(), "event_marshal_failed",
			observe.Field{Key: "audit_id", Value: event.AuditID},
			observe.Field{Key: "error", Value: err.Error()},
		)
		return
	}

	err = e.writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(event.AuditID),
		Value: data,
	})
	if err != nil {
		e.logger.Error(context.Background(), "event_kafka_write_failed",
			observe.Field{Key: "audit_id", Value: event.AuditID},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
}

// Close flushes buffered messages and closes the writer.
func (e *KafkaEmitter) Close() error {
	return e.writer.Close()
}

var _ Emitter = (*KafkaEmitter)(nil)
