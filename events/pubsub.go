package events

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/jonwraymond/gateops/observe"
)

// PubSubEmitter publishes decision events to a Google Pub/Sub topic.
// Publishes are asynchronous; delivery failures are logged, never
// surfaced to the hot path.
type PubSubEmitter struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger observe.Logger
}

// NewPubSubEmitter connects to the project and targets the topic.
func NewPubSubEmitter(ctx context.Context, projectID, topicID string, logger observe.Logger) (*PubSubEmitter, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("events: pubsub client: %w", err)
	}

	return &PubSubEmitter{
		client: client,
		topic:  client.Topic(topicID),
		logger: logger,
	}, nil
}

func (e *PubSubEmitter) Emit(event DecisionEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		e.logger.Error(context.Background(), "event_marshal_failed",
			observe.Field{Key: "audit_id", Value: event.AuditID},
			observe.Field{Key: "error", Value: err.Error()},
		)
		return
	}

	result := e.topic.Publish(context.Background(), &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"policy":   event.Policy,
			"decision": event.Decision,
		},
	})

	go func() {
		if _, err := result.Get(context.Background()); err != nil {
			e.logger.Error(context.Background(), "event_publish_failed",
				observe.Field{Key: "audit_id", Value: event.AuditID},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}
	}()
}

// Close flushes pending publishes and releases the client.
func (e *PubSubEmitter) Close() error {
	e.topic.Stop()
	return e.client.Close()
}

var _ Emitter = (*PubSubEmitter)(nil)
