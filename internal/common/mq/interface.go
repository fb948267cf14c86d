package mq

import (
	"context"
	"time"
)

// Producer defines the interface for publishing messages.
// This abstraction allows switching between different MQ implementations
// (Kafka, RabbitMQ, NATS) without changing business logic. The match service
// only produces: finished results are handed to the persistence collaborator
// as messages and consumed elsewhere.
type Producer interface {
	// Publish publishes a message to the specified topic
	Publish(ctx context.Context, topic string, message *Message) error

	// Ping verifies the message queue connection is alive
	Ping(ctx context.Context) error

	// Close closes the message queue connection
	Close() error
}

// Message represents a message in the queue
type Message struct {
	// ID is the unique identifier for the message
	ID string `json:"id"`

	// Body is the message payload
	Body []byte `json:"body"`

	// Headers contains metadata about the message
	Headers map[string]string `json:"headers"`

	// Timestamp is when the message was created
	Timestamp time.Time `json:"timestamp"`
}
