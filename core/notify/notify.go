package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Event kinds emitted during a reconciliation cycle.
const (
	EventSyncStarted   = "sync.started"
	EventSyncCompleted = "sync.completed"
	EventSyncFailed    = "sync.failed"
)

// Event is a structured progress/result message for an upstream consumer.
type Event struct {
	// Kind is one of the EventSync* constants.
	Kind string `json:"kind"`

	// OperationID identifies the reconciliation cycle.
	OperationID string `json:"operation_id"`

	// PerformanceID is the performance the cycle ran for.
	PerformanceID string `json:"performance_id"`

	// Counts carries aggregate numbers (created, delisted, failed, ...).
	Counts map[string]int `json:"counts,omitempty"`

	// Error holds failure detail for sync.failed events.
	Error string `json:"error,omitempty"`

	// EmittedAt is the event timestamp.
	EmittedAt time.Time `json:"emitted_at"`
}

// Publisher delivers events to an external channel. Delivery is best-effort:
// implementations must never let a publish failure propagate into the
// reconciliation itself.
type Publisher interface {
	Publish(ctx context.Context, event Event)
	Close() error
}

// AMQPPublisher publishes events to a durable RabbitMQ queue.
type AMQPPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	log     *zap.Logger
}

// NewAMQPPublisher connects to the broker and declares the durable queue.
func NewAMQPPublisher(cfg Config, log *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(cfg.Queue, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", cfg.Queue, err)
	}

	return &AMQPPublisher{conn: conn, channel: ch, queue: cfg.Queue, log: log}, nil
}

// Publish sends the event as a persistent JSON message.
// Errors are logged and swallowed.
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) {
	if event.EmittedAt.IsZero() {
		event.EmittedAt = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.log.Warn("Failed to serialize sync event", zap.String("kind", event.Kind), zap.Error(err))
		return
	}

	err = p.channel.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.EmittedAt,
		Body:         body,
	})
	if err != nil {
		p.log.Warn("Failed to publish sync event",
			zap.String("kind", event.Kind),
			zap.String("operation_id", event.OperationID),
			zap.Error(err),
		)
	}
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}

// NopPublisher discards all events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) {}
func (NopPublisher) Close() error                   { return nil }
