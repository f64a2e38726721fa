package submanager

import "context"

// QueueInfo describes a queue as reported by the broker.
type QueueInfo struct {
	Name      string
	Messages  int
	Consumers int
}

// Broker is the administrative surface of the message broker used by the
// lifecycle handlers. Every method fails with a BROKER_ERROR wrapping the
// transport or API failure; implementations never retry internally.
type Broker interface {
	// CreateQueueForTopics declares queue and binds it to every topic.
	CreateQueueForTopics(ctx context.Context, queue string, topics []string, durable bool) error

	// BindQueueToTopic binds an existing queue to topic.
	BindQueueToTopic(ctx context.Context, queue, topic string, durable bool) error

	// DeleteQueueBinding removes the binding between queue and topic.
	DeleteQueueBinding(ctx context.Context, queue, topic string) error

	// DeleteQueue removes queue and all of its bindings.
	DeleteQueue(ctx context.Context, queue string) error

	// GetQueue returns queue details, or nil when the broker does not know the queue.
	GetQueue(ctx context.Context, queue string) (*QueueInfo, error)
}

// NewBrokerError wraps a broker failure into a BROKER_ERROR.
func NewBrokerError(message string, cause error) *Error {
	return NewErrorWithCause(ErrCodeBroker, message, cause)
}
