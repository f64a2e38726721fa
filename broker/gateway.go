// Package broker implements the subscription manager's broker gateway on
// top of an AMQP 0-9-1 broker such as RabbitMQ.
//
// Topics are routing keys on a topic exchange (amq.topic by default). A
// subscription's queue receives a topic's messages while a binding with the
// topic name as routing key exists.
package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/streadway/amqp"

	"github.com/coregx/submanager"
)

// DefaultExchange is the topic exchange queues are bound to.
const DefaultExchange = "amq.topic"

// Channel is the subset of *amqp.Channel used by the gateway.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueInspect(name string) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	QueueUnbind(name, key, exchange string, args amqp.Table) error
	QueueDelete(name string, ifUnused, ifEmpty, noWait bool) (int, error)
	Close() error
}

// Connection opens channels. A fresh channel is used for every operation
// because the broker closes a channel after any failed command.
type Connection interface {
	Channel() (Channel, error)
	Close() error
}

type amqpConnection struct {
	conn *amqp.Connection
}

func (c *amqpConnection) Channel() (Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (c *amqpConnection) Close() error {
	return c.conn.Close()
}

// Gateway implements submanager.Broker over AMQP.
//
// Every failure is returned as a BROKER_ERROR. Nothing is retried.
//
// Thread safety: Safe for concurrent use.
type Gateway struct {
	conn     Connection
	exchange string
	logger   submanager.Logger
}

var _ submanager.Broker = (*Gateway)(nil)

// Option is a function that configures a Gateway.
type Option func(*Gateway) error

// WithExchange sets the topic exchange. Exchanges outside the amq.*
// namespace are declared (durable, type topic) when the gateway is created.
func WithExchange(name string) Option {
	return func(g *Gateway) error {
		if name == "" {
			return fmt.Errorf("exchange cannot be empty")
		}
		g.exchange = name
		return nil
	}
}

// WithLogger sets the logger instance.
func WithLogger(logger submanager.Logger) Option {
	return func(g *Gateway) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		g.logger = logger
		return nil
	}
}

// Dial connects to the broker at url and creates a Gateway.
func Dial(url string, opts ...Option) (*Gateway, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, submanager.NewBrokerError("cannot connect to broker", err)
	}

	g, err := New(&amqpConnection{conn: conn}, opts...)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return g, nil
}

// New creates a Gateway on an open connection.
func New(conn Connection, opts ...Option) (*Gateway, error) {
	if conn == nil {
		return nil, submanager.NewError(submanager.ErrCodeConfiguration, "broker connection is required")
	}

	g := &Gateway{
		conn:     conn,
		exchange: DefaultExchange,
		logger:   &submanager.NoopLogger{},
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, submanager.NewErrorWithCause(submanager.ErrCodeConfiguration, "failed to apply broker option", err)
		}
	}

	if !strings.HasPrefix(g.exchange, "amq.") {
		err := g.do(context.Background(), "declare exchange "+g.exchange, func(ch Channel) error {
			return ch.ExchangeDeclare(g.exchange, amqp.ExchangeTopic, true, false, false, false, nil)
		})
		if err != nil {
			return nil, err
		}
	}

	return g, nil
}

// Exchange returns the topic exchange queues are bound to.
func (g *Gateway) Exchange() string {
	return g.exchange
}

// Close closes the broker connection.
func (g *Gateway) Close() error {
	return g.conn.Close()
}

// Ping checks that a channel can be opened on the connection.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.do(ctx, "ping", func(Channel) error { return nil })
}

// CreateQueueForTopics declares queue and binds it to every topic.
func (g *Gateway) CreateQueueForTopics(ctx context.Context, queue string, topics []string, durable bool) error {
	return g.do(ctx, "create queue "+queue, func(ch Channel) error {
		if _, err := ch.QueueDeclare(queue, durable, false, false, false, nil); err != nil {
			return err
		}
		for _, topic := range topics {
			if err := ch.QueueBind(queue, topic, g.exchange, false, nil); err != nil {
				return fmt.Errorf("bind %s: %w", topic, err)
			}
		}
		g.logger.Debugf("Queue declared: queue=%s, durable=%t, topics=%v", queue, durable, topics)
		return nil
	})
}

// BindQueueToTopic binds queue to topic. An existing queue keeps the
// durability it was declared with; a missing queue is declared with durable.
func (g *Gateway) BindQueueToTopic(ctx context.Context, queue, topic string, durable bool) error {
	action := fmt.Sprintf("bind queue %s to %s", queue, topic)

	exists := true
	err := g.do(ctx, action+": inspect", func(ch Channel) error {
		_, err := ch.QueueInspect(queue)
		if isNotFound(err) {
			exists = false
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}

	// A failed inspect closes its channel, so declare and bind on a fresh one.
	return g.do(ctx, action, func(ch Channel) error {
		if !exists {
			if _, err := ch.QueueDeclare(queue, durable, false, false, false, nil); err != nil {
				return err
			}
			g.logger.Debugf("Queue declared for binding: queue=%s, durable=%t", queue, durable)
		}
		return ch.QueueBind(queue, topic, g.exchange, false, nil)
	})
}

// DeleteQueueBinding removes the binding between queue and topic.
func (g *Gateway) DeleteQueueBinding(ctx context.Context, queue, topic string) error {
	return g.do(ctx, fmt.Sprintf("unbind queue %s from %s", queue, topic), func(ch Channel) error {
		return ch.QueueUnbind(queue, topic, g.exchange, nil)
	})
}

// DeleteQueue removes queue with its bindings and pending messages.
func (g *Gateway) DeleteQueue(ctx context.Context, queue string) error {
	return g.do(ctx, "delete queue "+queue, func(ch Channel) error {
		purged, err := ch.QueueDelete(queue, false, false, false)
		if err != nil {
			return err
		}
		g.logger.Debugf("Queue deleted: queue=%s, purged=%d", queue, purged)
		return nil
	})
}

// GetQueue returns queue details, or nil when the broker reports the queue
// as not found.
func (g *Gateway) GetQueue(ctx context.Context, queue string) (*submanager.QueueInfo, error) {
	var info *submanager.QueueInfo
	err := g.do(ctx, "inspect queue "+queue, func(ch Channel) error {
		q, err := ch.QueueInspect(queue)
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		info = &submanager.QueueInfo{Name: q.Name, Messages: q.Messages, Consumers: q.Consumers}
		return nil
	})
	return info, err
}

// do runs fn on a fresh channel and normalizes any failure.
func (g *Gateway) do(ctx context.Context, action string, fn func(ch Channel) error) error {
	if err := ctx.Err(); err != nil {
		return submanager.NewBrokerError(action, err)
	}

	ch, err := g.conn.Channel()
	if err != nil {
		return submanager.NewBrokerError(action+": cannot open channel", err)
	}
	defer ch.Close()

	if err := fn(ch); err != nil {
		g.logger.Warnf("Broker call failed: %s: %v", action, err)
		return submanager.NewBrokerError(action, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var amqpErr *amqp.Error
	return errors.As(err, &amqpErr) && amqpErr.Code == amqp.NotFound
}
