package broker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/coregx/submanager"
)

// BreakerSettings configures CircuitBreaker.
type BreakerSettings struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold uint32

	// ResetTimeout is how long the circuit stays open before a trial call.
	ResetTimeout time.Duration
}

// DefaultBreakerSettings returns 5 consecutive failures and a 30s reset timeout.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{FailureThreshold: 5, ResetTimeout: 30 * time.Second}
}

// CircuitBreaker wraps a broker and fails fast while the broker is down.
// Calls rejected by an open circuit return a BROKER_ERROR like any other
// broker failure.
type CircuitBreaker struct {
	next submanager.Broker
	cb   *gobreaker.CircuitBreaker
}

var _ submanager.Broker = (*CircuitBreaker)(nil)

// NewCircuitBreaker wraps next. A nil logger falls back to NoopLogger.
func NewCircuitBreaker(next submanager.Broker, settings BreakerSettings, logger submanager.Logger) *CircuitBreaker {
	if logger == nil {
		logger = &submanager.NoopLogger{}
	}
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = DefaultBreakerSettings().FailureThreshold
	}

	return &CircuitBreaker{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "broker",
			MaxRequests: 1,
			Interval:    0,
			Timeout:     settings.ResetTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= settings.FailureThreshold
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warnf("Circuit breaker %s: %s -> %s", name, from, to)
			},
		}),
	}
}

// State returns the current circuit state.
func (b *CircuitBreaker) State() gobreaker.State {
	return b.cb.State()
}

// CreateQueueForTopics implements submanager.Broker.
func (b *CircuitBreaker) CreateQueueForTopics(ctx context.Context, queue string, topics []string, durable bool) error {
	return b.call(func() error { return b.next.CreateQueueForTopics(ctx, queue, topics, durable) })
}

// BindQueueToTopic implements submanager.Broker.
func (b *CircuitBreaker) BindQueueToTopic(ctx context.Context, queue, topic string, durable bool) error {
	return b.call(func() error { return b.next.BindQueueToTopic(ctx, queue, topic, durable) })
}

// DeleteQueueBinding implements submanager.Broker.
func (b *CircuitBreaker) DeleteQueueBinding(ctx context.Context, queue, topic string) error {
	return b.call(func() error { return b.next.DeleteQueueBinding(ctx, queue, topic) })
}

// DeleteQueue implements submanager.Broker.
func (b *CircuitBreaker) DeleteQueue(ctx context.Context, queue string) error {
	return b.call(func() error { return b.next.DeleteQueue(ctx, queue) })
}

// GetQueue implements submanager.Broker.
func (b *CircuitBreaker) GetQueue(ctx context.Context, queue string) (*submanager.QueueInfo, error) {
	var info *submanager.QueueInfo
	err := b.call(func() error {
		var err error
		info, err = b.next.GetQueue(ctx, queue)
		return err
	})
	return info, err
}

func (b *CircuitBreaker) call(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return submanager.NewBrokerError("broker unavailable", err)
	}
	return err
}
