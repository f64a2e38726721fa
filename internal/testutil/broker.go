package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/coregx/submanager"
)

// Broker is a recording submanager.Broker that keeps queues and bindings
// in memory. Failures are injected per operation with FailOn.
type Broker struct {
	mu      sync.Mutex
	journal *Journal
	faults  faults
	queues  map[string]*fakeQueue
}

type fakeQueue struct {
	durable  bool
	bindings map[string]struct{}
}

var _ submanager.Broker = (*Broker)(nil)

// NewBroker creates an empty broker. A nil journal gets a fresh one.
func NewBroker(journal *Journal) *Broker {
	if journal == nil {
		journal = NewJournal()
	}
	return &Broker{journal: journal, queues: make(map[string]*fakeQueue)}
}

// Journal returns the journal calls are recorded in.
func (b *Broker) Journal() *Journal { return b.journal }

// FailOn makes op ("CreateQueueForTopics", "DeleteQueue", ...) fail with a
// BROKER_ERROR wrapping cause. A nil cause clears the fault.
func (b *Broker) FailOn(op string, cause error) {
	if cause == nil {
		b.faults.set(op, nil)
		return
	}
	b.faults.set(op, submanager.NewBrokerError(op+" failed", cause))
}

// Calls returns how many times op was called, including failed calls.
func (b *Broker) Calls(op string) int {
	return b.journal.Count("broker." + op + " ")
}

// TotalCalls returns the number of broker calls of any kind.
func (b *Broker) TotalCalls() int {
	return b.journal.Count("broker.")
}

// HasQueue reports whether queue exists.
func (b *Broker) HasQueue(queue string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.queues[queue]
	return ok
}

// Bindings returns the sorted topics queue is bound to.
func (b *Broker) Bindings(queue string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[queue]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(q.bindings))
	for t := range q.bindings {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// CreateQueueForTopics implements submanager.Broker.
func (b *Broker) CreateQueueForTopics(_ context.Context, queue string, topics []string, durable bool) error {
	b.journal.Record("broker.CreateQueueForTopics %s %v", queue, topics)
	if err := b.faults.get("CreateQueueForTopics"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.declare(queue, durable)
	for _, t := range topics {
		q.bindings[t] = struct{}{}
	}
	return nil
}

// BindQueueToTopic implements submanager.Broker.
func (b *Broker) BindQueueToTopic(_ context.Context, queue, topic string, durable bool) error {
	b.journal.Record("broker.BindQueueToTopic %s %s", queue, topic)
	if err := b.faults.get("BindQueueToTopic"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.declare(queue, durable).bindings[topic] = struct{}{}
	return nil
}

// DeleteQueueBinding implements submanager.Broker.
func (b *Broker) DeleteQueueBinding(_ context.Context, queue, topic string) error {
	b.journal.Record("broker.DeleteQueueBinding %s %s", queue, topic)
	if err := b.faults.get("DeleteQueueBinding"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if q, ok := b.queues[queue]; ok {
		delete(q.bindings, topic)
	}
	return nil
}

// DeleteQueue implements submanager.Broker.
func (b *Broker) DeleteQueue(_ context.Context, queue string) error {
	b.journal.Record("broker.DeleteQueue %s", queue)
	if err := b.faults.get("DeleteQueue"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.queues, queue)
	return nil
}

// GetQueue implements submanager.Broker.
func (b *Broker) GetQueue(_ context.Context, queue string) (*submanager.QueueInfo, error) {
	b.journal.Record("broker.GetQueue %s", queue)
	if err := b.faults.get("GetQueue"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.queues[queue]; !ok {
		return nil, nil
	}
	return &submanager.QueueInfo{Name: queue}, nil
}

func (b *Broker) declare(queue string, durable bool) *fakeQueue {
	q, ok := b.queues[queue]
	if !ok {
		q = &fakeQueue{durable: durable, bindings: make(map[string]struct{})}
		b.queues[queue] = q
	}
	return q
}
