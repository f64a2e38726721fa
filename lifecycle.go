package submanager

import (
	"context"
	"fmt"

	"github.com/coregx/submanager/model"
)

// Lifecycle event names.
const (
	EventCreateTopic        = "create topic"
	EventUpdateTopic        = "update topic"
	EventDeleteTopic        = "delete topic"
	EventCreateSubscription = "create subscription"
	EventUpdateSubscription = "update subscription"
	EventDeleteSubscription = "delete subscription"
)

// TopicChange carries the stored and the proposed state of a topic.
type TopicChange struct {
	Previous *model.Topic
	Proposed *model.Topic
}

// SubscriptionChange carries the stored and the proposed state of a subscription.
type SubscriptionChange struct {
	Previous *model.Subscription
	Proposed *model.Subscription
}

// Lifecycle keeps the relational records, the broker queues and the broker
// bindings consistent when topics and subscriptions change.
//
// Each operation is an event with a fixed handler order built once by
// NewLifecycle. There is no transaction spanning the database and the broker:
// a failure after the first step leaves the earlier steps in place and is
// returned to the caller. WithCompensation switches the subscription events
// to all-or-nothing variants that undo completed steps.
//
// Thread safety: Safe for concurrent use.
type Lifecycle struct {
	topicRepo        TopicRepository
	subscriptionRepo SubscriptionRepository
	broker           Broker
	logger           Logger
	compensate       bool

	createTopic        Dispatcher[*model.Topic]
	updateTopic        Dispatcher[TopicChange]
	deleteTopic        Dispatcher[*model.Topic]
	createSubscription Dispatcher[*model.Subscription]
	updateSubscription Dispatcher[SubscriptionChange]
	deleteSubscription Dispatcher[*model.Subscription]
}

// LifecycleOption is a function that configures a Lifecycle.
type LifecycleOption func(*Lifecycle) error

// NewLifecycle creates the lifecycle coordinator and binds its events.
//
// Required options:
//   - WithLifecycleRepositories: topic and subscription repositories
//   - WithLifecycleBroker: broker gateway
//
// Optional options:
//   - WithLifecycleLogger: logger instance (default: NoopLogger)
//   - WithCompensation: undo completed steps of subscription events on failure
func NewLifecycle(opts ...LifecycleOption) (*Lifecycle, error) {
	lc := &Lifecycle{logger: &NoopLogger{}}

	for _, opt := range opts {
		if err := opt(lc); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply lifecycle option", err)
		}
	}

	if lc.topicRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "TopicRepository is required (use WithLifecycleRepositories)")
	}
	if lc.subscriptionRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "SubscriptionRepository is required (use WithLifecycleRepositories)")
	}
	if lc.broker == nil {
		return nil, NewError(ErrCodeConfiguration, "Broker is required (use WithLifecycleBroker)")
	}

	lc.bind()
	return lc, nil
}

// WithLifecycleRepositories sets the repositories the handlers write to.
func WithLifecycleRepositories(topicRepo TopicRepository, subscriptionRepo SubscriptionRepository) LifecycleOption {
	return func(lc *Lifecycle) error {
		if topicRepo == nil {
			return fmt.Errorf("topicRepo cannot be nil")
		}
		if subscriptionRepo == nil {
			return fmt.Errorf("subscriptionRepo cannot be nil")
		}
		lc.topicRepo = topicRepo
		lc.subscriptionRepo = subscriptionRepo
		return nil
	}
}

// WithLifecycleBroker sets the broker gateway.
func WithLifecycleBroker(broker Broker) LifecycleOption {
	return func(lc *Lifecycle) error {
		if broker == nil {
			return fmt.Errorf("broker cannot be nil")
		}
		lc.broker = broker
		return nil
	}
}

// WithLifecycleLogger sets the logger instance.
func WithLifecycleLogger(logger Logger) LifecycleOption {
	return func(lc *Lifecycle) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		lc.logger = logger
		return nil
	}
}

// WithCompensation makes subscription creation and update all-or-nothing:
// when a later step fails, completed steps are undone before the error is
// returned. Off by default.
func WithCompensation() LifecycleOption {
	return func(lc *Lifecycle) error {
		lc.compensate = true
		return nil
	}
}

func (lc *Lifecycle) bind() {
	lc.createTopic = NewEvent(EventCreateTopic, lc.createTopicHandler)
	lc.updateTopic = NewEvent(EventUpdateTopic, lc.updateTopicHandler)
	lc.deleteTopic = NewEvent(EventDeleteTopic,
		lc.deleteTopicSubscriptionsHandler,
		lc.deleteTopicHandler,
	)
	lc.deleteSubscription = NewEvent(EventDeleteSubscription, lc.deleteSubscriptionHandler)

	if !lc.compensate {
		lc.createSubscription = NewEvent(EventCreateSubscription, lc.createSubscriptionHandler)
		lc.updateSubscription = NewEvent(EventUpdateSubscription, lc.updateSubscriptionHandler)
		return
	}

	lc.createSubscription = NewCompensatingEvent(EventCreateSubscription,
		Step[*model.Subscription]{Name: "persist", Do: lc.persistSubscription, Undo: lc.unpersistSubscription},
		Step[*model.Subscription]{Name: "provision", Do: lc.provisionQueue, Undo: lc.releaseQueue},
	)
	lc.updateSubscription = NewCompensatingEvent(EventUpdateSubscription,
		Step[SubscriptionChange]{Name: "rebind", Do: lc.applyActiveState, Undo: lc.revertActiveState},
		Step[SubscriptionChange]{Name: "persist", Do: lc.persistSubscriptionChange},
	)
}

// CreateTopic fires the create topic event. t.ID is populated on success.
func (lc *Lifecycle) CreateTopic(ctx context.Context, t *model.Topic) error {
	return lc.createTopic.Fire(ctx, t)
}

// UpdateTopic fires the update topic event.
func (lc *Lifecycle) UpdateTopic(ctx context.Context, change TopicChange) error {
	return lc.updateTopic.Fire(ctx, change)
}

// DeleteTopic fires the delete topic event: every bound subscription is torn
// down before the topic row is removed.
func (lc *Lifecycle) DeleteTopic(ctx context.Context, t *model.Topic) error {
	return lc.deleteTopic.Fire(ctx, t)
}

// CreateSubscription fires the create subscription event. s.ID and s.Queue
// are populated on success.
func (lc *Lifecycle) CreateSubscription(ctx context.Context, s *model.Subscription) error {
	return lc.createSubscription.Fire(ctx, s)
}

// UpdateSubscription fires the update subscription event.
func (lc *Lifecycle) UpdateSubscription(ctx context.Context, change SubscriptionChange) error {
	return lc.updateSubscription.Fire(ctx, change)
}

// DeleteSubscription fires the delete subscription event.
func (lc *Lifecycle) DeleteSubscription(ctx context.Context, s *model.Subscription) error {
	return lc.deleteSubscription.Fire(ctx, s)
}

// Topic handlers

func (lc *Lifecycle) createTopicHandler(ctx context.Context, t *model.Topic) error {
	if err := lc.topicRepo.Create(ctx, t); err != nil {
		return err
	}
	lc.logger.Infof("Topic created: id=%d, name=%s", t.ID, t.Name)
	return nil
}

// updateTopicHandler persists the topic and, on rename, moves the bindings of
// every active subscription from the old routing key to the new one.
func (lc *Lifecycle) updateTopicHandler(ctx context.Context, change TopicChange) error {
	if err := lc.topicRepo.Update(ctx, change.Proposed); err != nil {
		return err
	}
	if change.Previous.Name == change.Proposed.Name {
		return nil
	}

	subs, err := lc.subscriptionRepo.FindByTopic(ctx, change.Proposed.ID)
	if err != nil {
		return err
	}
	rebound := 0
	for _, s := range subs {
		if !s.Active {
			continue
		}
		if err := lc.broker.DeleteQueueBinding(ctx, s.Queue, change.Previous.Name); err != nil {
			return err
		}
		if err := lc.broker.BindQueueToTopic(ctx, s.Queue, change.Proposed.Name, s.Durable); err != nil {
			return err
		}
		rebound++
	}
	lc.logger.Infof("Topic renamed: id=%d, %s -> %s, rebound=%d", change.Proposed.ID,
		change.Previous.Name, change.Proposed.Name, rebound)
	return nil
}

// deleteTopicSubscriptionsHandler tears down every subscription bound to t.
// It iterates over a snapshot so the topic is detached before its row goes.
func (lc *Lifecycle) deleteTopicSubscriptionsHandler(ctx context.Context, t *model.Topic) error {
	subs, err := lc.subscriptionRepo.FindByTopic(ctx, t.ID)
	if err != nil {
		return err
	}
	t.Subscriptions = subs

	for i := range subs {
		if err := lc.deleteSubscriptionHandler(ctx, &subs[i]); err != nil {
			return err
		}
	}
	t.Subscriptions = nil
	return nil
}

func (lc *Lifecycle) deleteTopicHandler(ctx context.Context, t *model.Topic) error {
	if err := lc.topicRepo.Delete(ctx, t); err != nil {
		return err
	}
	lc.logger.Infof("Topic deleted: id=%d, name=%s", t.ID, t.Name)
	return nil
}

// Subscription handlers

// createSubscriptionHandler assigns the queue, stores the row and then
// provisions the broker. A broker failure leaves the row in place.
func (lc *Lifecycle) createSubscriptionHandler(ctx context.Context, s *model.Subscription) error {
	if err := lc.persistSubscription(ctx, s); err != nil {
		return err
	}
	return lc.provisionQueue(ctx, s)
}

func (lc *Lifecycle) persistSubscription(ctx context.Context, s *model.Subscription) error {
	s.Queue = GenerateQueue()
	if err := lc.subscriptionRepo.Create(ctx, s); err != nil {
		return err
	}
	lc.logger.Infof("Subscription stored: id=%d, queue=%s", s.ID, s.Queue)
	return nil
}

func (lc *Lifecycle) unpersistSubscription(ctx context.Context, s *model.Subscription) error {
	if s.ID == 0 {
		return nil
	}
	return lc.subscriptionRepo.Delete(ctx, s)
}

// provisionQueue creates the queue. A subscription created paused gets its
// queue without bindings; resuming it binds the topics.
func (lc *Lifecycle) provisionQueue(ctx context.Context, s *model.Subscription) error {
	var topics []string
	if s.Active {
		topics = s.TopicNames()
	}
	if err := lc.broker.CreateQueueForTopics(ctx, s.Queue, topics, s.Durable); err != nil {
		lc.logger.Errorf("Queue provisioning failed: subscription=%d, queue=%s: %v", s.ID, s.Queue, err)
		return err
	}
	lc.logger.Debugf("Queue provisioned: queue=%s, topics=%v", s.Queue, topics)
	return nil
}

func (lc *Lifecycle) releaseQueue(ctx context.Context, s *model.Subscription) error {
	return lc.broker.DeleteQueue(ctx, s.Queue)
}

// updateSubscriptionHandler rebinds the queue when the active flag flips and
// then persists the proposed state.
func (lc *Lifecycle) updateSubscriptionHandler(ctx context.Context, change SubscriptionChange) error {
	if err := lc.applyActiveState(ctx, change); err != nil {
		return err
	}
	return lc.persistSubscriptionChange(ctx, change)
}

// applyActiveState unbinds the previously bound topics on pause and binds the
// proposed topics on resume. Nothing happens when Active is unchanged.
func (lc *Lifecycle) applyActiveState(ctx context.Context, change SubscriptionChange) error {
	prev, next := change.Previous, change.Proposed
	if prev.Active == next.Active {
		return nil
	}

	if !next.Active {
		for _, t := range prev.Topics {
			if err := lc.broker.DeleteQueueBinding(ctx, next.Queue, t.Name); err != nil {
				return err
			}
		}
		lc.logger.Infof("Subscription paused: id=%d, queue=%s", next.ID, next.Queue)
		return nil
	}

	for _, t := range next.Topics {
		if err := lc.broker.BindQueueToTopic(ctx, next.Queue, t.Name, next.Durable); err != nil {
			return err
		}
	}
	lc.logger.Infof("Subscription resumed: id=%d, queue=%s", next.ID, next.Queue)
	return nil
}

func (lc *Lifecycle) revertActiveState(ctx context.Context, change SubscriptionChange) error {
	return lc.applyActiveState(ctx, SubscriptionChange{Previous: change.Proposed, Proposed: change.Previous})
}

func (lc *Lifecycle) persistSubscriptionChange(ctx context.Context, change SubscriptionChange) error {
	return lc.subscriptionRepo.Update(ctx, change.Proposed)
}

// deleteSubscriptionHandler releases the broker queue and then removes the row.
func (lc *Lifecycle) deleteSubscriptionHandler(ctx context.Context, s *model.Subscription) error {
	if err := lc.broker.DeleteQueue(ctx, s.Queue); err != nil {
		return err
	}
	if err := lc.subscriptionRepo.Delete(ctx, s); err != nil {
		return err
	}
	lc.logger.Infof("Subscription deleted: id=%d, queue=%s", s.ID, s.Queue)
	return nil
}
