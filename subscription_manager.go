package submanager

import (
	"context"
	"fmt"

	"github.com/coregx/submanager/model"
)

// SubscriptionManager is the entry point for topic and subscription requests.
// It validates payloads, applies ownership rules and hands every write to the
// Lifecycle so the database and the broker change together.
//
// Key operations:
//   - CreateTopic / UpdateTopic / DeleteTopic: manage publication channels
//   - CreateSubscription: store a subscription and provision its queue
//   - UpdateSubscription: partial update; pausing or resuming rebinds the queue
//   - DeleteSubscription: release the queue and remove the record
//
// Non-admin callers only see what they own. Records owned by someone else are
// reported as not found.
//
// Thread safety: Safe for concurrent use.
type SubscriptionManager struct {
	topicRepo        TopicRepository
	subscriptionRepo SubscriptionRepository
	lifecycle        *Lifecycle
	logger           Logger
	notifications    NotificationService
}

// NewSubscriptionManager creates a new SubscriptionManager with the provided options.
//
// Required options:
//   - WithSubscriptionManagerRepositories: topic and subscription repositories
//   - WithSubscriptionManagerLifecycle: lifecycle coordinator
//   - WithSubscriptionManagerLogger: logger instance
func NewSubscriptionManager(opts ...SubscriptionManagerOption) (*SubscriptionManager, error) {
	sm := &SubscriptionManager{
		notifications: &NoOpNotificationService{},
	}

	for _, opt := range opts {
		if err := opt(sm); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply subscription manager option", err)
		}
	}

	// Validate required dependencies
	if sm.topicRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "TopicRepository is required")
	}
	if sm.subscriptionRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "SubscriptionRepository is required")
	}
	if sm.lifecycle == nil {
		return nil, NewError(ErrCodeConfiguration, "Lifecycle is required")
	}
	if sm.logger == nil {
		return nil, NewError(ErrCodeConfiguration, "Logger is required")
	}

	return sm, nil
}

// Topics

// CreateTopic stores a new topic owned by caller.
// Returns a DUPLICATE error if the name is taken.
func (sm *SubscriptionManager) CreateTopic(ctx context.Context, caller Caller, req TopicRequest) (*model.Topic, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	topic := model.NewTopic(req.Name, caller.UserID)
	if err := sm.lifecycle.CreateTopic(ctx, &topic); err != nil {
		return nil, err
	}

	if err := sm.notifications.NotifyTopicCreated(ctx, topic); err != nil {
		sm.logger.Warnf("Topic created notification failed: id=%d: %v", topic.ID, err)
	}

	return &topic, nil
}

// GetTopic retrieves a topic visible to caller.
func (sm *SubscriptionManager) GetTopic(ctx context.Context, caller Caller, id int64) (*model.Topic, error) {
	topic, err := sm.topicRepo.Load(ctx, id, OwnerFilterFor(caller))
	if err != nil {
		return nil, storageError(err, "failed to load topic")
	}
	return &topic, nil
}

// ListTopics returns the topics visible to caller in creation order.
// Returns an empty slice if there are none.
func (sm *SubscriptionManager) ListTopics(ctx context.Context, caller Caller) ([]model.Topic, error) {
	topics, err := sm.topicRepo.List(ctx, OwnerFilterFor(caller))
	if err != nil {
		return nil, storageError(err, "failed to list topics")
	}
	if topics == nil {
		topics = []model.Topic{}
	}
	return topics, nil
}

// UpdateTopic renames a topic. Active subscriptions bound to it are moved to
// the new routing key.
func (sm *SubscriptionManager) UpdateTopic(ctx context.Context, caller Caller, id int64, req TopicRequest) (*model.Topic, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	previous, err := sm.topicRepo.Load(ctx, id, OwnerFilterFor(caller))
	if err != nil {
		return nil, storageError(err, "failed to load topic")
	}

	proposed := previous
	proposed.Name = req.Name
	if err := sm.lifecycle.UpdateTopic(ctx, TopicChange{Previous: &previous, Proposed: &proposed}); err != nil {
		return nil, err
	}

	if err := sm.notifications.NotifyTopicUpdated(ctx, previous, proposed); err != nil {
		sm.logger.Warnf("Topic updated notification failed: id=%d: %v", proposed.ID, err)
	}

	return &proposed, nil
}

// DeleteTopic removes a topic together with every subscription bound to it,
// including subscriptions owned by other users.
func (sm *SubscriptionManager) DeleteTopic(ctx context.Context, caller Caller, id int64) error {
	topic, err := sm.topicRepo.Load(ctx, id, OwnerFilterFor(caller))
	if err != nil {
		return storageError(err, "failed to load topic")
	}

	if err := sm.lifecycle.DeleteTopic(ctx, &topic); err != nil {
		return err
	}

	if err := sm.notifications.NotifyTopicDeleted(ctx, topic); err != nil {
		sm.logger.Warnf("Topic deleted notification failed: id=%d: %v", topic.ID, err)
	}
	return nil
}

// Subscriptions

// CreateSubscription validates the payload, resolves the topic names and
// creates the subscription with a fresh queue.
//
// Validation happens before anything is written:
//   - Topics must not be empty
//   - Every topic name must resolve to an existing topic
//   - QoS must be one of the supported levels
func (sm *SubscriptionManager) CreateSubscription(ctx context.Context, caller Caller, req SubscriptionRequest) (*model.Subscription, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	topics, err := sm.resolveTopics(ctx, req.Topics)
	if err != nil {
		return nil, err
	}

	subscription := model.NewSubscription(caller.UserID, topics, req.QoS, req.Durable)
	if req.Active != nil {
		subscription.Active = *req.Active
	}

	if err := sm.lifecycle.CreateSubscription(ctx, &subscription); err != nil {
		return nil, err
	}

	if err := sm.notifications.NotifySubscriptionCreated(ctx, subscription); err != nil {
		sm.logger.Warnf("Subscription created notification failed: id=%d: %v", subscription.ID, err)
	}

	return &subscription, nil
}

// GetSubscription retrieves a subscription visible to caller.
func (sm *SubscriptionManager) GetSubscription(ctx context.Context, caller Caller, id int64) (*model.Subscription, error) {
	subscription, err := sm.subscriptionRepo.Load(ctx, id, OwnerFilterFor(caller))
	if err != nil {
		return nil, storageError(err, "failed to load subscription")
	}
	return &subscription, nil
}

// ListSubscriptions returns the subscriptions visible to caller matching filter.
// The owner part of filter is always derived from caller.
// Returns an empty slice if there are none.
func (sm *SubscriptionManager) ListSubscriptions(ctx context.Context, caller Caller, filter SubscriptionFilter) ([]model.Subscription, error) {
	filter.OwnerFilter = OwnerFilterFor(caller)

	subscriptions, err := sm.subscriptionRepo.List(ctx, filter)
	if err != nil {
		return nil, storageError(err, "failed to list subscriptions")
	}
	if subscriptions == nil {
		subscriptions = []model.Subscription{}
	}
	return subscriptions, nil
}

// UpdateSubscription applies a partial update. Only a change of Active
// touches the broker; the queue name never changes.
func (sm *SubscriptionManager) UpdateSubscription(ctx context.Context, caller Caller, id int64, upd SubscriptionUpdate) (*model.Subscription, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	previous, err := sm.subscriptionRepo.Load(ctx, id, OwnerFilterFor(caller))
	if err != nil {
		return nil, storageError(err, "failed to load subscription")
	}

	proposed := previous.Clone()
	if upd.Topics != nil {
		topics, err := sm.resolveTopics(ctx, upd.Topics)
		if err != nil {
			return nil, err
		}
		proposed.Topics = topics
	}
	if upd.QoS != nil {
		proposed.QoS = *upd.QoS
	}
	if upd.Durable != nil {
		proposed.Durable = *upd.Durable
	}
	if upd.Active != nil {
		proposed.Active = *upd.Active
	}
	proposed.Queue = previous.Queue

	change := SubscriptionChange{Previous: &previous, Proposed: &proposed}
	if err := sm.lifecycle.UpdateSubscription(ctx, change); err != nil {
		return nil, err
	}

	if previous.Active != proposed.Active {
		if err := sm.notifications.NotifySubscriptionActiveChanged(ctx, proposed); err != nil {
			sm.logger.Warnf("Subscription state notification failed: id=%d: %v", proposed.ID, err)
		}
	}

	return &proposed, nil
}

// DeleteSubscription releases the broker queue and removes the subscription.
func (sm *SubscriptionManager) DeleteSubscription(ctx context.Context, caller Caller, id int64) error {
	subscription, err := sm.subscriptionRepo.Load(ctx, id, OwnerFilterFor(caller))
	if err != nil {
		return storageError(err, "failed to load subscription")
	}

	if err := sm.lifecycle.DeleteSubscription(ctx, &subscription); err != nil {
		return err
	}

	if err := sm.notifications.NotifySubscriptionDeleted(ctx, subscription); err != nil {
		sm.logger.Warnf("Subscription deleted notification failed: id=%d: %v", subscription.ID, err)
	}
	return nil
}

// resolveTopics maps names to stored topics, keeping the request order and
// dropping repeated names.
func (sm *SubscriptionManager) resolveTopics(ctx context.Context, names []string) ([]model.Topic, error) {
	unique := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		unique = append(unique, name)
	}

	found, err := sm.topicRepo.FindByNames(ctx, unique)
	if err != nil {
		return nil, storageError(err, "failed to resolve topics")
	}

	byName := make(map[string]model.Topic, len(found))
	for _, t := range found {
		byName[t.Name] = t
	}

	topics := make([]model.Topic, 0, len(unique))
	for _, name := range unique {
		t, ok := byName[name]
		if !ok {
			return nil, NewError(ErrCodeValidation, fmt.Sprintf("there is no topic with name %q", name))
		}
		topics = append(topics, t)
	}
	return topics, nil
}

// storageError keeps categorized repository errors and wraps anything else
// as a DATABASE_ERROR.
func storageError(err error, message string) error {
	if ErrorCode(err) != "" {
		return err
	}
	return NewErrorWithCause(ErrCodeDatabase, message, err)
}
