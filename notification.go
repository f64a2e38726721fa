package submanager

import (
	"context"

	"github.com/coregx/submanager/model"
)

// NotificationService defines an optional interface for announcing lifecycle
// changes (new topics, paused subscriptions, released queues, etc.).
//
// Notifications are sent after the lifecycle event succeeded. Their errors are
// logged and never fail the operation.
type NotificationService interface {
	// NotifyTopicCreated is called after a topic was stored.
	NotifyTopicCreated(ctx context.Context, topic model.Topic) error

	// NotifyTopicUpdated is called after a topic was renamed and its bindings moved.
	NotifyTopicUpdated(ctx context.Context, previous, topic model.Topic) error

	// NotifyTopicDeleted is called after a topic and its subscriptions were removed.
	NotifyTopicDeleted(ctx context.Context, topic model.Topic) error

	// NotifySubscriptionCreated is called after the queue of a new subscription was provisioned.
	NotifySubscriptionCreated(ctx context.Context, subscription model.Subscription) error

	// NotifySubscriptionActiveChanged is called when a subscription was paused or resumed.
	NotifySubscriptionActiveChanged(ctx context.Context, subscription model.Subscription) error

	// NotifySubscriptionDeleted is called after the queue of a subscription was released.
	NotifySubscriptionDeleted(ctx context.Context, subscription model.Subscription) error
}

// NoOpNotificationService is a no-op implementation of NotificationService.
// Use this when notifications are not needed.
type NoOpNotificationService struct{}

// NotifyTopicCreated does nothing.
func (n *NoOpNotificationService) NotifyTopicCreated(_ context.Context, _ model.Topic) error {
	return nil
}

// NotifyTopicUpdated does nothing.
func (n *NoOpNotificationService) NotifyTopicUpdated(_ context.Context, _, _ model.Topic) error {
	return nil
}

// NotifyTopicDeleted does nothing.
func (n *NoOpNotificationService) NotifyTopicDeleted(_ context.Context, _ model.Topic) error {
	return nil
}

// NotifySubscriptionCreated does nothing.
func (n *NoOpNotificationService) NotifySubscriptionCreated(_ context.Context, _ model.Subscription) error {
	return nil
}

// NotifySubscriptionActiveChanged does nothing.
func (n *NoOpNotificationService) NotifySubscriptionActiveChanged(_ context.Context, _ model.Subscription) error {
	return nil
}

// NotifySubscriptionDeleted does nothing.
func (n *NoOpNotificationService) NotifySubscriptionDeleted(_ context.Context, _ model.Subscription) error {
	return nil
}

// LoggingNotificationService is a simple implementation that logs notifications.
type LoggingNotificationService struct {
	logger Logger
}

// NewLoggingNotificationService creates a new LoggingNotificationService.
func NewLoggingNotificationService(logger Logger) *LoggingNotificationService {
	return &LoggingNotificationService{logger: logger}
}

// NotifyTopicCreated logs topic creation.
func (n *LoggingNotificationService) NotifyTopicCreated(_ context.Context, topic model.Topic) error {
	n.logger.Infof("Topic created: id=%d, name=%s, owner=%d", topic.ID, topic.Name, topic.OwnerID)
	return nil
}

// NotifyTopicUpdated logs a topic rename.
func (n *LoggingNotificationService) NotifyTopicUpdated(_ context.Context, previous, topic model.Topic) error {
	n.logger.Infof("Topic updated: id=%d, %s -> %s", topic.ID, previous.Name, topic.Name)
	return nil
}

// NotifyTopicDeleted logs topic deletion.
func (n *LoggingNotificationService) NotifyTopicDeleted(_ context.Context, topic model.Topic) error {
	n.logger.Warnf("Topic deleted: id=%d, name=%s", topic.ID, topic.Name)
	return nil
}

// NotifySubscriptionCreated logs subscription creation.
func (n *LoggingNotificationService) NotifySubscriptionCreated(_ context.Context, subscription model.Subscription) error {
	n.logger.Infof("Subscription created: id=%d, owner=%d, queue=%s, topics=%v",
		subscription.ID, subscription.OwnerID, subscription.Queue, subscription.TopicNames())
	return nil
}

// NotifySubscriptionActiveChanged logs a pause or resume.
func (n *LoggingNotificationService) NotifySubscriptionActiveChanged(_ context.Context, subscription model.Subscription) error {
	state := "resumed"
	if !subscription.Active {
		state = "paused"
	}
	n.logger.Infof("Subscription %s: id=%d, queue=%s", state, subscription.ID, subscription.Queue)
	return nil
}

// NotifySubscriptionDeleted logs subscription deletion.
func (n *LoggingNotificationService) NotifySubscriptionDeleted(_ context.Context, subscription model.Subscription) error {
	n.logger.Warnf("Subscription deleted: id=%d, queue=%s", subscription.ID, subscription.Queue)
	return nil
}
