package submanager

import "fmt"

// SubscriptionManagerOption is a function that configures a SubscriptionManager.
// Used with the Options Pattern for flexible service construction.
//
// Example:
//
//	manager, err := submanager.NewSubscriptionManager(
//	    submanager.WithSubscriptionManagerRepositories(repos.Topic, repos.Subscription),
//	    submanager.WithSubscriptionManagerLifecycle(lifecycle),
//	    submanager.WithSubscriptionManagerLogger(logger),
//	    submanager.WithSubscriptionManagerNotifications(notifications), // optional
//	)
type SubscriptionManagerOption func(*SubscriptionManager) error

// WithSubscriptionManagerRepositories sets the repositories used for reads
// and topic resolution. Both repositories are required and must not be nil.
//
// This is a required option for NewSubscriptionManager.
func WithSubscriptionManagerRepositories(
	topicRepo TopicRepository,
	subscriptionRepo SubscriptionRepository,
) SubscriptionManagerOption {
	return func(sm *SubscriptionManager) error {
		if topicRepo == nil {
			return fmt.Errorf("topicRepo cannot be nil")
		}
		if subscriptionRepo == nil {
			return fmt.Errorf("subscriptionRepo cannot be nil")
		}

		sm.topicRepo = topicRepo
		sm.subscriptionRepo = subscriptionRepo
		return nil
	}
}

// WithSubscriptionManagerLifecycle sets the lifecycle coordinator every
// write goes through.
//
// This is a required option for NewSubscriptionManager.
func WithSubscriptionManagerLifecycle(lifecycle *Lifecycle) SubscriptionManagerOption {
	return func(sm *SubscriptionManager) error {
		if lifecycle == nil {
			return fmt.Errorf("lifecycle cannot be nil")
		}
		sm.lifecycle = lifecycle
		return nil
	}
}

// WithSubscriptionManagerLogger sets the logger instance for the subscription manager.
// Logger is required and must not be nil.
//
// Use NoopLogger for silent operation or NewZapLogger to log through zap.
func WithSubscriptionManagerLogger(logger Logger) SubscriptionManagerOption {
	return func(sm *SubscriptionManager) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		sm.logger = logger
		return nil
	}
}

// WithSubscriptionManagerNotifications sets an optional notification service.
// If not provided, NoOpNotificationService is used.
func WithSubscriptionManagerNotifications(service NotificationService) SubscriptionManagerOption {
	return func(sm *SubscriptionManager) error {
		if service == nil {
			return fmt.Errorf("notification service cannot be nil")
		}
		sm.notifications = service
		return nil
	}
}
