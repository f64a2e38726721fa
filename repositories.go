package submanager

import (
	"context"

	"github.com/coregx/submanager/model"
)

// OwnerFilter narrows queries to the records a caller may see.
// The zero value (OwnerID == 0) matches every record and is what admins get.
type OwnerFilter struct {
	OwnerID int64 // Restrict to records owned by this user (0 = no filter)
}

// IsZero reports whether the filter matches everything.
func (f OwnerFilter) IsZero() bool {
	return f.OwnerID == 0
}

// Matches reports whether a record owned by ownerID passes the filter.
func (f OwnerFilter) Matches(ownerID int64) bool {
	return f.IsZero() || f.OwnerID == ownerID
}

// SubscriptionFilter holds optional list filters for subscriptions.
type SubscriptionFilter struct {
	OwnerFilter
	Active *bool  // Filter by active state (nil = no filter)
	Queue  string // Filter by queue name (empty = no filter)
}

// TopicRepository defines the persistence interface for topics.
//
// Implementations must be safe for concurrent use. Every write runs in its own
// transaction; a uniqueness violation on the topic name is reported as a
// DUPLICATE error and leaves no partial change behind.
type TopicRepository interface {
	// Load retrieves a topic by ID, restricted by filter.
	// Returns ErrNotFound if absent or not visible.
	Load(ctx context.Context, id int64, filter OwnerFilter) (model.Topic, error)

	// List retrieves all visible topics in creation order.
	List(ctx context.Context, filter OwnerFilter) ([]model.Topic, error)

	// FindByName retrieves a topic by its unique name regardless of owner.
	// Returns ErrNotFound if absent.
	FindByName(ctx context.Context, name string) (model.Topic, error)

	// FindByNames retrieves the topics with the given names regardless of
	// owner. Unknown names are skipped; the result follows creation order.
	FindByNames(ctx context.Context, names []string) ([]model.Topic, error)

	// Create inserts m and populates its ID.
	Create(ctx context.Context, m *model.Topic) error

	// Update persists changes to an existing topic.
	Update(ctx context.Context, m *model.Topic) error

	// Delete permanently removes a topic.
	Delete(ctx context.Context, m *model.Topic) error
}

// SubscriptionRepository defines the persistence interface for subscriptions.
// Loaded subscriptions carry their topics in the order they were requested.
type SubscriptionRepository interface {
	// Load retrieves a subscription by ID, restricted by filter.
	// Returns ErrNotFound if absent or not visible.
	Load(ctx context.Context, id int64, filter OwnerFilter) (model.Subscription, error)

	// List retrieves subscriptions matching filter in creation order.
	List(ctx context.Context, filter SubscriptionFilter) ([]model.Subscription, error)

	// FindByTopic retrieves every subscription bound to topicID.
	FindByTopic(ctx context.Context, topicID int64) ([]model.Subscription, error)

	// Create inserts m with its topic links and populates its ID.
	Create(ctx context.Context, m *model.Subscription) error

	// Update persists changes to an existing subscription, including its topic links.
	Update(ctx context.Context, m *model.Subscription) error

	// Delete permanently removes a subscription and its topic links.
	Delete(ctx context.Context, m *model.Subscription) error
}

// UserRepository defines the persistence interface for users.
type UserRepository interface {
	// Load retrieves a user by ID.
	// Returns ErrNotFound if absent.
	Load(ctx context.Context, id int64) (model.User, error)

	// List retrieves all users in creation order.
	List(ctx context.Context) ([]model.User, error)

	// FindByUsername retrieves a user by its unique username.
	// Returns ErrNotFound if absent.
	FindByUsername(ctx context.Context, username string) (model.User, error)

	// Create inserts m and populates its ID.
	Create(ctx context.Context, m *model.User) error

	// Update persists changes to an existing user.
	Update(ctx context.Context, m *model.User) error

	// Delete permanently removes a user.
	Delete(ctx context.Context, m *model.User) error
}
