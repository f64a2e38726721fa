package model

import (
	"fmt"
	"time"
)

// QoS is the delivery-guarantee level requested for a subscription.
type QoS string

const (
	// QoSAtMostOnce delivers each message zero or one time.
	QoSAtMostOnce QoS = "AT_MOST_ONCE"

	// QoSAtLeastOnce delivers each message one or more times.
	QoSAtLeastOnce QoS = "AT_LEAST_ONCE"

	// QoSExactlyOnce delivers each message exactly one time.
	QoSExactlyOnce QoS = "EXACTLY_ONCE"
)

// QoSLevels lists every accepted QoS value.
var QoSLevels = []QoS{QoSAtMostOnce, QoSAtLeastOnce, QoSExactlyOnce}

// ParseQoS converts s into a QoS, rejecting unknown values.
func ParseQoS(s string) (QoS, error) {
	for _, q := range QoSLevels {
		if string(q) == s {
			return q, nil
		}
	}
	return "", fmt.Errorf("unknown qos %q", s)
}

// Subscription binds a client to one or more topics through a broker queue.
//
// Each subscription:
//   - Belongs to exactly one owner
//   - References an ordered, non-empty list of topics
//   - Owns exactly one broker queue, assigned at creation and never changed
//   - Can be paused (Active=false) which unbinds the queue from its topics
type Subscription struct {
	ID        int64     `json:"id"`        // Unique subscription ID
	OwnerID   int64     `json:"-"`         // User who owns this subscription
	Topics    []Topic   `json:"topics"`    // Topics the queue is bound to, in request order
	Queue     string    `json:"queue"`     // Broker queue name (immutable)
	QoS       QoS       `json:"qos"`       // Delivery guarantee level
	Durable   bool      `json:"durable"`   // Whether the broker queue survives restarts
	Active    bool      `json:"active"`    // Active subscriptions are bound in the broker
	CreatedAt time.Time `json:"createdAt"` // Subscription creation time
}

// TableName returns the database table name for Subscription.
func (m Subscription) TableName() string {
	return tablePrefix + "subscription"
}

// TopicsTableName returns the name of the subscription/topic link table.
func (m Subscription) TopicsTableName() string {
	return tablePrefix + "subscription_topic"
}

// NewSubscription creates a new active subscription for topics.
// The queue name is assigned later by the create handler.
func NewSubscription(ownerID int64, topics []Topic, qos QoS, durable bool) Subscription {
	return Subscription{
		ID:        0,
		OwnerID:   ownerID,
		Topics:    topics,
		QoS:       qos,
		Durable:   durable,
		Active:    true,
		CreatedAt: time.Now(),
	}
}

// TopicNames returns the names of the bound topics in order.
func (m Subscription) TopicNames() []string {
	names := make([]string, 0, len(m.Topics))
	for _, t := range m.Topics {
		names = append(names, t.Name)
	}
	return names
}

// Clone returns a copy that does not share the Topics slice.
func (m Subscription) Clone() Subscription {
	c := m
	c.Topics = append([]Topic(nil), m.Topics...)
	return c
}
