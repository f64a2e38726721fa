package model

import "time"

// Topic represents a named publication channel that subscriptions bind to.
//
// Topic names are globally unique. A topic alone does not provision any broker
// resources; queues are bound to it by subscriptions.
type Topic struct {
	ID        int64     `json:"id"`        // Unique topic ID
	Name      string    `json:"name"`      // Unique topic name, also the broker routing key
	OwnerID   int64     `json:"-"`         // User who created the topic
	CreatedAt time.Time `json:"createdAt"` // Topic creation time

	// Subscriptions bound to this topic. Populated on demand by the
	// lifecycle handlers, never persisted through the topic.
	Subscriptions []Subscription `json:"-"`
}

// TableName returns the database table name for Topic.
func (t Topic) TableName() string {
	return tablePrefix + "topic"
}

// NewTopic creates a new topic owned by ownerID.
func NewTopic(name string, ownerID int64) Topic {
	return Topic{
		ID:        0,
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: time.Now(),
	}
}
