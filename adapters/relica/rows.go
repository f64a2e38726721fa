package relica

import (
	"strings"
	"time"

	"github.com/coregx/submanager/model"
)

// Row types mirror the table layout; the domain models carry relations
// that are not columns.

type topicRow struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	OwnerID   int64     `db:"owner_id"`
	CreatedAt time.Time `db:"created_at"`
}

func newTopicRow(m model.Topic) topicRow {
	return topicRow{ID: m.ID, Name: m.Name, OwnerID: m.OwnerID, CreatedAt: m.CreatedAt}
}

func (r topicRow) model() model.Topic {
	return model.Topic{ID: r.ID, Name: r.Name, OwnerID: r.OwnerID, CreatedAt: r.CreatedAt}
}

type subscriptionRow struct {
	ID        int64     `db:"id"`
	OwnerID   int64     `db:"owner_id"`
	Queue     string    `db:"queue"`
	QoS       string    `db:"qos"`
	Durable   bool      `db:"durable"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
}

func newSubscriptionRow(m model.Subscription) subscriptionRow {
	return subscriptionRow{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Queue:     m.Queue,
		QoS:       string(m.QoS),
		Durable:   m.Durable,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
	}
}

func (r subscriptionRow) model() model.Subscription {
	return model.Subscription{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Queue:     r.Queue,
		QoS:       model.QoS(r.QoS),
		Durable:   r.Durable,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
	}
}

// subscriptionTopicRow links a subscription to one topic. Position keeps
// the order the topics were requested in.
type subscriptionTopicRow struct {
	ID             int64 `db:"id"`
	SubscriptionID int64 `db:"subscription_id"`
	TopicID        int64 `db:"topic_id"`
	Position       int   `db:"position"`
}

type userRow struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	Password  string    `db:"password_hash"`
	Active    bool      `db:"active"`
	IsAdmin   bool      `db:"is_admin"`
	CreatedAt time.Time `db:"created_at"`
}

func newUserRow(m model.User) userRow {
	return userRow{
		ID:        m.ID,
		Username:  m.Username,
		Password:  m.Password,
		Active:    m.Active,
		IsAdmin:   m.IsAdmin,
		CreatedAt: m.CreatedAt,
	}
}

func (r userRow) model() model.User {
	return model.User{
		ID:        r.ID,
		Username:  r.Username,
		Password:  r.Password,
		Active:    r.Active,
		IsAdmin:   r.IsAdmin,
		CreatedAt: r.CreatedAt,
	}
}

// placeholders returns "?, ?, ..." for an IN clause with n values.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func stringArgs(values []string) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
