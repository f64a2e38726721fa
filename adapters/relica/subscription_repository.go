package relica

import (
	"context"
	"database/sql"

	"github.com/coregx/relica"

	"github.com/coregx/submanager"
	"github.com/coregx/submanager/model"
)

// SubscriptionRepository implements submanager.SubscriptionRepository using Relica ORM.
//
// A subscription is stored as one row plus one link row per topic. Writes
// touching both tables run in a single transaction.
type SubscriptionRepository struct {
	db          *relica.DB
	tablePrefix string
}

var _ submanager.SubscriptionRepository = (*SubscriptionRepository)(nil)

// NewSubscriptionRepository creates a new SubscriptionRepository with default table prefix.
func NewSubscriptionRepository(sqlDB *sql.DB, driverName string) *SubscriptionRepository {
	return &SubscriptionRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: DefaultTablePrefix}
}

// NewSubscriptionRepositoryWithPrefix creates a new SubscriptionRepository with custom table prefix.
func NewSubscriptionRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *SubscriptionRepository {
	return &SubscriptionRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *SubscriptionRepository) tableName() string {
	return r.tablePrefix + "subscription"
}

func (r *SubscriptionRepository) linkTableName() string {
	return r.tablePrefix + "subscription_topic"
}

func (r *SubscriptionRepository) topicTableName() string {
	return r.tablePrefix + "topic"
}

// Load retrieves a subscription by ID with its topics, restricted by filter.
func (r *SubscriptionRepository) Load(ctx context.Context, id int64, filter submanager.OwnerFilter) (model.Subscription, error) {
	var row subscriptionRow
	q := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("id = ?", id)
	if !filter.IsZero() {
		q = q.Where("owner_id = ?", filter.OwnerID)
	}
	if err := q.One(&row); err != nil {
		return model.Subscription{}, notFoundOr(err, "failed to load subscription")
	}

	subs, err := r.withTopics(ctx, []subscriptionRow{row})
	if err != nil {
		return model.Subscription{}, err
	}
	return subs[0], nil
}

// List retrieves subscriptions matching filter in creation order.
func (r *SubscriptionRepository) List(ctx context.Context, filter submanager.SubscriptionFilter) ([]model.Subscription, error) {
	var rows []subscriptionRow
	q := r.db.WithContext(ctx).Select("*").From(r.tableName())
	if !filter.IsZero() {
		q = q.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.Active != nil {
		q = q.Where("active = ?", *filter.Active)
	}
	if filter.Queue != "" {
		q = q.Where("queue = ?", filter.Queue)
	}
	if err := q.OrderBy("id ASC").All(&rows); err != nil {
		return nil, classify(err, "failed to list subscriptions")
	}
	return r.withTopics(ctx, rows)
}

// FindByTopic retrieves every subscription bound to topicID.
func (r *SubscriptionRepository) FindByTopic(ctx context.Context, topicID int64) ([]model.Subscription, error) {
	var links []subscriptionTopicRow
	err := r.db.WithContext(ctx).Select("*").From(r.linkTableName()).
		Where("topic_id = ?", topicID).
		All(&links)
	if err != nil {
		return nil, classify(err, "failed to find subscriptions by topic")
	}
	if len(links) == 0 {
		return []model.Subscription{}, nil
	}

	ids := make([]int64, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.SubscriptionID)
	}

	var rows []subscriptionRow
	err = r.db.WithContext(ctx).Select("*").From(r.tableName()).
		Where("id IN ("+placeholders(len(ids))+")", int64Args(ids)...).
		OrderBy("id ASC").
		All(&rows)
	if err != nil {
		return nil, classify(err, "failed to load subscriptions by topic")
	}
	return r.withTopics(ctx, rows)
}

// Create inserts the subscription and its topic links in one transaction.
func (r *SubscriptionRepository) Create(ctx context.Context, m *model.Subscription) error {
	row := newSubscriptionRow(*m)

	err := r.inTx(ctx, func(tx *relica.Tx) error {
		if err := tx.Model(&row).Table(r.tableName()).Insert(); err != nil {
			return classify(err, "failed to insert subscription")
		}
		return r.insertLinks(tx, row.ID, m.Topics)
	})
	if err != nil {
		return err
	}

	m.ID = row.ID
	return nil
}

// Update persists the subscription and replaces its topic links in one transaction.
func (r *SubscriptionRepository) Update(ctx context.Context, m *model.Subscription) error {
	row := newSubscriptionRow(*m)

	return r.inTx(ctx, func(tx *relica.Tx) error {
		if err := tx.Model(&row).Table(r.tableName()).Update(); err != nil {
			return classify(err, "failed to update subscription")
		}
		if err := r.deleteLinks(tx, row.ID); err != nil {
			return err
		}
		return r.insertLinks(tx, row.ID, m.Topics)
	})
}

// Delete removes the subscription and its topic links in one transaction.
func (r *SubscriptionRepository) Delete(ctx context.Context, m *model.Subscription) error {
	row := newSubscriptionRow(*m)

	return r.inTx(ctx, func(tx *relica.Tx) error {
		if err := r.deleteLinks(tx, row.ID); err != nil {
			return err
		}
		if err := tx.Model(&row).Table(r.tableName()).Delete(); err != nil {
			return classify(err, "failed to delete subscription")
		}
		return nil
	})
}

// inTx runs fn in a transaction, rolling back when fn fails.
func (r *SubscriptionRepository) inTx(ctx context.Context, fn func(tx *relica.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return classify(err, "failed to begin transaction")
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return classify(err, "failed to commit transaction")
	}
	return nil
}

func (r *SubscriptionRepository) insertLinks(tx *relica.Tx, subscriptionID int64, topics []model.Topic) error {
	for i, t := range topics {
		link := subscriptionTopicRow{SubscriptionID: subscriptionID, TopicID: t.ID, Position: i}
		if err := tx.Model(&link).Table(r.linkTableName()).Insert(); err != nil {
			return classify(err, "failed to link subscription topic")
		}
	}
	return nil
}

func (r *SubscriptionRepository) deleteLinks(tx *relica.Tx, subscriptionID int64) error {
	_, err := tx.Builder().Delete(r.linkTableName()).
		Where("subscription_id = ?", subscriptionID).
		Execute()
	if err != nil {
		return classify(err, "failed to unlink subscription topics")
	}
	return nil
}

// withTopics loads the topics of rows with two queries and attaches them in
// link order.
func (r *SubscriptionRepository) withTopics(ctx context.Context, rows []subscriptionRow) ([]model.Subscription, error) {
	subs := make([]model.Subscription, 0, len(rows))
	if len(rows) == 0 {
		return subs, nil
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}

	var links []subscriptionTopicRow
	err := r.db.WithContext(ctx).Select("*").From(r.linkTableName()).
		Where("subscription_id IN ("+placeholders(len(ids))+")", int64Args(ids)...).
		OrderBy("subscription_id ASC", "position ASC").
		All(&links)
	if err != nil {
		return nil, classify(err, "failed to load subscription topics")
	}

	topicsByID := make(map[int64]model.Topic)
	if len(links) > 0 {
		topicIDs := make([]int64, 0, len(links))
		for _, l := range links {
			topicIDs = append(topicIDs, l.TopicID)
		}

		var topicRows []topicRow
		err = r.db.WithContext(ctx).Select("*").From(r.topicTableName()).
			Where("id IN ("+placeholders(len(topicIDs))+")", int64Args(topicIDs)...).
			All(&topicRows)
		if err != nil {
			return nil, classify(err, "failed to load topics")
		}
		for _, t := range topicRows {
			topicsByID[t.ID] = t.model()
		}
	}

	linked := make(map[int64][]model.Topic, len(rows))
	for _, l := range links {
		if t, ok := topicsByID[l.TopicID]; ok {
			linked[l.SubscriptionID] = append(linked[l.SubscriptionID], t)
		}
	}

	for _, row := range rows {
		s := row.model()
		s.Topics = linked[row.ID]
		subs = append(subs, s)
	}
	return subs, nil
}
