// Package relica provides Relica ORM implementations for subscription manager repositories.
//
//nolint:dupl // Repository pattern requires similar implementations for different types
package relica

import (
	"context"
	"database/sql"
	"errors"

	"github.com/coregx/relica"

	"github.com/coregx/submanager"
	"github.com/coregx/submanager/model"
)

// TopicRepository implements submanager.TopicRepository using Relica ORM.
type TopicRepository struct {
	db          *relica.DB
	tablePrefix string
}

var _ submanager.TopicRepository = (*TopicRepository)(nil)

// NewTopicRepository creates a new TopicRepository with default table prefix.
func NewTopicRepository(sqlDB *sql.DB, driverName string) *TopicRepository {
	return &TopicRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: DefaultTablePrefix}
}

// NewTopicRepositoryWithPrefix creates a new TopicRepository with custom table prefix.
func NewTopicRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *TopicRepository {
	return &TopicRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *TopicRepository) tableName() string {
	return r.tablePrefix + "topic"
}

// Load retrieves a topic by ID, restricted by filter.
func (r *TopicRepository) Load(ctx context.Context, id int64, filter submanager.OwnerFilter) (model.Topic, error) {
	var row topicRow
	q := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("id = ?", id)
	if !filter.IsZero() {
		q = q.Where("owner_id = ?", filter.OwnerID)
	}
	if err := q.One(&row); err != nil {
		return model.Topic{}, notFoundOr(err, "failed to load topic")
	}
	return row.model(), nil
}

// List retrieves all visible topics in creation order.
func (r *TopicRepository) List(ctx context.Context, filter submanager.OwnerFilter) ([]model.Topic, error) {
	var rows []topicRow
	q := r.db.WithContext(ctx).Select("*").From(r.tableName())
	if !filter.IsZero() {
		q = q.Where("owner_id = ?", filter.OwnerID)
	}
	if err := q.OrderBy("id ASC").All(&rows); err != nil {
		return nil, classify(err, "failed to list topics")
	}
	return topicModels(rows), nil
}

// FindByName retrieves a topic by its unique name.
func (r *TopicRepository) FindByName(ctx context.Context, name string) (model.Topic, error) {
	var row topicRow
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("name = ?", name).One(&row)
	if err != nil {
		return model.Topic{}, notFoundOr(err, "failed to find topic by name")
	}
	return row.model(), nil
}

// FindByNames retrieves the topics with the given names.
func (r *TopicRepository) FindByNames(ctx context.Context, names []string) ([]model.Topic, error) {
	if len(names) == 0 {
		return []model.Topic{}, nil
	}

	var rows []topicRow
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).
		Where("name IN ("+placeholders(len(names))+")", stringArgs(names)...).
		OrderBy("id ASC").
		All(&rows)
	if err != nil {
		return nil, classify(err, "failed to find topics by name")
	}
	return topicModels(rows), nil
}

// Create inserts a topic and populates its ID.
func (r *TopicRepository) Create(ctx context.Context, m *model.Topic) error {
	row := newTopicRow(*m)
	if err := r.db.WithContext(ctx).Model(&row).Table(r.tableName()).Insert(); err != nil {
		return classify(err, "failed to insert topic")
	}
	m.ID = row.ID
	return nil
}

// Update persists a renamed topic.
func (r *TopicRepository) Update(ctx context.Context, m *model.Topic) error {
	row := newTopicRow(*m)
	if err := r.db.WithContext(ctx).Model(&row).Table(r.tableName()).Update(); err != nil {
		return classify(err, "failed to update topic")
	}
	return nil
}

// Delete permanently removes a topic.
func (r *TopicRepository) Delete(ctx context.Context, m *model.Topic) error {
	row := newTopicRow(*m)
	if err := r.db.WithContext(ctx).Model(&row).Table(r.tableName()).Delete(); err != nil {
		return classify(err, "failed to delete topic")
	}
	return nil
}

func topicModels(rows []topicRow) []model.Topic {
	topics := make([]model.Topic, 0, len(rows))
	for _, row := range rows {
		topics = append(topics, row.model())
	}
	return topics
}

// notFoundOr returns submanager.ErrNotFound for a missing row and a
// classified error otherwise.
func notFoundOr(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return submanager.ErrNotFound
	}
	return classify(err, message)
}
