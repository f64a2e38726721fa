package relica

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/submanager"
	"github.com/coregx/submanager/model"
)

func newSQLiteRepositories(t *testing.T) *Repositories {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "submanager.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, submanager.ApplyMigrations(context.Background(), db, "sqlite3"))
	return NewRepositories(db, "sqlite3")
}

func createTopics(t *testing.T, repos *Repositories, owner int64, names ...string) []model.Topic {
	t.Helper()
	topics := make([]model.Topic, 0, len(names))
	for _, name := range names {
		topic := model.NewTopic(name, owner)
		require.NoError(t, repos.Topic.Create(context.Background(), &topic))
		topics = append(topics, topic)
	}
	return topics
}

func topicNames(s model.Subscription) []string {
	names := make([]string, 0, len(s.Topics))
	for _, t := range s.Topics {
		names = append(names, t.Name)
	}
	return names
}

func TestTopicRepository_CreateDuplicate(t *testing.T) {
	repos := newSQLiteRepositories(t)
	ctx := context.Background()
	createTopics(t, repos, 1, "weather")

	again := model.NewTopic("weather", 2)
	err := repos.Topic.Create(ctx, &again)

	assert.True(t, submanager.IsDuplicate(err), "got %v", err)
	topics, err := repos.Topic.List(ctx, submanager.OwnerFilter{})
	require.NoError(t, err)
	assert.Len(t, topics, 1)
}

func TestTopicRepository_LoadOwnerFilter(t *testing.T) {
	repos := newSQLiteRepositories(t)
	ctx := context.Background()
	topic := createTopics(t, repos, 1, "weather")[0]

	loaded, err := repos.Topic.Load(ctx, topic.ID, submanager.OwnerFilter{OwnerID: 1})
	require.NoError(t, err)
	assert.Equal(t, "weather", loaded.Name)

	_, err = repos.Topic.Load(ctx, topic.ID, submanager.OwnerFilter{OwnerID: 2})
	assert.True(t, submanager.IsNotFound(err))

	_, err = repos.Topic.Load(ctx, topic.ID, submanager.OwnerFilter{})
	assert.NoError(t, err)

	_, err = repos.Topic.Load(ctx, 999, submanager.OwnerFilter{})
	assert.True(t, submanager.IsNotFound(err))
}

func TestTopicRepository_FindByNamesAndRename(t *testing.T) {
	repos := newSQLiteRepositories(t)
	ctx := context.Background()
	createTopics(t, repos, 1, "weather", "traffic", "news")

	found, err := repos.Topic.FindByNames(ctx, []string{"news", "sports", "weather"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "weather", found[0].Name)
	assert.Equal(t, "news", found[1].Name)

	traffic, err := repos.Topic.FindByName(ctx, "traffic")
	require.NoError(t, err)
	traffic.Name = "news"
	assert.True(t, submanager.IsDuplicate(repos.Topic.Update(ctx, &traffic)))

	traffic.Name = "roads"
	require.NoError(t, repos.Topic.Update(ctx, &traffic))
	_, err = repos.Topic.FindByName(ctx, "traffic")
	assert.True(t, submanager.IsNotFound(err))
}

func TestSubscriptionRepository_TopicOrderRoundTrip(t *testing.T) {
	repos := newSQLiteRepositories(t)
	ctx := context.Background()
	topics := createTopics(t, repos, 1, "weather", "traffic")

	// Request order differs from topic creation order
	sub := model.NewSubscription(2, []model.Topic{topics[1], topics[0]}, model.QoSExactlyOnce, true)
	sub.Queue = "q-order"
	require.NoError(t, repos.Subscription.Create(ctx, &sub))
	require.NotZero(t, sub.ID)

	loaded, err := repos.Subscription.Load(ctx, sub.ID, submanager.OwnerFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"traffic", "weather"}, topicNames(loaded))
	assert.Equal(t, "q-order", loaded.Queue)
	assert.Equal(t, model.QoSExactlyOnce, loaded.QoS)
	assert.True(t, loaded.Durable)
	assert.True(t, loaded.Active)

	_, err = repos.Subscription.Load(ctx, sub.ID, submanager.OwnerFilter{OwnerID: 1})
	assert.True(t, submanager.IsNotFound(err))
}

func TestSubscriptionRepository_UpdateReplacesLinks(t *testing.T) {
	repos := newSQLiteRepositories(t)
	ctx := context.Background()
	topics := createTopics(t, repos, 1, "weather", "traffic", "news")

	sub := model.NewSubscription(2, []model.Topic{topics[0], topics[1]}, model.QoSAtLeastOnce, false)
	sub.Queue = "q-update"
	require.NoError(t, repos.Subscription.Create(ctx, &sub))

	sub.Topics = []model.Topic{topics[2], topics[0]}
	sub.Active = false
	sub.QoS = model.QoSAtMostOnce
	require.NoError(t, repos.Subscription.Update(ctx, &sub))

	loaded, err := repos.Subscription.Load(ctx, sub.ID, submanager.OwnerFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"news", "weather"}, topicNames(loaded))
	assert.False(t, loaded.Active)
	assert.Equal(t, model.QoSAtMostOnce, loaded.QoS)

	bound, err := repos.Subscription.FindByTopic(ctx, topics[1].ID)
	require.NoError(t, err)
	assert.Empty(t, bound)
}

func TestSubscriptionRepository_DuplicateQueueRollsBack(t *testing.T) {
	repos := newSQLiteRepositories(t)
	ctx := context.Background()
	topics := createTopics(t, repos, 1, "weather")

	first := model.NewSubscription(2, topics, model.QoSAtLeastOnce, false)
	first.Queue = "q-same"
	require.NoError(t, repos.Subscription.Create(ctx, &first))

	second := model.NewSubscription(3, topics, model.QoSAtLeastOnce, false)
	second.Queue = "q-same"
	err := repos.Subscription.Create(ctx, &second)
	assert.True(t, submanager.IsDuplicate(err), "got %v", err)

	bound, err := repos.Subscription.FindByTopic(ctx, topics[0].ID)
	require.NoError(t, err)
	require.Len(t, bound, 1)
	assert.Equal(t, first.ID, bound[0].ID)
}

func TestSubscriptionRepository_FindByTopicAndDelete(t *testing.T) {
	repos := newSQLiteRepositories(t)
	ctx := context.Background()
	topics := createTopics(t, repos, 1, "weather", "traffic")

	a := model.NewSubscription(2, []model.Topic{topics[0]}, model.QoSAtLeastOnce, false)
	a.Queue = "q-a"
	b := model.NewSubscription(3, []model.Topic{topics[1], topics[0]}, model.QoSAtLeastOnce, false)
	b.Queue = "q-b"
	require.NoError(t, repos.Subscription.Create(ctx, &a))
	require.NoError(t, repos.Subscription.Create(ctx, &b))

	bound, err := repos.Subscription.FindByTopic(ctx, topics[0].ID)
	require.NoError(t, err)
	require.Len(t, bound, 2)
	assert.Equal(t, a.ID, bound[0].ID)
	assert.Equal(t, []string{"traffic", "weather"}, topicNames(bound[1]))

	require.NoError(t, repos.Subscription.Delete(ctx, &a))

	bound, err = repos.Subscription.FindByTopic(ctx, topics[0].ID)
	require.NoError(t, err)
	require.Len(t, bound, 1)
	assert.Equal(t, b.ID, bound[0].ID)

	_, err = repos.Subscription.Load(ctx, a.ID, submanager.OwnerFilter{})
	assert.True(t, submanager.IsNotFound(err))
}

func TestSubscriptionRepository_ListFilters(t *testing.T) {
	repos := newSQLiteRepositories(t)
	ctx := context.Background()
	topics := createTopics(t, repos, 1, "weather")

	active := model.NewSubscription(2, topics, model.QoSAtLeastOnce, false)
	active.Queue = "q-active"
	paused := model.NewSubscription(2, topics, model.QoSAtLeastOnce, false)
	paused.Queue = "q-paused"
	paused.Active = false
	other := model.NewSubscription(3, topics, model.QoSAtLeastOnce, false)
	other.Queue = "q-other"
	for _, s := range []*model.Subscription{&active, &paused, &other} {
		require.NoError(t, repos.Subscription.Create(ctx, s))
	}

	all, err := repos.Subscription.List(ctx, submanager.SubscriptionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	owned, err := repos.Subscription.List(ctx, submanager.SubscriptionFilter{OwnerFilter: submanager.OwnerFilter{OwnerID: 2}})
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	no := false
	inactive, err := repos.Subscription.List(ctx, submanager.SubscriptionFilter{Active: &no})
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, "q-paused", inactive[0].Queue)

	byQueue, err := repos.Subscription.List(ctx, submanager.SubscriptionFilter{Queue: "q-other"})
	require.NoError(t, err)
	require.Len(t, byQueue, 1)
	assert.Equal(t, other.ID, byQueue[0].ID)
	assert.Equal(t, []string{"weather"}, topicNames(byQueue[0]))

	none, err := repos.Subscription.List(ctx, submanager.SubscriptionFilter{Queue: "missing"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestUserRepository_CRUD(t *testing.T) {
	repos := newSQLiteRepositories(t)
	ctx := context.Background()

	alice := model.NewUser("alice", "pbkdf2:sha256:1$salt$hash")
	require.NoError(t, repos.User.Create(ctx, &alice))
	require.NotZero(t, alice.ID)

	dup := model.NewUser("alice", "x")
	assert.True(t, submanager.IsDuplicate(repos.User.Create(ctx, &dup)))

	found, err := repos.User.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, found.ID)
	assert.Equal(t, "pbkdf2:sha256:1$salt$hash", found.Password)
	assert.True(t, found.Active)

	found.IsAdmin = true
	require.NoError(t, repos.User.Update(ctx, &found))
	loaded, err := repos.User.Load(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, loaded.IsAdmin)

	require.NoError(t, repos.User.Delete(ctx, &loaded))
	_, err = repos.User.FindByUsername(ctx, "alice")
	assert.True(t, submanager.IsNotFound(err))

	users, err := repos.User.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}
