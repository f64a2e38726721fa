package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/coregx/submanager"
	"github.com/coregx/submanager/model"
)

// Memory is an in-memory store backing TopicRepo, SubscriptionRepo and
// UserRepo. It enforces the same uniqueness rules as the SQL schema and
// records every write in the journal.
type Memory struct {
	mu      sync.Mutex
	journal *Journal
	faults  faults
	nextID  int64

	topics        map[int64]model.Topic
	subscriptions map[int64]model.Subscription
	users         map[int64]model.User
}

// NewMemory creates an empty store. A nil journal gets a fresh one.
func NewMemory(journal *Journal) *Memory {
	if journal == nil {
		journal = NewJournal()
	}
	return &Memory{
		journal:       journal,
		topics:        make(map[int64]model.Topic),
		subscriptions: make(map[int64]model.Subscription),
		users:         make(map[int64]model.User),
	}
}

// Journal returns the journal writes are recorded in.
func (m *Memory) Journal() *Journal { return m.journal }

// FailOn makes op ("topic.Create", "subscription.Delete", ...) return err.
// A nil err clears the fault.
func (m *Memory) FailOn(op string, err error) { m.faults.set(op, err) }

// Topics returns the topic repository.
func (m *Memory) Topics() *TopicRepo { return &TopicRepo{m: m} }

// Subscriptions returns the subscription repository.
func (m *Memory) Subscriptions() *SubscriptionRepo { return &SubscriptionRepo{m: m} }

// Users returns the user repository.
func (m *Memory) Users() *UserRepo { return &UserRepo{m: m} }

// TopicCount returns the number of stored topics.
func (m *Memory) TopicCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.topics)
}

// SubscriptionCount returns the number of stored subscriptions.
func (m *Memory) SubscriptionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscriptions)
}

func (m *Memory) id() int64 {
	m.nextID++
	return m.nextID
}

func duplicate(field string) error {
	return submanager.NewError(submanager.ErrCodeDuplicate, field+" already exists")
}

func sortedIDs[T any](rows map[int64]T) []int64 {
	ids := make([]int64, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// TopicRepo implements submanager.TopicRepository.
type TopicRepo struct{ m *Memory }

var _ submanager.TopicRepository = (*TopicRepo)(nil)

// Load implements submanager.TopicRepository.
func (r *TopicRepo) Load(_ context.Context, id int64, filter submanager.OwnerFilter) (model.Topic, error) {
	if err := r.m.faults.get("topic.Load"); err != nil {
		return model.Topic{}, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	t, ok := r.m.topics[id]
	if !ok || !filter.Matches(t.OwnerID) {
		return model.Topic{}, submanager.ErrNotFound
	}
	return t, nil
}

// List implements submanager.TopicRepository.
func (r *TopicRepo) List(_ context.Context, filter submanager.OwnerFilter) ([]model.Topic, error) {
	if err := r.m.faults.get("topic.List"); err != nil {
		return nil, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	out := []model.Topic{}
	for _, id := range sortedIDs(r.m.topics) {
		if t := r.m.topics[id]; filter.Matches(t.OwnerID) {
			out = append(out, t)
		}
	}
	return out, nil
}

// FindByName implements submanager.TopicRepository.
func (r *TopicRepo) FindByName(_ context.Context, name string) (model.Topic, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, t := range r.m.topics {
		if t.Name == name {
			return t, nil
		}
	}
	return model.Topic{}, submanager.ErrNotFound
}

// FindByNames implements submanager.TopicRepository.
func (r *TopicRepo) FindByNames(_ context.Context, names []string) ([]model.Topic, error) {
	if err := r.m.faults.get("topic.FindByNames"); err != nil {
		return nil, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}

	out := []model.Topic{}
	for _, id := range sortedIDs(r.m.topics) {
		if t := r.m.topics[id]; hasKey(wanted, t.Name) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Create implements submanager.TopicRepository.
func (r *TopicRepo) Create(_ context.Context, t *model.Topic) error {
	if err := r.m.faults.get("topic.Create"); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if r.nameTaken(t.Name, 0) {
		return duplicate("topic name")
	}
	t.ID = r.m.id()
	r.m.topics[t.ID] = withoutSubscriptions(*t)
	r.m.journal.Record("topic.Create %d %s", t.ID, t.Name)
	return nil
}

// Update implements submanager.TopicRepository.
func (r *TopicRepo) Update(_ context.Context, t *model.Topic) error {
	if err := r.m.faults.get("topic.Update"); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.topics[t.ID]; !ok {
		return submanager.ErrNotFound
	}
	if r.nameTaken(t.Name, t.ID) {
		return duplicate("topic name")
	}
	r.m.topics[t.ID] = withoutSubscriptions(*t)
	r.m.journal.Record("topic.Update %d %s", t.ID, t.Name)
	return nil
}

// Delete implements submanager.TopicRepository.
func (r *TopicRepo) Delete(_ context.Context, t *model.Topic) error {
	if err := r.m.faults.get("topic.Delete"); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	delete(r.m.topics, t.ID)
	r.m.journal.Record("topic.Delete %d", t.ID)
	return nil
}

func (r *TopicRepo) nameTaken(name string, except int64) bool {
	for id, t := range r.m.topics {
		if id != except && t.Name == name {
			return true
		}
	}
	return false
}

func withoutSubscriptions(t model.Topic) model.Topic {
	t.Subscriptions = nil
	return t
}

func hasKey(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}

// SubscriptionRepo implements submanager.SubscriptionRepository.
// Loaded subscriptions carry the current state of their topics.
type SubscriptionRepo struct{ m *Memory }

var _ submanager.SubscriptionRepository = (*SubscriptionRepo)(nil)

// Load implements submanager.SubscriptionRepository.
func (r *SubscriptionRepo) Load(_ context.Context, id int64, filter submanager.OwnerFilter) (model.Subscription, error) {
	if err := r.m.faults.get("subscription.Load"); err != nil {
		return model.Subscription{}, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	s, ok := r.m.subscriptions[id]
	if !ok || !filter.Matches(s.OwnerID) {
		return model.Subscription{}, submanager.ErrNotFound
	}
	return r.hydrate(s), nil
}

// List implements submanager.SubscriptionRepository.
func (r *SubscriptionRepo) List(_ context.Context, filter submanager.SubscriptionFilter) ([]model.Subscription, error) {
	if err := r.m.faults.get("subscription.List"); err != nil {
		return nil, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	out := []model.Subscription{}
	for _, id := range sortedIDs(r.m.subscriptions) {
		s := r.m.subscriptions[id]
		if !filter.Matches(s.OwnerID) {
			continue
		}
		if filter.Active != nil && s.Active != *filter.Active {
			continue
		}
		if filter.Queue != "" && s.Queue != filter.Queue {
			continue
		}
		out = append(out, r.hydrate(s))
	}
	return out, nil
}

// FindByTopic implements submanager.SubscriptionRepository.
func (r *SubscriptionRepo) FindByTopic(_ context.Context, topicID int64) ([]model.Subscription, error) {
	if err := r.m.faults.get("subscription.FindByTopic"); err != nil {
		return nil, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	out := []model.Subscription{}
	for _, id := range sortedIDs(r.m.subscriptions) {
		s := r.m.subscriptions[id]
		for _, t := range s.Topics {
			if t.ID == topicID {
				out = append(out, r.hydrate(s))
				break
			}
		}
	}
	return out, nil
}

// Create implements submanager.SubscriptionRepository.
func (r *SubscriptionRepo) Create(_ context.Context, s *model.Subscription) error {
	if err := r.m.faults.get("subscription.Create"); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, existing := range r.m.subscriptions {
		if existing.Queue == s.Queue {
			return duplicate("queue")
		}
	}
	s.ID = r.m.id()
	r.m.subscriptions[s.ID] = s.Clone()
	r.m.journal.Record("subscription.Create %d %s", s.ID, s.Queue)
	return nil
}

// Update implements submanager.SubscriptionRepository.
func (r *SubscriptionRepo) Update(_ context.Context, s *model.Subscription) error {
	if err := r.m.faults.get("subscription.Update"); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.subscriptions[s.ID]; !ok {
		return submanager.ErrNotFound
	}
	r.m.subscriptions[s.ID] = s.Clone()
	r.m.journal.Record("subscription.Update %d active=%t", s.ID, s.Active)
	return nil
}

// Delete implements submanager.SubscriptionRepository.
func (r *SubscriptionRepo) Delete(_ context.Context, s *model.Subscription) error {
	if err := r.m.faults.get("subscription.Delete"); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	delete(r.m.subscriptions, s.ID)
	r.m.journal.Record("subscription.Delete %d", s.ID)
	return nil
}

func (r *SubscriptionRepo) hydrate(s model.Subscription) model.Subscription {
	out := s.Clone()
	out.Topics = out.Topics[:0]
	for _, t := range s.Topics {
		if stored, ok := r.m.topics[t.ID]; ok {
			out.Topics = append(out.Topics, stored)
		}
	}
	return out
}

// UserRepo implements submanager.UserRepository.
type UserRepo struct{ m *Memory }

var _ submanager.UserRepository = (*UserRepo)(nil)

// Load implements submanager.UserRepository.
func (r *UserRepo) Load(_ context.Context, id int64) (model.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	u, ok := r.m.users[id]
	if !ok {
		return model.User{}, submanager.ErrNotFound
	}
	return u, nil
}

// List implements submanager.UserRepository.
func (r *UserRepo) List(_ context.Context) ([]model.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	out := []model.User{}
	for _, id := range sortedIDs(r.m.users) {
		out = append(out, r.m.users[id])
	}
	return out, nil
}

// FindByUsername implements submanager.UserRepository.
func (r *UserRepo) FindByUsername(_ context.Context, username string) (model.User, error) {
	if err := r.m.faults.get("user.FindByUsername"); err != nil {
		return model.User{}, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, u := range r.m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, submanager.ErrNotFound
}

// Create implements submanager.UserRepository.
func (r *UserRepo) Create(_ context.Context, u *model.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if r.usernameTaken(u.Username, 0) {
		return duplicate("username")
	}
	u.ID = r.m.id()
	r.m.users[u.ID] = *u
	r.m.journal.Record("user.Create %d %s", u.ID, u.Username)
	return nil
}

// Update implements submanager.UserRepository.
func (r *UserRepo) Update(_ context.Context, u *model.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.users[u.ID]; !ok {
		return submanager.ErrNotFound
	}
	if r.usernameTaken(u.Username, u.ID) {
		return duplicate("username")
	}
	r.m.users[u.ID] = *u
	r.m.journal.Record("user.Update %d %s", u.ID, u.Username)
	return nil
}

// Delete implements submanager.UserRepository.
func (r *UserRepo) Delete(_ context.Context, u *model.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	delete(r.m.users, u.ID)
	r.m.journal.Record("user.Delete %d", u.ID)
	return nil
}

func (r *UserRepo) usernameTaken(name string, except int64) bool {
	for id, u := range r.m.users {
		if id != except && u.Username == name {
			return true
		}
	}
	return false
}
