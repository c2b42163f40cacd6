package repository

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iqnews/newsfeed/internal/events"
	"github.com/iqnews/newsfeed/internal/models"
	"github.com/iqnews/newsfeed/internal/pgrepo"
)

type fakeStore struct {
	mu            sync.Mutex
	users         map[int64]models.User
	subscriptions map[int64][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[int64]models.User), subscriptions: make(map[int64][]string)}
}

func (s *fakeStore) CreateUser(userID int64, username string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		return u, nil
	}
	u := models.User{ID: userID, Username: username}
	s.users[userID] = u
	return u, nil
}

func (s *fakeStore) GetUser(userID int64) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return u, pgrepo.ErrNotFound
	}
	return u, nil
}

func (s *fakeStore) UpdatePreferences(userID int64, preferences string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return pgrepo.ErrNotFound
	}
	u.Preferences = preferences
	s.users[userID] = u
	return nil
}

func (s *fakeStore) UpdateAntipathy(userID int64, antipathy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return pgrepo.ErrNotFound
	}
	u.Antipathies = antipathy
	s.users[userID] = u
	return nil
}

func (s *fakeStore) SetStatus(userID int64, pro bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return pgrepo.ErrNotFound
	}
	u.Pro = pro
	s.users[userID] = u
	return nil
}

func (s *fakeStore) SubscribeFeed(userID int64, feedURL string) (models.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.subscriptions[userID] {
		if u == feedURL {
			return models.Feed{URL: feedURL}, nil
		}
	}
	s.subscriptions[userID] = append(s.subscriptions[userID], feedURL)
	return models.Feed{URL: feedURL}, nil
}

func (s *fakeStore) UnsubscribeFeed(userID int64, feedURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	urls := s.subscriptions[userID]
	for i, u := range urls {
		if u == feedURL {
			s.subscriptions[userID] = append(urls[:i], urls[i+1:]...)
			break
		}
	}
	return nil
}

func (s *fakeStore) ListSubscriptionURLs(userID int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscriptions[userID], nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published map[string][]interface{}
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{published: make(map[string][]interface{})}
}

func (p *fakePublisher) Publish(_ context.Context, queue string, payload interface{}, _ string, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published[queue] = append(p.published[queue], payload)
	return nil
}

func TestCreateUserThenProfileRequestRoundTrips(t *testing.T) {
	store := newFakeStore()
	pub := newFakePublisher()
	svc := New(store, pub)

	createBody, err := json.Marshal(events.CreateUser{UserID: 1, Username: "a", CorrelationID: "c1"})
	require.NoError(t, err)
	require.NoError(t, svc.HandleCreateUser(context.Background(), createBody))

	reqBody, err := json.Marshal(events.ProfileRequest{UserID: 1, CorrelationID: "c2"})
	require.NoError(t, err)
	require.NoError(t, svc.HandleProfileRequest(context.Background(), reqBody, "reply.queue"))

	replies := pub.published["reply.queue"]
	require.Len(t, replies, 1)
	reply := replies[0].(events.ProfileReply)
	assert.Equal(t, events.StatusSuccess, reply.Status)
	assert.Equal(t, int64(1), reply.Data.UserID)
}

func TestCreateUserIdempotentAtHandlerLevel(t *testing.T) {
	store := newFakeStore()
	svc := New(store, newFakePublisher())

	body, err := json.Marshal(events.CreateUser{UserID: 1, Username: "a", CorrelationID: "c1"})
	require.NoError(t, err)
	require.NoError(t, svc.HandleCreateUser(context.Background(), body))
	require.NoError(t, svc.HandleCreateUser(context.Background(), body))

	assert.Len(t, store.users, 1)
}

func TestSetStatusPublishesStatusNotification(t *testing.T) {
	store := newFakeStore()
	pub := newFakePublisher()
	svc := New(store, pub)
	store.users[1] = models.User{ID: 1, Username: "a"}

	body, err := json.Marshal(events.SetStatus{UserID: 1, Status: events.StatusPro, CorrelationID: "c3"})
	require.NoError(t, err)
	require.NoError(t, svc.HandleSetStatus(context.Background(), body))

	notifications := pub.published[events.QueueUserStatusNotification]
	require.Len(t, notifications, 1)
	n := notifications[0].(events.StatusNotification)
	assert.Equal(t, int64(1), n.UserID)
	assert.Equal(t, events.StatusPro, n.Status)
	assert.Equal(t, "c3", n.CorrelationID)
}

func TestSetStatusOnMissingUserIsTreatedAsSuccess(t *testing.T) {
	store := newFakeStore()
	pub := newFakePublisher()
	svc := New(store, pub)

	body, err := json.Marshal(events.SetStatus{UserID: 99, Status: events.StatusPro, CorrelationID: "c4"})
	require.NoError(t, err)
	assert.NoError(t, svc.HandleSetStatus(context.Background(), body))
	assert.Empty(t, pub.published[events.QueueUserStatusNotification])
}
