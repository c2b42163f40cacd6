package pgrepo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iqnews/newsfeed/internal/models"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	repo, err := Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestCreateUserIdempotent(t *testing.T) {
	repo := newTestRepo(t)

	u1, err := repo.CreateUser(42, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(42), u1.ID)
	assert.Equal(t, "alice", u1.Username)

	u2, err := repo.CreateUser(42, "someone-else")
	require.NoError(t, err)
	assert.Equal(t, "alice", u2.Username, "CreateUser must be idempotent on user ID")
}

func TestUpdatePreferencesNotFound(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.UpdatePreferences(999, "sports")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubscribeFeedCreatesFeedOnFirstUse(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.CreateUser(1, "alice")
	require.NoError(t, err)

	feed, err := repo.SubscribeFeed(1, "https://example.com/feed.xml")
	require.NoError(t, err)
	assert.NotEmpty(t, feed.ID)

	urls, err := repo.ListSubscriptionURLs(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/feed.xml"}, urls)

	n, err := repo.CountSubscribers(feed.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSubscribeFeedIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.CreateUser(1, "alice")
	require.NoError(t, err)

	feed1, err := repo.SubscribeFeed(1, "https://example.com/feed.xml")
	require.NoError(t, err)
	feed2, err := repo.SubscribeFeed(1, "https://example.com/feed.xml")
	require.NoError(t, err)
	assert.Equal(t, feed1.ID, feed2.ID)

	n, err := repo.CountSubscribers(feed1.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "resubscribing must not duplicate the subscription row")
}

func TestUnsubscribeFeedDeletesFeedWhenOrphaned(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.CreateUser(1, "alice")
	require.NoError(t, err)

	feed, err := repo.SubscribeFeed(1, "https://example.com/feed.xml")
	require.NoError(t, err)

	err = repo.UnsubscribeFeed(1, "https://example.com/feed.xml")
	require.NoError(t, err)

	_, err = repo.SelectFeedByID(feed.ID)
	assert.ErrorIs(t, err, ErrNotFound, "feed row must be deleted once its last subscriber leaves")
}

func TestUnsubscribeFeedIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.UnsubscribeFeed(1, "https://never-subscribed.example.com/feed.xml")
	assert.NoError(t, err)
}

func TestUnsubscribeFeedKeepsFeedWithRemainingSubscribers(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.CreateUser(1, "alice")
	require.NoError(t, err)
	_, err = repo.CreateUser(2, "bob")
	require.NoError(t, err)

	feed, err := repo.SubscribeFeed(1, "https://example.com/feed.xml")
	require.NoError(t, err)
	_, err = repo.SubscribeFeed(2, "https://example.com/feed.xml")
	require.NoError(t, err)

	require.NoError(t, repo.UnsubscribeFeed(1, "https://example.com/feed.xml"))

	_, err = repo.SelectFeedByID(feed.ID)
	assert.NoError(t, err)

	n, err := repo.CountSubscribers(feed.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInsertPostsAdvancesWatermarkToMax(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.CreateUser(1, "alice")
	require.NoError(t, err)
	feed, err := repo.SubscribeFeed(1, "https://example.com/feed.xml")
	require.NoError(t, err)

	older := mustParseTime(t, "2026-07-28T00:00:00Z")
	newer := mustParseTime(t, "2026-07-29T00:00:00Z")

	err = repo.InsertPosts(feed.ID, []models.Post{
		{ID: "p1", Title: "first", Link: "https://example.com/1", PublishedAt: older},
		{ID: "p2", Title: "second", Link: "https://example.com/2", PublishedAt: newer},
	})
	require.NoError(t, err)

	got, err := repo.SelectFeedByID(feed.ID)
	require.NoError(t, err)
	assert.True(t, got.LastPostDate.Equal(newer), "watermark must equal the maximum PublishedAt inserted")
}

func TestInsertPostsNeverMovesWatermarkBackward(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.CreateUser(1, "alice")
	require.NoError(t, err)
	feed, err := repo.SubscribeFeed(1, "https://example.com/feed.xml")
	require.NoError(t, err)

	newer := mustParseTime(t, "2026-07-29T00:00:00Z")
	older := mustParseTime(t, "2026-07-28T00:00:00Z")

	require.NoError(t, repo.InsertPosts(feed.ID, []models.Post{
		{ID: "p1", Title: "first", Link: "https://example.com/1", PublishedAt: newer},
	}))
	require.NoError(t, repo.InsertPosts(feed.ID, []models.Post{
		{ID: "p2", Title: "late arrival", Link: "https://example.com/2", PublishedAt: older},
	}))

	got, err := repo.SelectFeedByID(feed.ID)
	require.NoError(t, err)
	assert.True(t, got.LastPostDate.Equal(newer))
}

func mustParseTime(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return parsed
}
