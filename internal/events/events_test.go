package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCreateUserRejectsMissingFields(t *testing.T) {
	_, err := DecodeCreateUser([]byte(`{"username":"alice","correlation_id":"c1"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user_id")

	_, err = DecodeCreateUser([]byte(`{"user_id":1,"correlation_id":"c1"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username")
}

func TestDecodeCreateUserAcceptsValidPayload(t *testing.T) {
	m, err := DecodeCreateUser([]byte(`{"user_id":1,"username":"alice","correlation_id":"c1"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.UserID)
	assert.Equal(t, "alice", m.Username)
}

func TestDecodeSetStatusRejectsUnknownStatus(t *testing.T) {
	_, err := DecodeSetStatus([]byte(`{"user_id":1,"status":"premium","correlation_id":"c1"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status")
}

func TestDecodeSetStatusAcceptsProOrFree(t *testing.T) {
	m, err := DecodeSetStatus([]byte(`{"user_id":1,"status":"pro","correlation_id":"c1"}`))
	require.NoError(t, err)
	assert.Equal(t, StatusPro, m.Status)

	m, err = DecodeSetStatus([]byte(`{"user_id":1,"status":"free","correlation_id":"c1"}`))
	require.NoError(t, err)
	assert.Equal(t, StatusFree, m.Status)
}

func TestDecodeNewPostRequiresPublishedAt(t *testing.T) {
	_, err := DecodeNewPost([]byte(`{"feed_url":"https://example.com/feed"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "published_at")
}

func TestDecodeNewPostRoundTripsSubscribers(t *testing.T) {
	published := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	raw, err := json.Marshal(NewPost{
		PublishedAt:     published,
		FeedURL:         "https://example.com/feed",
		PostLink:        "https://example.com/post",
		FeedSubscribers: []int64{1, 2, 3},
		CorrelationID:   "c1",
	})
	require.NoError(t, err)

	m, err := DecodeNewPost(raw)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, m.FeedSubscribers)
	assert.True(t, published.Equal(m.PublishedAt))
}

func TestDecodeRelevantPostRequiresPostLink(t *testing.T) {
	_, err := DecodeRelevantPost([]byte(`{"user_id":1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "post_link")
}

func TestDecodeReadyPostRequiresNews(t *testing.T) {
	_, err := DecodeReadyPost([]byte(`{"user_id":1,"post_url":"https://example.com/post"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "news")
}

func TestDecodeMalformedJSONIsAnError(t *testing.T) {
	_, err := DecodeCreateUser([]byte(`not json`))
	require.Error(t, err)
}
