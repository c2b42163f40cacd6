package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakePublishRecordsBodyUnderQueue(t *testing.T) {
	f := NewFake()
	require.NoError(t, f.Publish(context.Background(), "rss.new_posts", map[string]string{"feed_url": "https://example.com"}, "c1", ""))

	bodies := f.Published("rss.new_posts")
	require.Len(t, bodies, 1)
	assert.Contains(t, string(bodies[0]), "https://example.com")
}

func TestFakePublishAppendsInOrder(t *testing.T) {
	f := NewFake()
	require.NoError(t, f.Publish(context.Background(), "q", 1, "c1", ""))
	require.NoError(t, f.Publish(context.Background(), "q", 2, "c2", ""))

	bodies := f.Published("q")
	require.Len(t, bodies, 2)
	assert.Equal(t, "1", string(bodies[0]))
	assert.Equal(t, "2", string(bodies[1]))
}

func TestFakeCallInvokesRegisteredResponder(t *testing.T) {
	f := NewFake()
	f.OnCall("user.profile.request", func(body []byte) ([]byte, error) {
		return []byte(`{"status":"success"}`), nil
	})

	d, err := f.Call(context.Background(), "user.profile.request", "c1", map[string]int64{"user_id": 1}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, `{"status":"success"}`, string(d.Body))
}

func TestFakeCallWithoutResponderReturnsError(t *testing.T) {
	f := NewFake()
	_, err := f.Call(context.Background(), "unregistered.queue", "c1", nil, time.Second)
	require.Error(t, err)
}
