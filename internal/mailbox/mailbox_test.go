package mailbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueuePacesDeliveryPerUser(t *testing.T) {
	var mu sync.Mutex
	var received []time.Time

	router := New(func(_ context.Context, m Message) error {
		mu.Lock()
		received = append(received, time.Now())
		mu.Unlock()
		return nil
	}, 50*time.Millisecond)
	defer router.Shutdown(time.Second)

	router.Enqueue(Message{UserID: 7, News: "one"})
	router.Enqueue(Message{UserID: 7, News: "two"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	gap := received[1].Sub(received[0])
	assert.GreaterOrEqual(t, gap, 45*time.Millisecond, "second delivery must wait at least the pacing interval")
}

func TestEnqueueDoesNotBlockOtherUsers(t *testing.T) {
	var mu sync.Mutex
	delivered := map[int64]int{}

	router := New(func(_ context.Context, m Message) error {
		mu.Lock()
		delivered[m.UserID]++
		mu.Unlock()
		return nil
	}, 200*time.Millisecond)
	defer router.Shutdown(time.Second)

	router.Enqueue(Message{UserID: 1})
	router.Enqueue(Message{UserID: 2})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered[1] == 1 && delivered[2] == 1
	}, 150*time.Millisecond, 5*time.Millisecond, "user 2's delivery must not wait on user 1's pacing sleep")
}

func TestSendFailureDoesNotSkipPacing(t *testing.T) {
	var mu sync.Mutex
	var received []time.Time

	router := New(func(_ context.Context, m Message) error {
		mu.Lock()
		received = append(received, time.Now())
		mu.Unlock()
		return assertError
	}, 40*time.Millisecond)
	defer router.Shutdown(time.Second)

	router.Enqueue(Message{UserID: 9})
	router.Enqueue(Message{UserID: 9})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, received[1].Sub(received[0]), 35*time.Millisecond)
}

var assertError = errSend{}

type errSend struct{}

func (errSend) Error() string { return "send failed" }
