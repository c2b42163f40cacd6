package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireReturnsImmediatelyWithinBurst(t *testing.T) {
	l := New(1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	require.NoError(t, l.Acquire(ctx))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestAcquireWaitsForNextToken(t *testing.T) {
	l := New(10)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, l.Acquire(ctx))
	start := time.Now()
	require.NoError(t, l.Acquire(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestAcquireReturnsErrorWhenContextExpires(t *testing.T) {
	l := New(1)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx)
	require.Error(t, err)
}
