package session

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewStore(client)
}

func TestTakeConsumesSession(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StartDelivery(ctx, 1, 42))

	sess, ok, err := s.Take(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StepDeliveryText, sess.Step)
	assert.Equal(t, int64(42), sess.OrderID)
	assert.Equal(t, int64(1), sess.OperatorID)

	// Consumed: a second read finds nothing.
	_, ok, err = s.Take(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTakeWithoutSession(t *testing.T) {
	s := setupTestStore(t)

	_, ok, err := s.Take(context.Background(), 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewSessionReplacesPrior(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StartDelivery(ctx, 1, 42))
	require.NoError(t, s.StartBroadcast(ctx, 1))

	sess, ok, err := s.Take(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StepBroadcastText, sess.Step)
	assert.Zero(t, sess.OrderID)
}

func TestConcurrentTakesConsumeOnce(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// Updates are handled in separate goroutines, so two quick free-text
	// messages from one operator race on the same session.
	for round := 0; round < 200; round++ {
		require.NoError(t, s.StartBroadcast(ctx, 1))

		results := make(chan bool, 2)
		for i := 0; i < 2; i++ {
			go func() {
				_, ok, err := s.Take(ctx, 1)
				assert.NoError(t, err)
				results <- ok
			}()
		}

		consumed := 0
		for i := 0; i < 2; i++ {
			if <-results {
				consumed++
			}
		}
		require.Equal(t, 1, consumed, "round %d: session must be consumed exactly once", round)
	}
}

func TestSessionsAreScopedPerOperator(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StartDelivery(ctx, 1, 42))
	require.NoError(t, s.StartDelivery(ctx, 2, 43))

	sess1, ok, err := s.Take(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(42), sess1.OrderID)

	sess2, ok, err := s.Take(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(43), sess2.OrderID)
}
