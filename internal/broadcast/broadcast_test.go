package broadcast_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyflow-bot/internal/broadcast"
	"keyflow-bot/internal/logger"
	"keyflow-bot/internal/models"
)

type fakeDirectory struct {
	users []models.User
	err   error
}

func (d *fakeDirectory) GetAllUsers(_ context.Context) ([]models.User, error) {
	return d.users, d.err
}

type fakeSender struct {
	attempts map[int64]int
	failFor  map[int64]bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{attempts: make(map[int64]int), failFor: make(map[int64]bool)}
}

func (s *fakeSender) SendText(recipientID int64, _ string) error {
	s.attempts[recipientID]++
	if s.failFor[recipientID] {
		return errors.New("blocked by user")
	}
	return nil
}

func makeUsers(n int) []models.User {
	users := make([]models.User, n)
	for i := range users {
		users[i] = models.User{TelegramID: int64(i + 1)}
	}
	return users
}

func TestRunCountsFailuresWithoutAborting(t *testing.T) {
	sender := newFakeSender()
	sender.failFor[2] = true
	sender.failFor[4] = true
	d := broadcast.NewDispatcher(&fakeDirectory{users: makeUsers(5)}, sender, logger.NewTestLogger(), 0)

	sent, total, err := d.Run(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Equal(t, 5, total)

	// Every recipient attempted exactly once.
	for id := int64(1); id <= 5; id++ {
		assert.Equal(t, 1, sender.attempts[id], "recipient %d", id)
	}
}

func TestRunEmptyDirectory(t *testing.T) {
	d := broadcast.NewDispatcher(&fakeDirectory{}, newFakeSender(), logger.NewTestLogger(), 0)

	sent, total, err := d.Run(context.Background(), "hello")
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Zero(t, total)
}

func TestRunSnapshotError(t *testing.T) {
	d := broadcast.NewDispatcher(&fakeDirectory{err: errors.New("db down")}, newFakeSender(), logger.NewTestLogger(), 0)

	_, _, err := d.Run(context.Background(), "hello")
	assert.Error(t, err)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	sender := newFakeSender()
	d := broadcast.NewDispatcher(&fakeDirectory{users: makeUsers(3)}, sender, logger.NewTestLogger(), 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sent, total, err := d.Run(ctx, "hello")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sent)
	assert.Equal(t, 3, total)
}
