package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"keyflow-bot/internal/logger"
	"keyflow-bot/internal/models"
)

type UserDirectory interface {
	GetAllUsers(ctx context.Context) ([]models.User, error)
}

type Sender interface {
	SendText(recipientID int64, text string) error
}

// Dispatcher fans an operator-authored message out to every known user.
type Dispatcher struct {
	Users     UserDirectory
	Sender    Sender
	Logger    *logger.Logger
	SendDelay time.Duration
}

func NewDispatcher(users UserDirectory, sender Sender, log *logger.Logger, sendDelay time.Duration) *Dispatcher {
	return &Dispatcher{Users: users, Sender: sender, Logger: log, SendDelay: sendDelay}
}

// Run sends text to a snapshot of the user directory taken at call time.
// A failed send is counted and skipped, never aborts the run. Cancelling
// ctx stops the run early; the counters reflect how far it got.
func (d *Dispatcher) Run(ctx context.Context, text string) (sent, total int, err error) {
	users, err := d.Users.GetAllUsers(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to snapshot users: %w", err)
	}
	total = len(users)

	runID := uuid.NewString()
	d.Logger.LogBroadcast(runID, fmt.Sprintf("starting run over %d users", total))

	for i, user := range users {
		if ctx.Err() != nil {
			d.Logger.LogBroadcast(runID, fmt.Sprintf("interrupted after %d/%d", i, total))
			return sent, total, ctx.Err()
		}

		if sendErr := d.Sender.SendText(user.TelegramID, text); sendErr != nil {
			d.Logger.Warn("BROADCAST", fmt.Sprintf("send to %d failed: %v", user.TelegramID, sendErr))
		} else {
			sent++
		}

		// Pacing against outbound rate limits, not a correctness concern.
		if d.SendDelay > 0 && i < total-1 {
			time.Sleep(d.SendDelay)
		}
	}

	d.Logger.LogBroadcast(runID, fmt.Sprintf("finished %d/%d", sent, total))
	return sent, total, nil
}
