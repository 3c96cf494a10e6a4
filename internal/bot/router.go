package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"keyflow-bot/internal/auth"
	"keyflow-bot/internal/logger"
	"keyflow-bot/internal/models"
	"keyflow-bot/internal/order"
	"keyflow-bot/internal/session"
	"keyflow-bot/internal/telegram"
)

type Sender interface {
	SendMessage(chatID int64, text string, markup *telegram.InlineKeyboardMarkup) error
	SendPhoto(chatID int64, photo []byte, caption string) error
	AnswerCallbackQuery(callbackID string) error
}

type Directory interface {
	UpsertUser(ctx context.Context, telegramID int64, username, fullName string) error
	ApplyReferral(ctx context.Context, userID int64, code string) error
	GetUserOrders(ctx context.Context, userID int64) ([]models.Order, error)
	GetPendingOrders(ctx context.Context) ([]models.Order, error)
	GetRecentUsers(ctx context.Context, n int) ([]models.User, error)
	GetStats(ctx context.Context) (models.Stats, error)
}

type SessionStore interface {
	StartDelivery(ctx context.Context, operatorID, orderID int64) error
	StartBroadcast(ctx context.Context, operatorID int64) error
	Take(ctx context.Context, operatorID int64) (session.Session, bool, error)
}

type Broadcaster interface {
	Run(ctx context.Context, text string) (sent, total int, err error)
}

type Payments interface {
	Text(orderID int64, amount int64, comment string) string
	QR(orderID int64, amount int64) ([]byte, error)
}

type commandHandler func(ctx context.Context, msg *telegram.Message, args string) error
type callbackHandler func(ctx context.Context, cb *telegram.CallbackQuery) error
type callbackIDHandler func(ctx context.Context, cb *telegram.CallbackQuery, orderID int64) error
type webAppHandler func(ctx context.Context, msg *telegram.Message, payload webAppPayload) error

// Bot routes inbound updates through explicit handler tables built once at
// startup. Admin-tagged entries pass the authorization gate before their
// handler runs; for everyone else they silently do nothing.
type Bot struct {
	Orders    *order.Service
	DB        Directory
	Sessions  SessionStore
	Broadcast Broadcaster
	Sender    Sender
	Gate      *auth.Gate
	Payment   Payments
	Logger    *logger.Logger

	SupportUsername string
	WebAppURL       string

	commands        map[string]commandHandler
	adminCommands   map[string]bool
	callbacks       map[string]callbackHandler
	prefixCallbacks map[string]callbackIDHandler
	adminCallbacks  map[string]bool
	webAppActions   map[string]webAppHandler
}

func New(orders *order.Service, db Directory, sessions SessionStore, bcast Broadcaster,
	sender Sender, gate *auth.Gate, pay Payments, log *logger.Logger,
	supportUsername, webAppURL string) *Bot {

	b := &Bot{
		Orders:          orders,
		DB:              db,
		Sessions:        sessions,
		Broadcast:       bcast,
		Sender:          sender,
		Gate:            gate,
		Payment:         pay,
		Logger:          log,
		SupportUsername: supportUsername,
		WebAppURL:       webAppURL,
	}

	b.commands = map[string]commandHandler{
		"/start": b.handleStart,
		"/admin": b.handleAdmin,
	}
	b.adminCommands = map[string]bool{
		"/admin": true,
	}

	b.callbacks = map[string]callbackHandler{
		"my_orders":     b.handleMyOrders,
		"adm_main":      b.handleAdminPanel,
		"adm_stats":     b.handleAdminStats,
		"adm_orders":    b.handleAdminOrders,
		"adm_users":     b.handleAdminUsers,
		"adm_broadcast": b.handleAdminBroadcast,
	}
	b.prefixCallbacks = map[string]callbackIDHandler{
		"confirm": b.handleConfirm,
		"reject":  b.handleReject,
		"deliver": b.handleDeliver,
	}
	b.adminCallbacks = map[string]bool{
		"adm_main":      true,
		"adm_stats":     true,
		"adm_orders":    true,
		"adm_users":     true,
		"adm_broadcast": true,
		"confirm":       true,
		"reject":        true,
		"deliver":       true,
	}

	b.webAppActions = map[string]webAppHandler{
		"create_order":      b.handleCreateOrder,
		"payment_submitted": b.handlePaymentSubmitted,
	}

	return b
}

// HandleUpdate dispatches one inbound update. Handler failures are logged
// and isolated to that event; nothing propagates to the poll loop.
func (b *Bot) HandleUpdate(ctx context.Context, upd telegram.Update) {
	var err error
	switch {
	case upd.CallbackQuery != nil:
		err = b.routeCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil && upd.Message.WebAppData != nil:
		err = b.routeWebAppData(ctx, upd.Message)
	case upd.Message != nil && strings.HasPrefix(upd.Message.Text, "/"):
		err = b.routeCommand(ctx, upd.Message)
	case upd.Message != nil:
		err = b.routeText(ctx, upd.Message)
	}
	if err != nil {
		b.Logger.Error("BOT", fmt.Sprintf("update %d: %v", upd.UpdateID, err))
	}
}

func (b *Bot) routeCommand(ctx context.Context, msg *telegram.Message) error {
	if msg.From == nil {
		return nil
	}
	name, args := splitCommand(msg.Text)
	handler, ok := b.commands[name]
	if !ok {
		return nil
	}
	if b.adminCommands[name] && !b.Gate.IsOperator(msg.From.ID) {
		b.Logger.LogSecurity("admin command denied", msg.From.ID)
		return nil
	}
	return handler(ctx, msg, args)
}

func (b *Bot) routeCallback(ctx context.Context, cb *telegram.CallbackQuery) error {
	// Best-effort ack so the client stops the spinner.
	_ = b.Sender.AnswerCallbackQuery(cb.ID)

	tag, idPart, hasID := strings.Cut(cb.Data, ":")

	if b.adminCallbacks[tag] && !b.Gate.IsOperator(cb.From.ID) {
		b.Logger.LogSecurity("admin action denied", cb.From.ID)
		return nil
	}

	if hasID {
		handler, ok := b.prefixCallbacks[tag]
		if !ok {
			return nil
		}
		orderID, err := strconv.ParseInt(idPart, 10, 64)
		if err != nil {
			b.Logger.Warn("BOT", fmt.Sprintf("malformed callback data %q", cb.Data))
			return nil
		}
		return handler(ctx, cb, orderID)
	}

	handler, ok := b.callbacks[tag]
	if !ok {
		return nil
	}
	return handler(ctx, cb)
}

func (b *Bot) routeWebAppData(ctx context.Context, msg *telegram.Message) error {
	if msg.From == nil {
		return nil
	}
	payload, err := parseWebAppPayload(msg.WebAppData.Data)
	if err != nil {
		b.Logger.Warn("BOT", fmt.Sprintf("malformed webapp payload from %d: %v", msg.From.ID, err))
		return nil
	}
	handler, ok := b.webAppActions[payload.Action]
	if !ok {
		b.Logger.Warn("BOT", fmt.Sprintf("unknown webapp action %q", payload.Action))
		return nil
	}
	return handler(ctx, msg, payload)
}

// routeText interprets free text against the sender's active capture
// session; with no session it is ignored.
func (b *Bot) routeText(ctx context.Context, msg *telegram.Message) error {
	if msg.From == nil || !b.Gate.IsOperator(msg.From.ID) {
		return nil
	}

	sess, ok, err := b.Sessions.Take(ctx, msg.From.ID)
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}
	if !ok {
		return nil
	}

	switch sess.Step {
	case session.StepDeliveryText:
		return b.handleDeliveryText(ctx, msg, sess.OrderID)
	case session.StepBroadcastText:
		return b.handleBroadcastText(ctx, msg)
	}
	return nil
}

// Poll runs the long-poll loop until ctx is cancelled. Every update is
// handled in its own goroutine so a slow handler (a broadcast run) never
// stalls the rest of the queue.
func (b *Bot) Poll(ctx context.Context, client *telegram.Client, timeout time.Duration) {
	var offset int64
	for {
		if ctx.Err() != nil {
			return
		}
		updates, err := client.GetUpdates(ctx, offset, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.Logger.Error("BOT", fmt.Sprintf("getUpdates: %v", err))
			time.Sleep(3 * time.Second)
			continue
		}
		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			go b.HandleUpdate(ctx, upd)
		}
	}
}

func splitCommand(text string) (name, args string) {
	name, args, _ = strings.Cut(text, " ")
	// Strip the bot mention from "/start@keyflow_bot".
	name, _, _ = strings.Cut(name, "@")
	return name, strings.TrimSpace(args)
}
