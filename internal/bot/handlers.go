package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"keyflow-bot/internal/models"
	"keyflow-bot/internal/order"
	"keyflow-bot/internal/telegram"
)

type webAppPayload struct {
	Action        string `json:"action"`
	ServiceID     int64  `json:"service_id"`
	VariantID     int64  `json:"variant_id"`
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"payment"`
	ExternalID    string `json:"order_id"`
	ServiceName   string `json:"service_name"`
	VariantDur    string `json:"variant_dur"`
}

func parseWebAppPayload(data string) (webAppPayload, error) {
	var payload webAppPayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return payload, err
	}
	if payload.Action == "" {
		return payload, errors.New("missing action")
	}
	return payload, nil
}

var statusIcons = map[models.OrderStatus]string{
	models.StatusPending:        "⏳",
	models.StatusWaitingConfirm: "🔄",
	models.StatusPaid:           "✅",
	models.StatusCompleted:      "🎉",
	models.StatusCancelled:      "❌",
}

// ---------------- COMMANDS ----------------

func (b *Bot) handleStart(ctx context.Context, msg *telegram.Message, args string) error {
	user := msg.From
	if err := b.DB.UpsertUser(ctx, user.ID, user.Username, user.FullName()); err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", user.ID, err)
	}

	if code, ok := strings.CutPrefix(args, "ref_"); ok && code != "" {
		if err := b.DB.ApplyReferral(ctx, user.ID, code); err != nil {
			b.Logger.Warn("BOT", fmt.Sprintf("apply referral for %d: %v", user.ID, err))
		}
	}

	if b.Gate.IsOperator(user.ID) {
		return b.Sender.SendMessage(user.ID,
			fmt.Sprintf("👑 Hi, <b>%s</b>!\n\nUse /admin to manage the shop.", user.FirstName),
			b.mainKeyboard())
	}
	return b.Sender.SendMessage(user.ID,
		fmt.Sprintf("👋 Hi, <b>%s</b>!\n\n"+
			"🔑 <b>KeyFlow</b> — foreign subscriptions made easy\n\n"+
			"✅ Spotify, ChatGPT, Claude, Discord and more\n"+
			"✅ SBP payments\n"+
			"✅ Delivery within 15 minutes · Support 24/7", user.FirstName),
		b.mainKeyboard())
}

func (b *Bot) handleAdmin(ctx context.Context, msg *telegram.Message, _ string) error {
	return b.sendAdminPanel(ctx, msg.From.ID)
}

func (b *Bot) sendAdminPanel(ctx context.Context, operatorID int64) error {
	stats, err := b.DB.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}
	return b.Sender.SendMessage(operatorID,
		"👑 <b>Admin panel</b>\n\n"+statsText(stats), adminKeyboard())
}

func statsText(stats models.Stats) string {
	return fmt.Sprintf(
		"👥 Users: <b>%d</b>\n"+
			"📦 Orders total: <b>%d</b>\n"+
			"✅ Completed: <b>%d</b>\n"+
			"⏳ Pending: <b>%d</b>\n"+
			"💰 Revenue: <b>%d₽</b>",
		stats.TotalUsers, stats.TotalOrders, stats.CompletedOrders,
		stats.PendingOrders, stats.TotalRevenue)
}

// ---------------- WEBAPP EVENTS ----------------

func (b *Bot) handleCreateOrder(ctx context.Context, msg *telegram.Message, payload webAppPayload) error {
	orderID, err := b.Orders.Create(ctx, order.CreateRequest{
		UserID:        msg.From.ID,
		ServiceID:     payload.ServiceID,
		VariantID:     payload.VariantID,
		Amount:        payload.Amount,
		PaymentMethod: payload.PaymentMethod,
		ExternalID:    payload.ExternalID,
	})
	if errors.Is(err, order.ErrInvalidAmount) {
		b.Logger.Warn("BOT", fmt.Sprintf("rejected order from %d: %v", msg.From.ID, err))
		return nil
	}
	if err != nil {
		return err
	}

	comment := payload.ExternalID
	if comment == "" {
		comment = fmt.Sprintf("#%d", orderID)
	}
	if err := b.Sender.SendMessage(msg.From.ID,
		b.Payment.Text(orderID, payload.Amount, comment), b.mainKeyboard()); err != nil {
		b.Logger.Warn("BOT", fmt.Sprintf("payment instructions to %d: %v", msg.From.ID, err))
	}

	// The text instructions already carry everything needed to pay, so a
	// missing QR degrades the order, it does not fail it.
	if png, err := b.Payment.QR(orderID, payload.Amount); err != nil {
		b.Logger.Warn("BOT", fmt.Sprintf("render payment QR for #%d: %v", orderID, err))
	} else if err := b.Sender.SendPhoto(msg.From.ID, png, "Scan to pay via SBP"); err != nil {
		b.Logger.Warn("BOT", fmt.Sprintf("payment QR to %d: %v", msg.From.ID, err))
	}

	b.notifyOperators(
		fmt.Sprintf("🔔 <b>New order #%d</b>\n\n"+
			"👤 @%s (ID: %d)\n"+
			"🛍 %s — %s\n"+
			"💰 %d₽ · %s",
			orderID, usernameOr(msg.From.Username), msg.From.ID,
			payload.ServiceName, payload.VariantDur, payload.Amount, payload.PaymentMethod),
		deliverKeyboard(orderID))
	return nil
}

func (b *Bot) handlePaymentSubmitted(ctx context.Context, msg *telegram.Message, payload webAppPayload) error {
	ord, err := b.Orders.ResolveByExternalID(ctx, payload.ExternalID)
	if err != nil {
		return err
	}
	if ord == nil {
		// Unknown correlation id: front-end bug, tolerated as a no-op.
		b.Logger.Warn("BOT", fmt.Sprintf("payment_submitted for unknown order %q", payload.ExternalID))
		return nil
	}

	result, err := b.Orders.Transition(ctx, ord.ID, models.StatusWaitingConfirm)
	if err != nil {
		return err
	}
	if !result.Applied {
		// Duplicate "I paid" tap; operators were already prompted.
		return nil
	}

	b.notifyOperators(
		fmt.Sprintf("💰 <b>Customer paid — order #%d</b>\n\n"+
			"👤 @%s\n"+
			"💰 %d₽ · %s\n\n"+
			"Confirm the payment:",
			ord.ID, usernameOr(msg.From.Username), ord.Amount, ord.PaymentMethod),
		confirmKeyboard(ord.ID))

	return b.Sender.SendMessage(msg.From.ID,
		"⏳ Waiting for payment confirmation. This usually takes up to 15 minutes.", nil)
}

// ---------------- CUSTOMER CALLBACKS ----------------

func (b *Bot) handleMyOrders(ctx context.Context, cb *telegram.CallbackQuery) error {
	orders, err := b.DB.GetUserOrders(ctx, cb.From.ID)
	if err != nil {
		return fmt.Errorf("failed to load orders for %d: %w", cb.From.ID, err)
	}
	if len(orders) == 0 {
		return b.Sender.SendMessage(cb.From.ID, "📦 You have no orders yet.", nil)
	}

	var sb strings.Builder
	sb.WriteString("📦 <b>Your orders:</b>\n\n")
	for i, o := range orders {
		if i == 10 {
			break
		}
		icon, ok := statusIcons[o.Status]
		if !ok {
			icon = "•"
		}
		sb.WriteString(fmt.Sprintf("%s Order #%d · %d₽ · %s\n",
			icon, o.ID, o.Amount, o.CreatedAt.Format("2006-01-02")))
	}
	return b.Sender.SendMessage(cb.From.ID, sb.String(), nil)
}

// ---------------- ADMIN CALLBACKS ----------------

func (b *Bot) handleAdminPanel(ctx context.Context, cb *telegram.CallbackQuery) error {
	return b.sendAdminPanel(ctx, cb.From.ID)
}

func (b *Bot) handleAdminStats(ctx context.Context, cb *telegram.CallbackQuery) error {
	stats, err := b.DB.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}
	return b.Sender.SendMessage(cb.From.ID, "📊 <b>Stats</b>\n\n"+statsText(stats), backKeyboard())
}

func (b *Bot) handleAdminOrders(ctx context.Context, cb *telegram.CallbackQuery) error {
	orders, err := b.DB.GetPendingOrders(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending orders: %w", err)
	}
	if len(orders) == 0 {
		return b.Sender.SendMessage(cb.From.ID, "📭 No active orders.", backKeyboard())
	}

	var sb strings.Builder
	sb.WriteString("📦 <b>Active orders:</b>\n\n")
	var rows [][]telegram.InlineKeyboardButton
	for _, o := range orders {
		sb.WriteString(fmt.Sprintf("#%d · %d₽ · %s\n", o.ID, o.Amount, o.Status))
		rows = append(rows, []telegram.InlineKeyboardButton{
			{Text: fmt.Sprintf("📦 Deliver #%d", o.ID), CallbackData: fmt.Sprintf("deliver:%d", o.ID)},
		})
	}
	rows = append(rows, []telegram.InlineKeyboardButton{{Text: "◀️ Back", CallbackData: "adm_main"}})
	return b.Sender.SendMessage(cb.From.ID, sb.String(), &telegram.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func (b *Bot) handleAdminUsers(ctx context.Context, cb *telegram.CallbackQuery) error {
	stats, err := b.DB.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}
	users, err := b.DB.GetRecentUsers(ctx, 10)
	if err != nil {
		return fmt.Errorf("failed to load recent users: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("👥 <b>Users</b>\n\nTotal: <b>%d</b>\n\n<b>Recent:</b>\n", stats.TotalUsers))
	for _, u := range users {
		sb.WriteString(fmt.Sprintf("• @%s — %s\n", usernameOr(u.Username), u.CreatedAt.Format("2006-01-02")))
	}
	return b.Sender.SendMessage(cb.From.ID, sb.String(), backKeyboard())
}

func (b *Bot) handleAdminBroadcast(ctx context.Context, cb *telegram.CallbackQuery) error {
	if err := b.Sessions.StartBroadcast(ctx, cb.From.ID); err != nil {
		return fmt.Errorf("failed to open broadcast session: %w", err)
	}
	return b.Sender.SendMessage(cb.From.ID, "📢 Send the broadcast text:", nil)
}

func (b *Bot) handleConfirm(ctx context.Context, cb *telegram.CallbackQuery, orderID int64) error {
	result, err := b.Orders.Transition(ctx, orderID, models.StatusPaid)
	if order.IsNotFound(err) {
		return b.Sender.SendMessage(cb.From.ID, fmt.Sprintf("Order #%d not found.", orderID), nil)
	}
	if err != nil {
		return err
	}
	if !result.Applied {
		return b.Sender.SendMessage(cb.From.ID,
			fmt.Sprintf("Order #%d was already resolved (%s).", orderID, result.Status), nil)
	}

	if err := b.Sender.SendMessage(result.Order.UserID,
		fmt.Sprintf("✅ <b>Payment confirmed!</b>\n\nOrder #%d accepted. Your credentials arrive within 15 minutes.", orderID),
		nil); err != nil {
		b.Logger.Warn("BOT", fmt.Sprintf("confirm notice to %d: %v", result.Order.UserID, err))
	}

	return b.Sender.SendMessage(cb.From.ID,
		fmt.Sprintf("✅ Payment for #%d confirmed. Deliver the subscription:", orderID),
		deliverKeyboard(orderID))
}

func (b *Bot) handleReject(ctx context.Context, cb *telegram.CallbackQuery, orderID int64) error {
	result, err := b.Orders.Transition(ctx, orderID, models.StatusCancelled)
	if order.IsNotFound(err) {
		return b.Sender.SendMessage(cb.From.ID, fmt.Sprintf("Order #%d not found.", orderID), nil)
	}
	if err != nil {
		return err
	}
	if !result.Applied {
		return b.Sender.SendMessage(cb.From.ID,
			fmt.Sprintf("Order #%d was already resolved (%s).", orderID, result.Status), nil)
	}

	if err := b.Sender.SendMessage(result.Order.UserID,
		fmt.Sprintf("❌ <b>Order #%d rejected.</b>\n\nPayment not found. Already paid? Message @%s",
			orderID, b.SupportUsername),
		nil); err != nil {
		b.Logger.Warn("BOT", fmt.Sprintf("reject notice to %d: %v", result.Order.UserID, err))
	}

	return b.Sender.SendMessage(cb.From.ID, fmt.Sprintf("❌ Order #%d rejected.", orderID), nil)
}

func (b *Bot) handleDeliver(ctx context.Context, cb *telegram.CallbackQuery, orderID int64) error {
	// The session opens regardless of status; the completing transition is
	// still guarded, so a payload against a non-paid order is discarded.
	if err := b.Sessions.StartDelivery(ctx, cb.From.ID, orderID); err != nil {
		return fmt.Errorf("failed to open delivery session: %w", err)
	}
	return b.Sender.SendMessage(cb.From.ID,
		fmt.Sprintf("📦 <b>Delivery — order #%d</b>\n\n"+
			"Send the credentials for the customer:\n\n"+
			"Example:\n<code>Login: user@mail.com\nPassword: Pass123!</code>", orderID),
		nil)
}

// ---------------- CAPTURE STEPS ----------------

func (b *Bot) handleDeliveryText(ctx context.Context, msg *telegram.Message, orderID int64) error {
	result, err := b.Orders.Transition(ctx, orderID, models.StatusCompleted)
	if order.IsNotFound(err) {
		return b.Sender.SendMessage(msg.From.ID,
			fmt.Sprintf("Order #%d not found. Credentials were not sent.", orderID), nil)
	}
	if err != nil {
		return err
	}
	if !result.Applied {
		return b.Sender.SendMessage(msg.From.ID,
			fmt.Sprintf("Order #%d is not ready for delivery (%s). Credentials were not sent.",
				orderID, result.Status), nil)
	}

	deliveryErr := b.Sender.SendMessage(result.Order.UserID,
		fmt.Sprintf("🎉 <b>Your subscription is ready!</b>\n\n"+
			"📦 Order #%d\n"+
			"━━━━━━━━━━━━━━━━\n%s\n━━━━━━━━━━━━━━━━\n\n"+
			"Thanks for shopping at KeyFlow! 🔑\n"+
			"Support: @%s", orderID, msg.Text, b.SupportUsername),
		b.mainKeyboard())
	if deliveryErr != nil {
		// The order stays completed; hand the payload back so it is not lost.
		return b.Sender.SendMessage(msg.From.ID,
			fmt.Sprintf("❌ Could not deliver to the customer: %v\n\nCredentials:\n%s", deliveryErr, msg.Text),
			nil)
	}

	return b.Sender.SendMessage(msg.From.ID,
		fmt.Sprintf("✅ Credentials sent — order #%d completed!", orderID), nil)
}

func (b *Bot) handleBroadcastText(ctx context.Context, msg *telegram.Message) error {
	sent, total, err := b.Broadcast.Run(ctx, msg.Text)
	if err != nil {
		b.Logger.Error("BROADCAST", fmt.Sprintf("run stopped: %v", err))
	}
	return b.Sender.SendMessage(msg.From.ID,
		fmt.Sprintf("✅ Broadcast finished: %d/%d", sent, total), backKeyboard())
}

// ---------------- HELPERS ----------------

// notifyOperators fans a message out to every operator; a failure for one
// operator never blocks the others.
func (b *Bot) notifyOperators(text string, markup *telegram.InlineKeyboardMarkup) {
	for _, operatorID := range b.Gate.Operators() {
		if err := b.Sender.SendMessage(operatorID, text, markup); err != nil {
			b.Logger.Warn("BOT", fmt.Sprintf("notify operator %d: %v", operatorID, err))
		}
	}
}

func usernameOr(username string) string {
	if username == "" {
		return "no_username"
	}
	return username
}
