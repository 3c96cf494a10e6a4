package bot

import (
	"fmt"

	"keyflow-bot/internal/telegram"
)

func (b *Bot) mainKeyboard() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: "🛍 Open shop", WebApp: &telegram.WebAppInfo{URL: b.WebAppURL}}},
			{{Text: "📋 My orders", CallbackData: "my_orders"}},
			{{Text: "💬 Support", URL: "https://t.me/" + b.SupportUsername}},
		},
	}
}

func adminKeyboard() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{
				{Text: "📊 Stats", CallbackData: "adm_stats"},
				{Text: "📦 Active orders", CallbackData: "adm_orders"},
			},
			{
				{Text: "👥 Users", CallbackData: "adm_users"},
				{Text: "📢 Broadcast", CallbackData: "adm_broadcast"},
			},
		},
	}
}

func backKeyboard() *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: "◀️ Back", CallbackData: "adm_main"}},
		},
	}
}

func confirmKeyboard(orderID int64) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: "✅ Confirm", CallbackData: fmt.Sprintf("confirm:%d", orderID)}},
			{{Text: "❌ Reject", CallbackData: fmt.Sprintf("reject:%d", orderID)}},
		},
	}
}

func deliverKeyboard(orderID int64) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: fmt.Sprintf("📦 Deliver #%d", orderID), CallbackData: fmt.Sprintf("deliver:%d", orderID)}},
		},
	}
}
