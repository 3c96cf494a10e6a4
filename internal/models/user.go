package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	TelegramID   int64     `bun:"telegram_id,pk" json:"telegram_id"`
	Username     string    `bun:"username" json:"username"`
	FullName     string    `bun:"full_name" json:"full_name"`
	ReferralCode string    `bun:"referral_code,nullzero" json:"referral_code,omitempty"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"created_at"`
}
