package store

import (
	"context"

	"github.com/uptrace/bun"

	"keyflow-bot/internal/models"
)

// Migrate creates the users and orders tables if they do not exist yet.
func Migrate(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().
		Model((*models.User)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}

	if _, err := db.NewCreateTable().
		Model((*models.Order)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}

	return nil
}
