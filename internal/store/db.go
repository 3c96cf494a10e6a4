package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"keyflow-bot/internal/models"
)

var ErrOrderNotFound = errors.New("order not found")

type DB struct {
	Bun *bun.DB
}

// ---------------- USERS ----------------

// UpsertUser registers a user on first contact and refreshes the handle and
// name on every later one. Never creates a duplicate row.
func (d *DB) UpsertUser(ctx context.Context, telegramID int64, username, fullName string) error {
	user := &models.User{
		TelegramID: telegramID,
		Username:   username,
		FullName:   fullName,
		CreatedAt:  time.Now(),
	}
	_, err := d.Bun.NewInsert().
		Model(user).
		On("CONFLICT (telegram_id) DO UPDATE").
		Set("username = EXCLUDED.username").
		Set("full_name = EXCLUDED.full_name").
		Exec(ctx)
	return err
}

// ApplyReferral records which referral code brought the user in. The first
// applied code wins; later codes are ignored.
func (d *DB) ApplyReferral(ctx context.Context, userID int64, code string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.User)(nil)).
		Set("referral_code = ?", code).
		Where("telegram_id = ?", userID).
		Where("referral_code IS NULL OR referral_code = ''").
		Exec(ctx)
	return err
}

func (d *DB) GetAllUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := d.Bun.NewSelect().
		Model(&users).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (d *DB) GetRecentUsers(ctx context.Context, n int) ([]models.User, error) {
	var users []models.User
	err := d.Bun.NewSelect().
		Model(&users).
		Order("created_at DESC").
		Limit(n).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return users, nil
}

// ---------------- ORDERS ----------------

func (d *DB) CreateOrder(ctx context.Context, order *models.Order) (int64, error) {
	_, err := d.Bun.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		return 0, err
	}
	return order.ID, nil
}

func (d *DB) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByExternalID maps a mini-app correlation id back to its order.
// Absence is expected, not an error: returns (nil, nil).
func (d *DB) GetOrderByExternalID(ctx context.Context, externalID string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("external_id = ?", externalID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderStatus moves an order from prior to next only if its status
// still equals prior. Returns true when the row was updated, so two
// operators racing on the same order produce exactly one applied change.
func (d *DB) UpdateOrderStatus(ctx context.Context, id int64, prior, next models.OrderStatus) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", next).
		Where("id = ?", id).
		Where("status = ?", prior).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (d *DB) GetUserOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// GetPendingOrders returns every order an operator may still act on.
func (d *DB) GetPendingOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("status IN (?)", bun.In([]models.OrderStatus{
			models.StatusPending,
			models.StatusWaitingConfirm,
			models.StatusPaid,
		})).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ---------------- STATS ----------------

// GetStats recomputes the dashboard projection on every call.
func (d *DB) GetStats(ctx context.Context) (models.Stats, error) {
	var stats models.Stats
	var err error

	stats.TotalUsers, err = d.Bun.NewSelect().Model((*models.User)(nil)).Count(ctx)
	if err != nil {
		return stats, err
	}

	stats.TotalOrders, err = d.Bun.NewSelect().Model((*models.Order)(nil)).Count(ctx)
	if err != nil {
		return stats, err
	}

	stats.CompletedOrders, err = d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Where("status = ?", models.StatusCompleted).
		Count(ctx)
	if err != nil {
		return stats, err
	}

	stats.PendingOrders, err = d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Where("status IN (?)", bun.In([]models.OrderStatus{
			models.StatusPending,
			models.StatusWaitingConfirm,
		})).
		Count(ctx)
	if err != nil {
		return stats, err
	}

	// Revenue counts money the operator has actually confirmed.
	err = d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		ColumnExpr("COALESCE(SUM(amount), 0)").
		Where("status IN (?)", bun.In([]models.OrderStatus{
			models.StatusPaid,
			models.StatusCompleted,
		})).
		Scan(ctx, &stats.TotalRevenue)
	if err != nil {
		return stats, err
	}

	return stats, nil
}
