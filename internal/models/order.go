package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	StatusPending        OrderStatus = "pending"
	StatusWaitingConfirm OrderStatus = "waiting_confirm"
	StatusPaid           OrderStatus = "paid"
	StatusCompleted      OrderStatus = "completed"
	StatusCancelled      OrderStatus = "cancelled"
)

// legalEdges holds the only valid one-step transitions. Terminal statuses
// have no outgoing edges.
var legalEdges = map[OrderStatus][]OrderStatus{
	StatusPending:        {StatusWaitingConfirm},
	StatusWaitingConfirm: {StatusPaid, StatusCancelled},
	StatusPaid:           {StatusCompleted, StatusCancelled},
}

func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether target is reachable from s in one step.
func (s OrderStatus) CanTransition(target OrderStatus) bool {
	for _, next := range legalEdges[s] {
		if next == target {
			return true
		}
	}
	return false
}

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID            int64       `bun:"id,pk,autoincrement" json:"id"`
	UserID        int64       `bun:"user_id,notnull" json:"user_id"`
	ServiceID     int64       `bun:"service_id" json:"service_id"`
	VariantID     int64       `bun:"variant_id" json:"variant_id"`
	Amount        int64       `bun:"amount,notnull" json:"amount"`
	PaymentMethod string      `bun:"payment_method" json:"payment_method"`
	ExternalID    string      `bun:"external_id,nullzero" json:"external_id,omitempty"`
	Status        OrderStatus `bun:"status,notnull" json:"status"`
	CreatedAt     time.Time   `bun:"created_at,notnull" json:"created_at"`
}

// Stats is the read-only dashboard projection over users and orders.
type Stats struct {
	TotalUsers      int   `json:"total_users"`
	TotalOrders     int   `json:"total_orders"`
	CompletedOrders int   `json:"completed_orders"`
	PendingOrders   int   `json:"pending_orders"`
	TotalRevenue    int64 `json:"total_revenue"`
}
