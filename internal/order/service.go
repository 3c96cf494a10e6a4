package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"keyflow-bot/internal/logger"
	"keyflow-bot/internal/models"
	"keyflow-bot/internal/store"
)

var ErrInvalidAmount = errors.New("order amount must be positive")

type DBLayer interface {
	CreateOrder(ctx context.Context, order *models.Order) (int64, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByExternalID(ctx context.Context, externalID string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, prior, next models.OrderStatus) (bool, error)
}

type EventPublisher interface {
	PublishOrderCreated(order models.Order) error
	PublishStatusChanged(order models.Order, prior models.OrderStatus) error
}

// TransitionResult reports what a Transition call actually did. Applied is
// false when the requested edge was illegal or another actor got there
// first; Prior lets the caller phrase the right reply either way.
type TransitionResult struct {
	Applied bool
	Prior   models.OrderStatus
	Status  models.OrderStatus
	Order   *models.Order
}

type Service struct {
	DB     DBLayer
	Events EventPublisher
	Logger *logger.Logger
}

func NewService(db DBLayer, events EventPublisher, log *logger.Logger) *Service {
	return &Service{DB: db, Events: events, Logger: log}
}

type CreateRequest struct {
	UserID        int64
	ServiceID     int64
	VariantID     int64
	Amount        int64
	PaymentMethod string
	ExternalID    string
}

// Create opens a new order in the pending status.
func (s *Service) Create(ctx context.Context, req CreateRequest) (int64, error) {
	if req.Amount <= 0 {
		return 0, ErrInvalidAmount
	}

	order := &models.Order{
		UserID:        req.UserID,
		ServiceID:     req.ServiceID,
		VariantID:     req.VariantID,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		ExternalID:    req.ExternalID,
		Status:        models.StatusPending,
		CreatedAt:     time.Now(),
	}

	id, err := s.DB.CreateOrder(ctx, order)
	if err != nil {
		return 0, fmt.Errorf("failed to create order: %w", err)
	}
	s.Logger.LogOrder("CREATE", id, fmt.Sprintf("user %d, amount %d, method %s", req.UserID, req.Amount, req.PaymentMethod))

	if s.Events != nil {
		if err := s.Events.PublishOrderCreated(*order); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("publish order created: %v", err))
		}
	}

	return id, nil
}

// Transition moves an order to target if the edge is legal. An illegal or
// already-taken edge is a no-op, never an error: duplicate operator clicks
// must not double-notify the customer.
func (s *Service) Transition(ctx context.Context, orderID int64, target models.OrderStatus) (TransitionResult, error) {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if err != nil {
		return TransitionResult{}, err
	}

	prior := order.Status
	if !prior.CanTransition(target) {
		s.Logger.LogOrder("SKIP", orderID, fmt.Sprintf("%s -> %s not reachable", prior, target))
		return TransitionResult{Applied: false, Prior: prior, Status: prior, Order: order}, nil
	}

	applied, err := s.DB.UpdateOrderStatus(ctx, orderID, prior, target)
	if err != nil {
		return TransitionResult{}, fmt.Errorf("failed to update order %d: %w", orderID, err)
	}
	if !applied {
		// Lost the race: another operator moved the order first.
		current, err := s.DB.GetOrderByID(ctx, orderID)
		if err != nil {
			return TransitionResult{}, err
		}
		s.Logger.LogOrder("SKIP", orderID, fmt.Sprintf("lost race, now %s", current.Status))
		return TransitionResult{Applied: false, Prior: current.Status, Status: current.Status, Order: current}, nil
	}

	order.Status = target
	s.Logger.LogOrder("TRANSITION", orderID, fmt.Sprintf("%s -> %s", prior, target))

	if s.Events != nil {
		if err := s.Events.PublishStatusChanged(*order, prior); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("publish status changed: %v", err))
		}
	}

	return TransitionResult{Applied: true, Prior: prior, Status: target, Order: order}, nil
}

// ResolveByExternalID maps an asynchronous "I paid" event back to its
// order. An unknown correlation id returns (nil, nil).
func (s *Service) ResolveByExternalID(ctx context.Context, externalID string) (*models.Order, error) {
	if externalID == "" {
		return nil, nil
	}
	return s.DB.GetOrderByExternalID(ctx, externalID)
}

func (s *Service) Get(ctx context.Context, orderID int64) (*models.Order, error) {
	return s.DB.GetOrderByID(ctx, orderID)
}

// IsNotFound reports whether err means the order does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrOrderNotFound)
}
