package order_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"keyflow-bot/internal/logger"
	"keyflow-bot/internal/models"
	"keyflow-bot/internal/order"
	"keyflow-bot/internal/store"
)

// Mock implementations

type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) CreateOrder(ctx context.Context, o *models.Order) (int64, error) {
	args := m.Called(ctx, o)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDBLayer) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockDBLayer) GetOrderByExternalID(ctx context.Context, externalID string) (*models.Order, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockDBLayer) UpdateOrderStatus(ctx context.Context, id int64, prior, next models.OrderStatus) (bool, error) {
	args := m.Called(ctx, id, prior, next)
	return args.Bool(0), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishOrderCreated(o models.Order) error {
	args := m.Called(o)
	return args.Error(0)
}

func (m *MockPublisher) PublishStatusChanged(o models.Order, prior models.OrderStatus) error {
	args := m.Called(o, prior)
	return args.Error(0)
}

func newTestService(db *MockDBLayer, events order.EventPublisher) *order.Service {
	return order.NewService(db, events, logger.NewTestLogger())
}

func TestCreateRejectsNonPositiveAmount(t *testing.T) {
	db := new(MockDBLayer)
	svc := newTestService(db, nil)

	_, err := svc.Create(context.Background(), order.CreateRequest{UserID: 100, Amount: 0})
	assert.ErrorIs(t, err, order.ErrInvalidAmount)

	_, err = svc.Create(context.Background(), order.CreateRequest{UserID: 100, Amount: -5})
	assert.ErrorIs(t, err, order.ErrInvalidAmount)

	db.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestCreatePublishesEvent(t *testing.T) {
	db := new(MockDBLayer)
	events := new(MockPublisher)
	svc := newTestService(db, events)

	db.On("CreateOrder", mock.Anything, mock.AnythingOfType("*models.Order")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.Order).ID = 7
		}).
		Return(int64(7), nil)
	events.On("PublishOrderCreated", mock.AnythingOfType("models.Order")).Return(nil)

	id, err := svc.Create(context.Background(), order.CreateRequest{
		UserID: 100, Amount: 500, PaymentMethod: "sbp", ExternalID: "w-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	events.AssertCalled(t, "PublishOrderCreated", mock.AnythingOfType("models.Order"))
}

func TestTransitionApplied(t *testing.T) {
	db := new(MockDBLayer)
	events := new(MockPublisher)
	svc := newTestService(db, events)

	db.On("GetOrderByID", mock.Anything, int64(7)).
		Return(&models.Order{ID: 7, UserID: 100, Status: models.StatusWaitingConfirm}, nil)
	db.On("UpdateOrderStatus", mock.Anything, int64(7), models.StatusWaitingConfirm, models.StatusPaid).
		Return(true, nil)
	events.On("PublishStatusChanged", mock.AnythingOfType("models.Order"), models.StatusWaitingConfirm).
		Return(nil)

	result, err := svc.Transition(context.Background(), 7, models.StatusPaid)
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, models.StatusWaitingConfirm, result.Prior)
	assert.Equal(t, models.StatusPaid, result.Status)
}

func TestTransitionIllegalEdgeIsNoop(t *testing.T) {
	db := new(MockDBLayer)
	svc := newTestService(db, nil)

	db.On("GetOrderByID", mock.Anything, int64(7)).
		Return(&models.Order{ID: 7, Status: models.StatusCompleted}, nil)

	result, err := svc.Transition(context.Background(), 7, models.StatusPaid)
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Equal(t, models.StatusCompleted, result.Prior)

	db.AssertNotCalled(t, "UpdateOrderStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTransitionLostRace(t *testing.T) {
	db := new(MockDBLayer)
	svc := newTestService(db, nil)

	// First read sees waiting_confirm, but another operator wins the swap.
	db.On("GetOrderByID", mock.Anything, int64(7)).
		Return(&models.Order{ID: 7, Status: models.StatusWaitingConfirm}, nil).Once()
	db.On("UpdateOrderStatus", mock.Anything, int64(7), models.StatusWaitingConfirm, models.StatusPaid).
		Return(false, nil)
	db.On("GetOrderByID", mock.Anything, int64(7)).
		Return(&models.Order{ID: 7, Status: models.StatusPaid}, nil).Once()

	result, err := svc.Transition(context.Background(), 7, models.StatusPaid)
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Equal(t, models.StatusPaid, result.Status)
}

func TestTransitionNotFound(t *testing.T) {
	db := new(MockDBLayer)
	svc := newTestService(db, nil)

	db.On("GetOrderByID", mock.Anything, int64(42)).Return(nil, store.ErrOrderNotFound)

	_, err := svc.Transition(context.Background(), 42, models.StatusPaid)
	assert.True(t, order.IsNotFound(err))
}

func TestResolveByExternalID(t *testing.T) {
	db := new(MockDBLayer)
	svc := newTestService(db, nil)

	db.On("GetOrderByExternalID", mock.Anything, "w-1").
		Return(&models.Order{ID: 7, ExternalID: "w-1"}, nil)

	ord, err := svc.ResolveByExternalID(context.Background(), "w-1")
	require.NoError(t, err)
	require.NotNil(t, ord)
	assert.Equal(t, int64(7), ord.ID)

	// Empty id never hits the database.
	ord, err = svc.ResolveByExternalID(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, ord)
	db.AssertNotCalled(t, "GetOrderByExternalID", mock.Anything, "")
}
