package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/uslugihub/backend/internal/models"
	"github.com/uslugihub/backend/internal/pkg/apperror"
	"github.com/uslugihub/backend/internal/repository"
)

type mockWalletRepo struct {
	mock.Mock
}

func (m *mockWalletRepo) Deposit(ctx context.Context, userID uuid.UUID, amount int64, description string, externalRef *string) (*models.WalletTransaction, error) {
	args := m.Called(ctx, userID, amount, description, externalRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WalletTransaction), args.Error(1)
}

func (m *mockWalletRepo) Charge(ctx context.Context, userID uuid.UUID, amount int64, txType string, description string) (*models.WalletTransaction, error) {
	args := m.Called(ctx, userID, amount, txType, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WalletTransaction), args.Error(1)
}

func (m *mockWalletRepo) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockWalletRepo) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.WalletTransaction), args.Error(1)
}

func (m *mockWalletRepo) ListOrderTransactions(ctx context.Context, orderID uuid.UUID) ([]models.WalletTransaction, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).([]models.WalletTransaction), args.Error(1)
}

func TestWalletService_Deposit(t *testing.T) {
	repo := new(mockWalletRepo)
	svc := NewWalletService(repo)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("Deposit", ctx, userID, int64(100000), mock.Anything, (*string)(nil)).Return(&models.WalletTransaction{
		ID: uuid.New(), UserID: userID, Amount: 100000, Type: models.TransactionTypeDeposit,
	}, nil)

	tr, err := svc.Deposit(ctx, userID, 100000, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(100000), tr.Amount)

	_, err = svc.Deposit(ctx, userID, 0, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "положительной")

	_, err = svc.Deposit(ctx, userID, -500, nil)
	assert.Error(t, err)
}

func TestWalletService_Charge_InsufficientFunds(t *testing.T) {
	repo := new(mockWalletRepo)
	svc := NewWalletService(repo)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("Charge", ctx, userID, int64(500000), models.TransactionTypeCharge, mock.Anything).
		Return(nil, repository.ErrInsufficientFunds)

	_, err := svc.Charge(ctx, userID, 500000, "Списание")
	assert.ErrorIs(t, err, apperror.ErrInsufficientFunds)
}

func TestWalletService_History_ClampsLimit(t *testing.T) {
	repo := new(mockWalletRepo)
	svc := NewWalletService(repo)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("ListTransactions", ctx, userID, 50, 0).Return([]models.WalletTransaction{}, nil)

	_, err := svc.History(ctx, userID, 1000, -1)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

type mockSubscriptionRepo struct {
	mock.Mock
}

func (m *mockSubscriptionRepo) Create(ctx context.Context, sub *models.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *mockSubscriptionRepo) GetActive(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepo) ConsumeResponse(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockSubscriptionRepo) ConsumeOrder(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockSubscriptionRepo) DeactivateExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type mockCharger struct {
	mock.Mock
}

func (m *mockCharger) Charge(ctx context.Context, userID uuid.UUID, amount int64, txType string, description string) (*models.WalletTransaction, error) {
	args := m.Called(ctx, userID, amount, txType, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WalletTransaction), args.Error(1)
}

func TestSubscriptionService_Purchase(t *testing.T) {
	repo := new(mockSubscriptionRepo)
	wallet := new(mockCharger)
	svc := NewSubscriptionService(repo, wallet)
	ctx := context.Background()
	userID := uuid.New()

	quota := models.SubscriptionPlans["standard"]
	wallet.On("Charge", ctx, userID, quota.Price, models.TransactionTypeSubscriptionPayment, mock.Anything).
		Return(&models.WalletTransaction{ID: uuid.New()}, nil)
	repo.On("Create", ctx, mock.Anything).Return(nil)

	sub, err := svc.Purchase(ctx, userID, "standard")
	assert.NoError(t, err)
	assert.Equal(t, quota.Responses, sub.ResponsesLeft)
	assert.Equal(t, quota.Orders, sub.OrdersLeft)
	wallet.AssertExpectations(t)
}

func TestSubscriptionService_Purchase_UnknownPlan(t *testing.T) {
	svc := NewSubscriptionService(new(mockSubscriptionRepo), new(mockCharger))

	_, err := svc.Purchase(context.Background(), uuid.New(), "vip")
	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestSubscriptionService_Purchase_InsufficientFunds(t *testing.T) {
	repo := new(mockSubscriptionRepo)
	wallet := new(mockCharger)
	svc := NewSubscriptionService(repo, wallet)
	ctx := context.Background()
	userID := uuid.New()

	wallet.On("Charge", ctx, userID, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, repository.ErrInsufficientFunds)

	_, err := svc.Purchase(ctx, userID, "start")
	assert.ErrorIs(t, err, apperror.ErrInsufficientFunds)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubscriptionService_CanRespond(t *testing.T) {
	repo := new(mockSubscriptionRepo)
	svc := NewSubscriptionService(repo, new(mockCharger))
	ctx := context.Background()
	userID := uuid.New()

	repo.On("GetActive", ctx, userID).Return(&models.Subscription{
		UserID: userID, ResponsesLeft: 2, IsActive: true,
	}, nil).Once()
	assert.NoError(t, svc.CanRespond(ctx, userID))

	repo.On("GetActive", ctx, userID).Return(&models.Subscription{
		UserID: userID, ResponsesLeft: 0, IsActive: true,
	}, nil).Once()
	err := svc.CanRespond(ctx, userID)
	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))

	repo.On("GetActive", ctx, userID).Return(nil, repository.ErrSubscriptionNotFound)
	err = svc.CanRespond(ctx, userID)
	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}

func TestSubscriptionService_CanTakeOrder(t *testing.T) {
	repo := new(mockSubscriptionRepo)
	svc := NewSubscriptionService(repo, new(mockCharger))
	ctx := context.Background()
	userID := uuid.New()

	repo.On("GetActive", ctx, userID).Return(&models.Subscription{
		UserID: userID, OrdersLeft: 1, IsActive: true,
	}, nil).Once()
	assert.NoError(t, svc.CanTakeOrder(ctx, userID))

	repo.On("GetActive", ctx, userID).Return(&models.Subscription{
		UserID: userID, OrdersLeft: 0, IsActive: true,
	}, nil).Once()
	err := svc.CanTakeOrder(ctx, userID)
	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
	assert.Contains(t, err.Error(), "исчерпана")

	repo.On("GetActive", ctx, userID).Return(nil, repository.ErrSubscriptionNotFound)
	err = svc.CanTakeOrder(ctx, userID)
	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}

func TestSubscriptionService_ConsumeResponse_QuotaExhausted(t *testing.T) {
	repo := new(mockSubscriptionRepo)
	svc := NewSubscriptionService(repo, new(mockCharger))
	ctx := context.Background()
	userID := uuid.New()

	repo.On("ConsumeResponse", ctx, userID).Return(repository.ErrQuotaExhausted)

	err := svc.ConsumeResponse(ctx, userID)
	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
	assert.Contains(t, err.Error(), "исчерпана")
}
