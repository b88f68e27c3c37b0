package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/uslugihub/backend/internal/models"
)

type mockEscrowRepo struct {
	mock.Mock
}

func (m *mockEscrowRepo) HoldFunds(ctx context.Context, orderID, customerID uuid.UUID, amount int64) (*models.WalletTransaction, error) {
	args := m.Called(ctx, orderID, customerID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WalletTransaction), args.Error(1)
}

func (m *mockEscrowRepo) ReleaseFunds(ctx context.Context, orderID, executorID uuid.UUID) (*models.WalletTransaction, error) {
	args := m.Called(ctx, orderID, executorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WalletTransaction), args.Error(1)
}

func (m *mockEscrowRepo) RefundFunds(ctx context.Context, orderID, customerID uuid.UUID, percent int64) (*models.WalletTransaction, error) {
	args := m.Called(ctx, orderID, customerID, percent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WalletTransaction), args.Error(1)
}

func TestEscrowService_Hold_SkipsNonPositiveAmount(t *testing.T) {
	repo := new(mockEscrowRepo)
	svc := NewEscrowService(repo)
	ctx := context.Background()

	svc.Hold(ctx, uuid.New(), uuid.New(), 0)
	svc.Hold(ctx, uuid.New(), uuid.New(), -100)

	repo.AssertNotCalled(t, "HoldFunds", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEscrowService_Hold(t *testing.T) {
	repo := new(mockEscrowRepo)
	svc := NewEscrowService(repo)
	ctx := context.Background()
	orderID := uuid.New()
	customerID := uuid.New()

	repo.On("HoldFunds", ctx, orderID, customerID, int64(100000)).Return(&models.WalletTransaction{
		ID: uuid.New(), Type: models.TransactionTypeEscrowHold,
	}, nil)

	svc.Hold(ctx, orderID, customerID, 100000)
	repo.AssertExpectations(t)
}

func TestEscrowService_Release_SwallowsError(t *testing.T) {
	repo := new(mockEscrowRepo)
	svc := NewEscrowService(repo)
	ctx := context.Background()
	orderID := uuid.New()
	executorID := uuid.New()

	repo.On("ReleaseFunds", ctx, orderID, executorID).Return(nil, errors.New("db down"))

	// Ошибка выплаты логируется и не паникует
	svc.Release(ctx, orderID, executorID)
	repo.AssertExpectations(t)
}

func TestEscrowService_Refund(t *testing.T) {
	repo := new(mockEscrowRepo)
	svc := NewEscrowService(repo)
	ctx := context.Background()
	orderID := uuid.New()
	customerID := uuid.New()

	repo.On("RefundFunds", ctx, orderID, customerID, int64(50)).Return(&models.WalletTransaction{
		ID: uuid.New(), Type: models.TransactionTypeEscrowRefund,
	}, nil)

	svc.Refund(ctx, orderID, customerID, 50)
	repo.AssertExpectations(t)
}
