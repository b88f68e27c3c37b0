package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/uslugihub/backend/internal/models"
	"github.com/uslugihub/backend/internal/pkg/apperror"
	"github.com/uslugihub/backend/internal/repository"
)

// WalletRepositoryIface описывает зависимости WalletService от хранилища.
type WalletRepositoryIface interface {
	Deposit(ctx context.Context, userID uuid.UUID, amount int64, description string, externalRef *string) (*models.WalletTransaction, error)
	Charge(ctx context.Context, userID uuid.UUID, amount int64, txType string, description string) (*models.WalletTransaction, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error)
	ListOrderTransactions(ctx context.Context, orderID uuid.UUID) ([]models.WalletTransaction, error)
}

// WalletService — операции кошелька пользователя.
type WalletService struct {
	repo WalletRepositoryIface
}

// NewWalletService создаёт сервис кошелька.
func NewWalletService(repo WalletRepositoryIface) *WalletService {
	return &WalletService{repo: repo}
}

// Deposit пополняет кошелёк. Сумма в копейках, строго положительная.
func (s *WalletService) Deposit(ctx context.Context, userID uuid.UUID, amount int64, externalRef *string) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма пополнения должна быть положительной")
	}

	t, err := s.repo.Deposit(ctx, userID, amount, "Пополнение кошелька", externalRef)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, fmt.Errorf("wallet service: deposit %w", err)
	}
	return t, nil
}

// Charge списывает средства с кошелька.
func (s *WalletService) Charge(ctx context.Context, userID uuid.UUID, amount int64, description string) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма списания должна быть положительной")
	}

	t, err := s.repo.Charge(ctx, userID, amount, models.TransactionTypeCharge, description)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, apperror.ErrUserNotFound
		case errors.Is(err, repository.ErrInsufficientFunds):
			return nil, apperror.ErrInsufficientFunds
		}
		return nil, fmt.Errorf("wallet service: charge %w", err)
	}
	return t, nil
}

// GetBalance возвращает баланс кошелька в копейках.
func (s *WalletService) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	balance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, apperror.ErrUserNotFound
		}
		return 0, fmt.Errorf("wallet service: get balance %w", err)
	}
	return balance, nil
}

// History возвращает журнал транзакций пользователя.
func (s *WalletService) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	transactions, err := s.repo.ListTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("wallet service: history %w", err)
	}
	return transactions, nil
}

// OrderHistory возвращает журнал транзакций по заказу.
func (s *WalletService) OrderHistory(ctx context.Context, orderID uuid.UUID) ([]models.WalletTransaction, error) {
	transactions, err := s.repo.ListOrderTransactions(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("wallet service: order history %w", err)
	}
	return transactions, nil
}
