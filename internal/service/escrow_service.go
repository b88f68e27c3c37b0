package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/uslugihub/backend/internal/logger"
	"github.com/uslugihub/backend/internal/models"
)

// EscrowRepository описывает операции резервирования средств.
type EscrowRepository interface {
	HoldFunds(ctx context.Context, orderID, customerID uuid.UUID, amount int64) (*models.WalletTransaction, error)
	ReleaseFunds(ctx context.Context, orderID, executorID uuid.UUID) (*models.WalletTransaction, error)
	RefundFunds(ctx context.Context, orderID, customerID uuid.UUID, percent int64) (*models.WalletTransaction, error)
}

// EscrowService координирует резервирование и выплату средств по заказу.
//
// Денежные операции сопровождают переходы статуса, но не блокируют их:
// ошибка резервирования или выплаты логируется, статус заказа уже изменён.
// Расхождение устраняется повторным вызовом или вручную по журналу
// транзакций, из которого всегда видно фактическое движение средств.
type EscrowService struct {
	repo EscrowRepository
}

// NewEscrowService создаёт координатор эскроу.
func NewEscrowService(repo EscrowRepository) *EscrowService {
	return &EscrowService{repo: repo}
}

// Hold резервирует средства заказчика при выборе исполнителя.
func (s *EscrowService) Hold(ctx context.Context, orderID, customerID uuid.UUID, amount int64) {
	if amount <= 0 {
		return
	}
	if _, err := s.repo.HoldFunds(ctx, orderID, customerID, amount); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"order_id": orderID,
			"user_id":  customerID,
		}).Error("escrow: не удалось зарезервировать средства")
	}
}

// Release выплачивает исполнителю зарезервированную сумму за вычетом
// комиссии платформы при полном завершении заказа.
func (s *EscrowService) Release(ctx context.Context, orderID, executorID uuid.UUID) {
	if _, err := s.repo.ReleaseFunds(ctx, orderID, executorID); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"order_id": orderID,
			"user_id":  executorID,
		}).Error("escrow: не удалось выплатить средства исполнителю")
	}
}

// Refund возвращает заказчику долю резерва.
func (s *EscrowService) Refund(ctx context.Context, orderID, customerID uuid.UUID, percent int64) {
	if _, err := s.repo.RefundFunds(ctx, orderID, customerID, percent); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"order_id": orderID,
			"user_id":  customerID,
			"percent":  percent,
		}).Error("escrow: не удалось вернуть средства заказчику")
	}
}
