package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/uslugihub/backend/internal/models"
	"github.com/uslugihub/backend/internal/pkg/apperror"
	"github.com/uslugihub/backend/internal/repository"
)

// MediatorRepositoryIface описывает хранилище процесса посредника.
type MediatorRepositoryIface interface {
	TakeOrder(ctx context.Context, orderID, mediatorID uuid.UUID) (*models.Order, error)
	MoveToNextStep(ctx context.Context, orderID, mediatorID uuid.UUID, stepData json.RawMessage, comment *string, update *models.Order) (*models.Order, error)
	Archive(ctx context.Context, orderID, mediatorID uuid.UUID, stepData json.RawMessage, comment *string) (*models.Order, error)
	ReturnToApp(ctx context.Context, orderID, mediatorID uuid.UUID) (*models.Order, error)
	ListSteps(ctx context.Context, orderID uuid.UUID) ([]models.MediatorOrderStep, error)
	ListByMediator(ctx context.Context, mediatorID uuid.UUID, archived bool) ([]models.Order, error)
}

// CommissionLedger — отложенная комиссия посредника в журнале кошелька.
type CommissionLedger interface {
	CreatePendingCommission(ctx context.Context, orderID, mediatorID uuid.UUID, amount int64) (*models.WalletTransaction, error)
	CancelPendingCommission(ctx context.Context, orderID, mediatorID uuid.UUID) error
}

// OrderGetter — чтение заказа по идентификатору.
type OrderGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// MediatorService реализует трёхшаговый процесс ведения заказа посредником.
type MediatorService struct {
	repo          MediatorRepositoryIface
	orders        OrderGetter
	users         UserLookup
	ledger        CommissionLedger
	notifications Notifications
}

// NewMediatorService создаёт сервис посредника.
func NewMediatorService(repo MediatorRepositoryIface, orders OrderGetter, users UserLookup, ledger CommissionLedger, notifications Notifications) *MediatorService {
	return &MediatorService{
		repo:          repo,
		orders:        orders,
		users:         users,
		ledger:        ledger,
		notifications: notifications,
	}
}

// EstimateInput — смета шага: фиксированная комиссия, процент или
// себестоимость исполнителя.
type EstimateInput struct {
	Commission        *int64
	CommissionPercent *int64
	ExecutorCost      *int64
	Notes             *string
}

// DefaultMediatorCommissionPercent — комиссия посредника по умолчанию.
const DefaultMediatorCommissionPercent = 10

// CalculateCommission выбирает способ расчёта комиссии по приоритету:
// фиксированная сумма, затем процент от бюджета, затем маржа между
// бюджетом и себестоимостью, иначе процент по умолчанию.
func CalculateCommission(maxAmount int64, in EstimateInput) int64 {
	if in.Commission != nil && *in.Commission > 0 {
		return *in.Commission
	}
	if in.CommissionPercent != nil && *in.CommissionPercent > 0 {
		return maxAmount * *in.CommissionPercent / 100
	}
	if in.ExecutorCost != nil && *in.ExecutorCost > 0 && maxAmount > *in.ExecutorCost {
		return maxAmount - *in.ExecutorCost
	}
	return maxAmount * DefaultMediatorCommissionPercent / 100
}

// TakeOrder закрепляет заказ за посредником.
func (s *MediatorService) TakeOrder(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	if err := s.requireMediator(ctx, userID); err != nil {
		return nil, err
	}

	order, err := s.repo.TakeOrder(ctx, orderID, userID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			return nil, apperror.ErrOrderNotFound
		case errors.Is(err, repository.ErrMediatorAlreadySet):
			return nil, apperror.New(apperror.ErrCodeConflict, "заказ уже ведёт другой посредник")
		case errors.Is(err, repository.ErrInvalidTransition):
			return nil, apperror.ErrInvalidTransition
		}
		return nil, fmt.Errorf("mediator service: take order %w", err)
	}

	s.notifications.Notify(ctx, order.AuthorID,
		models.NotificationTypeMediatorUpdate,
		"Заказ взят посредником",
		fmt.Sprintf("Посредник начал работу по заказу «%s»", order.Title),
		order)

	return order, nil
}

// NextStep закрывает текущий шаг с комментарием посредника и открывает
// следующий. На последнем переходе фиксируется отложенная комиссия посредника.
func (s *MediatorService) NextStep(ctx context.Context, orderID, userID uuid.UUID, stepData json.RawMessage, comment *string, in EstimateInput) (*models.Order, error) {
	current, err := s.ownedOrder(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	update := &models.Order{
		MediatorCommission: CalculateCommission(current.MaxAmount, in),
		MediatorNotes:      in.Notes,
	}
	if in.ExecutorCost != nil {
		update.ExecutorCost = *in.ExecutorCost
		if current.MaxAmount > *in.ExecutorCost {
			update.MediatorMargin = current.MaxAmount - *in.ExecutorCost
		}
	}

	order, err := s.repo.MoveToNextStep(ctx, orderID, userID, stepData, comment, update)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			return nil, apperror.ErrOrderNotFound
		case errors.Is(err, repository.ErrInvalidTransition), errors.Is(err, repository.ErrNoNextStep):
			return nil, apperror.ErrInvalidTransition
		}
		return nil, fmt.Errorf("mediator service: next step %w", err)
	}

	// Смета согласована при входе на шаг исполнения: комиссия фиксируется
	// отложенной записью журнала. Запись отменяется при архивации или
	// возврате заказа — расчёт с посредником проходит вне кошелька.
	if order.MediatorStep == models.MediatorStepExecution {
		if _, err := s.ledger.CreatePendingCommission(ctx, orderID, userID, order.MediatorCommission); err != nil {
			return nil, fmt.Errorf("mediator service: pending commission %w", err)
		}
	}

	s.notifications.Notify(ctx, order.AuthorID,
		models.NotificationTypeMediatorUpdate,
		"Посредник продвинул заказ",
		fmt.Sprintf("Заказ «%s» перешёл на шаг %d", order.Title, order.MediatorStep),
		order)

	return order, nil
}

// Archive завершает процесс посредника. Отложенная комиссия отменяется:
// кошелёк не знает плательщика, расчёт с посредником проходит вне платформы.
func (s *MediatorService) Archive(ctx context.Context, orderID, userID uuid.UUID, stepData json.RawMessage, comment *string) (*models.Order, error) {
	if _, err := s.ownedOrder(ctx, orderID, userID); err != nil {
		return nil, err
	}

	order, err := s.repo.Archive(ctx, orderID, userID, stepData, comment)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			return nil, apperror.ErrOrderNotFound
		case errors.Is(err, repository.ErrInvalidTransition):
			return nil, apperror.ErrInvalidTransition
		}
		return nil, fmt.Errorf("mediator service: archive %w", err)
	}

	if err := s.ledger.CancelPendingCommission(ctx, orderID, userID); err != nil &&
		!errors.Is(err, repository.ErrTransactionNotFound) {
		return nil, fmt.Errorf("mediator service: cancel commission %w", err)
	}

	return order, nil
}

// ReturnToApp возвращает заказ в приложение, отменяя отложенную комиссию.
func (s *MediatorService) ReturnToApp(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	if _, err := s.ownedOrder(ctx, orderID, userID); err != nil {
		return nil, err
	}

	order, err := s.repo.ReturnToApp(ctx, orderID, userID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound):
			return nil, apperror.ErrOrderNotFound
		case errors.Is(err, repository.ErrInvalidTransition):
			return nil, apperror.ErrInvalidTransition
		}
		return nil, fmt.Errorf("mediator service: return to app %w", err)
	}

	if err := s.ledger.CancelPendingCommission(ctx, orderID, userID); err != nil &&
		!errors.Is(err, repository.ErrTransactionNotFound) {
		return nil, fmt.Errorf("mediator service: cancel commission %w", err)
	}

	s.notifications.Notify(ctx, order.AuthorID,
		models.NotificationTypeMediatorUpdate,
		"Заказ возвращён в приложение",
		fmt.Sprintf("Посредник вернул заказ «%s», он снова в поиске исполнителя", order.Title),
		order)

	return order, nil
}

// Steps возвращает историю шагов заказа его посреднику или автору.
func (s *MediatorService) Steps(ctx context.Context, orderID, userID uuid.UUID) ([]models.MediatorOrderStep, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, err
	}
	if order.AuthorID != userID && (order.MediatorID == nil || *order.MediatorID != userID) {
		return nil, apperror.ErrForbidden
	}
	return s.repo.ListSteps(ctx, orderID)
}

// ListMy возвращает заказы посредника.
func (s *MediatorService) ListMy(ctx context.Context, userID uuid.UUID, archived bool) ([]models.Order, error) {
	if err := s.requireMediator(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListByMediator(ctx, userID, archived)
}

func (s *MediatorService) requireMediator(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return apperror.ErrUserNotFound
		}
		return err
	}
	if user.Type != models.UserTypeMediator {
		return apperror.ErrForbidden
	}
	return nil
}

// ownedOrder проверяет, что заказ закреплён за этим посредником.
func (s *MediatorService) ownedOrder(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, err
	}
	if order.MediatorID == nil || *order.MediatorID != userID {
		return nil, apperror.ErrForbidden
	}
	return order, nil
}
