package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/uslugihub/backend/internal/models"
	"github.com/uslugihub/backend/internal/pkg/apperror"
	"github.com/uslugihub/backend/internal/repository"
	"github.com/uslugihub/backend/internal/validation"
)

// ResponseRepositoryIface описывает хранилище откликов.
type ResponseRepositoryIface interface {
	Upsert(ctx context.Context, response *models.OrderResponse) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.OrderResponse, error)
	GetByOrderAndExecutor(ctx context.Context, orderID, executorID uuid.UUID) (*models.OrderResponse, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderResponse, error)
	ListByExecutor(ctx context.Context, executorID uuid.UUID) ([]models.OrderResponse, error)
	AdvanceStatus(ctx context.Context, id uuid.UUID, to models.ResponseStatus) (*models.OrderResponse, error)
	Reject(ctx context.Context, id uuid.UUID) (*models.OrderResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// OrderLookup — доступ ResponseService к заказам.
type OrderLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// UserLookup — доступ к контактным данным пользователей.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// QuotaChecker — проверка и списание квот подписки.
type QuotaChecker interface {
	CanRespond(ctx context.Context, userID uuid.UUID) error
	ConsumeResponse(ctx context.Context, userID uuid.UUID) error
}

// ResponseService реализует отклики и обмен контактами сторон.
type ResponseService struct {
	repo          ResponseRepositoryIface
	orders        OrderLookup
	users         UserLookup
	quotas        QuotaChecker
	notifications Notifications
}

// NewResponseService создаёт сервис откликов.
func NewResponseService(repo ResponseRepositoryIface, orders OrderLookup, users UserLookup, quotas QuotaChecker, notifications Notifications) *ResponseService {
	return &ResponseService{
		repo:          repo,
		orders:        orders,
		users:         users,
		quotas:        quotas,
		notifications: notifications,
	}
}

// Respond создаёт или обновляет отклик исполнителя на заказ.
func (s *ResponseService) Respond(ctx context.Context, orderID, executorID uuid.UUID, message string, price *int64) (*models.OrderResponse, error) {
	if err := validation.ValidateMessageContent(message); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if price != nil && *price < 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "цена отклика не может быть отрицательной")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, err
	}
	if order.AuthorID == executorID {
		return nil, apperror.New(apperror.ErrCodeConflict, "нельзя откликнуться на собственный заказ")
	}
	if order.Status != models.OrderStatusSearchExecutor && order.Status != models.OrderStatusSelectingExecutor {
		return nil, apperror.New(apperror.ErrCodeConflict, "заказ не принимает отклики")
	}

	executor, err := s.users.GetByID(ctx, executorID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, err
	}
	// Медиаторы откликаются на любые заказы, исполнители только по своему направлению.
	if executor.Type != models.UserTypeMediator {
		if executor.WorkDirection == nil || *executor.WorkDirection != order.WorkDirection {
			return nil, apperror.New(apperror.ErrCodeConflict, "направление работы не совпадает с направлением заказа")
		}
	}

	// Квота списывается только на новый отклик, повторная подача бесплатна.
	_, err = s.repo.GetByOrderAndExecutor(ctx, orderID, executorID)
	isNew := errors.Is(err, repository.ErrResponseNotFound)
	if err != nil && !isNew {
		return nil, err
	}
	if isNew {
		if err := s.quotas.CanRespond(ctx, executorID); err != nil {
			return nil, err
		}
	}

	response := &models.OrderResponse{
		OrderID:    orderID,
		ExecutorID: executorID,
		Message:    message,
		Price:      price,
	}
	if err := s.repo.Upsert(ctx, response); err != nil {
		return nil, fmt.Errorf("response service: respond %w", err)
	}

	if isNew {
		if err := s.quotas.ConsumeResponse(ctx, executorID); err != nil {
			return nil, err
		}
	}

	s.notifications.Notify(ctx, order.AuthorID,
		models.NotificationTypeNewResponse,
		"Новый отклик",
		fmt.Sprintf("На заказ «%s» поступил отклик", order.Title),
		response)

	return response, nil
}

// ListForOrder возвращает отклики на заказ. Полный список видит автор,
// исполнитель видит только свой отклик.
func (s *ResponseService) ListForOrder(ctx context.Context, orderID, viewerID uuid.UUID) ([]models.OrderResponse, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, err
	}

	if order.AuthorID == viewerID {
		return s.repo.ListByOrder(ctx, orderID)
	}

	response, err := s.repo.GetByOrderAndExecutor(ctx, orderID, viewerID)
	if err != nil {
		if errors.Is(err, repository.ErrResponseNotFound) {
			return []models.OrderResponse{}, nil
		}
		return nil, err
	}
	return []models.OrderResponse{*response}, nil
}

// ListMy возвращает отклики исполнителя.
func (s *ResponseService) ListMy(ctx context.Context, executorID uuid.UUID) ([]models.OrderResponse, error) {
	return s.repo.ListByExecutor(ctx, executorID)
}

// SendCustomerContact — заказчик передаёт исполнителю свои контакты.
// Рукопожатие схлопнуто: после этого шага контакты видят обе стороны.
func (s *ResponseService) SendCustomerContact(ctx context.Context, responseID, userID uuid.UUID) (*models.OrderResponse, error) {
	response, order, err := s.responseWithOrder(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if order.AuthorID != userID {
		return nil, apperror.ErrForbidden
	}

	updated, err := s.repo.AdvanceStatus(ctx, responseID, models.ResponseStatusContactReceived)
	if err != nil {
		return nil, s.mapAdvanceErr(err)
	}

	s.notifications.Notify(ctx, response.ExecutorID,
		models.NotificationTypeNewResponse,
		"Получены контакты заказчика",
		fmt.Sprintf("Заказчик по заказу «%s» поделился контактами", order.Title),
		updated)

	return updated, nil
}

// SendExecutorContact сохранён для совместимости со старым клиентом:
// контакты исполнителя открываются вместе с контактами заказчика.
func (s *ResponseService) SendExecutorContact(ctx context.Context, responseID, userID uuid.UUID) (*models.OrderResponse, error) {
	response, _, err := s.responseWithOrder(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if response.ExecutorID != userID {
		return nil, apperror.ErrForbidden
	}
	return response, nil
}

// MarkContactOpened — исполнитель открыл контакты заказчика.
func (s *ResponseService) MarkContactOpened(ctx context.Context, responseID, userID uuid.UUID) (*models.OrderResponse, error) {
	response, _, err := s.responseWithOrder(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if response.ExecutorID != userID {
		return nil, apperror.ErrForbidden
	}

	updated, err := s.repo.AdvanceStatus(ctx, responseID, models.ResponseStatusContactOpenedByExecutor)
	if err != nil {
		return nil, s.mapAdvanceErr(err)
	}
	return updated, nil
}

// TakeIntoWork — исполнитель подтверждает взятие заказа в работу.
func (s *ResponseService) TakeIntoWork(ctx context.Context, responseID, userID uuid.UUID) (*models.OrderResponse, error) {
	response, order, err := s.responseWithOrder(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if response.ExecutorID != userID {
		return nil, apperror.ErrForbidden
	}
	if response.Status != models.ResponseStatusOrderReceived {
		return nil, apperror.New(apperror.ErrCodeConflict, "отклик не выбран заказчиком")
	}

	updated, err := s.repo.AdvanceStatus(ctx, responseID, models.ResponseStatusTakenIntoWork)
	if err != nil {
		return nil, s.mapAdvanceErr(err)
	}

	s.notifications.Notify(ctx, order.AuthorID,
		models.NotificationTypeExecutorSelected,
		"Исполнитель взял заказ в работу",
		fmt.Sprintf("Исполнитель подтвердил работу по заказу «%s»", order.Title),
		updated)

	return updated, nil
}

// Contacts возвращает контакты второй стороны, если статус отклика их открывает.
func (s *ResponseService) Contacts(ctx context.Context, responseID, viewerID uuid.UUID) (*models.Contact, error) {
	response, order, err := s.responseWithOrder(ctx, responseID)
	if err != nil {
		return nil, err
	}

	switch viewerID {
	case response.ExecutorID:
		if !response.Status.CustomerContactVisible() {
			return nil, apperror.ErrForbidden
		}
		customer, err := s.users.GetByID(ctx, order.AuthorID)
		if err != nil {
			return nil, err
		}
		contact := models.ContactOf(customer)
		return &contact, nil
	case order.AuthorID:
		if !response.Status.ExecutorContactVisible() {
			return nil, apperror.ErrForbidden
		}
		executor, err := s.users.GetByID(ctx, response.ExecutorID)
		if err != nil {
			return nil, err
		}
		contact := models.ContactOf(executor)
		return &contact, nil
	}
	return nil, apperror.ErrForbidden
}

// Reject — заказчик отклоняет отклик. Отклонение выбранного отклика
// возвращает заказ к выбору исполнителя: обе записи меняются в одной
// транзакции хранилища.
func (s *ResponseService) Reject(ctx context.Context, responseID, userID uuid.UUID) (*models.OrderResponse, error) {
	response, order, err := s.responseWithOrder(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if order.AuthorID != userID {
		return nil, apperror.ErrForbidden
	}

	updated, err := s.repo.Reject(ctx, responseID)
	if err != nil {
		return nil, s.mapAdvanceErr(err)
	}

	s.notifications.Notify(ctx, response.ExecutorID,
		models.NotificationTypeOrderRejected,
		"Отклик отклонён",
		fmt.Sprintf("Заказчик отклонил отклик на заказ «%s»", order.Title),
		updated)

	return updated, nil
}

// Withdraw — исполнитель отзывает собственный отклик. Отзыв выбранного
// отклика возможен до взятия заказа в работу и возвращает заказ к выбору.
func (s *ResponseService) Withdraw(ctx context.Context, responseID, userID uuid.UUID) error {
	response, err := s.repo.GetByID(ctx, responseID)
	if err != nil {
		if errors.Is(err, repository.ErrResponseNotFound) {
			return apperror.ErrResponseNotFound
		}
		return err
	}
	if response.ExecutorID != userID {
		return apperror.ErrForbidden
	}

	if err := s.repo.Delete(ctx, responseID); err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			return apperror.New(apperror.ErrCodeConflict, "отклик по заказу в работе нельзя отозвать")
		}
		return err
	}
	return nil
}

func (s *ResponseService) responseWithOrder(ctx context.Context, responseID uuid.UUID) (*models.OrderResponse, *models.Order, error) {
	response, err := s.repo.GetByID(ctx, responseID)
	if err != nil {
		if errors.Is(err, repository.ErrResponseNotFound) {
			return nil, nil, apperror.ErrResponseNotFound
		}
		return nil, nil, err
	}

	order, err := s.orders.GetByID(ctx, response.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, nil, apperror.ErrOrderNotFound
		}
		return nil, nil, err
	}
	return response, order, nil
}

func (s *ResponseService) mapAdvanceErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrResponseNotFound):
		return apperror.ErrResponseNotFound
	case errors.Is(err, repository.ErrInvalidTransition):
		return apperror.ErrInvalidTransition
	}
	return fmt.Errorf("response service: advance %w", err)
}
