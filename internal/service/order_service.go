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

// OrderRepositoryIface описывает зависимости OrderService от хранилища заказов.
type OrderRepositoryIface interface {
	Create(ctx context.Context, order *models.Order, attachmentIDs []uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByAuthor(ctx context.Context, authorID uuid.UUID, includeArchived bool) ([]models.Order, error)
	ListByExecutor(ctx context.Context, executorID uuid.UUID, includeArchived bool) ([]models.Order, error)
	ListOpen(ctx context.Context, workDirection string, limit, offset int) ([]models.Order, error)
	Update(ctx context.Context, order *models.Order) error
	SetArchived(ctx context.Context, orderID uuid.UUID, byExecutor bool, archived bool) error
	SelectExecutor(ctx context.Context, orderID, responseID, executorID uuid.UUID) (*models.Order, error)
	CompleteByParty(ctx context.Context, orderID uuid.UUID, byExecutor bool) (*models.Order, error)
	AcceptCompletion(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	RejectCompletion(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	RefuseExecutor(ctx context.Context, orderID, executorID uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	MarkDeleted(ctx context.Context, orderID uuid.UUID) error
	UpdateStatusChecked(ctx context.Context, orderID uuid.UUID, to models.OrderStatus) (*models.Order, error)
	ListAttachments(ctx context.Context, orderID uuid.UUID) ([]models.OrderAttachment, error)
}

// ResponseLookup — доступ OrderService к откликам при выборе исполнителя.
type ResponseLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.OrderResponse, error)
}

// Escrow — денежное сопровождение переходов статуса.
type Escrow interface {
	Hold(ctx context.Context, orderID, customerID uuid.UUID, amount int64)
	Release(ctx context.Context, orderID, executorID uuid.UUID)
	Refund(ctx context.Context, orderID, customerID uuid.UUID, percent int64)
}

// Notifications — отправка уведомлений сторонам сделки.
type Notifications interface {
	Notify(ctx context.Context, userID uuid.UUID, nType, title, message string, data any)
}

// ExecutorQuota — проверка и списание квоты заказов по подписке исполнителя.
type ExecutorQuota interface {
	CanTakeOrder(ctx context.Context, userID uuid.UUID) error
	ConsumeOrder(ctx context.Context, userID uuid.UUID) error
}

// OrderService реализует жизненный цикл заказа.
type OrderService struct {
	repo          OrderRepositoryIface
	responses     ResponseLookup
	escrow        Escrow
	quotas        ExecutorQuota
	notifications Notifications
}

// NewOrderService создаёт сервис заказов.
func NewOrderService(repo OrderRepositoryIface, responses ResponseLookup, escrow Escrow, quotas ExecutorQuota, notifications Notifications) *OrderService {
	return &OrderService{
		repo:          repo,
		responses:     responses,
		escrow:        escrow,
		quotas:        quotas,
		notifications: notifications,
	}
}

// CreateOrderInput содержит данные нового заказа.
type CreateOrderInput struct {
	Title         string
	Description   string
	WorkDirection string
	MaxAmount     int64
	AttachmentIDs []uuid.UUID
}

// Create публикует новый заказ.
func (s *OrderService) Create(ctx context.Context, authorID uuid.UUID, in CreateOrderInput) (*models.Order, error) {
	if err := validation.ValidateOrderTitle(in.Title); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateOrderDescription(in.Description); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if in.MaxAmount < 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "бюджет не может быть отрицательным")
	}

	order := &models.Order{
		AuthorID:      authorID,
		Title:         in.Title,
		Description:   in.Description,
		WorkDirection: in.WorkDirection,
		Status:        models.OrderStatusSearchExecutor,
		MaxAmount:     in.MaxAmount,
		EscrowStatus:  models.EscrowStatusNone,
	}
	if err := s.repo.Create(ctx, order, in.AttachmentIDs); err != nil {
		return nil, fmt.Errorf("order service: create %w", err)
	}
	return order, nil
}

// Get возвращает заказ. Удалённые заказы видны только автору.
func (s *OrderService) Get(ctx context.Context, orderID, viewerID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, err
	}
	if order.Status == models.OrderStatusDeleted && order.AuthorID != viewerID {
		return nil, apperror.ErrOrderNotFound
	}

	attachments, err := s.repo.ListAttachments(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.Attachments = attachments
	return order, nil
}

// ListMy возвращает заказы пользователя с обеих сторон сделки.
func (s *OrderService) ListMy(ctx context.Context, userID uuid.UUID, asExecutor, includeArchived bool) ([]models.Order, error) {
	if asExecutor {
		return s.repo.ListByExecutor(ctx, userID, includeArchived)
	}
	return s.repo.ListByAuthor(ctx, userID, includeArchived)
}

// ListOpen возвращает ленту открытых заказов.
func (s *OrderService) ListOpen(ctx context.Context, workDirection string, limit, offset int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListOpen(ctx, workDirection, limit, offset)
}

// UpdateInput — редактируемые поля заказа.
type UpdateInput struct {
	Title       *string
	Description *string
	MaxAmount   *int64
}

// Update редактирует заказ. Доступно автору и только до назначения исполнителя.
func (s *OrderService) Update(ctx context.Context, orderID, userID uuid.UUID, in UpdateInput) (*models.Order, error) {
	order, err := s.authorOrder(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if order.ExecutorID != nil {
		return nil, apperror.New(apperror.ErrCodeConflict, "заказ с назначенным исполнителем нельзя редактировать")
	}

	if in.Title != nil {
		if err := validation.ValidateOrderTitle(*in.Title); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
		order.Title = *in.Title
	}
	if in.Description != nil {
		if err := validation.ValidateOrderDescription(*in.Description); err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
		}
		order.Description = *in.Description
	}
	if in.MaxAmount != nil {
		if *in.MaxAmount < 0 {
			return nil, apperror.New(apperror.ErrCodeValidation, "бюджет не может быть отрицательным")
		}
		order.MaxAmount = *in.MaxAmount
	}

	if err := s.repo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("order service: update %w", err)
	}
	return order, nil
}

// UpdateStatus — прямая смена статуса заказчиком по allow-list.
// Статус принимается и в унаследованном числовом виде.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, userID uuid.UUID, rawStatus string) (*models.Order, error) {
	to, err := models.ParseOrderStatus(rawStatus)
	if err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный статус заказа")
	}

	if _, err := s.authorOrder(ctx, orderID, userID); err != nil {
		return nil, err
	}

	order, err := s.repo.UpdateStatusChecked(ctx, orderID, to)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			return nil, apperror.ErrInvalidTransition
		}
		return nil, fmt.Errorf("order service: update status %w", err)
	}
	return order, nil
}

// SelectExecutor назначает исполнителя по отклику и резервирует средства.
func (s *OrderService) SelectExecutor(ctx context.Context, orderID, userID, responseID uuid.UUID) (*models.Order, error) {
	if _, err := s.authorOrder(ctx, orderID, userID); err != nil {
		return nil, err
	}

	response, err := s.responses.GetByID(ctx, responseID)
	if err != nil {
		if errors.Is(err, repository.ErrResponseNotFound) {
			return nil, apperror.ErrResponseNotFound
		}
		return nil, err
	}
	if response.OrderID != orderID {
		return nil, apperror.ErrResponseNotFound
	}

	// Квота заказов исполнителя проверяется до назначения.
	if err := s.quotas.CanTakeOrder(ctx, response.ExecutorID); err != nil {
		return nil, err
	}

	order, err := s.repo.SelectExecutor(ctx, orderID, responseID, response.ExecutorID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrExecutorAlreadySet):
			return nil, apperror.New(apperror.ErrCodeConflict, "исполнитель по заказу уже выбран")
		case errors.Is(err, repository.ErrInvalidTransition):
			return nil, apperror.ErrInvalidTransition
		}
		return nil, fmt.Errorf("order service: select executor %w", err)
	}

	if err := s.quotas.ConsumeOrder(ctx, response.ExecutorID); err != nil {
		return nil, err
	}

	// Резервируется бюджет заказа; без бюджета резерв не создаётся.
	s.escrow.Hold(ctx, orderID, userID, order.MaxAmount)

	s.notifications.Notify(ctx, response.ExecutorID,
		models.NotificationTypeExecutorSelected,
		"Вас выбрали исполнителем",
		fmt.Sprintf("Заказ «%s» ждёт выполнения", order.Title),
		order)

	return order, nil
}

// CompleteByExecutor — исполнитель отмечает работу выполненной.
func (s *OrderService) CompleteByExecutor(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, err
	}
	if order.ExecutorID == nil || *order.ExecutorID != userID {
		return nil, apperror.ErrForbidden
	}

	updated, err := s.repo.CompleteByParty(ctx, orderID, true)
	if err != nil {
		return nil, s.mapTransitionErr(err, "complete by executor")
	}

	s.afterCompletion(ctx, updated)
	return updated, nil
}

// CompleteByCustomer — заказчик отмечает работу выполненной.
func (s *OrderService) CompleteByCustomer(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	if _, err := s.authorOrder(ctx, orderID, userID); err != nil {
		return nil, err
	}

	updated, err := s.repo.CompleteByParty(ctx, orderID, false)
	if err != nil {
		return nil, s.mapTransitionErr(err, "complete by customer")
	}

	s.afterCompletion(ctx, updated)
	return updated, nil
}

// AcceptCompletion — заказчик принимает работу на этапе подтверждения.
func (s *OrderService) AcceptCompletion(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	if _, err := s.authorOrder(ctx, orderID, userID); err != nil {
		return nil, err
	}

	updated, err := s.repo.AcceptCompletion(ctx, orderID)
	if err != nil {
		return nil, s.mapTransitionErr(err, "accept completion")
	}

	s.afterCompletion(ctx, updated)
	return updated, nil
}

// RejectCompletion — заказчик возвращает работу на доработку.
func (s *OrderService) RejectCompletion(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	if _, err := s.authorOrder(ctx, orderID, userID); err != nil {
		return nil, err
	}

	updated, err := s.repo.RejectCompletion(ctx, orderID)
	if err != nil {
		return nil, s.mapTransitionErr(err, "reject completion")
	}

	if updated.ExecutorID != nil {
		s.notifications.Notify(ctx, *updated.ExecutorID,
			models.NotificationTypeOrderRejected,
			"Работа отклонена",
			fmt.Sprintf("Заказчик вернул заказ «%s» на доработку", updated.Title),
			updated)
	}
	return updated, nil
}

// Refuse — исполнитель отказывается от заказа.
func (s *OrderService) Refuse(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, err
	}
	if order.ExecutorID == nil || *order.ExecutorID != userID {
		return nil, apperror.ErrForbidden
	}

	updated, err := s.repo.RefuseExecutor(ctx, orderID, userID)
	if err != nil {
		return nil, s.mapTransitionErr(err, "refuse")
	}

	s.notifications.Notify(ctx, updated.AuthorID,
		models.NotificationTypeExecutorRefused,
		"Исполнитель отказался от заказа",
		fmt.Sprintf("Заказ «%s» снова в поиске исполнителя", updated.Title),
		updated)
	return updated, nil
}

// Cancel отменяет заказ. Возврат резерва автоматически не выполняется,
// решение о возврате принимает отдельная операция Refund.
func (s *OrderService) Cancel(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	if _, err := s.authorOrder(ctx, orderID, userID); err != nil {
		return nil, err
	}

	updated, err := s.repo.Cancel(ctx, orderID)
	if err != nil {
		return nil, s.mapTransitionErr(err, "cancel")
	}
	return updated, nil
}

// RefundHeld возвращает заказчику резерв по отменённому или отклонённому
// заказу. Доля возврата задаётся в процентах.
func (s *OrderService) RefundHeld(ctx context.Context, orderID, userID uuid.UUID, percent int64) error {
	order, err := s.authorOrder(ctx, orderID, userID)
	if err != nil {
		return err
	}
	if order.Status != models.OrderStatusCancelled && order.Status != models.OrderStatusRejected {
		return apperror.New(apperror.ErrCodeConflict, "возврат доступен только по отменённому или отклонённому заказу")
	}
	if percent <= 0 || percent > 100 {
		return apperror.New(apperror.ErrCodeValidation, "доля возврата указывается в пределах 1-100")
	}

	s.escrow.Refund(ctx, orderID, userID, percent)
	return nil
}

// Delete помечает заказ удалённым.
func (s *OrderService) Delete(ctx context.Context, orderID, userID uuid.UUID) error {
	if _, err := s.authorOrder(ctx, orderID, userID); err != nil {
		return err
	}

	if err := s.repo.MarkDeleted(ctx, orderID); err != nil {
		return s.mapTransitionErr(err, "delete")
	}
	return nil
}

// Archive скрывает заказ из списка стороны сделки.
func (s *OrderService) Archive(ctx context.Context, orderID, userID uuid.UUID, archived bool) error {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return apperror.ErrOrderNotFound
		}
		return err
	}

	switch {
	case order.AuthorID == userID:
		return s.repo.SetArchived(ctx, orderID, false, archived)
	case order.ExecutorID != nil && *order.ExecutorID == userID:
		return s.repo.SetArchived(ctx, orderID, true, archived)
	}
	return apperror.ErrForbidden
}

// afterCompletion выполняет денежное сопровождение и уведомления после
// подтверждения завершения.
func (s *OrderService) afterCompletion(ctx context.Context, order *models.Order) {
	switch order.Status {
	case models.OrderStatusCompleted:
		if order.ExecutorID != nil {
			s.escrow.Release(ctx, order.ID, *order.ExecutorID)
			s.notifications.Notify(ctx, *order.ExecutorID,
				models.NotificationTypeOrderCompleted,
				"Заказ завершён",
				fmt.Sprintf("Заказ «%s» завершён обеими сторонами", order.Title),
				order)
		}
		s.notifications.Notify(ctx, order.AuthorID,
			models.NotificationTypeOrderCompleted,
			"Заказ завершён",
			fmt.Sprintf("Заказ «%s» завершён обеими сторонами", order.Title),
			order)
	case models.OrderStatusAwaitingConfirmation:
		s.notifications.Notify(ctx, order.AuthorID,
			models.NotificationTypeOrderCompleted,
			"Работа сдана",
			fmt.Sprintf("Исполнитель сдал работу по заказу «%s»", order.Title),
			order)
	}
}

// authorOrder читает заказ и проверяет, что вызывающий — его автор.
func (s *OrderService) authorOrder(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, err
	}
	if order.AuthorID != userID {
		return nil, apperror.ErrForbidden
	}
	return order, nil
}

func (s *OrderService) mapTransitionErr(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		return apperror.ErrOrderNotFound
	case errors.Is(err, repository.ErrInvalidTransition):
		return apperror.ErrInvalidTransition
	case errors.Is(err, repository.ErrAlreadyCompleted):
		return apperror.New(apperror.ErrCodeConflict, "сторона уже подтвердила завершение")
	}
	return fmt.Errorf("order service: %s %w", op, err)
}
