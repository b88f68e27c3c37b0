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

// ReviewRepositoryIface описывает хранилище отзывов.
type ReviewRepositoryIface interface {
	Create(ctx context.Context, review *models.Review) error
	GetByOrderAndReviewer(ctx context.Context, orderID, reviewerID uuid.UUID) (*models.Review, error)
	CountByOrder(ctx context.Context, orderID uuid.UUID) (int, error)
	ListByReviewed(ctx context.Context, reviewedID uuid.UUID, limit, offset int) ([]models.Review, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Review, error)
}

// ReviewOrderRepo — операции заказов, нужные подсистеме отзывов.
type ReviewOrderRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ForceCompleteFromReviews(ctx context.Context, orderID uuid.UUID) (*models.Order, bool, error)
}

// RatingUpdater пересчитывает агрегированный рейтинг пользователя.
type RatingUpdater interface {
	UpdateRating(ctx context.Context, userID uuid.UUID) error
}

// ReviewService реализует отзывы сторон по завершённым заказам.
// Отзывы обеих сторон на этапе подтверждения дорабатывают заказ до
// completed: взаимная оценка означает согласие с итогом.
type ReviewService struct {
	repo          ReviewRepositoryIface
	orders        ReviewOrderRepo
	users         RatingUpdater
	escrow        Escrow
	notifications Notifications
}

// NewReviewService создаёт сервис отзывов.
func NewReviewService(repo ReviewRepositoryIface, orders ReviewOrderRepo, users RatingUpdater, escrow Escrow, notifications Notifications) *ReviewService {
	return &ReviewService{
		repo:          repo,
		orders:        orders,
		users:         users,
		escrow:        escrow,
		notifications: notifications,
	}
}

// Create сохраняет отзыв одной стороны сделки о другой.
func (s *ReviewService) Create(ctx context.Context, orderID, reviewerID uuid.UUID, rating int, comment *string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, apperror.New(apperror.ErrCodeValidation, "оценка должна быть от 1 до 5")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, err
	}

	if order.Status != models.OrderStatusCompleted &&
		order.Status != models.OrderStatusClosed &&
		order.Status != models.OrderStatusAwaitingConfirmation {
		return nil, apperror.New(apperror.ErrCodeConflict, "отзыв можно оставить только после завершения работ")
	}
	if order.ExecutorID == nil {
		return nil, apperror.New(apperror.ErrCodeConflict, "по заказу не было исполнителя")
	}

	var reviewedID uuid.UUID
	switch reviewerID {
	case order.AuthorID:
		reviewedID = *order.ExecutorID
	case *order.ExecutorID:
		reviewedID = order.AuthorID
	default:
		return nil, apperror.ErrForbidden
	}

	if _, err := s.repo.GetByOrderAndReviewer(ctx, orderID, reviewerID); err == nil {
		return nil, apperror.New(apperror.ErrCodeConflict, "отзыв по заказу уже оставлен")
	} else if !errors.Is(err, repository.ErrReviewNotFound) {
		return nil, err
	}

	review := &models.Review{
		OrderID:    orderID,
		ReviewerID: reviewerID,
		ReviewedID: reviewedID,
		Rating:     rating,
		Comment:    comment,
	}
	if err := s.repo.Create(ctx, review); err != nil {
		if errors.Is(err, repository.ErrReviewExists) {
			return nil, apperror.New(apperror.ErrCodeConflict, "отзыв по заказу уже оставлен")
		}
		return nil, fmt.Errorf("review service: create %w", err)
	}

	if err := s.users.UpdateRating(ctx, reviewedID); err != nil {
		return nil, fmt.Errorf("review service: update rating %w", err)
	}

	s.notifications.Notify(ctx, reviewedID,
		models.NotificationTypeNewReview,
		"Новый отзыв",
		fmt.Sprintf("По заказу «%s» оставлен отзыв", order.Title),
		review)

	if err := s.maybeForceComplete(ctx, order); err != nil {
		return nil, err
	}

	return review, nil
}

// maybeForceComplete доводит заказ до completed, когда обе стороны
// оставили отзывы на этапе подтверждения.
func (s *ReviewService) maybeForceComplete(ctx context.Context, order *models.Order) error {
	count, err := s.repo.CountByOrder(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("review service: count by order %w", err)
	}
	if count < 2 {
		return nil
	}

	updated, fired, err := s.orders.ForceCompleteFromReviews(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("review service: force complete %w", err)
	}
	if fired && updated.ExecutorID != nil {
		s.escrow.Release(ctx, updated.ID, *updated.ExecutorID)
		s.notifications.Notify(ctx, updated.AuthorID,
			models.NotificationTypeOrderCompleted,
			"Заказ завершён",
			fmt.Sprintf("Обе стороны оставили отзывы, заказ «%s» завершён", updated.Title),
			updated)
		s.notifications.Notify(ctx, *updated.ExecutorID,
			models.NotificationTypeOrderCompleted,
			"Заказ завершён",
			fmt.Sprintf("Обе стороны оставили отзывы, заказ «%s» завершён", updated.Title),
			updated)
	}
	return nil
}

// ListForUser возвращает отзывы о пользователе.
func (s *ReviewService) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Review, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByReviewed(ctx, userID, limit, offset)
}

// ListForOrder возвращает отзывы по заказу.
func (s *ReviewService) ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Review, error) {
	return s.repo.ListByOrder(ctx, orderID)
}
