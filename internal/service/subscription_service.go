package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/uslugihub/backend/internal/models"
	"github.com/uslugihub/backend/internal/pkg/apperror"
	"github.com/uslugihub/backend/internal/repository"
)

// SubscriptionRepositoryIface описывает хранилище подписок.
type SubscriptionRepositoryIface interface {
	Create(ctx context.Context, sub *models.Subscription) error
	GetActive(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	ConsumeResponse(ctx context.Context, userID uuid.UUID) error
	ConsumeOrder(ctx context.Context, userID uuid.UUID) error
	DeactivateExpired(ctx context.Context) (int64, error)
}

// Charger списывает оплату подписки с кошелька.
type Charger interface {
	Charge(ctx context.Context, userID uuid.UUID, amount int64, txType string, description string) (*models.WalletTransaction, error)
}

// SubscriptionService — покупка подписок и контроль квот.
type SubscriptionService struct {
	repo   SubscriptionRepositoryIface
	wallet Charger
}

// NewSubscriptionService создаёт сервис подписок.
func NewSubscriptionService(repo SubscriptionRepositoryIface, wallet Charger) *SubscriptionService {
	return &SubscriptionService{repo: repo, wallet: wallet}
}

// Purchase покупает подписку, списывая её цену с кошелька.
func (s *SubscriptionService) Purchase(ctx context.Context, userID uuid.UUID, plan string) (*models.Subscription, error) {
	quota, ok := models.SubscriptionPlans[plan]
	if !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный тариф подписки")
	}

	if _, err := s.wallet.Charge(ctx, userID, quota.Price, models.TransactionTypeSubscriptionPayment,
		fmt.Sprintf("Оплата подписки «%s»", plan)); err != nil {
		if errors.Is(err, repository.ErrInsufficientFunds) {
			return nil, apperror.ErrInsufficientFunds
		}
		return nil, fmt.Errorf("subscription service: purchase %w", err)
	}

	sub := &models.Subscription{
		UserID:        userID,
		Plan:          plan,
		ResponsesLeft: quota.Responses,
		OrdersLeft:    quota.Orders,
		ExpiresAt:     time.Now().Add(quota.Period),
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("subscription service: create %w", err)
	}
	return sub, nil
}

// Current возвращает действующую подписку пользователя.
func (s *SubscriptionService) Current(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.repo.GetActive(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			return nil, apperror.New(apperror.ErrCodeNotFound, "действующая подписка не найдена")
		}
		return nil, err
	}
	return sub, nil
}

// CanRespond проверяет наличие квоты откликов без её списания.
func (s *SubscriptionService) CanRespond(ctx context.Context, userID uuid.UUID) error {
	sub, err := s.repo.GetActive(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			return apperror.New(apperror.ErrCodeForbidden, "для откликов нужна действующая подписка")
		}
		return err
	}
	if sub.ResponsesLeft <= 0 {
		return apperror.New(apperror.ErrCodeForbidden, "квота откликов по подписке исчерпана")
	}
	return nil
}

// ConsumeResponse списывает квоту отклика.
func (s *SubscriptionService) ConsumeResponse(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.ConsumeResponse(ctx, userID); err != nil {
		switch {
		case errors.Is(err, repository.ErrSubscriptionNotFound):
			return apperror.New(apperror.ErrCodeForbidden, "для откликов нужна действующая подписка")
		case errors.Is(err, repository.ErrQuotaExhausted):
			return apperror.New(apperror.ErrCodeForbidden, "квота откликов по подписке исчерпана")
		}
		return err
	}
	return nil
}

// CanTakeOrder проверяет наличие квоты заказов без её списания.
func (s *SubscriptionService) CanTakeOrder(ctx context.Context, userID uuid.UUID) error {
	sub, err := s.repo.GetActive(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			return apperror.New(apperror.ErrCodeForbidden, "для работы по заказам нужна действующая подписка")
		}
		return err
	}
	if sub.OrdersLeft <= 0 {
		return apperror.New(apperror.ErrCodeForbidden, "квота заказов по подписке исчерпана")
	}
	return nil
}

// ConsumeOrder списывает квоту взятого в работу заказа.
func (s *SubscriptionService) ConsumeOrder(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.ConsumeOrder(ctx, userID); err != nil {
		switch {
		case errors.Is(err, repository.ErrSubscriptionNotFound):
			return apperror.New(apperror.ErrCodeForbidden, "для работы по заказам нужна действующая подписка")
		case errors.Is(err, repository.ErrQuotaExhausted):
			return apperror.New(apperror.ErrCodeForbidden, "квота заказов по подписке исчерпана")
		}
		return err
	}
	return nil
}

// DeactivateExpired снимает активность с истёкших подписок. Вызывается
// фоновой задачей.
func (s *SubscriptionService) DeactivateExpired(ctx context.Context) (int64, error) {
	return s.repo.DeactivateExpired(ctx)
}
