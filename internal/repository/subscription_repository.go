package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uslugihub/backend/internal/models"
)

// Ошибки уровня репозитория подписок.
var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrQuotaExhausted       = errors.New("subscription quota exhausted")
)

const subscriptionColumns = `
	id, user_id, plan, responses_left, orders_left, expires_at, is_active, created_at
`

// SubscriptionRepository отвечает за подписки исполнителей и посредников.
// Квоты списываются под блокировкой строки подписки.
type SubscriptionRepository struct {
	db *sqlx.DB
}

// NewSubscriptionRepository создаёт новый экземпляр.
func NewSubscriptionRepository(db *sqlx.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Create сохраняет новую подписку, деактивируя предыдущие.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *models.Subscription) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE subscriptions SET is_active = FALSE WHERE user_id = $1 AND is_active = TRUE`,
		sub.UserID,
	); err != nil {
		return fmt.Errorf("subscription repository: deactivate previous %w", err)
	}

	query := `
		INSERT INTO subscriptions (user_id, plan, responses_left, orders_left, expires_at, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id, created_at
	`
	if err := tx.QueryRowxContext(ctx, query,
		sub.UserID, sub.Plan, sub.ResponsesLeft, sub.OrdersLeft, sub.ExpiresAt,
	).Scan(&sub.ID, &sub.CreatedAt); err != nil {
		return fmt.Errorf("subscription repository: create %w", err)
	}
	sub.IsActive = true

	return tx.Commit()
}

// GetActive возвращает действующую подписку пользователя.
func (r *SubscriptionRepository) GetActive(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE user_id = $1 AND is_active = TRUE AND expires_at > NOW()
		ORDER BY expires_at DESC
		LIMIT 1`
	if err := r.db.GetContext(ctx, &sub, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("subscription repository: get active %w", err)
	}
	return &sub, nil
}

// ConsumeResponse списывает одну квоту откликов.
func (r *SubscriptionRepository) ConsumeResponse(ctx context.Context, userID uuid.UUID) error {
	return r.consumeQuota(ctx, userID, "responses_left")
}

// ConsumeOrder списывает одну квоту взятых заказов.
func (r *SubscriptionRepository) ConsumeOrder(ctx context.Context, userID uuid.UUID) error {
	return r.consumeQuota(ctx, userID, "orders_left")
}

func (r *SubscriptionRepository) consumeQuota(ctx context.Context, userID uuid.UUID, column string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var sub models.Subscription
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE user_id = $1 AND is_active = TRUE AND expires_at > NOW()
		ORDER BY expires_at DESC
		LIMIT 1
		FOR UPDATE`
	if err := tx.GetContext(ctx, &sub, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSubscriptionNotFound
		}
		return fmt.Errorf("subscription repository: lock subscription %w", err)
	}

	left := sub.ResponsesLeft
	if column == "orders_left" {
		left = sub.OrdersLeft
	}
	if left <= 0 {
		return ErrQuotaExhausted
	}

	updateQuery := fmt.Sprintf(
		`UPDATE subscriptions SET %s = %s - 1 WHERE id = $1`, column, column)
	if _, err := tx.ExecContext(ctx, updateQuery, sub.ID); err != nil {
		return fmt.Errorf("subscription repository: consume quota %w", err)
	}

	return tx.Commit()
}

// DeactivateExpired снимает флаг активности с истёкших подписок.
func (r *SubscriptionRepository) DeactivateExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET is_active = FALSE WHERE is_active = TRUE AND expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("subscription repository: deactivate expired %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
