package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/uslugihub/backend/internal/models"
)

// Ошибки уровня репозитория отзывов.
var (
	ErrReviewNotFound = errors.New("review not found")
	ErrReviewExists   = errors.New("review already left for this order")
)

const reviewColumns = `
	id, order_id, reviewer_id, reviewed_id, rating, comment, created_at
`

// ReviewRepository отвечает за отзывы по завершённым заказам.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository создаёт новый экземпляр.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create сохраняет отзыв. Уникальность пары (заказ, автор) обеспечивает БД.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	query := `
		INSERT INTO reviews (order_id, reviewer_id, reviewed_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		review.OrderID, review.ReviewerID, review.ReviewedID, review.Rating, review.Comment,
	).Scan(&review.ID, &review.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrReviewExists
		}
		return fmt.Errorf("review repository: create %w", err)
	}
	return nil
}

// GetByOrderAndReviewer возвращает отзыв конкретного автора по заказу.
func (r *ReviewRepository) GetByOrderAndReviewer(ctx context.Context, orderID, reviewerID uuid.UUID) (*models.Review, error) {
	var review models.Review
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE order_id = $1 AND reviewer_id = $2`
	if err := r.db.GetContext(ctx, &review, query, orderID, reviewerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("review repository: get by order and reviewer %w", err)
	}
	return &review, nil
}

// CountByOrder считает отзывы по заказу. Две записи — обе стороны высказались.
func (r *ReviewRepository) CountByOrder(ctx context.Context, orderID uuid.UUID) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM reviews WHERE order_id = $1`, orderID); err != nil {
		return 0, fmt.Errorf("review repository: count by order %w", err)
	}
	return count, nil
}

// ListByReviewed возвращает отзывы о пользователе от новых к старым.
func (r *ReviewRepository) ListByReviewed(ctx context.Context, reviewedID uuid.UUID, limit, offset int) ([]models.Review, error) {
	var reviews []models.Review
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE reviewed_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &reviews, query, reviewedID, limit, offset); err != nil {
		return nil, fmt.Errorf("review repository: list by target %w", err)
	}
	return reviews, nil
}

// ListByOrder возвращает отзывы по заказу.
func (r *ReviewRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Review, error) {
	var reviews []models.Review
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE order_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &reviews, query, orderID); err != nil {
		return nil, fmt.Errorf("review repository: list by order %w", err)
	}
	return reviews, nil
}
