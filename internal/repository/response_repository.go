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

const responseColumns = `
	id, order_id, executor_id, message, price, status, created_at, updated_at
`

// ResponseRepository отвечает за отклики исполнителей на заказы.
type ResponseRepository struct {
	db *sqlx.DB
}

// NewResponseRepository создаёт новый экземпляр.
func NewResponseRepository(db *sqlx.DB) *ResponseRepository {
	return &ResponseRepository{db: db}
}

// Upsert создаёт отклик или обновляет повторный: на паре (заказ, исполнитель)
// существует не более одной записи, повторная подача обновляет сообщение и
// цену, сбрасывая статус в sent.
func (r *ResponseRepository) Upsert(ctx context.Context, response *models.OrderResponse) error {
	query := `
		INSERT INTO order_responses (order_id, executor_id, message, price, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id, executor_id) DO UPDATE
		SET message = EXCLUDED.message, price = EXCLUDED.price,
		    status = EXCLUDED.status, updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		response.OrderID, response.ExecutorID, response.Message, response.Price, models.ResponseStatusSent,
	).Scan(&response.ID, &response.CreatedAt, &response.UpdatedAt); err != nil {
		return fmt.Errorf("response repository: upsert %w", err)
	}
	response.Status = models.ResponseStatusSent
	return nil
}

// GetByID возвращает отклик по идентификатору.
func (r *ResponseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.OrderResponse, error) {
	var response models.OrderResponse
	query := `SELECT ` + responseColumns + ` FROM order_responses WHERE id = $1`
	if err := r.db.GetContext(ctx, &response, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResponseNotFound
		}
		return nil, fmt.Errorf("response repository: get by id %w", err)
	}
	return &response, nil
}

// GetByOrderAndExecutor возвращает отклик исполнителя на конкретный заказ.
func (r *ResponseRepository) GetByOrderAndExecutor(ctx context.Context, orderID, executorID uuid.UUID) (*models.OrderResponse, error) {
	var response models.OrderResponse
	query := `SELECT ` + responseColumns + ` FROM order_responses WHERE order_id = $1 AND executor_id = $2`
	if err := r.db.GetContext(ctx, &response, query, orderID, executorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResponseNotFound
		}
		return nil, fmt.Errorf("response repository: get by order and executor %w", err)
	}
	return &response, nil
}

// ListByOrder возвращает отклики на заказ от новых к старым.
func (r *ResponseRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderResponse, error) {
	var responses []models.OrderResponse
	query := `SELECT ` + responseColumns + ` FROM order_responses WHERE order_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &responses, query, orderID); err != nil {
		return nil, fmt.Errorf("response repository: list by order %w", err)
	}
	return responses, nil
}

// ListByExecutor возвращает отклики исполнителя.
func (r *ResponseRepository) ListByExecutor(ctx context.Context, executorID uuid.UUID) ([]models.OrderResponse, error) {
	var responses []models.OrderResponse
	query := `SELECT ` + responseColumns + ` FROM order_responses WHERE executor_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &responses, query, executorID); err != nil {
		return nil, fmt.Errorf("response repository: list by executor %w", err)
	}
	return responses, nil
}

// AdvanceStatus переводит отклик вперёд по лестнице статусов. Перевод назад
// или в произвольный статус запрещён, rejected достижим из любого статуса.
func (r *ResponseRepository) AdvanceStatus(ctx context.Context, id uuid.UUID, to models.ResponseStatus) (*models.OrderResponse, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var response models.OrderResponse
	query := `SELECT ` + responseColumns + ` FROM order_responses WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &response, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResponseNotFound
		}
		return nil, fmt.Errorf("response repository: lock response %w", err)
	}

	if to != models.ResponseStatusRejected && to.Ordinal() <= response.Status.Ordinal() {
		return nil, ErrInvalidTransition
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE order_responses SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, to,
	); err != nil {
		return nil, fmt.Errorf("response repository: advance status %w", err)
	}

	// Взятие в работу двигает и заказ: executor_selected переходит в in_work,
	// счётчик занятых заказов исполнителя растёт в той же транзакции.
	if to == models.ResponseStatusTakenIntoWork {
		var orderStatus models.OrderStatus
		if err := tx.GetContext(ctx, &orderStatus,
			`SELECT status FROM orders WHERE id = $1 FOR UPDATE`, response.OrderID,
		); err != nil {
			return nil, fmt.Errorf("response repository: lock order %w", err)
		}
		if !models.CanFire(orderStatus, models.EventTakeIntoWork) {
			return nil, ErrInvalidTransition
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`,
			response.OrderID, models.OrderStatusInWork,
		); err != nil {
			return nil, fmt.Errorf("response repository: move order to work %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET used_orders_count = used_orders_count + 1, updated_at = NOW() WHERE id = $1`,
			response.ExecutorID,
		); err != nil {
			return nil, fmt.Errorf("response repository: increment used orders %w", err)
		}
	}

	response.Status = to
	return &response, tx.Commit()
}

// Reject отклоняет отклик. Если отклик был выбран, заказ в той же
// транзакции возвращается к выбору исполнителя: статус отклика и executor_id
// меняются атомарно, счётчик занятых заказов уменьшается, если заказ успел
// дойти до работы.
func (r *ResponseRepository) Reject(ctx context.Context, id uuid.UUID) (*models.OrderResponse, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var response models.OrderResponse
	query := `SELECT ` + responseColumns + ` FROM order_responses WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &response, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResponseNotFound
		}
		return nil, fmt.Errorf("response repository: lock response %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE order_responses SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, models.ResponseStatusRejected,
	); err != nil {
		return nil, fmt.Errorf("response repository: reject %w", err)
	}

	if response.Selected() {
		order, err := getForUpdate(ctx, tx, response.OrderID)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET status = $2, executor_id = NULL, updated_at = NOW()
			WHERE id = $1
		`, response.OrderID, models.OrderStatusSelectingExecutor); err != nil {
			return nil, fmt.Errorf("response repository: reset selection %w", err)
		}

		reachedWork := order.Status == models.OrderStatusInWork || order.Status == models.OrderStatusAwaitingConfirmation
		if reachedWork {
			if _, err := tx.ExecContext(ctx,
				`UPDATE users SET used_orders_count = GREATEST(used_orders_count - 1, 0), updated_at = NOW() WHERE id = $1`,
				response.ExecutorID,
			); err != nil {
				return nil, fmt.Errorf("response repository: decrement used orders %w", err)
			}
		}
	}

	response.Status = models.ResponseStatusRejected
	return &response, tx.Commit()
}

// Delete удаляет отклик. Отзыв выбранного отклика возможен до взятия заказа
// в работу и возвращает заказ к выбору исполнителя.
func (r *ResponseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var response models.OrderResponse
	query := `SELECT ` + responseColumns + ` FROM order_responses WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &response, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrResponseNotFound
		}
		return fmt.Errorf("response repository: lock response %w", err)
	}

	// Выбранный отклик можно отозвать только пока заказ не взят в работу:
	// заказ возвращается к выбору исполнителя.
	if response.Selected() {
		var status models.OrderStatus
		if err := tx.GetContext(ctx, &status,
			`SELECT status FROM orders WHERE id = $1 FOR UPDATE`, response.OrderID,
		); err != nil {
			return fmt.Errorf("response repository: lock order %w", err)
		}
		if status != models.OrderStatusExecutorSelected {
			return ErrInvalidTransition
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE orders
			SET status = $2, executor_id = NULL, updated_at = NOW()
			WHERE id = $1
		`, response.OrderID, models.OrderStatusSelectingExecutor); err != nil {
			return fmt.Errorf("response repository: reset order on withdraw %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_responses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("response repository: delete %w", err)
	}

	return tx.Commit()
}

// CountActiveByExecutor считает действующие отклики исполнителя за период
// подписки для проверки квоты.
func (r *ResponseRepository) CountActiveByExecutor(ctx context.Context, executorID uuid.UUID, since sql.NullTime) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM order_responses WHERE executor_id = $1 AND status <> 'rejected'`
	args := []interface{}{executorID}
	if since.Valid {
		query += ` AND created_at >= $2`
		args = append(args, since.Time)
	}
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("response repository: count active %w", err)
	}
	return count, nil
}
