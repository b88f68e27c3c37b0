package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uslugihub/backend/internal/models"
)

// Ошибки уровня репозитория заказов.
var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrResponseNotFound    = errors.New("response not found")
	ErrExecutorAlreadySet  = errors.New("executor already selected for this order")
	ErrAlreadyCompleted    = errors.New("party already confirmed completion")
	ErrInvalidTransition   = errors.New("status transition is not allowed")
	ErrMediatorAlreadySet  = errors.New("mediator already assigned to this order")
	ErrNoNextStep          = errors.New("mediator workflow has no next step")
)

const orderColumns = `
	id, author_id, executor_id, mediator_id, title, description, work_direction,
	status, max_amount, payment_held, escrow_status,
	completed_by_executor, completed_by_customer, executor_completed_at, customer_completed_at,
	executor_archived, customer_archived,
	mediator_commission, mediator_step, mediator_margin, executor_cost, project_deadline, mediator_notes,
	created_at, updated_at
`

// OrderRepository отвечает за заказы и их переходы статусов.
// Все методы-переходы выполняются в одной транзакции с блокировкой строки
// заказа (SELECT ... FOR UPDATE): проверка precondition и запись неразделимы.
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository создаёт новый экземпляр.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create сохраняет новый заказ со статусом поиска исполнителя.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order, attachmentIDs []uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO orders (author_id, title, description, work_direction, status, max_amount, escrow_status, project_deadline)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	if err := tx.QueryRowxContext(ctx, query,
		order.AuthorID, order.Title, order.Description, order.WorkDirection,
		order.Status, order.MaxAmount, order.EscrowStatus, order.ProjectDeadline,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return fmt.Errorf("order repository: create %w", err)
	}

	for _, mediaID := range attachmentIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO order_attachments (order_id, media_id) VALUES ($1, $2)`,
			order.ID, mediaID,
		); err != nil {
			return fmt.Errorf("order repository: attach media %w", err)
		}
	}

	return tx.Commit()
}

// GetByID возвращает заказ по идентификатору.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if err := r.db.GetContext(ctx, &order, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("order repository: get by id %w", err)
	}
	return &order, nil
}

// getForUpdate читает заказ внутри транзакции с блокировкой строки.
func getForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &order, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("order repository: lock order %w", err)
	}
	return &order, nil
}

// ListByAuthor возвращает заказы заказчика, скрывая архивированные им.
func (r *OrderRepository) ListByAuthor(ctx context.Context, authorID uuid.UUID, includeArchived bool) ([]models.Order, error) {
	var orders []models.Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE author_id = $1 AND status <> 'deleted'`
	if !includeArchived {
		query += ` AND customer_archived = FALSE`
	}
	query += ` ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &orders, query, authorID); err != nil {
		return nil, fmt.Errorf("order repository: list by author %w", err)
	}
	return orders, nil
}

// ListByExecutor возвращает заказы, назначенные исполнителю.
func (r *OrderRepository) ListByExecutor(ctx context.Context, executorID uuid.UUID, includeArchived bool) ([]models.Order, error) {
	var orders []models.Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE executor_id = $1 AND status <> 'deleted'`
	if !includeArchived {
		query += ` AND executor_archived = FALSE`
	}
	query += ` ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &orders, query, executorID); err != nil {
		return nil, fmt.Errorf("order repository: list by executor %w", err)
	}
	return orders, nil
}

// ListOpen возвращает заказы в поиске исполнителя по направлению работ.
func (r *OrderRepository) ListOpen(ctx context.Context, workDirection string, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE status IN ('search_executor', 'selecting_executor')`
	args := []interface{}{}
	if workDirection != "" {
		query += ` AND work_direction = $1`
		args = append(args, workDirection)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("order repository: list open %w", err)
	}
	return orders, nil
}

// Update обновляет редактируемые поля заказа.
func (r *OrderRepository) Update(ctx context.Context, order *models.Order) error {
	query := `
		UPDATE orders
		SET title = $2, description = $3, work_direction = $4, max_amount = $5,
		    project_deadline = $6, updated_at = NOW()
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		order.ID, order.Title, order.Description, order.WorkDirection,
		order.MaxAmount, order.ProjectDeadline,
	)
	if err != nil {
		return fmt.Errorf("order repository: update %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// SetArchived выставляет флаг архивации для стороны сделки.
func (r *OrderRepository) SetArchived(ctx context.Context, orderID uuid.UUID, byExecutor bool, archived bool) error {
	column := "customer_archived"
	if byExecutor {
		column = "executor_archived"
	}
	query := fmt.Sprintf(`UPDATE orders SET %s = $2, updated_at = NOW() WHERE id = $1`, column)
	res, err := r.db.ExecContext(ctx, query, orderID, archived)
	if err != nil {
		return fmt.Errorf("order repository: set archived %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// SelectExecutor назначает исполнителя по выбранному отклику.
// Гонка двойного выбора исключается блокировкой строки заказа: проверка
// executor_id и существующего выбранного отклика выполняется под замком.
func (r *OrderRepository) SelectExecutor(ctx context.Context, orderID, responseID, executorID uuid.UUID) (*models.Order, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := getForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !models.CanFire(order.Status, models.EventSelectExecutor) {
		return nil, ErrInvalidTransition
	}
	if order.ExecutorID != nil {
		return nil, ErrExecutorAlreadySet
	}

	// Не более одного отклика в статусе order_received на заказ.
	var selectedCount int
	if err := tx.GetContext(ctx, &selectedCount,
		`SELECT COUNT(*) FROM order_responses WHERE order_id = $1 AND status = $2`,
		orderID, models.ResponseStatusOrderReceived,
	); err != nil {
		return nil, fmt.Errorf("order repository: count selected responses %w", err)
	}
	if selectedCount > 0 {
		return nil, ErrExecutorAlreadySet
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE order_responses SET status = $3, updated_at = NOW() WHERE id = $1 AND order_id = $2`,
		responseID, orderID, models.ResponseStatusOrderReceived,
	)
	if err != nil {
		return nil, fmt.Errorf("order repository: mark response selected %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrResponseNotFound
	}

	// executor_id и выбранный отклик меняются атомарно, в одной транзакции.
	// Заказ переходит в in_work, когда исполнитель подтвердит взятие в работу.
	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET executor_id = $2, status = $3, updated_at = NOW() WHERE id = $1`,
		orderID, executorID, models.OrderStatusExecutorSelected,
	); err != nil {
		return nil, fmt.Errorf("order repository: assign executor %w", err)
	}

	order.ExecutorID = &executorID
	order.Status = models.OrderStatusExecutorSelected
	return order, tx.Commit()
}

// CompleteByParty отмечает подтверждение завершения одной из сторон и
// выводит итоговый статус по паре флагов. Свежее чтение второго флага
// происходит в той же транзакции под блокировкой строки — одновременные
// подтверждения сторон не теряют обновлений друг друга.
func (r *OrderRepository) CompleteByParty(ctx context.Context, orderID uuid.UUID, byExecutor bool) (*models.Order, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := getForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	event := models.EventCustomerComplete
	if byExecutor {
		event = models.EventExecutorComplete
	}
	if !models.CanFire(order.Status, event) {
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	if byExecutor {
		if order.CompletedByExecutor {
			return nil, ErrAlreadyCompleted
		}
		order.CompletedByExecutor = true
		order.ExecutorCompletedAt = &now
	} else {
		if order.CompletedByCustomer {
			return nil, ErrAlreadyCompleted
		}
		order.CompletedByCustomer = true
		order.CustomerCompletedAt = &now
	}

	order.Status = models.CompletionStatus(order.CompletedByExecutor, order.CompletedByCustomer)

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, completed_by_executor = $3, completed_by_customer = $4,
		    executor_completed_at = $5, customer_completed_at = $6, updated_at = NOW()
		WHERE id = $1
	`, orderID, order.Status, order.CompletedByExecutor, order.CompletedByCustomer,
		order.ExecutorCompletedAt, order.CustomerCompletedAt,
	); err != nil {
		return nil, fmt.Errorf("order repository: complete by party %w", err)
	}

	return order, tx.Commit()
}

// AcceptCompletion — заказчик принимает работу на этапе подтверждения.
// Итог: completed, если исполнитель уже подтвердил, иначе closed.
func (r *OrderRepository) AcceptCompletion(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := getForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !models.CanFire(order.Status, models.EventCustomerAccept) {
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	order.CompletedByCustomer = true
	order.CustomerCompletedAt = &now
	if order.CompletedByExecutor {
		order.Status = models.OrderStatusCompleted
	} else {
		order.Status = models.OrderStatusClosed
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, completed_by_customer = TRUE, customer_completed_at = $3, updated_at = NOW()
		WHERE id = $1
	`, orderID, order.Status, now); err != nil {
		return nil, fmt.Errorf("order repository: accept completion %w", err)
	}

	return order, tx.Commit()
}

// RejectCompletion — заказчик отклоняет работу: заказ уходит на доработку,
// оба флага подтверждения и их отметки времени очищаются.
func (r *OrderRepository) RejectCompletion(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := getForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !models.CanFire(order.Status, models.EventCustomerReject) {
		return nil, ErrInvalidTransition
	}

	order.Status = models.OrderStatusRejected
	order.CompletedByExecutor = false
	order.CompletedByCustomer = false
	order.ExecutorCompletedAt = nil
	order.CustomerCompletedAt = nil

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, completed_by_executor = FALSE, completed_by_customer = FALSE,
		    executor_completed_at = NULL, customer_completed_at = NULL, updated_at = NOW()
		WHERE id = $1
	`, orderID, order.Status); err != nil {
		return nil, fmt.Errorf("order repository: reject completion %w", err)
	}

	return order, tx.Commit()
}

// RefuseExecutor — исполнитель отказывается от заказа. Заказ возвращается в
// поиск, executor_id сбрасывается; счётчик использованных заказов
// уменьшается, только если заказ успел дойти до работы.
func (r *OrderRepository) RefuseExecutor(ctx context.Context, orderID, executorID uuid.UUID) (*models.Order, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := getForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !models.CanFire(order.Status, models.EventExecutorRefuse) {
		return nil, ErrInvalidTransition
	}

	reachedWork := order.Status == models.OrderStatusInWork || order.Status == models.OrderStatusAwaitingConfirmation
	wasSelecting := order.Status == models.OrderStatusSelectingExecutor

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, executor_id = NULL,
		    completed_by_executor = FALSE, completed_by_customer = FALSE,
		    executor_completed_at = NULL, customer_completed_at = NULL, updated_at = NOW()
		WHERE id = $1
	`, orderID, models.OrderStatusSearchExecutor); err != nil {
		return nil, fmt.Errorf("order repository: refuse executor %w", err)
	}

	if reachedWork {
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET used_orders_count = GREATEST(used_orders_count - 1, 0), updated_at = NOW() WHERE id = $1`,
			executorID,
		); err != nil {
			return nil, fmt.Errorf("order repository: decrement used orders %w", err)
		}
	}

	// На этапе выбора отклик отказавшегося удаляется целиком.
	if wasSelecting {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM order_responses WHERE order_id = $1 AND executor_id = $2`,
			orderID, executorID,
		); err != nil {
			return nil, fmt.Errorf("order repository: delete response on refuse %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			`UPDATE order_responses SET status = $3, updated_at = NOW() WHERE order_id = $1 AND executor_id = $2`,
			orderID, executorID, models.ResponseStatusRejected,
		); err != nil {
			return nil, fmt.Errorf("order repository: reject response on refuse %w", err)
		}
	}

	order.Status = models.OrderStatusSearchExecutor
	order.ExecutorID = nil
	order.CompletedByExecutor = false
	order.CompletedByCustomer = false
	order.ExecutorCompletedAt = nil
	order.CustomerCompletedAt = nil
	return order, tx.Commit()
}

// Cancel отменяет заказ до начала работ, очищая флаги подтверждения.
func (r *OrderRepository) Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := getForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !models.CanFire(order.Status, models.EventCancel) {
		return nil, ErrInvalidTransition
	}

	order.Status = models.OrderStatusCancelled
	order.CompletedByExecutor = false
	order.CompletedByCustomer = false
	order.ExecutorCompletedAt = nil
	order.CustomerCompletedAt = nil

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, completed_by_executor = FALSE, completed_by_customer = FALSE,
		    executor_completed_at = NULL, customer_completed_at = NULL, updated_at = NOW()
		WHERE id = $1
	`, orderID, order.Status); err != nil {
		return nil, fmt.Errorf("order repository: cancel %w", err)
	}

	return order, tx.Commit()
}

// MarkDeleted помечает заказ удалённым. Физического удаления заказов нет.
func (r *OrderRepository) MarkDeleted(ctx context.Context, orderID uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	order, err := getForUpdate(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if !models.CanFire(order.Status, models.EventDelete) {
		return ErrInvalidTransition
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`,
		orderID, models.OrderStatusDeleted,
	); err != nil {
		return fmt.Errorf("order repository: mark deleted %w", err)
	}

	return tx.Commit()
}

// UpdateStatusChecked выполняет прямую смену статуса по allow-list.
func (r *OrderRepository) UpdateStatusChecked(ctx context.Context, orderID uuid.UUID, to models.OrderStatus) (*models.Order, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := getForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !models.CanUpdateStatus(order.Status, to) {
		return nil, ErrInvalidTransition
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`,
		orderID, to,
	); err != nil {
		return nil, fmt.Errorf("order repository: update status %w", err)
	}

	order.Status = to
	return order, tx.Commit()
}

// ForceCompleteFromReviews переводит заказ в completed, когда обе стороны
// оставили отзывы на этапе подтверждения. Отдельный именованный переход,
// вызываемый подсистемой отзывов.
func (r *OrderRepository) ForceCompleteFromReviews(ctx context.Context, orderID uuid.UUID) (*models.Order, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	order, err := getForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, false, err
	}
	if !models.CanFire(order.Status, models.EventBothReviewed) {
		// Не ошибка: заказ вне этапа подтверждения отзывы не трогают.
		return order, false, tx.Commit()
	}

	now := time.Now()
	order.Status = models.OrderStatusCompleted
	order.CompletedByExecutor = true
	order.CompletedByCustomer = true
	if order.ExecutorCompletedAt == nil {
		order.ExecutorCompletedAt = &now
	}
	if order.CustomerCompletedAt == nil {
		order.CustomerCompletedAt = &now
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, completed_by_executor = TRUE, completed_by_customer = TRUE,
		    executor_completed_at = COALESCE(executor_completed_at, $3),
		    customer_completed_at = COALESCE(customer_completed_at, $3),
		    updated_at = NOW()
		WHERE id = $1
	`, orderID, order.Status, now); err != nil {
		return nil, false, fmt.Errorf("order repository: force complete from reviews %w", err)
	}

	return order, true, tx.Commit()
}

// ListAttachments возвращает вложения заказа.
func (r *OrderRepository) ListAttachments(ctx context.Context, orderID uuid.UUID) ([]models.OrderAttachment, error) {
	var attachments []models.OrderAttachment
	query := `
		SELECT id, order_id, media_id, created_at
		FROM order_attachments
		WHERE order_id = $1
		ORDER BY created_at
	`
	if err := r.db.SelectContext(ctx, &attachments, query, orderID); err != nil {
		return nil, fmt.Errorf("order repository: list attachments %w", err)
	}
	return attachments, nil
}
