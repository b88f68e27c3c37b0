package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uslugihub/backend/internal/models"
)

// MediatorRepository отвечает за трёхшаговый процесс посредника.
// Переходы между шагами выполняются под блокировкой строки заказа; записи
// шагов append-only, история соседних проходов не переписывается.
type MediatorRepository struct {
	db *sqlx.DB
}

// NewMediatorRepository создаёт новый экземпляр.
func NewMediatorRepository(db *sqlx.DB) *MediatorRepository {
	return &MediatorRepository{db: db}
}

// TakeOrder закрепляет заказ за посредником и открывает первый шаг.
// Двойной захват исключается проверкой mediator_id под замком.
func (r *MediatorRepository) TakeOrder(ctx context.Context, orderID, mediatorID uuid.UUID) (*models.Order, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := getForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !models.CanFire(order.Status, models.EventMediatorTake) {
		return nil, ErrInvalidTransition
	}
	if order.MediatorID != nil {
		return nil, ErrMediatorAlreadySet
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET mediator_id = $2, status = $3, mediator_step = $4, updated_at = NOW()
		WHERE id = $1
	`, orderID, mediatorID, models.OrderStatusMediatorStep1, models.MediatorStepDetails); err != nil {
		return nil, fmt.Errorf("mediator repository: take order %w", err)
	}

	if err := insertStep(ctx, tx, orderID, mediatorID, models.MediatorStepDetails, nil); err != nil {
		return nil, err
	}

	order.MediatorID = &mediatorID
	order.Status = models.OrderStatusMediatorStep1
	order.MediatorStep = models.MediatorStepDetails
	return order, tx.Commit()
}

// MoveToNextStep закрывает текущий шаг с данными и комментарием посредника
// и открывает следующий.
func (r *MediatorRepository) MoveToNextStep(ctx context.Context, orderID, mediatorID uuid.UUID, stepData json.RawMessage, comment *string, update *models.Order) (*models.Order, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := getForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !models.CanFire(order.Status, models.EventMediatorAdvance) {
		return nil, ErrInvalidTransition
	}
	if order.MediatorID == nil || *order.MediatorID != mediatorID {
		return nil, ErrOrderNotFound
	}
	if order.MediatorStep >= models.MediatorMaxStep {
		return nil, ErrNoNextStep
	}

	if err := completeStep(ctx, tx, orderID, order.MediatorStep, stepData, comment); err != nil {
		return nil, err
	}

	nextStep := order.MediatorStep + 1
	nextStatus, err := models.MediatorStepStatus(nextStep)
	if err != nil {
		return nil, err
	}

	// Поля сметы переносятся на заказ вместе с переходом шага.
	if update != nil {
		order.MediatorCommission = update.MediatorCommission
		order.MediatorMargin = update.MediatorMargin
		order.ExecutorCost = update.ExecutorCost
		order.MediatorNotes = update.MediatorNotes
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, mediator_step = $3,
		    mediator_commission = $4, mediator_margin = $5, executor_cost = $6, mediator_notes = $7,
		    updated_at = NOW()
		WHERE id = $1
	`, orderID, nextStatus, nextStep,
		order.MediatorCommission, order.MediatorMargin, order.ExecutorCost, order.MediatorNotes,
	); err != nil {
		return nil, fmt.Errorf("mediator repository: move to next step %w", err)
	}

	if err := insertStep(ctx, tx, orderID, mediatorID, nextStep, nil); err != nil {
		return nil, err
	}

	order.Status = nextStatus
	order.MediatorStep = nextStep
	return order, tx.Commit()
}

// Archive завершает процесс посредника с последнего шага.
func (r *MediatorRepository) Archive(ctx context.Context, orderID, mediatorID uuid.UUID, stepData json.RawMessage, comment *string) (*models.Order, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := getForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !models.CanFire(order.Status, models.EventMediatorArchive) {
		return nil, ErrInvalidTransition
	}
	if order.MediatorID == nil || *order.MediatorID != mediatorID {
		return nil, ErrOrderNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1
	`, orderID, models.OrderStatusMediatorArchived); err != nil {
		return nil, fmt.Errorf("mediator repository: archive %w", err)
	}

	// Архивируется только текущий активный шаг, история завершённых шагов
	// остаётся нетронутой.
	if _, err := tx.ExecContext(ctx, `
		UPDATE mediator_order_steps
		SET status = $3, step_data = COALESCE($4, step_data),
		    comment = COALESCE($5, comment), completed_at = NOW()
		WHERE order_id = $1 AND step = $2 AND status = $6
	`, orderID, order.MediatorStep, models.MediatorStepArchived, stepData, comment,
		models.MediatorStepActive); err != nil {
		return nil, fmt.Errorf("mediator repository: archive step %w", err)
	}

	order.Status = models.OrderStatusMediatorArchived
	return order, tx.Commit()
}

// ReturnToApp возвращает заказ из процесса посредника обратно в приложение:
// посредник и шаг сбрасываются, заказ снова в поиске исполнителя.
func (r *MediatorRepository) ReturnToApp(ctx context.Context, orderID, mediatorID uuid.UUID) (*models.Order, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := getForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if !models.CanFire(order.Status, models.EventMediatorReturn) {
		return nil, ErrInvalidTransition
	}
	if order.MediatorID == nil || *order.MediatorID != mediatorID {
		return nil, ErrOrderNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, mediator_id = NULL, mediator_step = 0,
		    mediator_commission = 0, mediator_margin = 0, executor_cost = 0, mediator_notes = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`, orderID, models.OrderStatusSearchExecutor); err != nil {
		return nil, fmt.Errorf("mediator repository: return to app %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE mediator_order_steps SET status = $3
		WHERE order_id = $1 AND status = $2
	`, orderID, models.MediatorStepActive, models.MediatorStepReturnedToApp); err != nil {
		return nil, fmt.Errorf("mediator repository: return steps %w", err)
	}

	order.Status = models.OrderStatusSearchExecutor
	order.MediatorID = nil
	order.MediatorStep = 0
	order.MediatorCommission = 0
	order.MediatorMargin = 0
	order.ExecutorCost = 0
	order.MediatorNotes = nil
	return order, tx.Commit()
}

// ListSteps возвращает историю шагов заказа от старых к новым.
func (r *MediatorRepository) ListSteps(ctx context.Context, orderID uuid.UUID) ([]models.MediatorOrderStep, error) {
	var steps []models.MediatorOrderStep
	query := `
		SELECT id, order_id, mediator_id, step, status, step_data, comment, created_at, completed_at
		FROM mediator_order_steps
		WHERE order_id = $1
		ORDER BY created_at
	`
	if err := r.db.SelectContext(ctx, &steps, query, orderID); err != nil {
		return nil, fmt.Errorf("mediator repository: list steps %w", err)
	}
	return steps, nil
}

// ListByMediator возвращает заказы посредника, включая архив.
func (r *MediatorRepository) ListByMediator(ctx context.Context, mediatorID uuid.UUID, archived bool) ([]models.Order, error) {
	var orders []models.Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE mediator_id = $1`
	if archived {
		query += ` AND status = 'mediator_archived'`
	} else {
		query += ` AND status IN ('mediator_step_1', 'mediator_step_2', 'mediator_step_3')`
	}
	query += ` ORDER BY updated_at DESC`
	if err := r.db.SelectContext(ctx, &orders, query, mediatorID); err != nil {
		return nil, fmt.Errorf("mediator repository: list by mediator %w", err)
	}
	return orders, nil
}

// insertStep открывает новую запись шага внутри транзакции.
func insertStep(ctx context.Context, tx *sqlx.Tx, orderID, mediatorID uuid.UUID, step int, data json.RawMessage) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO mediator_order_steps (order_id, mediator_id, step, status, step_data)
		VALUES ($1, $2, $3, $4, $5)
	`, orderID, mediatorID, step, models.MediatorStepActive, data); err != nil {
		return fmt.Errorf("mediator repository: insert step %w", err)
	}
	return nil
}

// completeStep закрывает активную запись шага, сохраняя его данные
// и комментарий посредника.
func completeStep(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID, step int, data json.RawMessage, comment *string) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE mediator_order_steps
		SET status = $3, step_data = COALESCE($4, step_data),
		    comment = COALESCE($5, comment), completed_at = NOW()
		WHERE order_id = $1 AND step = $2 AND status = $6
	`, orderID, step, models.MediatorStepCompleted, data, comment,
		models.MediatorStepActive); err != nil {
		return fmt.Errorf("mediator repository: complete step %w", err)
	}
	return nil
}
