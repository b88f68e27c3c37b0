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

// Ошибки уровня репозитория кошелька.
var (
	ErrInsufficientFunds   = errors.New("insufficient wallet balance")
	ErrNoHeldFunds         = errors.New("order has no held funds")
	ErrFundsAlreadyHeld    = errors.New("funds already held for this order")
	ErrTransactionNotFound = errors.New("wallet transaction not found")
)

// WalletRepository ведёт журнал транзакций кошелька.
// Баланс пользователя и запись журнала меняются в одной транзакции под
// блокировкой строки пользователя: баланс никогда не расходится с журналом.
type WalletRepository struct {
	db *sqlx.DB
}

// NewWalletRepository создаёт новый экземпляр.
func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// lockBalance читает баланс пользователя с блокировкой строки.
func lockBalance(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (int64, error) {
	var balance int64
	err := tx.GetContext(ctx, &balance,
		`SELECT wallet_balance FROM users WHERE id = $1 FOR UPDATE`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("wallet repository: lock balance %w", err)
	}
	return balance, nil
}

// insertTransaction добавляет запись журнала внутри транзакции.
func insertTransaction(ctx context.Context, tx *sqlx.Tx, t *models.WalletTransaction) error {
	query := `
		INSERT INTO wallet_transactions
			(user_id, order_id, type, status, amount, balance_before, balance_after, currency, description, external_ref, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`
	if err := tx.QueryRowxContext(ctx, query,
		t.UserID, t.OrderID, t.Type, t.Status, t.Amount,
		t.BalanceBefore, t.BalanceAfter, t.Currency, t.Description, t.ExternalRef, t.Metadata,
	).Scan(&t.ID, &t.CreatedAt); err != nil {
		return fmt.Errorf("wallet repository: insert transaction %w", err)
	}
	return nil
}

// setBalance обновляет баланс пользователя внутри транзакции.
func setBalance(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, balance int64) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET wallet_balance = $2, updated_at = NOW() WHERE id = $1`,
		userID, balance,
	); err != nil {
		return fmt.Errorf("wallet repository: set balance %w", err)
	}
	return nil
}

// Deposit пополняет кошелёк и пишет запись в журнал.
func (r *WalletRepository) Deposit(ctx context.Context, userID uuid.UUID, amount int64, description string, externalRef *string) (*models.WalletTransaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	balance, err := lockBalance(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	t := &models.WalletTransaction{
		UserID:        userID,
		Type:          models.TransactionTypeDeposit,
		Status:        models.TransactionStatusCompleted,
		Amount:        amount,
		BalanceBefore: balance,
		BalanceAfter:  balance + amount,
		Currency:      models.DefaultCurrency,
		Description:   description,
		ExternalRef:   externalRef,
	}
	if err := insertTransaction(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := setBalance(ctx, tx, userID, t.BalanceAfter); err != nil {
		return nil, err
	}

	return t, tx.Commit()
}

// Charge списывает средства с кошелька. Недостаточный баланс — ошибка,
// отрицательный баланс невозможен.
func (r *WalletRepository) Charge(ctx context.Context, userID uuid.UUID, amount int64, txType string, description string) (*models.WalletTransaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	balance, err := lockBalance(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, ErrInsufficientFunds
	}

	t := &models.WalletTransaction{
		UserID:        userID,
		Type:          txType,
		Status:        models.TransactionStatusCompleted,
		Amount:        amount,
		BalanceBefore: balance,
		BalanceAfter:  balance - amount,
		Currency:      models.DefaultCurrency,
		Description:   description,
	}
	if err := insertTransaction(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := setBalance(ctx, tx, userID, t.BalanceAfter); err != nil {
		return nil, err
	}

	return t, tx.Commit()
}

// HoldFunds резервирует средства заказчика под заказ: списание с баланса,
// запись escrow_hold в журнал, payment_held и escrow_status на заказе.
func (r *WalletRepository) HoldFunds(ctx context.Context, orderID, customerID uuid.UUID, amount int64) (*models.WalletTransaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := getForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentHeld > 0 || order.EscrowStatus == models.EscrowStatusHeld {
		return nil, ErrFundsAlreadyHeld
	}

	balance, err := lockBalance(ctx, tx, customerID)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, ErrInsufficientFunds
	}

	orderRef := orderID
	t := &models.WalletTransaction{
		UserID:        customerID,
		OrderID:       &orderRef,
		Type:          models.TransactionTypeEscrowHold,
		Status:        models.TransactionStatusCompleted,
		Amount:        amount,
		BalanceBefore: balance,
		BalanceAfter:  balance - amount,
		Currency:      models.DefaultCurrency,
		Description:   "Резервирование средств по заказу",
	}
	if err := insertTransaction(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := setBalance(ctx, tx, customerID, t.BalanceAfter); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET payment_held = $2, escrow_status = $3, updated_at = NOW() WHERE id = $1`,
		orderID, amount, models.EscrowStatusHeld,
	); err != nil {
		return nil, fmt.Errorf("wallet repository: hold funds %w", err)
	}

	return t, tx.Commit()
}

// ReleaseFunds выплачивает исполнителю зарезервированную сумму за вычетом
// комиссии платформы. Резерв на заказе обнуляется в той же транзакции.
func (r *WalletRepository) ReleaseFunds(ctx context.Context, orderID, executorID uuid.UUID) (*models.WalletTransaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := getForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentHeld <= 0 || order.EscrowStatus != models.EscrowStatusHeld {
		return nil, ErrNoHeldFunds
	}

	payout, _ := models.SplitPayout(order.PaymentHeld)

	balance, err := lockBalance(ctx, tx, executorID)
	if err != nil {
		return nil, err
	}

	orderRef := orderID
	t := &models.WalletTransaction{
		UserID:        executorID,
		OrderID:       &orderRef,
		Type:          models.TransactionTypeEscrowRelease,
		Status:        models.TransactionStatusCompleted,
		Amount:        payout,
		BalanceBefore: balance,
		BalanceAfter:  balance + payout,
		Currency:      models.DefaultCurrency,
		Description:   "Выплата исполнителю по заказу",
	}
	if err := insertTransaction(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := setBalance(ctx, tx, executorID, t.BalanceAfter); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET payment_held = 0, escrow_status = $2, updated_at = NOW() WHERE id = $1`,
		orderID, models.EscrowStatusReleased,
	); err != nil {
		return nil, fmt.Errorf("wallet repository: release funds %w", err)
	}

	return t, tx.Commit()
}

// RefundFunds возвращает заказчику долю зарезервированной суммы.
// percent задаёт долю возврата в процентах, остаток резерва обнуляется.
func (r *WalletRepository) RefundFunds(ctx context.Context, orderID, customerID uuid.UUID, percent int64) (*models.WalletTransaction, error) {
	if percent < 0 || percent > 100 {
		return nil, fmt.Errorf("wallet repository: refund percent out of range: %d", percent)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := getForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentHeld <= 0 || order.EscrowStatus != models.EscrowStatusHeld {
		return nil, ErrNoHeldFunds
	}

	refund := models.RefundAmount(order.PaymentHeld, percent)

	balance, err := lockBalance(ctx, tx, customerID)
	if err != nil {
		return nil, err
	}

	orderRef := orderID
	t := &models.WalletTransaction{
		UserID:        customerID,
		OrderID:       &orderRef,
		Type:          models.TransactionTypeEscrowRefund,
		Status:        models.TransactionStatusCompleted,
		Amount:        refund,
		BalanceBefore: balance,
		BalanceAfter:  balance + refund,
		Currency:      models.DefaultCurrency,
		Description:   fmt.Sprintf("Возврат %d%% резерва по заказу", percent),
	}
	if err := insertTransaction(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := setBalance(ctx, tx, customerID, t.BalanceAfter); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET payment_held = 0, escrow_status = $2, updated_at = NOW() WHERE id = $1`,
		orderID, models.EscrowStatusRefunded,
	); err != nil {
		return nil, fmt.Errorf("wallet repository: refund funds %w", err)
	}

	return t, tx.Commit()
}

// CreatePendingCommission создаёт отложенную запись комиссии посредника.
// Баланс не меняется: запись фиксирует намерение и отменяется при архивации
// или возврате заказа в приложение.
func (r *WalletRepository) CreatePendingCommission(ctx context.Context, orderID, mediatorID uuid.UUID, amount int64) (*models.WalletTransaction, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var balance int64
	if err := tx.GetContext(ctx, &balance,
		`SELECT wallet_balance FROM users WHERE id = $1`, mediatorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("wallet repository: read balance %w", err)
	}

	orderRef := orderID
	t := &models.WalletTransaction{
		UserID:        mediatorID,
		OrderID:       &orderRef,
		Type:          models.TransactionTypeMediatorCommission,
		Status:        models.TransactionStatusPending,
		Amount:        amount,
		BalanceBefore: balance,
		BalanceAfter:  balance,
		Currency:      models.DefaultCurrency,
		Description:   "Комиссия посредника по заказу",
	}
	if err := insertTransaction(ctx, tx, t); err != nil {
		return nil, err
	}

	return t, tx.Commit()
}

// CancelPendingCommission отменяет отложенную комиссию посредника по заказу.
// Завершённые записи журнала не изменяются никогда.
func (r *WalletRepository) CancelPendingCommission(ctx context.Context, orderID, mediatorID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE wallet_transactions
		SET status = $3
		WHERE order_id = $1 AND user_id = $2 AND type = $4 AND status = $5
	`, orderID, mediatorID, models.TransactionStatusCancelled,
		models.TransactionTypeMediatorCommission, models.TransactionStatusPending)
	if err != nil {
		return fmt.Errorf("wallet repository: cancel pending commission %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// GetBalance возвращает текущий баланс кошелька.
func (r *WalletRepository) GetBalance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var balance int64
	err := r.db.GetContext(ctx, &balance,
		`SELECT wallet_balance FROM users WHERE id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("wallet repository: get balance %w", err)
	}
	return balance, nil
}

// ListTransactions возвращает журнал пользователя от новых к старым.
func (r *WalletRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	var transactions []models.WalletTransaction
	query := `
		SELECT id, user_id, order_id, type, status, amount, balance_before, balance_after,
		       currency, description, external_ref, metadata, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &transactions, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("wallet repository: list transactions %w", err)
	}
	return transactions, nil
}

// ListOrderTransactions возвращает журнал по конкретному заказу.
func (r *WalletRepository) ListOrderTransactions(ctx context.Context, orderID uuid.UUID) ([]models.WalletTransaction, error) {
	var transactions []models.WalletTransaction
	query := `
		SELECT id, user_id, order_id, type, status, amount, balance_before, balance_after,
		       currency, description, external_ref, metadata, created_at
		FROM wallet_transactions
		WHERE order_id = $1
		ORDER BY created_at
	`
	if err := r.db.SelectContext(ctx, &transactions, query, orderID); err != nil {
		return nil, fmt.Errorf("wallet repository: list order transactions %w", err)
	}
	return transactions, nil
}
