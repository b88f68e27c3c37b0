package models

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
)

// Типы транзакций кошелька. Сумма всегда положительная, направление
// определяется типом.
const (
	TransactionTypeDeposit             = "deposit"
	TransactionTypeCharge              = "charge"
	TransactionTypeSubscriptionPayment = "subscription_payment"
	TransactionTypeEscrowHold          = "escrow_hold"
	TransactionTypeEscrowRelease       = "escrow_release"
	TransactionTypeEscrowRefund        = "escrow_refund"
	TransactionTypeMediatorCommission  = "mediator_commission"
)

// DebitTransactionTypes — типы, уменьшающие баланс пользователя.
var DebitTransactionTypes = map[string]struct{}{
	TransactionTypeCharge:              {},
	TransactionTypeSubscriptionPayment: {},
	TransactionTypeEscrowHold:          {},
}

// Статусы транзакций. Затрагивающие баланс операции создаются сразу
// completed и далее не изменяются; pending используется только для
// отложенной комиссии посредника, которую можно отменить.
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusCancelled = "cancelled"
)

// WalletTransaction — запись append-only журнала операций кошелька.
// Каждая мутация баланса пользователя сопровождается ровно одной такой
// строкой, созданной в той же транзакции БД.
type WalletTransaction struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	UserID        uuid.UUID       `db:"user_id" json:"user_id"`
	OrderID       *uuid.UUID      `db:"order_id" json:"order_id,omitempty"`
	Type          string          `db:"type" json:"type"`
	Status        string          `db:"status" json:"status"`
	Amount        int64           `db:"amount" json:"amount"`
	BalanceBefore int64           `db:"balance_before" json:"balance_before"`
	BalanceAfter  int64           `db:"balance_after" json:"balance_after"`
	Currency      string          `db:"currency" json:"currency"`
	Description   string          `db:"description" json:"description"`
	ExternalRef   *string         `db:"external_ref" json:"external_ref,omitempty"`
	Metadata      json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// PlatformCommissionPercent — комиссия платформы при выплате исполнителю.
const PlatformCommissionPercent = 10

// SplitPayout делит удержанную сумму на выплату исполнителю и комиссию
// платформы. Комиссия округляется вниз, остаток копеек достаётся исполнителю,
// поэтому payout + commission == held всегда.
func SplitPayout(held int64) (payout, commission int64) {
	commission = held * PlatformCommissionPercent / 100
	return held - commission, commission
}

// RefundAmount считает долю возврата от удержанной суммы. percent задаётся
// в целых процентах от 0 до 100, округление вниз.
func RefundAmount(held, percent int64) int64 {
	return held * percent / 100
}

// DefaultCurrency — валюта кошелька по умолчанию.
const DefaultCurrency = "RUB"

// ToCents переводит сумму в рублях в копейки. Используется только на границе API.
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromCents переводит копейки в рубли для ответов API.
func FromCents(cents int64) float64 {
	return float64(cents) / 100
}
