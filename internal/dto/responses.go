package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/uslugihub/backend/internal/models"
)

// ErrorResponse — стандартный ответ с ошибкой.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse — стандартный ответ с сообщением и данными.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// OrderView — заказ в ответе API. Money-поля отдаются в рублях,
// внутреннее хранение в копейках наружу не протекает.
type OrderView struct {
	*models.Order
	MaxAmount          float64 `json:"max_amount"`
	PaymentHeld        float64 `json:"payment_held"`
	MediatorCommission float64 `json:"mediator_commission"`
	MediatorMargin     float64 `json:"mediator_margin"`
	ExecutorCost       float64 `json:"executor_cost"`
}

// NewOrderView конвертирует money-поля заказа в рубли.
func NewOrderView(order *models.Order) *OrderView {
	return &OrderView{
		Order:              order,
		MaxAmount:          models.FromCents(order.MaxAmount),
		PaymentHeld:        models.FromCents(order.PaymentHeld),
		MediatorCommission: models.FromCents(order.MediatorCommission),
		MediatorMargin:     models.FromCents(order.MediatorMargin),
		ExecutorCost:       models.FromCents(order.ExecutorCost),
	}
}

// NewOrderViews конвертирует список заказов.
func NewOrderViews(orders []models.Order) []*OrderView {
	views := make([]*OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, NewOrderView(&orders[i]))
	}
	return views
}

// TransactionView — запись журнала кошелька с суммами в рублях.
type TransactionView struct {
	ID            uuid.UUID  `json:"id"`
	OrderID       *uuid.UUID `json:"order_id,omitempty"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	Amount        float64    `json:"amount"`
	BalanceBefore float64    `json:"balance_before"`
	BalanceAfter  float64    `json:"balance_after"`
	Currency      string     `json:"currency"`
	Description   string     `json:"description"`
	CreatedAt     time.Time  `json:"created_at"`
}

// NewTransactionView конвертирует запись журнала в рубли.
func NewTransactionView(t *models.WalletTransaction) *TransactionView {
	return &TransactionView{
		ID:            t.ID,
		OrderID:       t.OrderID,
		Type:          t.Type,
		Status:        t.Status,
		Amount:        models.FromCents(t.Amount),
		BalanceBefore: models.FromCents(t.BalanceBefore),
		BalanceAfter:  models.FromCents(t.BalanceAfter),
		Currency:      t.Currency,
		Description:   t.Description,
		CreatedAt:     t.CreatedAt,
	}
}

// NewTransactionViews конвертирует список записей журнала.
func NewTransactionViews(transactions []models.WalletTransaction) []*TransactionView {
	views := make([]*TransactionView, 0, len(transactions))
	for i := range transactions {
		views = append(views, NewTransactionView(&transactions[i]))
	}
	return views
}

// ResponseView — отклик с ценой в рублях.
type ResponseView struct {
	*models.OrderResponse
	Price *float64 `json:"price,omitempty"`
}

// NewResponseView конвертирует цену отклика в рубли.
func NewResponseView(r *models.OrderResponse) *ResponseView {
	view := &ResponseView{OrderResponse: r}
	if r.Price != nil {
		price := models.FromCents(*r.Price)
		view.Price = &price
	}
	return view
}

// NewResponseViews конвертирует список откликов.
func NewResponseViews(responses []models.OrderResponse) []*ResponseView {
	views := make([]*ResponseView, 0, len(responses))
	for i := range responses {
		views = append(views, NewResponseView(&responses[i]))
	}
	return views
}

// SubscriptionView — подписка с ценой тарифа в рублях.
type SubscriptionView struct {
	*models.Subscription
	PlanPrice float64 `json:"plan_price"`
}

// NewSubscriptionView добавляет к подписке цену тарифа.
func NewSubscriptionView(s *models.Subscription) *SubscriptionView {
	view := &SubscriptionView{Subscription: s}
	if quota, ok := models.SubscriptionPlans[s.Plan]; ok {
		view.PlanPrice = models.FromCents(quota.Price)
	}
	return view
}
