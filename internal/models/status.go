package models

import "fmt"

// OrderStatus — закрытый набор статусов заказа.
// Легаси-представления (числовые коды мобильного клиента) принимаются
// только на границе через ParseOrderStatus.
type OrderStatus string

const (
	OrderStatusSearchExecutor       OrderStatus = "search_executor"
	OrderStatusSelectingExecutor    OrderStatus = "selecting_executor"
	OrderStatusExecutorSelected     OrderStatus = "executor_selected"
	OrderStatusInWork               OrderStatus = "in_work"
	OrderStatusAwaitingConfirmation OrderStatus = "awaiting_confirmation"
	OrderStatusRejected             OrderStatus = "rejected"
	OrderStatusClosed               OrderStatus = "closed"
	OrderStatusCompleted            OrderStatus = "completed"
	OrderStatusCancelled            OrderStatus = "cancelled"
	OrderStatusDeleted              OrderStatus = "deleted"
	OrderStatusMediatorStep1        OrderStatus = "mediator_step_1"
	OrderStatusMediatorStep2        OrderStatus = "mediator_step_2"
	OrderStatusMediatorStep3        OrderStatus = "mediator_step_3"
	OrderStatusMediatorArchived     OrderStatus = "mediator_archived"
)

// legacyStatusCodes — числовые коды статусов старого мобильного API.
var legacyStatusCodes = map[string]OrderStatus{
	"0": OrderStatusSearchExecutor,
	"2": OrderStatusSelectingExecutor,
	"4": OrderStatusInWork,
	"5": OrderStatusAwaitingConfirmation,
	"6": OrderStatusRejected,
	"7": OrderStatusClosed,
}

// ParseOrderStatus принимает строковое или легаси-числовое представление статуса.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	if s, ok := legacyStatusCodes[raw]; ok {
		return s, nil
	}
	s := OrderStatus(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("неизвестный статус заказа: %q", raw)
	}
	return s, nil
}

// IsValid проверяет принадлежность статуса закрытому набору.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusSearchExecutor, OrderStatusSelectingExecutor, OrderStatusExecutorSelected,
		OrderStatusInWork, OrderStatusAwaitingConfirmation, OrderStatusRejected,
		OrderStatusClosed, OrderStatusCompleted, OrderStatusCancelled, OrderStatusDeleted,
		OrderStatusMediatorStep1, OrderStatusMediatorStep2, OrderStatusMediatorStep3,
		OrderStatusMediatorArchived:
		return true
	}
	return false
}

// IsTerminal сообщает, что заказ больше не участвует в жизненном цикле.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusDeleted, OrderStatusMediatorArchived:
		return true
	}
	return false
}

// ExecutorAssigned сообщает, что в данном статусе executor_id должен быть заполнен.
func (s OrderStatus) ExecutorAssigned() bool {
	switch s {
	case OrderStatusExecutorSelected, OrderStatusInWork, OrderStatusAwaitingConfirmation,
		OrderStatusRejected, OrderStatusClosed, OrderStatusCompleted:
		return true
	}
	return false
}

// OrderEvent — событие, запускающее переход статуса заказа.
type OrderEvent string

const (
	EventSelectExecutor   OrderEvent = "select_executor"
	EventTakeIntoWork     OrderEvent = "take_into_work"
	EventCancel           OrderEvent = "cancel"
	EventDelete           OrderEvent = "delete"
	EventExecutorComplete OrderEvent = "executor_complete"
	EventCustomerComplete OrderEvent = "customer_complete"
	EventCustomerAccept   OrderEvent = "customer_accept"
	EventCustomerReject   OrderEvent = "customer_reject"
	EventExecutorRefuse   OrderEvent = "executor_refuse"
	EventMediatorTake     OrderEvent = "mediator_take"
	EventMediatorAdvance  OrderEvent = "mediator_advance"
	EventMediatorArchive  OrderEvent = "mediator_archive"
	EventMediatorReturn   OrderEvent = "mediator_return"
	EventBothReviewed     OrderEvent = "both_reviewed"
)

// eventAllowedFrom — единая таблица переходов: из каких статусов разрешено событие.
// Проверка выполняется централизованно через CanFire, а не разрозненными
// условиями в хэндлерах.
var eventAllowedFrom = map[OrderEvent][]OrderStatus{
	EventSelectExecutor:   {OrderStatusSearchExecutor, OrderStatusSelectingExecutor},
	EventTakeIntoWork:     {OrderStatusExecutorSelected},
	EventCancel:           {OrderStatusSearchExecutor, OrderStatusSelectingExecutor},
	EventDelete:           {OrderStatusSearchExecutor, OrderStatusSelectingExecutor, OrderStatusCancelled, OrderStatusClosed, OrderStatusCompleted, OrderStatusRejected},
	EventExecutorComplete: {OrderStatusInWork, OrderStatusAwaitingConfirmation},
	EventCustomerComplete: {OrderStatusInWork, OrderStatusAwaitingConfirmation},
	EventCustomerAccept:   {OrderStatusAwaitingConfirmation},
	EventCustomerReject:   {OrderStatusAwaitingConfirmation},
	EventExecutorRefuse:   {OrderStatusInWork, OrderStatusAwaitingConfirmation, OrderStatusSelectingExecutor, OrderStatusExecutorSelected},
	EventMediatorTake:     {OrderStatusSearchExecutor, OrderStatusSelectingExecutor},
	EventMediatorAdvance:  {OrderStatusMediatorStep1, OrderStatusMediatorStep2},
	EventMediatorArchive:  {OrderStatusMediatorStep1, OrderStatusMediatorStep2, OrderStatusMediatorStep3},
	EventMediatorReturn:   {OrderStatusMediatorStep1, OrderStatusMediatorStep2, OrderStatusMediatorStep3},
	EventBothReviewed:     {OrderStatusAwaitingConfirmation},
}

// CanFire проверяет, разрешено ли событие из текущего статуса.
func CanFire(s OrderStatus, e OrderEvent) bool {
	allowed, ok := eventAllowedFrom[e]
	if !ok {
		return false
	}
	for _, from := range allowed {
		if from == s {
			return true
		}
	}
	return false
}

// statusUpdateAllowList — разрешённые прямые смены статуса заказчиком
// (generic update), ключ — текущий статус.
var statusUpdateAllowList = map[OrderStatus][]OrderStatus{
	OrderStatusSearchExecutor:    {OrderStatusSelectingExecutor, OrderStatusCancelled, OrderStatusDeleted},
	OrderStatusSelectingExecutor: {OrderStatusSearchExecutor, OrderStatusCancelled, OrderStatusDeleted},
	OrderStatusRejected:          {OrderStatusInWork},
	OrderStatusCancelled:         {OrderStatusSearchExecutor, OrderStatusDeleted},
	OrderStatusClosed:            {OrderStatusDeleted},
}

// CanUpdateStatus проверяет прямой переход по allow-list.
func CanUpdateStatus(from, to OrderStatus) bool {
	for _, s := range statusUpdateAllowList[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CompletionStatus выводит статус заказа из пары флагов двустороннего
// подтверждения: заказ завершён, только когда подтвердили обе стороны.
func CompletionStatus(byExecutor, byCustomer bool) OrderStatus {
	if byExecutor && byCustomer {
		return OrderStatusCompleted
	}
	return OrderStatusAwaitingConfirmation
}

// MediatorStepStatus мапит номер шага посредника на статус заказа.
func MediatorStepStatus(step int) (OrderStatus, error) {
	switch step {
	case 1:
		return OrderStatusMediatorStep1, nil
	case 2:
		return OrderStatusMediatorStep2, nil
	case 3:
		return OrderStatusMediatorStep3, nil
	}
	return "", fmt.Errorf("некорректный шаг посредника: %d", step)
}

// EscrowStatus — состояние удержанных по заказу средств.
type EscrowStatus string

const (
	EscrowStatusNone     EscrowStatus = "none"
	EscrowStatusPending  EscrowStatus = "pending"
	EscrowStatusHeld     EscrowStatus = "held"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
)

// ResponseStatus — статус отклика исполнителя; порядок значений задаёт
// видимость контактных данных сторон.
type ResponseStatus string

const (
	ResponseStatusSent                    ResponseStatus = "sent"
	ResponseStatusContactReceived         ResponseStatus = "contact_received"
	ResponseStatusContactOpenedByExecutor ResponseStatus = "contact_opened_by_executor"
	ResponseStatusOrderReceived           ResponseStatus = "order_received"
	ResponseStatusTakenIntoWork           ResponseStatus = "taken_into_work"
	ResponseStatusRejected                ResponseStatus = "rejected"
)

// responseStatusOrdinal — пороговые значения видимости контактов.
var responseStatusOrdinal = map[ResponseStatus]int{
	ResponseStatusSent:                    0,
	ResponseStatusContactReceived:         1,
	ResponseStatusContactOpenedByExecutor: 2,
	ResponseStatusOrderReceived:           3,
	ResponseStatusTakenIntoWork:           4,
	ResponseStatusRejected:                -1,
}

// Ordinal возвращает позицию статуса в цепочке обмена контактами.
func (s ResponseStatus) Ordinal() int {
	return responseStatusOrdinal[s]
}

// IsValid проверяет принадлежность статуса отклика закрытому набору.
func (s ResponseStatus) IsValid() bool {
	_, ok := responseStatusOrdinal[s]
	return ok
}

// CustomerContactVisible — исполнитель видит контакты заказчика.
func (s ResponseStatus) CustomerContactVisible() bool {
	return s.Ordinal() >= responseStatusOrdinal[ResponseStatusContactReceived]
}

// ExecutorContactVisible — заказчик видит контакты исполнителя.
// Рукопожатие схлопнуто в один шаг: передача контакта заказчиком сразу
// открывает контакты обеих сторон.
func (s ResponseStatus) ExecutorContactVisible() bool {
	return s.Ordinal() >= responseStatusOrdinal[ResponseStatusContactReceived]
}

// MediatorStepState — состояние шага рабочего процесса посредника.
type MediatorStepState string

const (
	MediatorStepActive        MediatorStepState = "active"
	MediatorStepCompleted     MediatorStepState = "completed"
	MediatorStepArchived      MediatorStepState = "archived"
	MediatorStepReturnedToApp MediatorStepState = "returned_to_app"
)
