package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseOrderStatus(t *testing.T) {
	// Легаси-коды мобильного клиента
	cases := map[string]OrderStatus{
		"0": OrderStatusSearchExecutor,
		"2": OrderStatusSelectingExecutor,
		"4": OrderStatusInWork,
		"5": OrderStatusAwaitingConfirmation,
		"6": OrderStatusRejected,
		"7": OrderStatusClosed,
	}
	for raw, want := range cases {
		got, err := ParseOrderStatus(raw)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := ParseOrderStatus("in_work")
	assert.NoError(t, err)
	assert.Equal(t, OrderStatusInWork, got)

	_, err = ParseOrderStatus("1")
	assert.Error(t, err)

	_, err = ParseOrderStatus("что-то")
	assert.Error(t, err)
}

func TestCanFire(t *testing.T) {
	assert.True(t, CanFire(OrderStatusSearchExecutor, EventSelectExecutor))
	assert.True(t, CanFire(OrderStatusSelectingExecutor, EventSelectExecutor))
	assert.False(t, CanFire(OrderStatusInWork, EventSelectExecutor))
	assert.False(t, CanFire(OrderStatusExecutorSelected, EventSelectExecutor))

	// Выбор исполнителя и взятие в работу — два отдельных перехода
	assert.True(t, CanFire(OrderStatusExecutorSelected, EventTakeIntoWork))
	assert.False(t, CanFire(OrderStatusSearchExecutor, EventTakeIntoWork))
	assert.False(t, CanFire(OrderStatusInWork, EventTakeIntoWork))

	// Каждая сторона может подтвердить и первой, и второй: перестановка
	// заказчик-первый обязана достигать completed
	assert.True(t, CanFire(OrderStatusInWork, EventExecutorComplete))
	assert.True(t, CanFire(OrderStatusAwaitingConfirmation, EventExecutorComplete))
	assert.True(t, CanFire(OrderStatusInWork, EventCustomerComplete))
	assert.True(t, CanFire(OrderStatusAwaitingConfirmation, EventCustomerComplete))

	assert.True(t, CanFire(OrderStatusAwaitingConfirmation, EventCustomerAccept))
	assert.True(t, CanFire(OrderStatusAwaitingConfirmation, EventCustomerReject))
	assert.False(t, CanFire(OrderStatusCompleted, EventCustomerAccept))

	assert.True(t, CanFire(OrderStatusInWork, EventExecutorRefuse))
	assert.False(t, CanFire(OrderStatusSearchExecutor, EventExecutorRefuse))

	// Отмена доступна только до назначения исполнителя
	assert.True(t, CanFire(OrderStatusSearchExecutor, EventCancel))
	assert.False(t, CanFire(OrderStatusInWork, EventCancel))

	assert.True(t, CanFire(OrderStatusSearchExecutor, EventMediatorTake))
	assert.False(t, CanFire(OrderStatusMediatorStep1, EventMediatorTake))
	assert.True(t, CanFire(OrderStatusMediatorStep2, EventMediatorAdvance))
	assert.False(t, CanFire(OrderStatusMediatorStep3, EventMediatorAdvance))
	assert.True(t, CanFire(OrderStatusMediatorStep3, EventMediatorArchive))
	assert.True(t, CanFire(OrderStatusMediatorStep1, EventMediatorReturn))

	assert.False(t, CanFire(OrderStatusDeleted, EventDelete))
	assert.True(t, CanFire(OrderStatusCompleted, EventDelete))
}

func TestCanUpdateStatus(t *testing.T) {
	assert.True(t, CanUpdateStatus(OrderStatusSearchExecutor, OrderStatusSelectingExecutor))
	assert.True(t, CanUpdateStatus(OrderStatusSelectingExecutor, OrderStatusSearchExecutor))
	assert.True(t, CanUpdateStatus(OrderStatusCancelled, OrderStatusSearchExecutor))
	assert.True(t, CanUpdateStatus(OrderStatusRejected, OrderStatusInWork))

	// Смена исполнителя и завершение идут только через события
	assert.False(t, CanUpdateStatus(OrderStatusSearchExecutor, OrderStatusInWork))
	assert.False(t, CanUpdateStatus(OrderStatusInWork, OrderStatusCompleted))
	assert.False(t, CanUpdateStatus(OrderStatusCompleted, OrderStatusInWork))
	assert.False(t, CanUpdateStatus(OrderStatusDeleted, OrderStatusSearchExecutor))
}

func TestCompletionStatus(t *testing.T) {
	assert.Equal(t, OrderStatusCompleted, CompletionStatus(true, true))
	assert.Equal(t, OrderStatusAwaitingConfirmation, CompletionStatus(true, false))
	assert.Equal(t, OrderStatusAwaitingConfirmation, CompletionStatus(false, true))
	assert.Equal(t, OrderStatusAwaitingConfirmation, CompletionStatus(false, false))
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	assert.True(t, OrderStatusCompleted.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.True(t, OrderStatusDeleted.IsTerminal())
	assert.True(t, OrderStatusMediatorArchived.IsTerminal())
	assert.False(t, OrderStatusInWork.IsTerminal())
	assert.False(t, OrderStatusAwaitingConfirmation.IsTerminal())
}

func TestMediatorStepStatus(t *testing.T) {
	for step, want := range map[int]OrderStatus{
		1: OrderStatusMediatorStep1,
		2: OrderStatusMediatorStep2,
		3: OrderStatusMediatorStep3,
	} {
		got, err := MediatorStepStatus(step)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := MediatorStepStatus(4)
	assert.Error(t, err)
}

func TestResponseStatus_ContactVisibility(t *testing.T) {
	assert.False(t, ResponseStatusSent.CustomerContactVisible())
	assert.False(t, ResponseStatusSent.ExecutorContactVisible())

	// Передача контакта заказчиком открывает контакты обеих сторон
	assert.True(t, ResponseStatusContactReceived.CustomerContactVisible())
	assert.True(t, ResponseStatusContactReceived.ExecutorContactVisible())

	assert.True(t, ResponseStatusTakenIntoWork.CustomerContactVisible())

	// Отклонённый отклик контактов не открывает
	assert.False(t, ResponseStatusRejected.CustomerContactVisible())
	assert.False(t, ResponseStatusRejected.ExecutorContactVisible())
}

func TestResponseStatus_Ordinal(t *testing.T) {
	assert.True(t, ResponseStatusContactReceived.Ordinal() < ResponseStatusOrderReceived.Ordinal())
	assert.True(t, ResponseStatusOrderReceived.Ordinal() < ResponseStatusTakenIntoWork.Ordinal())
	assert.True(t, ResponseStatusSent.IsValid())
	assert.False(t, ResponseStatus("draft").IsValid())
}
