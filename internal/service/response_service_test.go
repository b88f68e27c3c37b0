package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/uslugihub/backend/internal/models"
	"github.com/uslugihub/backend/internal/pkg/apperror"
	"github.com/uslugihub/backend/internal/repository"
)

type mockResponseRepo struct {
	mock.Mock
}

func (m *mockResponseRepo) Upsert(ctx context.Context, response *models.OrderResponse) error {
	args := m.Called(ctx, response)
	return args.Error(0)
}

func (m *mockResponseRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.OrderResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrderResponse), args.Error(1)
}

func (m *mockResponseRepo) GetByOrderAndExecutor(ctx context.Context, orderID, executorID uuid.UUID) (*models.OrderResponse, error) {
	args := m.Called(ctx, orderID, executorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrderResponse), args.Error(1)
}

func (m *mockResponseRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderResponse, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).([]models.OrderResponse), args.Error(1)
}

func (m *mockResponseRepo) ListByExecutor(ctx context.Context, executorID uuid.UUID) ([]models.OrderResponse, error) {
	args := m.Called(ctx, executorID)
	return args.Get(0).([]models.OrderResponse), args.Error(1)
}

func (m *mockResponseRepo) AdvanceStatus(ctx context.Context, id uuid.UUID, to models.ResponseStatus) (*models.OrderResponse, error) {
	args := m.Called(ctx, id, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrderResponse), args.Error(1)
}

func (m *mockResponseRepo) Reject(ctx context.Context, id uuid.UUID) (*models.OrderResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrderResponse), args.Error(1)
}

func (m *mockResponseRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockOrderLookup struct {
	mock.Mock
}

func (m *mockOrderLookup) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

type mockUserLookup struct {
	mock.Mock
}

func (m *mockUserLookup) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type mockQuotaChecker struct {
	mock.Mock
}

func (m *mockQuotaChecker) CanRespond(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockQuotaChecker) ConsumeResponse(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func newResponseServiceForTest() (*ResponseService, *mockResponseRepo, *mockOrderLookup, *mockUserLookup, *mockQuotaChecker, *mockNotifications) {
	repo := new(mockResponseRepo)
	orders := new(mockOrderLookup)
	users := new(mockUserLookup)
	quotas := new(mockQuotaChecker)
	notifications := new(mockNotifications)
	return NewResponseService(repo, orders, users, quotas, notifications), repo, orders, users, quotas, notifications
}

func TestResponseService_Respond_ConsumesQuotaOnce(t *testing.T) {
	svc, repo, orders, users, quotas, notifications := newResponseServiceForTest()
	ctx := context.Background()
	authorID := uuid.New()
	executorID := uuid.New()
	orderID := uuid.New()
	direction := "repair"

	orders.On("GetByID", ctx, orderID).Return(&models.Order{
		ID: orderID, AuthorID: authorID, Title: "Ремонт", WorkDirection: direction,
		Status: models.OrderStatusSearchExecutor,
	}, nil)
	users.On("GetByID", ctx, executorID).Return(&models.User{
		ID: executorID, Type: models.UserTypeExecutor, WorkDirection: &direction,
	}, nil)
	repo.On("GetByOrderAndExecutor", ctx, orderID, executorID).Return(nil, repository.ErrResponseNotFound)
	quotas.On("CanRespond", ctx, executorID).Return(nil)
	repo.On("Upsert", ctx, mock.Anything).Return(nil)
	quotas.On("ConsumeResponse", ctx, executorID).Return(nil)
	notifications.On("Notify", ctx, authorID, models.NotificationTypeNewResponse, mock.Anything, mock.Anything, mock.Anything).Return()

	response, err := svc.Respond(ctx, orderID, executorID, "Готов взяться за работу", nil)
	assert.NoError(t, err)
	assert.Equal(t, executorID, response.ExecutorID)
	quotas.AssertExpectations(t)
}

func TestResponseService_Respond_RepeatIsFree(t *testing.T) {
	svc, repo, orders, users, quotas, notifications := newResponseServiceForTest()
	ctx := context.Background()
	authorID := uuid.New()
	executorID := uuid.New()
	orderID := uuid.New()
	direction := "repair"

	orders.On("GetByID", ctx, orderID).Return(&models.Order{
		ID: orderID, AuthorID: authorID, WorkDirection: direction,
		Status: models.OrderStatusSelectingExecutor,
	}, nil)
	users.On("GetByID", ctx, executorID).Return(&models.User{
		ID: executorID, Type: models.UserTypeExecutor, WorkDirection: &direction,
	}, nil)
	repo.On("GetByOrderAndExecutor", ctx, orderID, executorID).Return(&models.OrderResponse{
		ID: uuid.New(), OrderID: orderID, ExecutorID: executorID, Status: models.ResponseStatusSent,
	}, nil)
	repo.On("Upsert", ctx, mock.Anything).Return(nil)
	notifications.On("Notify", ctx, authorID, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()

	_, err := svc.Respond(ctx, orderID, executorID, "Обновлённые условия", nil)
	assert.NoError(t, err)
	quotas.AssertNotCalled(t, "CanRespond", mock.Anything, mock.Anything)
	quotas.AssertNotCalled(t, "ConsumeResponse", mock.Anything, mock.Anything)
}

func TestResponseService_Respond_OwnOrder(t *testing.T) {
	svc, _, orders, _, _, _ := newResponseServiceForTest()
	ctx := context.Background()
	authorID := uuid.New()
	orderID := uuid.New()

	orders.On("GetByID", ctx, orderID).Return(&models.Order{
		ID: orderID, AuthorID: authorID, Status: models.OrderStatusSearchExecutor,
	}, nil)

	_, err := svc.Respond(ctx, orderID, authorID, "Сделаю сам", nil)
	assert.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
	assert.Contains(t, err.Error(), "собственный")
}

func TestResponseService_Respond_ClosedOrder(t *testing.T) {
	svc, _, orders, _, _, _ := newResponseServiceForTest()
	ctx := context.Background()
	orderID := uuid.New()

	orders.On("GetByID", ctx, orderID).Return(&models.Order{
		ID: orderID, AuthorID: uuid.New(), Status: models.OrderStatusInWork,
	}, nil)

	_, err := svc.Respond(ctx, orderID, uuid.New(), "Возьмусь", nil)
	assert.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
}

func TestResponseService_Respond_WrongWorkDirection(t *testing.T) {
	svc, _, orders, users, quotas, _ := newResponseServiceForTest()
	ctx := context.Background()
	executorID := uuid.New()
	orderID := uuid.New()
	direction := "plumbing"

	orders.On("GetByID", ctx, orderID).Return(&models.Order{
		ID: orderID, AuthorID: uuid.New(), WorkDirection: "repair",
		Status: models.OrderStatusSearchExecutor,
	}, nil)
	users.On("GetByID", ctx, executorID).Return(&models.User{
		ID: executorID, Type: models.UserTypeExecutor, WorkDirection: &direction,
	}, nil)

	_, err := svc.Respond(ctx, orderID, executorID, "Возьмусь за работу", nil)
	assert.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
	assert.Contains(t, err.Error(), "направление")
	quotas.AssertNotCalled(t, "CanRespond", mock.Anything, mock.Anything)
}

func TestResponseService_Respond_MediatorIgnoresDirection(t *testing.T) {
	svc, repo, orders, users, quotas, notifications := newResponseServiceForTest()
	ctx := context.Background()
	authorID := uuid.New()
	mediatorID := uuid.New()
	orderID := uuid.New()

	orders.On("GetByID", ctx, orderID).Return(&models.Order{
		ID: orderID, AuthorID: authorID, WorkDirection: "repair",
		Status: models.OrderStatusSearchExecutor,
	}, nil)
	users.On("GetByID", ctx, mediatorID).Return(&models.User{
		ID: mediatorID, Type: models.UserTypeMediator,
	}, nil)
	repo.On("GetByOrderAndExecutor", ctx, orderID, mediatorID).Return(nil, repository.ErrResponseNotFound)
	quotas.On("CanRespond", ctx, mediatorID).Return(nil)
	repo.On("Upsert", ctx, mock.Anything).Return(nil)
	quotas.On("ConsumeResponse", ctx, mediatorID).Return(nil)
	notifications.On("Notify", ctx, authorID, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()

	_, err := svc.Respond(ctx, orderID, mediatorID, "Помогу провести сделку", nil)
	assert.NoError(t, err)
}

func TestResponseService_ListForOrder_ExecutorSeesOnlyOwn(t *testing.T) {
	svc, repo, orders, _, _, _ := newResponseServiceForTest()
	ctx := context.Background()
	orderID := uuid.New()
	executorID := uuid.New()

	orders.On("GetByID", ctx, orderID).Return(&models.Order{ID: orderID, AuthorID: uuid.New()}, nil)
	repo.On("GetByOrderAndExecutor", ctx, orderID, executorID).Return(&models.OrderResponse{
		ID: uuid.New(), OrderID: orderID, ExecutorID: executorID,
	}, nil)

	list, err := svc.ListForOrder(ctx, orderID, executorID)
	assert.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, executorID, list[0].ExecutorID)
}

func TestResponseService_SendCustomerContact(t *testing.T) {
	svc, repo, orders, _, _, notifications := newResponseServiceForTest()
	ctx := context.Background()
	authorID := uuid.New()
	executorID := uuid.New()
	orderID := uuid.New()
	responseID := uuid.New()

	repo.On("GetByID", ctx, responseID).Return(&models.OrderResponse{
		ID: responseID, OrderID: orderID, ExecutorID: executorID, Status: models.ResponseStatusSent,
	}, nil)
	orders.On("GetByID", ctx, orderID).Return(&models.Order{ID: orderID, AuthorID: authorID, Title: "Ремонт"}, nil)
	repo.On("AdvanceStatus", ctx, responseID, models.ResponseStatusContactReceived).Return(&models.OrderResponse{
		ID: responseID, OrderID: orderID, ExecutorID: executorID, Status: models.ResponseStatusContactReceived,
	}, nil)
	notifications.On("Notify", ctx, executorID, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()

	updated, err := svc.SendCustomerContact(ctx, responseID, authorID)
	assert.NoError(t, err)
	assert.Equal(t, models.ResponseStatusContactReceived, updated.Status)

	// Не автор заказа
	_, err = svc.SendCustomerContact(ctx, responseID, executorID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestResponseService_TakeIntoWork_RequiresSelection(t *testing.T) {
	svc, repo, orders, _, _, _ := newResponseServiceForTest()
	ctx := context.Background()
	executorID := uuid.New()
	orderID := uuid.New()
	responseID := uuid.New()

	repo.On("GetByID", ctx, responseID).Return(&models.OrderResponse{
		ID: responseID, OrderID: orderID, ExecutorID: executorID, Status: models.ResponseStatusContactReceived,
	}, nil)
	orders.On("GetByID", ctx, orderID).Return(&models.Order{ID: orderID, AuthorID: uuid.New()}, nil)

	_, err := svc.TakeIntoWork(ctx, responseID, executorID)
	assert.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
}

func TestResponseService_Contacts_Visibility(t *testing.T) {
	svc, repo, orders, users, _, _ := newResponseServiceForTest()
	ctx := context.Background()
	authorID := uuid.New()
	executorID := uuid.New()
	orderID := uuid.New()
	responseID := uuid.New()

	repo.On("GetByID", ctx, responseID).Return(&models.OrderResponse{
		ID: responseID, OrderID: orderID, ExecutorID: executorID, Status: models.ResponseStatusSent,
	}, nil).Once()
	orders.On("GetByID", ctx, orderID).Return(&models.Order{ID: orderID, AuthorID: authorID}, nil)

	// До передачи контактов обе стороны получают отказ
	_, err := svc.Contacts(ctx, responseID, executorID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	phone := "+79990001122"
	repo.On("GetByID", ctx, responseID).Return(&models.OrderResponse{
		ID: responseID, OrderID: orderID, ExecutorID: executorID, Status: models.ResponseStatusContactReceived,
	}, nil)
	users.On("GetByID", ctx, authorID).Return(&models.User{ID: authorID, Name: "Анна", Phone: &phone}, nil)

	contact, err := svc.Contacts(ctx, responseID, executorID)
	assert.NoError(t, err)
	assert.Equal(t, "Анна", contact.Name)

	// Посторонний пользователь
	_, err = svc.Contacts(ctx, responseID, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestResponseService_Reject(t *testing.T) {
	svc, repo, orders, _, _, notifications := newResponseServiceForTest()
	ctx := context.Background()
	authorID := uuid.New()
	executorID := uuid.New()
	orderID := uuid.New()
	responseID := uuid.New()

	repo.On("GetByID", ctx, responseID).Return(&models.OrderResponse{
		ID: responseID, OrderID: orderID, ExecutorID: executorID, Status: models.ResponseStatusTakenIntoWork,
	}, nil)
	orders.On("GetByID", ctx, orderID).Return(&models.Order{
		ID: orderID, AuthorID: authorID, Status: models.OrderStatusInWork,
	}, nil)
	// Отклонение и возврат заказа к выбору проходят одним вызовом хранилища
	repo.On("Reject", ctx, responseID).Return(&models.OrderResponse{
		ID: responseID, OrderID: orderID, ExecutorID: executorID, Status: models.ResponseStatusRejected,
	}, nil)
	notifications.On("Notify", ctx, executorID, models.NotificationTypeOrderRejected, mock.Anything, mock.Anything, mock.Anything).Return()

	updated, err := svc.Reject(ctx, responseID, authorID)
	assert.NoError(t, err)
	assert.Equal(t, models.ResponseStatusRejected, updated.Status)
	repo.AssertExpectations(t)
}

func TestResponseService_Reject_NotAuthor(t *testing.T) {
	svc, repo, orders, _, _, _ := newResponseServiceForTest()
	ctx := context.Background()
	executorID := uuid.New()
	orderID := uuid.New()
	responseID := uuid.New()

	repo.On("GetByID", ctx, responseID).Return(&models.OrderResponse{
		ID: responseID, OrderID: orderID, ExecutorID: executorID, Status: models.ResponseStatusSent,
	}, nil)
	orders.On("GetByID", ctx, orderID).Return(&models.Order{
		ID: orderID, AuthorID: uuid.New(), Status: models.OrderStatusSearchExecutor,
	}, nil)

	_, err := svc.Reject(ctx, responseID, executorID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	repo.AssertNotCalled(t, "Reject", mock.Anything, mock.Anything)
}

func TestResponseService_Withdraw(t *testing.T) {
	svc, repo, _, _, _, _ := newResponseServiceForTest()
	ctx := context.Background()
	executorID := uuid.New()
	responseID := uuid.New()

	repo.On("GetByID", ctx, responseID).Return(&models.OrderResponse{
		ID: responseID, ExecutorID: executorID, Status: models.ResponseStatusSent,
	}, nil)
	repo.On("Delete", ctx, responseID).Return(nil).Once()

	assert.NoError(t, svc.Withdraw(ctx, responseID, executorID))

	// Отклик по заказу в работе хранилище отзывать не даёт
	repo.On("Delete", ctx, responseID).Return(repository.ErrInvalidTransition)
	err := svc.Withdraw(ctx, responseID, executorID)
	assert.Error(t, err)
	assert.True(t, apperror.IsConflict(err))

	// Чужой отклик
	err = svc.Withdraw(ctx, responseID, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}
