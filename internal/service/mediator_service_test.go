package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/uslugihub/backend/internal/models"
	"github.com/uslugihub/backend/internal/pkg/apperror"
	"github.com/uslugihub/backend/internal/repository"
)

type mockMediatorRepo struct {
	mock.Mock
}

func (m *mockMediatorRepo) TakeOrder(ctx context.Context, orderID, mediatorID uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, orderID, mediatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockMediatorRepo) MoveToNextStep(ctx context.Context, orderID, mediatorID uuid.UUID, stepData json.RawMessage, comment *string, update *models.Order) (*models.Order, error) {
	args := m.Called(ctx, orderID, mediatorID, stepData, comment, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockMediatorRepo) Archive(ctx context.Context, orderID, mediatorID uuid.UUID, stepData json.RawMessage, comment *string) (*models.Order, error) {
	args := m.Called(ctx, orderID, mediatorID, stepData, comment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockMediatorRepo) ReturnToApp(ctx context.Context, orderID, mediatorID uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, orderID, mediatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *mockMediatorRepo) ListSteps(ctx context.Context, orderID uuid.UUID) ([]models.MediatorOrderStep, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).([]models.MediatorOrderStep), args.Error(1)
}

func (m *mockMediatorRepo) ListByMediator(ctx context.Context, mediatorID uuid.UUID, archived bool) ([]models.Order, error) {
	args := m.Called(ctx, mediatorID, archived)
	return args.Get(0).([]models.Order), args.Error(1)
}

type mockCommissionLedger struct {
	mock.Mock
}

func (m *mockCommissionLedger) CreatePendingCommission(ctx context.Context, orderID, mediatorID uuid.UUID, amount int64) (*models.WalletTransaction, error) {
	args := m.Called(ctx, orderID, mediatorID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WalletTransaction), args.Error(1)
}

func (m *mockCommissionLedger) CancelPendingCommission(ctx context.Context, orderID, mediatorID uuid.UUID) error {
	args := m.Called(ctx, orderID, mediatorID)
	return args.Error(0)
}

type mockOrderGetter struct {
	mock.Mock
}

func (m *mockOrderGetter) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func newMediatorServiceForTest() (*MediatorService, *mockMediatorRepo, *mockOrderGetter, *mockUserLookup, *mockCommissionLedger, *mockNotifications) {
	repo := new(mockMediatorRepo)
	orders := new(mockOrderGetter)
	users := new(mockUserLookup)
	ledger := new(mockCommissionLedger)
	notifications := new(mockNotifications)
	return NewMediatorService(repo, orders, users, ledger, notifications), repo, orders, users, ledger, notifications
}

func int64Ptr(v int64) *int64 { return &v }

func TestCalculateCommission(t *testing.T) {
	budget := int64(1000000)

	// Фиксированная сумма важнее процента и себестоимости
	got := CalculateCommission(budget, EstimateInput{
		Commission:        int64Ptr(150000),
		CommissionPercent: int64Ptr(20),
		ExecutorCost:      int64Ptr(700000),
	})
	assert.Equal(t, int64(150000), got)

	// Процент от бюджета
	got = CalculateCommission(budget, EstimateInput{CommissionPercent: int64Ptr(20)})
	assert.Equal(t, int64(200000), got)

	// Маржа между бюджетом и себестоимостью
	got = CalculateCommission(budget, EstimateInput{ExecutorCost: int64Ptr(700000)})
	assert.Equal(t, int64(300000), got)

	// Себестоимость выше бюджета маржи не даёт
	got = CalculateCommission(budget, EstimateInput{ExecutorCost: int64Ptr(1200000)})
	assert.Equal(t, int64(100000), got)

	// Без сметы действует процент по умолчанию
	got = CalculateCommission(budget, EstimateInput{})
	assert.Equal(t, int64(100000), got)
}

func TestMediatorService_TakeOrder(t *testing.T) {
	svc, repo, _, users, _, notifications := newMediatorServiceForTest()
	ctx := context.Background()
	mediatorID := uuid.New()
	authorID := uuid.New()
	orderID := uuid.New()

	users.On("GetByID", ctx, mediatorID).Return(&models.User{ID: mediatorID, Type: models.UserTypeMediator}, nil)
	repo.On("TakeOrder", ctx, orderID, mediatorID).Return(&models.Order{
		ID: orderID, AuthorID: authorID, MediatorID: &mediatorID, Status: models.OrderStatusMediatorStep1, MediatorStep: models.MediatorStepDetails,
	}, nil)
	notifications.On("Notify", ctx, authorID, models.NotificationTypeMediatorUpdate, mock.Anything, mock.Anything, mock.Anything).Return()

	order, err := svc.TakeOrder(ctx, orderID, mediatorID)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusMediatorStep1, order.Status)
	notifications.AssertExpectations(t)
}

func TestMediatorService_TakeOrder_NotMediator(t *testing.T) {
	svc, _, _, users, _, _ := newMediatorServiceForTest()
	ctx := context.Background()
	userID := uuid.New()

	users.On("GetByID", ctx, userID).Return(&models.User{ID: userID, Type: models.UserTypeExecutor}, nil)

	_, err := svc.TakeOrder(ctx, uuid.New(), userID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestMediatorService_TakeOrder_AlreadyTaken(t *testing.T) {
	svc, repo, _, users, _, _ := newMediatorServiceForTest()
	ctx := context.Background()
	mediatorID := uuid.New()
	orderID := uuid.New()

	users.On("GetByID", ctx, mediatorID).Return(&models.User{ID: mediatorID, Type: models.UserTypeMediator}, nil)
	repo.On("TakeOrder", ctx, orderID, mediatorID).Return(nil, repository.ErrMediatorAlreadySet)

	_, err := svc.TakeOrder(ctx, orderID, mediatorID)
	assert.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
}

func TestMediatorService_NextStep_CreatesPendingCommission(t *testing.T) {
	svc, repo, orders, _, ledger, notifications := newMediatorServiceForTest()
	ctx := context.Background()
	mediatorID := uuid.New()
	authorID := uuid.New()
	orderID := uuid.New()
	stepData := json.RawMessage(`{"estimate":"согласована"}`)

	orders.On("GetByID", ctx, orderID).Return(&models.Order{
		ID: orderID, AuthorID: authorID, MediatorID: &mediatorID, MaxAmount: 1000000, MediatorStep: models.MediatorStepExecutor,
	}, nil)
	repo.On("MoveToNextStep", ctx, orderID, mediatorID, stepData, mock.Anything, mock.Anything).Return(&models.Order{
		ID: orderID, AuthorID: authorID, MediatorID: &mediatorID, MaxAmount: 1000000,
		MediatorStep: models.MediatorStepExecution, MediatorCommission: 200000,
	}, nil)
	ledger.On("CreatePendingCommission", ctx, orderID, mediatorID, int64(200000)).Return(&models.WalletTransaction{
		ID: uuid.New(), Status: models.TransactionStatusPending,
	}, nil)
	notifications.On("Notify", ctx, authorID, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()

	order, err := svc.NextStep(ctx, orderID, mediatorID, stepData, nil, EstimateInput{CommissionPercent: int64Ptr(20)})
	assert.NoError(t, err)
	assert.Equal(t, models.MediatorStepExecution, order.MediatorStep)
	ledger.AssertExpectations(t)
}

func TestMediatorService_NextStep_EarlyStepNoCommission(t *testing.T) {
	svc, repo, orders, _, ledger, notifications := newMediatorServiceForTest()
	ctx := context.Background()
	mediatorID := uuid.New()
	authorID := uuid.New()
	orderID := uuid.New()

	orders.On("GetByID", ctx, orderID).Return(&models.Order{
		ID: orderID, AuthorID: authorID, MediatorID: &mediatorID, MaxAmount: 1000000, MediatorStep: models.MediatorStepDetails,
	}, nil)
	repo.On("MoveToNextStep", ctx, orderID, mediatorID, mock.Anything, mock.Anything, mock.Anything).Return(&models.Order{
		ID: orderID, AuthorID: authorID, MediatorID: &mediatorID, MediatorStep: models.MediatorStepExecutor,
	}, nil)
	notifications.On("Notify", ctx, authorID, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()

	_, err := svc.NextStep(ctx, orderID, mediatorID, nil, nil, EstimateInput{})
	assert.NoError(t, err)
	ledger.AssertNotCalled(t, "CreatePendingCommission", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMediatorService_NextStep_PassesComment(t *testing.T) {
	svc, repo, orders, _, _, notifications := newMediatorServiceForTest()
	ctx := context.Background()
	mediatorID := uuid.New()
	authorID := uuid.New()
	orderID := uuid.New()
	comment := "исполнитель согласован, переходим к деталям"

	orders.On("GetByID", ctx, orderID).Return(&models.Order{
		ID: orderID, AuthorID: authorID, MediatorID: &mediatorID, MaxAmount: 1000000, MediatorStep: models.MediatorStepDetails,
	}, nil)
	// Комментарий к закрываемому шагу доходит до хранилища вместе с данными
	repo.On("MoveToNextStep", ctx, orderID, mediatorID, mock.Anything, &comment, mock.Anything).Return(&models.Order{
		ID: orderID, AuthorID: authorID, MediatorID: &mediatorID, MediatorStep: models.MediatorStepExecutor,
	}, nil)
	notifications.On("Notify", ctx, authorID, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()

	_, err := svc.NextStep(ctx, orderID, mediatorID, nil, &comment, EstimateInput{})
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestMediatorService_NextStep_Foreign(t *testing.T) {
	svc, _, orders, _, _, _ := newMediatorServiceForTest()
	ctx := context.Background()
	orderID := uuid.New()
	other := uuid.New()

	orders.On("GetByID", ctx, orderID).Return(&models.Order{ID: orderID, MediatorID: &other}, nil)

	_, err := svc.NextStep(ctx, orderID, uuid.New(), nil, nil, EstimateInput{})
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestMediatorService_Archive_CancelsCommission(t *testing.T) {
	svc, repo, orders, _, ledger, _ := newMediatorServiceForTest()
	ctx := context.Background()
	mediatorID := uuid.New()
	orderID := uuid.New()

	orders.On("GetByID", ctx, orderID).Return(&models.Order{
		ID: orderID, MediatorID: &mediatorID, MediatorStep: models.MediatorStepExecution,
	}, nil)
	repo.On("Archive", ctx, orderID, mediatorID, mock.Anything, mock.Anything).Return(&models.Order{
		ID: orderID, MediatorID: &mediatorID, Status: models.OrderStatusMediatorArchived,
	}, nil)
	// Отложенная комиссия отменяется: архивирование ничего не зачисляет
	ledger.On("CancelPendingCommission", ctx, orderID, mediatorID).Return(nil)

	order, err := svc.Archive(ctx, orderID, mediatorID, nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusMediatorArchived, order.Status)
	ledger.AssertExpectations(t)
}

func TestMediatorService_Archive_NoPendingCommission(t *testing.T) {
	svc, repo, orders, _, ledger, _ := newMediatorServiceForTest()
	ctx := context.Background()
	mediatorID := uuid.New()
	orderID := uuid.New()

	orders.On("GetByID", ctx, orderID).Return(&models.Order{ID: orderID, MediatorID: &mediatorID}, nil)
	repo.On("Archive", ctx, orderID, mediatorID, mock.Anything, mock.Anything).Return(&models.Order{
		ID: orderID, MediatorID: &mediatorID, Status: models.OrderStatusMediatorArchived,
	}, nil)
	ledger.On("CancelPendingCommission", ctx, orderID, mediatorID).Return(repository.ErrTransactionNotFound)

	_, err := svc.Archive(ctx, orderID, mediatorID, nil, nil)
	assert.NoError(t, err)
}

func TestMediatorService_ReturnToApp_CancelsCommission(t *testing.T) {
	svc, repo, orders, _, ledger, notifications := newMediatorServiceForTest()
	ctx := context.Background()
	mediatorID := uuid.New()
	authorID := uuid.New()
	orderID := uuid.New()

	orders.On("GetByID", ctx, orderID).Return(&models.Order{
		ID: orderID, AuthorID: authorID, MediatorID: &mediatorID, MediatorStep: models.MediatorStepExecution,
	}, nil)
	repo.On("ReturnToApp", ctx, orderID, mediatorID).Return(&models.Order{
		ID: orderID, AuthorID: authorID, Status: models.OrderStatusSearchExecutor,
	}, nil)
	ledger.On("CancelPendingCommission", ctx, orderID, mediatorID).Return(nil)
	notifications.On("Notify", ctx, authorID, models.NotificationTypeMediatorUpdate, mock.Anything, mock.Anything, mock.Anything).Return()

	order, err := svc.ReturnToApp(ctx, orderID, mediatorID)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusSearchExecutor, order.Status)
	ledger.AssertExpectations(t)
}

func TestMediatorService_Steps_Access(t *testing.T) {
	svc, repo, orders, _, _, _ := newMediatorServiceForTest()
	ctx := context.Background()
	mediatorID := uuid.New()
	authorID := uuid.New()
	orderID := uuid.New()

	orders.On("GetByID", ctx, orderID).Return(&models.Order{
		ID: orderID, AuthorID: authorID, MediatorID: &mediatorID,
	}, nil)
	repo.On("ListSteps", ctx, orderID).Return([]models.MediatorOrderStep{
		{OrderID: orderID, Step: models.MediatorStepDetails},
	}, nil)

	steps, err := svc.Steps(ctx, orderID, authorID)
	assert.NoError(t, err)
	assert.Len(t, steps, 1)

	_, err = svc.Steps(ctx, orderID, mediatorID)
	assert.NoError(t, err)

	_, err = svc.Steps(ctx, orderID, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}
