package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/uslugihub/backend/internal/models"
)

type mockNotificationRepo struct {
	mock.Mock
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *mockNotificationRepo) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockNotificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type mockBroadcaster struct {
	mock.Mock
}

func (m *mockBroadcaster) BroadcastToUser(userID uuid.UUID, event string, data any) error {
	args := m.Called(userID, event, data)
	return args.Error(0)
}

func TestNotificationService_Notify(t *testing.T) {
	repo := new(mockNotificationRepo)
	hub := new(mockBroadcaster)
	svc := NewNotificationService(repo, hub)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("Create", ctx, mock.MatchedBy(func(n *models.Notification) bool {
		return n.UserID == userID && n.Type == models.NotificationTypeNewResponse && len(n.Payload) > 0
	})).Return(nil)
	hub.On("BroadcastToUser", userID, models.NotificationTypeNewResponse, mock.Anything).Return(nil)

	svc.Notify(ctx, userID, models.NotificationTypeNewResponse, "Новый отклик", "Текст", map[string]string{"k": "v"})
	repo.AssertExpectations(t)
	hub.AssertExpectations(t)
}

func TestNotificationService_Notify_SkipsBroadcastOnSaveError(t *testing.T) {
	repo := new(mockNotificationRepo)
	hub := new(mockBroadcaster)
	svc := NewNotificationService(repo, hub)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("Create", ctx, mock.Anything).Return(errors.New("db down"))

	svc.Notify(ctx, userID, models.NotificationTypeNewReview, "Отзыв", "Текст", nil)
	hub.AssertNotCalled(t, "BroadcastToUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestNotificationService_Notify_BroadcastErrorIsNonFatal(t *testing.T) {
	repo := new(mockNotificationRepo)
	hub := new(mockBroadcaster)
	svc := NewNotificationService(repo, hub)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("Create", ctx, mock.Anything).Return(nil)
	hub.On("BroadcastToUser", userID, mock.Anything, mock.Anything).Return(errors.New("нет подключений"))

	svc.Notify(ctx, userID, models.NotificationTypeOrderCompleted, "Заказ завершён", "Текст", nil)
	repo.AssertExpectations(t)
}

func TestNotificationService_List_ClampsLimit(t *testing.T) {
	repo := new(mockNotificationRepo)
	svc := NewNotificationService(repo, nil)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("ListByUser", ctx, userID, 50, 0).Return([]models.Notification{}, nil)

	_, err := svc.List(ctx, userID, -5, -1)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}
