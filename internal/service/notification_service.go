package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/uslugihub/backend/internal/logger"
	"github.com/uslugihub/backend/internal/models"
)

// NotificationRepositoryIface описывает хранилище уведомлений.
type NotificationRepositoryIface interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// Broadcaster доставляет событие подключённым клиентам пользователя.
type Broadcaster interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// NotificationService сохраняет уведомления и рассылает их по WebSocket.
// Доставка best-effort: ошибка рассылки логируется и не прерывает
// вызывающую операцию.
type NotificationService struct {
	repo NotificationRepositoryIface
	hub  Broadcaster
}

// NewNotificationService создаёт сервис уведомлений.
func NewNotificationService(repo NotificationRepositoryIface, hub Broadcaster) *NotificationService {
	return &NotificationService{repo: repo, hub: hub}
}

// Notify сохраняет уведомление и пытается доставить его онлайн-клиентам.
func (s *NotificationService) Notify(ctx context.Context, userID uuid.UUID, nType, title, message string, data any) {
	var payload json.RawMessage
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			logger.Log.WithError(err).Warn("notification service: не удалось сериализовать payload")
		} else {
			payload = raw
		}
	}

	n := &models.Notification{
		UserID:  userID,
		Type:    nType,
		Title:   title,
		Message: message,
		Payload: payload,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Error("notification service: не удалось сохранить уведомление")
		return
	}

	if s.hub != nil {
		if err := s.hub.BroadcastToUser(userID, nType, n); err != nil {
			logger.Log.WithError(err).WithField("user_id", userID).Warn("notification service: не удалось доставить уведомление")
		}
	}
}

// List возвращает уведомления пользователя.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// MarkRead помечает уведомление прочитанным.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.MarkRead(ctx, id, userID)
}

// MarkAllRead помечает все уведомления пользователя прочитанными.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, userID)
}

// UnreadCount возвращает число непрочитанных уведомлений.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}
