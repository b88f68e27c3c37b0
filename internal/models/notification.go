package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Notification хранит уведомление для in-app ленты.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Type      string          `db:"type" json:"type"`
	Title     string          `db:"title" json:"title"`
	Message   string          `db:"message" json:"message"`
	Payload   json.RawMessage `db:"payload" json:"payload,omitempty"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Типы уведомлений.
const (
	NotificationTypeNewResponse      = "new_response"
	NotificationTypeExecutorSelected = "executor_selected"
	NotificationTypeOrderCompleted   = "order_completed"
	NotificationTypeOrderRejected    = "order_rejected"
	NotificationTypeExecutorRefused  = "executor_refused"
	NotificationTypePaymentReceived  = "payment_received"
	NotificationTypeMediatorUpdate   = "mediator_update"
	NotificationTypeNewReview        = "new_review"
)
