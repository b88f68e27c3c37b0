package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderResponse — отклик исполнителя или посредника на заказ.
// Уникальность по (order_id, executor_id): повторная отправка обновляет
// существующий отклик (upsert).
type OrderResponse struct {
	ID         uuid.UUID      `db:"id" json:"id"`
	OrderID    uuid.UUID      `db:"order_id" json:"order_id"`
	ExecutorID uuid.UUID      `db:"executor_id" json:"executor_id"`
	Message    string         `db:"message" json:"message"`
	Price      *int64         `db:"price" json:"price,omitempty"`
	Status     ResponseStatus `db:"status" json:"status"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// Selected сообщает, что этот отклик выбран заказчиком.
func (r *OrderResponse) Selected() bool {
	return r.Status == ResponseStatusOrderReceived || r.Status == ResponseStatusTakenIntoWork
}
