package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Order описывает заказ на услугу.
// Money-поля хранятся в копейках; конвертация в рубли выполняется
// только на границе API.
type Order struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	AuthorID      uuid.UUID  `db:"author_id" json:"author_id"`
	ExecutorID    *uuid.UUID `db:"executor_id" json:"executor_id,omitempty"`
	MediatorID    *uuid.UUID `db:"mediator_id" json:"mediator_id,omitempty"`
	Title         string     `db:"title" json:"title"`
	Description   string     `db:"description" json:"description"`
	WorkDirection string     `db:"work_direction" json:"work_direction"`

	Status OrderStatus `db:"status" json:"status"`

	MaxAmount    int64        `db:"max_amount" json:"max_amount"`
	PaymentHeld  int64        `db:"payment_held" json:"payment_held"`
	EscrowStatus EscrowStatus `db:"escrow_status" json:"escrow_status"`

	CompletedByExecutor bool       `db:"completed_by_executor" json:"completed_by_executor"`
	CompletedByCustomer bool       `db:"completed_by_customer" json:"completed_by_customer"`
	ExecutorCompletedAt *time.Time `db:"executor_completed_at" json:"executor_completed_at,omitempty"`
	CustomerCompletedAt *time.Time `db:"customer_completed_at" json:"customer_completed_at,omitempty"`

	ExecutorArchived bool `db:"executor_archived" json:"executor_archived"`
	CustomerArchived bool `db:"customer_archived" json:"customer_archived"`

	MediatorCommission int64      `db:"mediator_commission" json:"mediator_commission"`
	MediatorStep       int        `db:"mediator_step" json:"mediator_step"`
	MediatorMargin     int64      `db:"mediator_margin" json:"mediator_margin"`
	ExecutorCost       int64      `db:"executor_cost" json:"executor_cost"`
	ProjectDeadline    *time.Time `db:"project_deadline" json:"project_deadline,omitempty"`
	MediatorNotes      *string    `db:"mediator_notes" json:"mediator_notes,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Attachments []OrderAttachment `json:"attachments,omitempty"`
}

// OrderAttachment описывает файл, прикреплённый к заказу.
type OrderAttachment struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	OrderID   uuid.UUID  `db:"order_id" json:"order_id"`
	MediaID   uuid.UUID  `db:"media_id" json:"media_id"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	Media     *MediaFile `json:"media,omitempty"`
}

// MediatorOrderStep — шаг рабочего процесса посредника.
// Строки append-only: переход вперёд создаёт новую строку, не перезаписывая предыдущую.
type MediatorOrderStep struct {
	ID          uuid.UUID         `db:"id" json:"id"`
	OrderID     uuid.UUID         `db:"order_id" json:"order_id"`
	MediatorID  uuid.UUID         `db:"mediator_id" json:"mediator_id"`
	Step        int               `db:"step" json:"step"`
	Status      MediatorStepState `db:"status" json:"status"`
	StepData    json.RawMessage   `db:"step_data" json:"step_data,omitempty"`
	Comment     *string           `db:"comment" json:"comment,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	CompletedAt *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
}

// Номера шагов посредника.
const (
	MediatorStepDetails   = 1
	MediatorStepExecutor  = 2
	MediatorStepExecution = 3
	MediatorMaxStep       = 3
)
