package models

import (
	"time"

	"github.com/google/uuid"
)

// Тарифные планы подписки.
const (
	SubscriptionPlanStart    = "start"
	SubscriptionPlanStandard = "standard"
	SubscriptionPlanPro      = "pro"
)

// SubscriptionPlanQuota описывает квоты и цену тарифа.
type SubscriptionPlanQuota struct {
	Responses int
	Orders    int
	Price     int64 // копейки
	Period    time.Duration
}

// SubscriptionPlans — доступные тарифы.
var SubscriptionPlans = map[string]SubscriptionPlanQuota{
	SubscriptionPlanStart:    {Responses: 10, Orders: 3, Price: 49900, Period: 30 * 24 * time.Hour},
	SubscriptionPlanStandard: {Responses: 50, Orders: 15, Price: 149900, Period: 30 * 24 * time.Hour},
	SubscriptionPlanPro:      {Responses: 200, Orders: 100, Price: 399900, Period: 30 * 24 * time.Hour},
}

// Subscription — активная подписка исполнителя или посредника.
type Subscription struct {
	ID            uuid.UUID `db:"id" json:"id"`
	UserID        uuid.UUID `db:"user_id" json:"user_id"`
	Plan          string    `db:"plan" json:"plan"`
	ResponsesLeft int       `db:"responses_left" json:"responses_left"`
	OrdersLeft    int       `db:"orders_left" json:"orders_left"`
	ExpiresAt     time.Time `db:"expires_at" json:"expires_at"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Expired сообщает, что срок подписки истёк.
func (s *Subscription) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
