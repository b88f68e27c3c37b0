package models

import (
	"time"

	"github.com/google/uuid"
)

// Типы пользователей платформы.
const (
	UserTypeCustomer = "customer"
	UserTypeExecutor = "executor"
	UserTypeMediator = "mediator"
)

// ValidUserTypes — список валидных типов пользователей.
var ValidUserTypes = map[string]struct{}{
	UserTypeCustomer: {},
	UserTypeExecutor: {},
	UserTypeMediator: {},
}

// User описывает пользователя платформы.
// WalletBalance хранится в копейках и мутируется только через журнал
// транзакций кошелька.
type User struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	Email           string     `db:"email" json:"email"`
	Name            string     `db:"name" json:"name"`
	PasswordHash    string     `db:"password_hash" json:"-"`
	Type            string     `db:"user_type" json:"user_type"`
	WalletBalance   int64      `db:"wallet_balance" json:"wallet_balance"`
	UsedOrdersCount int        `db:"used_orders_count" json:"used_orders_count"`
	Rating          float64    `db:"rating" json:"rating"`
	ReviewsCount    int        `db:"reviews_count" json:"reviews_count"`
	WorkDirection   *string    `db:"work_direction" json:"work_direction,omitempty"`
	Phone           *string    `db:"phone" json:"phone,omitempty"`
	Telegram        *string    `db:"telegram" json:"telegram,omitempty"`
	IsActive        bool       `db:"is_active" json:"is_active"`
	LastLoginAt     *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Contact — контактные данные стороны сделки; выдаются только когда
// статус отклика открывает их видимость.
type Contact struct {
	Name     string  `json:"name"`
	Phone    *string `json:"phone,omitempty"`
	Telegram *string `json:"telegram,omitempty"`
}

// ContactOf собирает контактные данные пользователя.
func ContactOf(u *User) Contact {
	return Contact{Name: u.Name, Phone: u.Phone, Telegram: u.Telegram}
}

// Session представляет сохранённую сессию пользователя.
type Session struct {
	ID           uuid.UUID `db:"id" json:"id"`
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	RefreshToken string    `db:"refresh_token" json:"refresh_token"`
	UserAgent    *string   `db:"user_agent" json:"user_agent,omitempty"`
	IPAddress    *string   `db:"ip_address" json:"ip_address,omitempty"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
