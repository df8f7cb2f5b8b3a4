package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentMethod string

// PaymentState is the state of an individual payment attempt, distinct
// from the order-level PaymentStatus it drives.
type PaymentState string

const (
	PaymentMethodCard         PaymentMethod = "credit_card"
	PaymentMethodPaypal       PaymentMethod = "paypal"
	PaymentMethodMpesa        PaymentMethod = "mpesa"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"

	PaymentStatePending   PaymentState = "pending"
	PaymentStateSucceeded PaymentState = "succeeded"
	PaymentStateFailed    PaymentState = "failed"
	PaymentStateRefunded  PaymentState = "refunded"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(strings.ToLower(s)) {
	case PaymentMethodCard, PaymentMethodPaypal, PaymentMethodMpesa, PaymentMethodBankTransfer:
		return PaymentMethod(strings.ToLower(s)), nil
	default:
		return "", fmt.Errorf("invalid payment method %q", s)
	}
}

// Payment records one settlement attempt against an order. TransactionID
// is globally unique and acts as the idempotency guard against
// double-submission. Attempts are kept per row; the order's PaymentStatus
// is the guard against paying a closed order twice, and the partial
// unique index on OrderID makes a second succeeded payment impossible at
// the store level.
type Payment struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID       uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:uniq_settled_payment_per_order,where:status = 'succeeded'" json:"order_id"`
	Order         Order           `gorm:"foreignKey:OrderID" json:"-"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency      string          `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	Method        PaymentMethod   `gorm:"type:varchar(50);not null" json:"method"`
	TransactionID string          `gorm:"uniqueIndex;not null" json:"transaction_id"`
	Status        PaymentState    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// OwnerID requires Order to be loaded.
func (p *Payment) OwnerID() *uuid.UUID { return p.Order.UserID }

// All lists every persistent entity for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Address{},
		&Product{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&Payment{},
	}
}
