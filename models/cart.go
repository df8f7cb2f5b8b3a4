package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Cart is a user's mutable, pre-purchase selection. A user has at most one
// active cart at a time (partial unique index); deactivated carts are kept
// as history and never mutated again.
type Cart struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    *uuid.UUID `gorm:"type:uuid;index;uniqueIndex:uniq_active_cart_per_user,where:is_active = true" json:"user_id"`
	IsActive  bool       `gorm:"default:true" json:"is_active"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c *Cart) OwnerID() *uuid.UUID { return c.UserID }

// CartItem holds one product in a cart. PriceSnapshot captures the product
// price at add/update time; order totals use it in preference to the live
// catalog price.
type CartItem struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	CartID        uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:uniq_cart_product" json:"cart_id"`
	ProductID     uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex:uniq_cart_product;index" json:"product_id"`
	Product       Product             `gorm:"foreignKey:ProductID" json:"product"`
	Quantity      int                 `gorm:"not null;default:1;check:quantity >= 1" json:"quantity"`
	PriceSnapshot decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"price_snapshot"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func (i *CartItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// UnitPrice is the snapshot price when present, falling back to the
// current product price. Product must be loaded for the fallback.
func (i *CartItem) UnitPrice() decimal.Decimal {
	if i.PriceSnapshot.Valid {
		return i.PriceSnapshot.Decimal
	}
	return i.Product.Price
}
