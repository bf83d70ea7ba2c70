package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductStatus controls catalog visibility. Deleted products are kept for order history.
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
	ProductStatusDeleted  ProductStatus = "deleted"
)

// Boost is a paid promotion window that marks a product as featured.
type Boost struct {
	Active    bool       `json:"active" gorm:"not null;default:false;index"`
	Package   string     `json:"package,omitempty" gorm:"type:varchar(50)"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty" gorm:"index"`
	// PaymentID is the gateway intent that paid for the current window.
	PaymentID string `json:"-" gorm:"type:varchar(255);not null;default:''"`
}

// Product represents a product listed by a seller.
type Product struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	SellerID    string          `json:"seller_id" gorm:"type:varchar(36);index"`
	Name        string          `json:"name" gorm:"type:varchar(100);not null" validate:"required,min=3,max=100"`
	Description string          `json:"description" gorm:"type:text" validate:"omitempty,max=500"`
	Price       decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	Stock       int             `json:"stock" gorm:"not null;default:0" validate:"gte=0"`
	Status      ProductStatus   `json:"status" gorm:"type:varchar(20);not null;default:active;index"`
	IsFeatured  bool            `json:"is_featured" gorm:"not null;default:false"`
	Boost       Boost           `json:"boost" gorm:"embedded;embeddedPrefix:boost_"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Purchasable reports whether the product can be sold in the requested quantity.
func (p Product) Purchasable(quantity int) bool {
	return p.Status == ProductStatusActive && p.Stock >= quantity
}
