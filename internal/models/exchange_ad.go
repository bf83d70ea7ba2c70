package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeCondition grades a second-hand item.
type ExchangeCondition string

const (
	ConditionNew     ExchangeCondition = "new"
	ConditionLikeNew ExchangeCondition = "like-new"
	ConditionGood    ExchangeCondition = "good"
	ConditionFair    ExchangeCondition = "fair"
	ConditionPoor    ExchangeCondition = "poor"
	ConditionUsed    ExchangeCondition = "used"
)

// ExchangeType says whether the lister wants money, a swap, or either.
type ExchangeType string

const (
	ExchangeOutright ExchangeType = "outright"
	ExchangeSwap     ExchangeType = "swap"
	ExchangeBoth     ExchangeType = "both"
)

type ExchangeAdStatus string

const (
	ExchangeAdActive   ExchangeAdStatus = "active"
	ExchangeAdSold     ExchangeAdStatus = "sold"
	ExchangeAdInactive ExchangeAdStatus = "inactive"
)

// ExchangeAd is a user's listing of a used item for sale or swap. It has no
// stock and never goes through checkout.
type ExchangeAd struct {
	ID           string            `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID       string            `json:"user_id" gorm:"type:varchar(36);not null;index"`
	Name         string            `json:"name" gorm:"type:varchar(100);not null"`
	Brand        string            `json:"brand" gorm:"type:varchar(100)"`
	Description  string            `json:"description" gorm:"type:text"`
	Condition    ExchangeCondition `json:"condition" gorm:"type:varchar(20);not null;default:used"`
	Price        decimal.Decimal   `json:"price" gorm:"type:numeric(12,2);not null"`
	Location     string            `json:"location,omitempty" gorm:"type:varchar(200)"`
	Category     string            `json:"category,omitempty" gorm:"type:varchar(100);index"`
	ExchangeType ExchangeType      `json:"exchange_type" gorm:"type:varchar(20);not null;default:outright"`
	DesiredItems []string          `json:"desired_items" gorm:"serializer:json;type:text"`
	Negotiable   bool              `json:"negotiable" gorm:"not null;default:false"`
	Status       ExchangeAdStatus  `json:"status" gorm:"type:varchar(20);not null;default:active;index"`
	Views        int               `json:"views" gorm:"not null;default:0"`
	Favorites    int               `json:"favorites" gorm:"not null;default:0"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
