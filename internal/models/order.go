package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCanceled   OrderStatus = "canceled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// PaymentStatus is the money state of an order, independent of fulfilment.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodCreditCard     PaymentMethod = "credit_card"
	PaymentMethodPayPal         PaymentMethod = "paypal"
	PaymentMethodBankTransfer   PaymentMethod = "bank_transfer"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// OrderState is the pair the webhook reconciler and admin updates compare against.
type OrderState struct {
	Status        OrderStatus
	PaymentStatus PaymentStatus
}

// Address is a value copy taken at checkout time.
type Address struct {
	FullName   string `json:"full_name" gorm:"type:varchar(100)" validate:"required,max=100"`
	Line1      string `json:"line1" gorm:"type:varchar(200)" validate:"required,max=200"`
	Line2      string `json:"line2,omitempty" gorm:"type:varchar(200)" validate:"omitempty,max=200"`
	City       string `json:"city" gorm:"type:varchar(100)" validate:"required,max=100"`
	State      string `json:"state,omitempty" gorm:"type:varchar(100)" validate:"omitempty,max=100"`
	PostalCode string `json:"postal_code" gorm:"type:varchar(20)" validate:"required,max=20"`
	Country    string `json:"country" gorm:"type:varchar(2)" validate:"required,len=2"`
	Phone      string `json:"phone,omitempty" gorm:"type:varchar(30)" validate:"omitempty,max=30"`
}

// IsZero reports whether no address field was provided.
func (a Address) IsZero() bool {
	return a == Address{}
}

// PaymentDetails is only populated once the gateway confirms payment.
type PaymentDetails struct {
	TransactionID string     `json:"transaction_id,omitempty" gorm:"type:varchar(255)"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CardLastFour  string     `json:"card_last_four,omitempty" gorm:"type:varchar(4)"`
}

// OrderLineItem snapshots the product name and price at checkout.
type OrderLineItem struct {
	ID          uint            `json:"-" gorm:"primaryKey;autoIncrement"`
	OrderID     string          `json:"-" gorm:"type:varchar(36);index;not null"`
	ProductID   string          `json:"product_id" gorm:"type:varchar(36);not null"`
	ProductName string          `json:"product_name" gorm:"type:varchar(100)"`
	SellerID    string          `json:"seller_id" gorm:"type:varchar(36)"`
	Quantity    int             `json:"quantity" gorm:"not null"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:numeric(12,2);not null"`
	LineTotal   decimal.Decimal `json:"line_total" gorm:"type:numeric(12,2);not null"`
}

// StatusHistoryEntry is an append-only audit record of order status changes.
type StatusHistoryEntry struct {
	ID        uint        `json:"-" gorm:"primaryKey;autoIncrement"`
	OrderID   string      `json:"-" gorm:"type:varchar(36);index;not null"`
	Status    OrderStatus `json:"status" gorm:"type:varchar(20);not null"`
	Note      string      `json:"note" gorm:"type:text"`
	Actor     string      `json:"actor,omitempty" gorm:"type:varchar(64)"`
	CreatedAt time.Time   `json:"created_at"`
}

func (StatusHistoryEntry) TableName() string {
	return "order_status_entries"
}

// Order represents a customer order. Orders are never deleted.
type Order struct {
	ID              string               `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderNumber     string               `json:"order_number" gorm:"type:varchar(32);uniqueIndex;not null"`
	CustomerID      string               `json:"customer_id" gorm:"type:varchar(36);not null;index:idx_orders_customer_created,priority:1"`
	Items           []OrderLineItem      `json:"items" gorm:"foreignKey:OrderID"`
	Subtotal        decimal.Decimal      `json:"subtotal" gorm:"type:numeric(12,2);not null"`
	Tax             decimal.Decimal      `json:"tax" gorm:"type:numeric(12,2);not null"`
	ShippingCost    decimal.Decimal      `json:"shipping_cost" gorm:"type:numeric(12,2);not null"`
	Discount        decimal.Decimal      `json:"discount" gorm:"type:numeric(12,2);not null"`
	Total           decimal.Decimal      `json:"total" gorm:"type:numeric(12,2);not null"`
	Currency        string               `json:"currency" gorm:"type:varchar(3);not null"`
	PaymentMethod   PaymentMethod        `json:"payment_method" gorm:"type:varchar(30);not null"`
	Status          OrderStatus          `json:"status" gorm:"type:varchar(20);not null;index"`
	PaymentStatus   PaymentStatus        `json:"payment_status" gorm:"type:varchar(20);not null"`
	PaymentDetails  PaymentDetails       `json:"payment_details" gorm:"embedded;embeddedPrefix:payment_"`
	ShippingAddress Address              `json:"shipping_address" gorm:"embedded;embeddedPrefix:shipping_"`
	BillingAddress  Address              `json:"billing_address" gorm:"embedded;embeddedPrefix:billing_"`
	Notes           string               `json:"notes,omitempty" gorm:"type:text"`
	CancelReason    string               `json:"cancel_reason,omitempty" gorm:"type:text"`
	StatusHistory   []StatusHistoryEntry `json:"status_history" gorm:"foreignKey:OrderID"`
	CreatedAt       time.Time            `json:"created_at" gorm:"index:idx_orders_customer_created,priority:2"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// State returns the current (status, paymentStatus) pair.
func (o Order) State() OrderState {
	return OrderState{Status: o.Status, PaymentStatus: o.PaymentStatus}
}
