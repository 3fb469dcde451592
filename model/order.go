package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")
	ErrOfferNotFound   = errors.New("offer not found")
	ErrInvalidStatus   = errors.New("invalid order status")
	ErrEmptyOrder      = errors.New("order has no items")
	ErrPaymentNotFound = errors.New("pending payment not found")
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is one of the known fulfilment states.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type PaymentMethod string

const (
	MethodMpesa          PaymentMethod = "mpesa"
	MethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

type Order struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `gorm:"index" json:"customer_phone"` // 2547XXXXXXXX
	Total         decimal.Decimal `gorm:"type:numeric(12,2)" json:"total"`
	Status        OrderStatus     `gorm:"type:varchar(20);default:pending" json:"status"`
	PaymentStatus PaymentStatus   `gorm:"type:varchar(20);default:pending;index" json:"payment_status"`
	PaymentMethod PaymentMethod   `gorm:"type:varchar(30)" json:"payment_method"`
	Notes         string          `json:"notes"`
	Items         []OrderItem     `json:"items,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"index" json:"order_id"`
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"` // snapshot at checkout
	Price     decimal.Decimal `gorm:"type:numeric(12,2)" json:"price"`
	Qty       int             `json:"qty"`
}
