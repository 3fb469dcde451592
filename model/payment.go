package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PendingPayment ties an STK push to the order that triggered it, keyed by the
// provider's CheckoutRequestID.
type PendingPayment struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	OrderID           uint            `gorm:"index" json:"order_id"`
	MerchantRequestID string          `json:"merchant_request_id"`
	CheckoutRequestID string          `gorm:"uniqueIndex" json:"checkout_request_id"`
	Phone             string          `json:"phone"`
	Amount            decimal.Decimal `gorm:"type:numeric(12,2)" json:"amount"`
	Status            PaymentStatus   `gorm:"type:varchar(20);default:pending" json:"status"`
	ReceiptNumber     string          `json:"receipt_number,omitempty"`
	ResultCode        int             `json:"result_code"`
	ResultDesc        string          `json:"result_desc,omitempty"`
	CallbackPayload   datatypes.JSON  `json:"callback_payload,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
}
