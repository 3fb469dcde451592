package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2)" json:"price"`
	// OriginalPrice is set while an offer is applied and holds the price to restore.
	OriginalPrice decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"original_price"`
	OfferID       *uint               `gorm:"index" json:"offer_id,omitempty"`
	Stock         int                 `json:"stock"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

type Offer struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Title           string          `json:"title"`
	DiscountPercent decimal.Decimal `gorm:"type:numeric(5,2)" json:"discount_percent"`
	Active          bool            `json:"active"`
	Products        []Product       `json:"products,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
