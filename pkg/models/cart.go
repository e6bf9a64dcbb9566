package models

import (
	"time"
)

type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusPaid      CartStatus = "paid"
	CartStatusAbandoned CartStatus = "abandoned"
	CartStatusAlert     CartStatus = "alert"
)

// Cart owns its items; totals are derived by the ledger and never set by
// callers directly.
type Cart struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	SessionID      string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"session_id"`
	Status         CartStatus `gorm:"type:varchar(20);default:'active'" json:"status"`
	TotalAmount    float64    `gorm:"default:0" json:"total_amount"`
	TaxAmount      float64    `gorm:"default:0" json:"tax_amount"`
	DiscountAmount float64    `gorm:"default:0" json:"discount_amount"`
	FinalAmount    float64    `gorm:"default:0" json:"final_amount"`
	HasAlert       bool       `gorm:"default:false" json:"has_alert"`
	AlertReason    string     `gorm:"type:varchar(500)" json:"alert_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`

	Items []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
}

func (Cart) TableName() string {
	return "carts"
}

// CartItem snapshots unit price and tax rate at add time so a later catalog
// price change never rewrites an in-flight bill. ScanVerified and VerifiedByAI
// are independent raw signals; the correlator owns their interpretation.
type CartItem struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CartID       uint      `gorm:"not null;index" json:"cart_id"`
	ProductID    uint      `gorm:"not null;index" json:"product_id"`
	Quantity     int       `gorm:"default:1" json:"quantity"`
	UnitPrice    float64   `gorm:"not null" json:"unit_price"`
	TaxRate      float64   `gorm:"default:0" json:"tax_rate"`
	Subtotal     float64   `gorm:"not null" json:"subtotal"`
	ScanVerified bool      `gorm:"default:false" json:"scan_verified"`
	VerifiedByAI bool      `gorm:"default:false" json:"verified_by_ai"`
	AddedAt      time.Time `json:"added_at"`
}

func (CartItem) TableName() string {
	return "cart_items"
}
