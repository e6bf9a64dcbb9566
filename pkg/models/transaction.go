package models

import (
	"time"
)

type PaymentMethod string

const (
	PaymentQRCode PaymentMethod = "qr_code"
	PaymentNFC    PaymentMethod = "nfc"
	PaymentCard   PaymentMethod = "card"
	PaymentCash   PaymentMethod = "cash"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case PaymentQRCode, PaymentNFC, PaymentCard, PaymentCash:
		return PaymentMethod(s), true
	}
	return "", false
}

type TransactionStatus string

const (
	TxnPending   TransactionStatus = "pending"
	TxnCompleted TransactionStatus = "completed"
	TxnFailed    TransactionStatus = "failed"
	TxnRefunded  TransactionStatus = "refunded"
)

type Transaction struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	CartID           uint              `gorm:"not null;index" json:"cart_id"`
	TransactionID    string            `gorm:"type:varchar(100);uniqueIndex;not null" json:"transaction_id"`
	PaymentMethod    PaymentMethod     `gorm:"type:varchar(20);not null" json:"payment_method"`
	Amount           float64           `gorm:"not null" json:"amount"`
	Status           TransactionStatus `gorm:"type:varchar(20);default:'pending'" json:"status"`
	PaymentReference string            `gorm:"type:varchar(200)" json:"payment_reference,omitempty"`
	Receipt          *Receipt          `gorm:"serializer:json;column:receipt_data" json:"receipt,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`

	Items []TransactionItem `gorm:"foreignKey:TransactionRef;constraint:OnDelete:CASCADE" json:"items"`
}

func (Transaction) TableName() string {
	return "transactions"
}

type TransactionItem struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	TransactionRef uint    `gorm:"not null;index" json:"transaction_ref"`
	ProductID      uint    `gorm:"not null" json:"product_id"`
	Quantity       int     `gorm:"not null" json:"quantity"`
	UnitPrice      float64 `gorm:"not null" json:"unit_price"`
	TaxRate        float64 `gorm:"default:0" json:"tax_rate"`
	Subtotal       float64 `gorm:"not null" json:"subtotal"`
}

func (TransactionItem) TableName() string {
	return "transaction_items"
}

// Receipt is the structured bill record attached to a completed transaction.
// It is serialized only at the storage boundary.
type Receipt struct {
	TransactionID    string        `json:"transaction_id"`
	SessionID        string        `json:"session_id"`
	Date             time.Time     `json:"date"`
	Items            []ReceiptLine `json:"items"`
	Subtotal         float64       `json:"subtotal"`
	Tax              float64       `json:"tax"`
	Discount         float64       `json:"discount"`
	Total            float64       `json:"total"`
	PaymentMethod    PaymentMethod `json:"payment_method"`
	PaymentReference string        `json:"payment_reference"`
}

type ReceiptLine struct {
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TaxRate     float64 `json:"tax_rate"`
	Subtotal    float64 `json:"subtotal"`
}
