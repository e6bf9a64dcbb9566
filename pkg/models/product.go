package models

type Product struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	SKU           string  `gorm:"type:varchar(100);uniqueIndex;not null" json:"sku"`
	Barcode       string  `gorm:"type:varchar(100);uniqueIndex;not null" json:"barcode"`
	Name          string  `gorm:"type:varchar(255);not null" json:"name"`
	Description   string  `gorm:"type:text" json:"description,omitempty"`
	Price         float64 `gorm:"not null" json:"price"`
	TaxRate       float64 `gorm:"default:0" json:"tax_rate"` // percentage
	Category      string  `gorm:"type:varchar(100);index" json:"category"`
	IsActive      bool    `gorm:"default:true" json:"is_active"`
	StockQuantity int     `gorm:"default:0" json:"stock_quantity"`
}

func (Product) TableName() string {
	return "products"
}
