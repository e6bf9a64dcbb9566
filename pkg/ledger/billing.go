package ledger

import (
	"math"

	"github.com/example/smartcart/pkg/models"
)

// BillCalculation is the derived bill for a cart's current item set.
type BillCalculation struct {
	Subtotal       float64 `json:"subtotal"`
	TaxAmount      float64 `json:"tax_amount"`
	DiscountAmount float64 `json:"discount_amount"`
	FinalAmount    float64 `json:"final_amount"`
	ItemCount      int     `json:"item_count"`
}

// CalculateTotals derives the bill from the cart's items. Pure: no
// persistence, no mutation. Monetary outputs are rounded once, at the end,
// never per item, so rounding error does not compound.
func CalculateTotals(cart *models.Cart) BillCalculation {
	var subtotal, tax float64
	itemCount := 0

	for _, item := range cart.Items {
		itemSubtotal := item.UnitPrice * float64(item.Quantity)
		subtotal += itemSubtotal
		tax += itemSubtotal * (item.TaxRate / 100.0)
		itemCount += item.Quantity
	}

	discount := cart.DiscountAmount
	final := math.Max(0, subtotal+tax-discount)

	return BillCalculation{
		Subtotal:       round2(subtotal),
		TaxAmount:      round2(tax),
		DiscountAmount: round2(discount),
		FinalAmount:    round2(final),
		ItemCount:      itemCount,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
