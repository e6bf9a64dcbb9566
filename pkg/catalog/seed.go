package catalog

import (
	"context"

	"github.com/example/smartcart/pkg/models"
	"github.com/example/smartcart/pkg/repository"
)

// Seed loads a small demo product set when the store is empty, so the whole
// pipeline is exercisable without fixtures. No-op if products already exist.
func Seed(ctx context.Context, store repository.Store) error {
	n, err := store.CountProducts(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	products := []models.Product{
		{SKU: "GROC-001", Barcode: "8901000000011", Name: "Whole Milk 1L", Category: "dairy", Price: 2.49, TaxRate: 5.0, StockQuantity: 120, IsActive: true},
		{SKU: "GROC-002", Barcode: "8901000000028", Name: "Sourdough Bread", Category: "bakery", Price: 3.99, TaxRate: 5.0, StockQuantity: 40, IsActive: true},
		{SKU: "GROC-003", Barcode: "8901000000035", Name: "Free Range Eggs 12pk", Category: "dairy", Price: 4.79, TaxRate: 5.0, StockQuantity: 60, IsActive: true},
		{SKU: "SNCK-001", Barcode: "8901000000042", Name: "Salted Potato Chips", Category: "snacks", Price: 1.99, TaxRate: 12.0, StockQuantity: 200, IsActive: true},
		{SKU: "SNCK-002", Barcode: "8901000000059", Name: "Dark Chocolate Bar", Category: "snacks", Price: 2.79, TaxRate: 12.0, StockQuantity: 150, IsActive: true},
		{SKU: "BEVG-001", Barcode: "8901000000066", Name: "Orange Juice 1L", Category: "beverages", Price: 3.49, TaxRate: 8.0, StockQuantity: 80, IsActive: true},
		{SKU: "BEVG-002", Barcode: "8901000000073", Name: "Sparkling Water 6pk", Category: "beverages", Price: 5.49, TaxRate: 8.0, StockQuantity: 90, IsActive: true},
		{SKU: "HSLD-001", Barcode: "8901000000080", Name: "Dish Soap", Category: "household", Price: 3.29, TaxRate: 18.0, StockQuantity: 70, IsActive: true},
	}

	for i := range products {
		if err := store.CreateProduct(ctx, &products[i]); err != nil {
			return err
		}
	}
	return nil
}
