package catalog

import (
	"context"

	"github.com/example/smartcart/pkg/errs"
	"github.com/example/smartcart/pkg/models"
	"github.com/example/smartcart/pkg/repository"
)

// Catalog serves product reference data. Products are treated as immutable
// for the duration of a shopping session; the ledger snapshots price and tax
// at add time regardless.
type Catalog struct {
	store repository.Store
}

func New(store repository.Store) *Catalog {
	return &Catalog{store: store}
}

// Lookup returns the product, failing NotFound for missing or deactivated
// products. Deactivated products must not be scannable.
func (c *Catalog) Lookup(ctx context.Context, productID uint) (*models.Product, error) {
	p, err := c.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, errs.NotFound("product %d is not active", productID)
	}
	return p, nil
}

func (c *Catalog) LookupByBarcode(ctx context.Context, barcode string) (*models.Product, error) {
	p, err := c.store.GetProductByBarcode(ctx, barcode)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, errs.NotFound("product %s is not active", barcode)
	}
	return p, nil
}

func (c *Catalog) List(ctx context.Context) ([]models.Product, error) {
	return c.store.ListProducts(ctx)
}
