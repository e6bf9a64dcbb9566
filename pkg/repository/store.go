package repository

import (
	"context"

	"github.com/example/smartcart/pkg/models"
)

// AlertFilter narrows ListAlerts. Zero-value fields are ignored; Limit
// defaults to 100.
type AlertFilter struct {
	CartID     *uint
	Status     *models.AlertStatus
	ActiveOnly bool
	Since      *int64 // unix seconds, inclusive
	Limit      int
}

// Store is the pluggable persistence collaborator. Implementations must
// return an errs.NotFound error for missing rows so callers can map
// failures without knowing the storage technology.
type Store interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id uint) (*models.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	CountProducts(ctx context.Context) (int64, error)

	CreateCart(ctx context.Context, c *models.Cart) error
	GetCart(ctx context.Context, id uint) (*models.Cart, error)
	GetCartBySession(ctx context.Context, sessionID string) (*models.Cart, error)
	UpdateCart(ctx context.Context, c *models.Cart) error
	ListCarts(ctx context.Context, status *models.CartStatus) ([]models.Cart, error)

	GetCartItem(ctx context.Context, id uint) (*models.CartItem, error)
	CreateCartItem(ctx context.Context, item *models.CartItem) error
	UpdateCartItem(ctx context.Context, item *models.CartItem) error
	DeleteCartItem(ctx context.Context, id uint) error

	CreateAlert(ctx context.Context, a *models.Alert) error
	GetAlert(ctx context.Context, id uint) (*models.Alert, error)
	UpdateAlert(ctx context.Context, a *models.Alert) error
	ListAlerts(ctx context.Context, f AlertFilter) ([]models.Alert, error)

	CreateTransaction(ctx context.Context, t *models.Transaction) error
	GetTransactionByRef(ctx context.Context, transactionID string) (*models.Transaction, error)
}
