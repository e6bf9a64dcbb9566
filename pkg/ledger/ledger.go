package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/smartcart/pkg/catalog"
	"github.com/example/smartcart/pkg/errs"
	"github.com/example/smartcart/pkg/eventbus"
	"github.com/example/smartcart/pkg/models"
	"github.com/example/smartcart/pkg/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service owns cart and item state transitions and keeps monetary totals
// consistent with the item set after every mutation. It never calls the
// correlator: billing stays pure and fast, signal re-evaluation is the
// caller's concern.
type Service struct {
	store   repository.Store
	catalog *catalog.Catalog
	locks   *CartLocks
	bus     eventbus.Publisher
	cache   *repository.RedisRepository
	logger  *zap.Logger
}

func NewService(
	store repository.Store,
	cat *catalog.Catalog,
	locks *CartLocks,
	bus eventbus.Publisher,
	cache *repository.RedisRepository,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:   store,
		catalog: cat,
		locks:   locks,
		bus:     bus,
		cache:   cache,
		logger:  logger,
	}
}

// BillingResponse is the full bill view for a cart.
type BillingResponse struct {
	CartID      uint              `json:"cart_id"`
	SessionID   string            `json:"session_id"`
	Calculation BillCalculation   `json:"calculation"`
	Items       []models.CartItem `json:"items"`
	Currency    string            `json:"currency"`
}

// CreateCart starts a session. Idempotent: an existing Active cart for the
// session id is returned as-is. An empty session id gets a generated one.
func (s *Service) CreateCart(ctx context.Context, sessionID string) (*models.Cart, error) {
	if sessionID == "" {
		sessionID = fmt.Sprintf("CART-%s", strings.ToUpper(uuid.NewString()[:8]))
	}

	existing, err := s.store.GetCartBySession(ctx, sessionID)
	if err == nil {
		if existing.Status == models.CartStatusActive {
			return existing, nil
		}
		return nil, errs.InvalidState("session %s already ended with status %s", sessionID, existing.Status)
	}
	if !errs.IsNotFound(err) {
		return nil, err
	}

	cart := &models.Cart{
		SessionID: sessionID,
		Status:    models.CartStatusActive,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.store.CreateCart(ctx, cart); err != nil {
		return nil, err
	}

	s.logger.Info("cart created",
		zap.Uint("cart_id", cart.ID),
		zap.String("session_id", sessionID))

	return cart, nil
}

func (s *Service) GetCart(ctx context.Context, cartID uint) (*models.Cart, error) {
	return s.store.GetCart(ctx, cartID)
}

func (s *Service) GetCartBySession(ctx context.Context, sessionID string) (*models.Cart, error) {
	return s.store.GetCartBySession(ctx, sessionID)
}

// SetStatus handles explicit terminations (abandonment) and operator-driven
// status changes. Paid is reserved for the checkout gate; a Paid cart is
// immutable.
func (s *Service) SetStatus(ctx context.Context, cartID uint, status models.CartStatus) (*models.Cart, error) {
	unlock := s.locks.Lock(cartID)
	defer unlock()

	cart, err := s.store.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart.Status == models.CartStatusPaid {
		return nil, errs.InvalidState("cart %d is already paid", cartID)
	}
	if status == models.CartStatusPaid {
		return nil, errs.InvalidState("cart %d: paid status is set by checkout only", cartID)
	}

	cart.Status = status
	cart.UpdatedAt = time.Now()
	if err := s.store.UpdateCart(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// AddItem records a scan. A repeat scan of the same product increments the
// existing line; a first scan creates one, snapshotting the current unit
// price and tax rate. Totals are recomputed before returning.
func (s *Service) AddItem(ctx context.Context, cartID, productID uint, qty int) (*models.CartItem, error) {
	if qty < 1 {
		return nil, errs.ValidationFailed("quantity must be at least 1, got %d", qty)
	}

	unlock := s.locks.Lock(cartID)
	defer unlock()

	cart, err := s.store.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart.Status != models.CartStatusActive {
		return nil, errs.InvalidState("cart %d is not active", cartID)
	}

	product, err := s.catalog.Lookup(ctx, productID)
	if err != nil {
		return nil, err
	}

	var item *models.CartItem
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			item = &cart.Items[i]
			break
		}
	}

	if item != nil {
		item.Quantity += qty
		item.Subtotal = item.UnitPrice * float64(item.Quantity)
		if err := s.store.UpdateCartItem(ctx, item); err != nil {
			return nil, err
		}
	} else {
		item = &models.CartItem{
			CartID:    cartID,
			ProductID: productID,
			Quantity:  qty,
			UnitPrice: product.Price,
			TaxRate:   product.TaxRate,
			Subtotal:  product.Price * float64(qty),
			AddedAt:   time.Now(),
		}
		if err := s.store.CreateCartItem(ctx, item); err != nil {
			return nil, err
		}
	}

	cart, err = s.refreshTotals(ctx, cartID)
	if err != nil {
		return nil, err
	}

	if s.bus != nil {
		eventbus.PublishScanEvent(s.bus, cartID, productID, product.Barcode)
		eventbus.PublishCartUpdate(s.bus, cartID, cart.FinalAmount, len(cart.Items))
	}

	return item, nil
}

// RemoveItem deletes the item if it belongs to the cart, then recomputes
// totals. NotFound is a no-op with respect to totals.
func (s *Service) RemoveItem(ctx context.Context, cartID, itemID uint) error {
	unlock := s.locks.Lock(cartID)
	defer unlock()

	if err := s.removeItemLocked(ctx, cartID, itemID); err != nil {
		return err
	}

	cart, err := s.refreshTotals(ctx, cartID)
	if err != nil {
		return err
	}

	if s.bus != nil {
		eventbus.PublishCartUpdate(s.bus, cartID, cart.FinalAmount, len(cart.Items))
	}
	return nil
}

func (s *Service) removeItemLocked(ctx context.Context, cartID, itemID uint) error {
	item, err := s.store.GetCartItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item.CartID != cartID {
		return errs.NotFound("cart item %d not found in cart %d", itemID, cartID)
	}
	return s.store.DeleteCartItem(ctx, itemID)
}

// SetQuantity updates a line's quantity; zero or negative behaves as removal
// (quantity 0 is never stored as a row).
func (s *Service) SetQuantity(ctx context.Context, cartID, itemID uint, qty int) (*models.CartItem, error) {
	unlock := s.locks.Lock(cartID)
	defer unlock()

	if qty <= 0 {
		if err := s.removeItemLocked(ctx, cartID, itemID); err != nil {
			return nil, err
		}
		cart, err := s.refreshTotals(ctx, cartID)
		if err != nil {
			return nil, err
		}
		if s.bus != nil {
			eventbus.PublishCartUpdate(s.bus, cartID, cart.FinalAmount, len(cart.Items))
		}
		return nil, nil
	}

	item, err := s.store.GetCartItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.CartID != cartID {
		return nil, errs.NotFound("cart item %d not found in cart %d", itemID, cartID)
	}

	item.Quantity = qty
	item.Subtotal = item.UnitPrice * float64(qty)
	if err := s.store.UpdateCartItem(ctx, item); err != nil {
		return nil, err
	}

	cart, err := s.refreshTotals(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if s.bus != nil {
		eventbus.PublishCartUpdate(s.bus, cartID, cart.FinalAmount, len(cart.Items))
	}
	return item, nil
}

// Billing returns the current bill. Read-only; totals were already kept in
// sync by the mutation paths, the calculation here is derived fresh from the
// item set.
func (s *Service) Billing(ctx context.Context, cartID uint) (*BillingResponse, error) {
	cart, err := s.store.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	return &BillingResponse{
		CartID:      cart.ID,
		SessionID:   cart.SessionID,
		Calculation: CalculateTotals(cart),
		Items:       cart.Items,
		Currency:    "USD",
	}, nil
}

// refreshTotals recomputes the cart's stored totals from its persisted item
// set. Must run with the cart lock held: the invariant is that the final
// amount is never derived from a stale item snapshot.
func (s *Service) refreshTotals(ctx context.Context, cartID uint) (*models.Cart, error) {
	cart, err := s.store.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	calc := CalculateTotals(cart)
	cart.TotalAmount = calc.Subtotal
	cart.TaxAmount = calc.TaxAmount
	cart.DiscountAmount = calc.DiscountAmount
	cart.FinalAmount = calc.FinalAmount
	cart.UpdatedAt = time.Now()

	if err := s.store.UpdateCart(ctx, cart); err != nil {
		return nil, err
	}

	if s.cache != nil {
		summary := &repository.CartSummary{
			CartID:      cart.ID,
			SessionID:   cart.SessionID,
			Status:      string(cart.Status),
			FinalAmount: cart.FinalAmount,
			ItemCount:   len(cart.Items),
			HasAlert:    cart.HasAlert,
		}
		if err := s.cache.CacheCartSummary(ctx, summary); err != nil {
			s.logger.Warn("cart summary cache write failed",
				zap.Uint("cart_id", cart.ID), zap.Error(err))
		}
	}

	return cart, nil
}
