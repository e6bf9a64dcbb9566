package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/example/smartcart/pkg/errs"
	"github.com/example/smartcart/pkg/models"
)

// MemoryStore is an in-process Store used by tests and by demo mode when no
// MySQL instance is configured. Mutations copy in and reads copy out, so
// callers never share memory with the store.
type MemoryStore struct {
	mu sync.RWMutex

	products     map[uint]models.Product
	carts        map[uint]models.Cart
	items        map[uint]models.CartItem
	alerts       map[uint]models.Alert
	transactions map[uint]models.Transaction
	txnItems     map[uint]models.TransactionItem

	nextID map[string]uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:     make(map[uint]models.Product),
		carts:        make(map[uint]models.Cart),
		items:        make(map[uint]models.CartItem),
		alerts:       make(map[uint]models.Alert),
		transactions: make(map[uint]models.Transaction),
		txnItems:     make(map[uint]models.TransactionItem),
		nextID:       make(map[string]uint),
	}
}

func (s *MemoryStore) next(entity string) uint {
	s.nextID[entity]++
	return s.nextID[entity]
}

func (s *MemoryStore) CreateProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.next("product")
	}
	s.products[p.ID] = *p
	return nil
}

func (s *MemoryStore) GetProduct(_ context.Context, id uint) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, errs.NotFound("product %d not found", id)
	}
	return &p, nil
}

func (s *MemoryStore) GetProductByBarcode(_ context.Context, barcode string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.Barcode == barcode {
			cp := p
			return &cp, nil
		}
	}
	return nil, errs.NotFound("product %s not found", barcode)
}

func (s *MemoryStore) ListProducts(_ context.Context) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) CountProducts(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.products)), nil
}

func (s *MemoryStore) cartItems(cartID uint) []models.CartItem {
	items := make([]models.CartItem, 0, 4)
	for _, item := range s.items {
		if item.CartID == cartID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (s *MemoryStore) CreateCart(_ context.Context, c *models.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.next("cart")
	}
	stored := *c
	stored.Items = nil
	s.carts[c.ID] = stored
	return nil
}

func (s *MemoryStore) GetCart(_ context.Context, id uint) (*models.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.carts[id]
	if !ok {
		return nil, errs.NotFound("cart %d not found", id)
	}
	c.Items = s.cartItems(id)
	return &c, nil
}

func (s *MemoryStore) GetCartBySession(_ context.Context, sessionID string) (*models.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.carts {
		if c.SessionID == sessionID {
			cp := c
			cp.Items = s.cartItems(c.ID)
			return &cp, nil
		}
	}
	return nil, errs.NotFound("cart %s not found", sessionID)
}

func (s *MemoryStore) UpdateCart(_ context.Context, c *models.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.carts[c.ID]; !ok {
		return errs.NotFound("cart %d not found", c.ID)
	}
	stored := *c
	stored.Items = nil
	s.carts[c.ID] = stored
	return nil
}

func (s *MemoryStore) ListCarts(_ context.Context, status *models.CartStatus) ([]models.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Cart, 0, len(s.carts))
	for _, c := range s.carts {
		if status != nil && c.Status != *status {
			continue
		}
		c.Items = s.cartItems(c.ID)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetCartItem(_ context.Context, id uint) (*models.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, errs.NotFound("cart item %d not found", id)
	}
	return &item, nil
}

func (s *MemoryStore) CreateCartItem(_ context.Context, item *models.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.ID == 0 {
		item.ID = s.next("cart_item")
	}
	s.items[item.ID] = *item
	return nil
}

func (s *MemoryStore) UpdateCartItem(_ context.Context, item *models.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; !ok {
		return errs.NotFound("cart item %d not found", item.ID)
	}
	s.items[item.ID] = *item
	return nil
}

func (s *MemoryStore) DeleteCartItem(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return errs.NotFound("cart item %d not found", id)
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) CreateAlert(_ context.Context, a *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = s.next("alert")
	}
	s.alerts[a.ID] = *a
	return nil
}

func (s *MemoryStore) GetAlert(_ context.Context, id uint) (*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, errs.NotFound("alert %d not found", id)
	}
	return &a, nil
}

func (s *MemoryStore) UpdateAlert(_ context.Context, a *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[a.ID]; !ok {
		return errs.NotFound("alert %d not found", a.ID)
	}
	s.alerts[a.ID] = *a
	return nil
}

func (s *MemoryStore) ListAlerts(_ context.Context, f AlertFilter) ([]models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if f.CartID != nil && (a.CartID == nil || *a.CartID != *f.CartID) {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.ActiveOnly && !a.IsActive {
			continue
		}
		if f.Since != nil && a.CreatedAt.Unix() < *f.Since {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CreateTransaction(_ context.Context, t *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.next("transaction")
	}
	for i := range t.Items {
		if t.Items[i].ID == 0 {
			t.Items[i].ID = s.next("txn_item")
		}
		t.Items[i].TransactionRef = t.ID
		s.txnItems[t.Items[i].ID] = t.Items[i]
	}
	stored := *t
	stored.Items = nil
	s.transactions[t.ID] = stored
	return nil
}

func (s *MemoryStore) GetTransactionByRef(_ context.Context, transactionID string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.transactions {
		if t.TransactionID == transactionID {
			cp := t
			for _, item := range s.txnItems {
				if item.TransactionRef == t.ID {
					cp.Items = append(cp.Items, item)
				}
			}
			sort.Slice(cp.Items, func(i, j int) bool { return cp.Items[i].ID < cp.Items[j].ID })
			return &cp, nil
		}
	}
	return nil, errs.NotFound("transaction %s not found", transactionID)
}
