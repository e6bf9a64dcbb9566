// Package checkout owns the terminal cart transition. The gate is the only
// code path allowed to move a cart to Paid.
package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/smartcart/pkg/errs"
	"github.com/example/smartcart/pkg/eventbus"
	"github.com/example/smartcart/pkg/ledger"
	"github.com/example/smartcart/pkg/models"
	"github.com/example/smartcart/pkg/repository"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

type Gate struct {
	store  repository.Store
	locks  *ledger.CartLocks
	bus    eventbus.Publisher
	cache  *repository.RedisRepository
	audit  *repository.MongoRepository
	logger *zap.Logger
}

func NewGate(
	store repository.Store,
	locks *ledger.CartLocks,
	bus eventbus.Publisher,
	cache *repository.RedisRepository,
	audit *repository.MongoRepository,
	logger *zap.Logger,
) *Gate {
	return &Gate{
		store:  store,
		locks:  locks,
		bus:    bus,
		cache:  cache,
		audit:  audit,
		logger: logger,
	}
}

// PaymentResponse is the settled outcome handed back to the caller.
type PaymentResponse struct {
	TransactionID    string               `json:"transaction_id"`
	CartID           uint                 `json:"cart_id"`
	PaymentMethod    models.PaymentMethod `json:"payment_method"`
	Amount           float64              `json:"amount"`
	Status           string               `json:"status"`
	PaymentReference string               `json:"payment_reference"`
	Receipt          *models.Receipt      `json:"receipt"`
	CompletedAt      time.Time            `json:"completed_at"`
}

// QRPayload is the machine-readable payment challenge; rendering it as an
// actual QR image is a client concern.
type QRPayload struct {
	CartID           uint      `json:"cart_id"`
	SessionID        string    `json:"session_id"`
	Amount           float64   `json:"amount"`
	PaymentReference string    `json:"payment_reference"`
	Timestamp        time.Time `json:"timestamp"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// CanCheckout is the gate predicate: only an Active cart with a positive
// final amount may proceed. Alert visibility is an operator concern; a cart
// escalated out of Active status is refused here regardless of why.
func CanCheckout(cart *models.Cart) bool {
	return cart.Status == models.CartStatusActive && cart.FinalAmount > 0
}

// GeneratePaymentQR produces the payment challenge for an eligible cart.
func (g *Gate) GeneratePaymentQR(ctx context.Context, cartID uint) (*QRPayload, error) {
	cart, err := g.store.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if !CanCheckout(cart) {
		return nil, errs.InvalidState("cart %d is not eligible for checkout", cartID)
	}

	now := time.Now()
	return &QRPayload{
		CartID:           cart.ID,
		SessionID:        cart.SessionID,
		Amount:           cart.FinalAmount,
		PaymentReference: fmt.Sprintf("PAY-%s", shortRef(8)),
		Timestamp:        now,
		ExpiresAt:        now.Add(10 * time.Minute),
	}, nil
}

// ProcessPayment settles the cart: records the transaction with a structured
// receipt and performs the single Active → Paid transition. A second call
// for the same cart fails InvalidState.
func (g *Gate) ProcessPayment(ctx context.Context, cartID uint, method string, reference string) (*PaymentResponse, error) {
	pm, ok := models.ParsePaymentMethod(method)
	if !ok {
		return nil, errs.ValidationFailed("unknown payment method %q", method)
	}

	unlock := g.locks.Lock(cartID)
	defer unlock()

	cart, err := g.store.GetCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart.Status != models.CartStatusActive {
		return nil, errs.InvalidState("cart %d is not active", cartID)
	}
	if cart.FinalAmount <= 0 {
		return nil, errs.InvalidState("cart %d total is zero", cartID)
	}

	if reference == "" {
		reference = fmt.Sprintf("REF-%s", shortRef(8))
	}
	now := time.Now()

	txn := &models.Transaction{
		CartID:           cart.ID,
		TransactionID:    fmt.Sprintf("TXN-%s", shortRef(12)),
		PaymentMethod:    pm,
		Amount:           cart.FinalAmount,
		Status:           models.TxnCompleted, // settlement is simulated, it always succeeds
		PaymentReference: reference,
		CreatedAt:        now,
		CompletedAt:      &now,
	}

	receipt := &models.Receipt{
		TransactionID:    txn.TransactionID,
		SessionID:        cart.SessionID,
		Date:             now,
		Subtotal:         cart.TotalAmount,
		Tax:              cart.TaxAmount,
		Discount:         cart.DiscountAmount,
		Total:            cart.FinalAmount,
		PaymentMethod:    pm,
		PaymentReference: reference,
	}

	for _, item := range cart.Items {
		txn.Items = append(txn.Items, models.TransactionItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			TaxRate:   item.TaxRate,
			Subtotal:  item.Subtotal,
		})
		receipt.Items = append(receipt.Items, models.ReceiptLine{
			ProductName: g.productName(ctx, item.ProductID),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TaxRate:     item.TaxRate,
			Subtotal:    item.Subtotal,
		})
	}
	txn.Receipt = receipt

	if err := g.store.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	cart.Status = models.CartStatusPaid
	cart.PaidAt = &now
	cart.UpdatedAt = now
	if err := g.store.UpdateCart(ctx, cart); err != nil {
		return nil, err
	}

	if g.cache != nil {
		if err := g.cache.InvalidateCartSummary(ctx, cart.SessionID); err != nil {
			g.logger.Warn("cart summary invalidation failed",
				zap.String("session_id", cart.SessionID), zap.Error(err))
		}
	}
	if g.bus != nil {
		eventbus.PublishPaymentEvent(g.bus, cart.ID, txn.TransactionID, txn.Amount, string(txn.Status))
	}
	g.auditPayment(txn)

	g.logger.Info("cart paid",
		zap.Uint("cart_id", cart.ID),
		zap.String("transaction_id", txn.TransactionID),
		zap.Float64("amount", txn.Amount))

	return &PaymentResponse{
		TransactionID:    txn.TransactionID,
		CartID:           cart.ID,
		PaymentMethod:    pm,
		Amount:           txn.Amount,
		Status:           string(txn.Status),
		PaymentReference: reference,
		Receipt:          receipt,
		CompletedAt:      now,
	}, nil
}

func (g *Gate) productName(ctx context.Context, productID uint) string {
	p, err := g.store.GetProduct(ctx, productID)
	if err != nil {
		return fmt.Sprintf("product %d", productID)
	}
	return p.Name
}

func (g *Gate) auditPayment(txn *models.Transaction) {
	if g.audit == nil {
		return
	}
	t := *txn
	go func() {
		err := g.audit.CreateAuditLog(context.Background(), &repository.AuditLog{
			Service:  "checkout-gate",
			Action:   "process_payment",
			EntityID: t.TransactionID,
			Data: bson.M{
				"cart_id": t.CartID,
				"amount":  t.Amount,
				"method":  t.PaymentMethod,
			},
		})
		if err != nil {
			g.logger.Warn("payment audit write failed",
				zap.String("transaction_id", t.TransactionID), zap.Error(err))
		}
	}()
}

func shortRef(n int) string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > len(s) {
		n = len(s)
	}
	return strings.ToUpper(s[:n])
}
