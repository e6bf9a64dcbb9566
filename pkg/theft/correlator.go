// Package theft correlates independent cart signals (scans, vision
// verification results, camera object counts) into severity-ranked alerts.
// Evaluation is best-effort over the cart's current state: a missing input
// signal skips its rule, it never fails the caller.
package theft

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
	"github.com/example/smartcart/pkg/vision"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// Config tunes the correlator. A zero DedupWindow persists a fresh alert row
// on every pass a rule fires, keeping full audit granularity; a positive
// window suppresses repeats of a still-pending condition. TheftGap is the
// detected-minus-scanned count that escalates the cart to alert status.
type Config struct {
	DedupWindow time.Duration
	TheftGap    int
}

type Correlator struct {
	store    repository.Store
	verifier vision.Verifier
	locks    *ledger.CartLocks
	bus      eventbus.Publisher
	audit    *repository.MongoRepository
	cfg      Config
	logger   *zap.Logger
}

func NewCorrelator(
	store repository.Store,
	verifier vision.Verifier,
	locks *ledger.CartLocks,
	bus eventbus.Publisher,
	audit *repository.MongoRepository,
	cfg Config,
	logger *zap.Logger,
) *Correlator {
	if cfg.TheftGap <= 0 {
		cfg.TheftGap = 3
	}
	return &Correlator{
		store:    store,
		verifier: verifier,
		locks:    locks,
		bus:      bus,
		audit:    audit,
		cfg:      cfg,
		logger:   logger,
	}
}

// Evaluate runs every detection rule over the cart's current item set.
// detectedCount is the camera's current object count; nil means no vision
// evidence, which skips the unscanned-item rule. Returns the alerts
// persisted by this pass.
func (c *Correlator) Evaluate(ctx context.Context, cartID uint, detectedCount *int) []models.Alert {
	unlock := c.locks.Lock(cartID)
	defer unlock()
	return c.evaluateLocked(ctx, cartID, detectedCount, 0)
}

// evaluateLocked runs the rules with the cart lock already held. directItem,
// when non-zero, names a cart item whose verification failure was raised via
// the per-item endpoint this pass; its alert carries High severity.
func (c *Correlator) evaluateLocked(ctx context.Context, cartID uint, detectedCount *int, directItem uint) []models.Alert {
	cart, err := c.store.GetCart(ctx, cartID)
	if err != nil {
		c.logger.Warn("correlator skipped: cart unavailable",
			zap.Uint("cart_id", cartID), zap.Error(err))
		return nil
	}

	drafts := c.runRules(ctx, cart, detectedCount, directItem)

	var persisted []models.Alert
	for i := range drafts {
		alert := drafts[i]
		if c.suppressed(ctx, &alert) {
			continue
		}
		alert.Status = models.AlertPending
		alert.IsActive = true
		alert.CreatedAt = time.Now()
		if err := c.store.CreateAlert(ctx, &alert); err != nil {
			c.logger.Error("failed to persist alert",
				zap.Uint("cart_id", cartID),
				zap.String("type", string(alert.Type)),
				zap.Error(err))
			continue
		}
		persisted = append(persisted, alert)

		if c.bus != nil {
			eventbus.PublishAlertEvent(c.bus, cartID, string(alert.Type), alert.Message, string(alert.Severity))
		}
		c.auditAlert(&alert)
	}

	if len(persisted) > 0 {
		c.flagCart(ctx, cart, persisted, detectedCount)
	}

	return persisted
}

func (c *Correlator) runRules(ctx context.Context, cart *models.Cart, detectedCount *int, directItem uint) []models.Alert {
	var drafts []models.Alert

	scannedCount := 0
	for _, item := range cart.Items {
		if item.ScanVerified {
			scannedCount++
		}
	}

	// Rule 1: camera sees more objects than scans account for.
	if detectedCount != nil && *detectedCount > scannedCount {
		drafts = append(drafts, models.Alert{
			CartID:   &cart.ID,
			Type:     models.AlertUnscannedItem,
			Severity: models.SeverityHigh,
			Message:  fmt.Sprintf("Detected %d items but only %d scanned", *detectedCount, scannedCount),
			Details: map[string]interface{}{
				"detected_count": *detectedCount,
				"scanned_count":  scannedCount,
			},
		})

		if *detectedCount-scannedCount >= c.cfg.TheftGap {
			drafts = append(drafts, models.Alert{
				CartID:   &cart.ID,
				Type:     models.AlertTheftDetected,
				Severity: models.SeverityCritical,
				Message:  fmt.Sprintf("Possible theft: %d unaccounted items in cart", *detectedCount-scannedCount),
				Details: map[string]interface{}{
					"detected_count": *detectedCount,
					"scanned_count":  scannedCount,
				},
			})
		}
	}

	// Rule 2: items present without a scan, one aggregated alert.
	unverified := 0
	for _, item := range cart.Items {
		if !item.ScanVerified {
			unverified++
		}
	}
	if unverified > 0 {
		drafts = append(drafts, models.Alert{
			CartID:   &cart.ID,
			Type:     models.AlertMismatchDetected,
			Severity: models.SeverityMedium,
			Message:  fmt.Sprintf("%d items in cart without scan verification", unverified),
			Details: map[string]interface{}{
				"unverified_count": unverified,
			},
		})
	}

	// Rule 3: scanned but the most recent vision check did not confirm it,
	// one alert per item.
	for _, item := range cart.Items {
		if !item.ScanVerified || item.VerifiedByAI {
			continue
		}
		severity := models.SeverityMedium
		if item.ID == directItem {
			severity = models.SeverityHigh
		}
		productID := item.ProductID
		drafts = append(drafts, models.Alert{
			CartID:    &cart.ID,
			ProductID: &productID,
			Type:      models.AlertAIVerificationFailed,
			Severity:  severity,
			Message:   fmt.Sprintf("AI verification failed for %s", c.productName(ctx, item.ProductID)),
			Details: map[string]interface{}{
				"cart_item_id": item.ID,
				"product_id":   item.ProductID,
			},
		})
	}

	return drafts
}

// suppressed reports whether an equivalent pending alert already exists
// inside the dedup window. Window zero never suppresses.
func (c *Correlator) suppressed(ctx context.Context, draft *models.Alert) bool {
	if c.cfg.DedupWindow <= 0 {
		return false
	}
	since := time.Now().Add(-c.cfg.DedupWindow).Unix()
	pending := models.AlertPending
	existing, err := c.store.ListAlerts(ctx, repository.AlertFilter{
		CartID:     draft.CartID,
		Status:     &pending,
		ActiveOnly: true,
		Since:      &since,
	})
	if err != nil {
		c.logger.Warn("dedup lookup failed", zap.Error(err))
		return false
	}
	for _, a := range existing {
		if a.Type != draft.Type {
			continue
		}
		if (a.ProductID == nil) != (draft.ProductID == nil) {
			continue
		}
		if a.ProductID != nil && *a.ProductID != *draft.ProductID {
			continue
		}
		return true
	}
	return false
}

// flagCart marks the cart as alerted with a short human digest of the first
// three messages. The alert rows are the audit trail, the digest is not.
func (c *Correlator) flagCart(ctx context.Context, cart *models.Cart, alerts []models.Alert, detectedCount *int) {
	messages := make([]string, 0, 3)
	escalate := false
	for _, a := range alerts {
		if len(messages) < 3 {
			messages = append(messages, a.Message)
		}
		if a.Type == models.AlertTheftDetected {
			escalate = true
		}
	}

	cart.HasAlert = true
	cart.AlertReason = strings.Join(messages, "; ")
	if escalate && cart.Status == models.CartStatusActive {
		cart.Status = models.CartStatusAlert
	}
	cart.UpdatedAt = time.Now()

	if err := c.store.UpdateCart(ctx, cart); err != nil {
		c.logger.Error("failed to flag cart",
			zap.Uint("cart_id", cart.ID), zap.Error(err))
	}
}

func (c *Correlator) productName(ctx context.Context, productID uint) string {
	p, err := c.store.GetProduct(ctx, productID)
	if err != nil {
		return fmt.Sprintf("product %d", productID)
	}
	return p.Name
}

func (c *Correlator) auditAlert(alert *models.Alert) {
	if c.audit == nil {
		return
	}
	a := *alert
	go func() {
		err := c.audit.CreateAuditLog(context.Background(), &repository.AuditLog{
			Service:  "theft-correlator",
			Action:   string(a.Type),
			EntityID: fmt.Sprintf("alert:%d", a.ID),
			Data: bson.M{
				"cart_id":  a.CartID,
				"severity": a.Severity,
				"message":  a.Message,
			},
		})
		if err != nil {
			c.logger.Warn("alert audit write failed", zap.Uint("alert_id", a.ID), zap.Error(err))
		}
	}()
}

// VerifyItem runs the verification adapter for one cart item and writes the
// outcome back. The adapter call happens outside the cart lock since it may
// be latency-heavy; only the flag write-back and re-evaluation reacquire it.
func (c *Correlator) VerifyItem(ctx context.Context, cartItemID uint, ev vision.Evidence) (vision.Result, error) {
	item, err := c.store.GetCartItem(ctx, cartItemID)
	if err != nil {
		return vision.Result{}, err
	}
	product, err := c.store.GetProduct(ctx, item.ProductID)
	if err != nil {
		return vision.Result{}, err
	}

	result := c.verifier.Verify(ctx, product, ev)

	unlock := c.locks.Lock(item.CartID)
	defer unlock()

	// Reload under the lock; the item may have changed or gone away while
	// the adapter ran.
	item, err = c.store.GetCartItem(ctx, cartItemID)
	if err != nil {
		return vision.Result{}, err
	}

	item.ScanVerified = true
	item.VerifiedByAI = result.Verified
	if err := c.store.UpdateCartItem(ctx, item); err != nil {
		return vision.Result{}, err
	}

	directItem := uint(0)
	if !result.Verified {
		directItem = item.ID
	}
	c.evaluateLocked(ctx, item.CartID, nil, directItem)

	return result, nil
}

// ResolveAlert applies an operator resolution. Terminal: a non-pending alert
// cannot be resolved again, the system emits a fresh alert if the condition
// reoccurs instead of reopening history.
func (c *Correlator) ResolveAlert(ctx context.Context, alertID uint, resolution string) (*models.Alert, error) {
	var status models.AlertStatus
	switch resolution {
	case "resolved":
		status = models.AlertResolved
	case "false_positive":
		status = models.AlertFalsePositive
	case "reviewed":
		status = models.AlertReviewed
	default:
		return nil, errs.ValidationFailed("unknown resolution %q", resolution)
	}

	alert, err := c.store.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	if alert.Status != models.AlertPending {
		return nil, errs.InvalidState("alert %d already %s", alertID, alert.Status)
	}

	now := time.Now()
	alert.Status = status
	alert.IsActive = false
	alert.ResolvedAt = &now
	if status == models.AlertReviewed {
		alert.ReviewedAt = &now
	}

	if err := c.store.UpdateAlert(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

func (c *Correlator) GetAlert(ctx context.Context, alertID uint) (*models.Alert, error) {
	return c.store.GetAlert(ctx, alertID)
}

func (c *Correlator) ListAlerts(ctx context.Context, f repository.AlertFilter) ([]models.Alert, error) {
	return c.store.ListAlerts(ctx, f)
}
