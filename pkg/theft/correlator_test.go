package theft

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/example/smartcart/pkg/errs"
	"github.com/example/smartcart/pkg/ledger"
	"github.com/example/smartcart/pkg/models"
	"github.com/example/smartcart/pkg/repository"
	"github.com/example/smartcart/pkg/vision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubVerifier struct {
	result vision.Result
}

func (s stubVerifier) Verify(context.Context, *models.Product, vision.Evidence) vision.Result {
	return s.result
}

type fixture struct {
	store      *repository.MemoryStore
	correlator *Correlator
	cart       *models.Cart
}

// newFixture seeds a cart whose items are described as "v" (scan verified and
// AI confirmed), "s" (scanned, AI rejected) or "u" (unscanned).
func newFixture(t *testing.T, cfg Config, verifier vision.Verifier, itemStates ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()

	cart := &models.Cart{SessionID: "s1", Status: models.CartStatusActive, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, store.CreateCart(ctx, cart))

	for i, state := range itemStates {
		p := &models.Product{
			Name:     fmt.Sprintf("Product %d", i+1),
			Barcode:  fmt.Sprintf("b%d", i+1),
			Price:    1.00,
			IsActive: true,
		}
		require.NoError(t, store.CreateProduct(ctx, p))

		item := &models.CartItem{
			CartID:    cart.ID,
			ProductID: p.ID,
			Quantity:  1,
			UnitPrice: p.Price,
			Subtotal:  p.Price,
			AddedAt:   time.Now(),
		}
		switch state {
		case "v":
			item.ScanVerified = true
			item.VerifiedByAI = true
		case "s":
			item.ScanVerified = true
		case "u":
		default:
			t.Fatalf("unknown item state %q", state)
		}
		require.NoError(t, store.CreateCartItem(ctx, item))
	}

	if verifier == nil {
		verifier = stubVerifier{result: vision.Result{Verified: true, Confidence: 0.9}}
	}
	correlator := NewCorrelator(store, verifier, ledger.NewCartLocks(), nil, nil, cfg, zap.NewNop())
	return &fixture{store: store, correlator: correlator, cart: cart}
}

func intp(n int) *int { return &n }

func alertsOfType(alerts []models.Alert, at models.AlertType) []models.Alert {
	var out []models.Alert
	for _, a := range alerts {
		if a.Type == at {
			out = append(out, a)
		}
	}
	return out
}

func TestEvaluateUnscannedItemRule(t *testing.T) {
	f := newFixture(t, Config{}, nil, "v", "v")

	alerts := f.correlator.Evaluate(context.Background(), f.cart.ID, intp(3))

	unscanned := alertsOfType(alerts, models.AlertUnscannedItem)
	require.Len(t, unscanned, 1)
	assert.Equal(t, models.SeverityHigh, unscanned[0].Severity)
	assert.Equal(t, "Detected 3 items but only 2 scanned", unscanned[0].Message)
	assert.Equal(t, 3, unscanned[0].Details["detected_count"])
	assert.Equal(t, 2, unscanned[0].Details["scanned_count"])

	// A gap of one stays below the theft threshold.
	assert.Empty(t, alertsOfType(alerts, models.AlertTheftDetected))
}

func TestEvaluateNoCameraEvidenceSkipsCountRule(t *testing.T) {
	f := newFixture(t, Config{}, nil, "v", "v")

	alerts := f.correlator.Evaluate(context.Background(), f.cart.ID, nil)
	assert.Empty(t, alerts)
}

func TestEvaluateCountEqualDoesNotFire(t *testing.T) {
	f := newFixture(t, Config{}, nil, "v", "v")

	alerts := f.correlator.Evaluate(context.Background(), f.cart.ID, intp(2))
	assert.Empty(t, alertsOfType(alerts, models.AlertUnscannedItem))
}

func TestEvaluateTheftEscalation(t *testing.T) {
	f := newFixture(t, Config{TheftGap: 3}, nil, "v", "v")

	alerts := f.correlator.Evaluate(context.Background(), f.cart.ID, intp(5))

	theft := alertsOfType(alerts, models.AlertTheftDetected)
	require.Len(t, theft, 1)
	assert.Equal(t, models.SeverityCritical, theft[0].Severity)
	assert.Equal(t, "Possible theft: 3 unaccounted items in cart", theft[0].Message)

	cart, err := f.store.GetCart(context.Background(), f.cart.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CartStatusAlert, cart.Status)
	assert.True(t, cart.HasAlert)
	assert.Contains(t, cart.AlertReason, "Possible theft")
}

func TestEvaluateMismatchRuleAggregates(t *testing.T) {
	f := newFixture(t, Config{}, nil, "u", "u", "u", "v")

	alerts := f.correlator.Evaluate(context.Background(), f.cart.ID, nil)

	mismatch := alertsOfType(alerts, models.AlertMismatchDetected)
	require.Len(t, mismatch, 1)
	assert.Equal(t, models.SeverityMedium, mismatch[0].Severity)
	assert.Equal(t, "3 items in cart without scan verification", mismatch[0].Message)
	assert.Equal(t, 3, mismatch[0].Details["unverified_count"])
}

func TestEvaluateAIFailureRulePerItem(t *testing.T) {
	f := newFixture(t, Config{}, nil, "s", "s", "v")

	alerts := f.correlator.Evaluate(context.Background(), f.cart.ID, nil)

	failed := alertsOfType(alerts, models.AlertAIVerificationFailed)
	require.Len(t, failed, 2)
	for _, a := range failed {
		assert.Equal(t, models.SeverityMedium, a.Severity)
		require.NotNil(t, a.ProductID)
		assert.Contains(t, a.Message, "AI verification failed for Product")
	}
	// Exactly the two rejected items, never the confirmed one.
	assert.NotEqual(t, *failed[0].ProductID, *failed[1].ProductID)
}

func TestEvaluateFlagsCartWithDigest(t *testing.T) {
	f := newFixture(t, Config{}, nil, "u", "s")

	alerts := f.correlator.Evaluate(context.Background(), f.cart.ID, intp(4))
	require.NotEmpty(t, alerts)

	cart, err := f.store.GetCart(context.Background(), f.cart.ID)
	require.NoError(t, err)
	assert.True(t, cart.HasAlert)
	// Digest is capped at three messages joined by "; ".
	assert.LessOrEqual(t, len(splitDigest(cart.AlertReason)), 3)
}

func splitDigest(reason string) []string {
	if reason == "" {
		return nil
	}
	return strings.Split(reason, "; ")
}

func TestEvaluateDedupWindowSuppressesRepeats(t *testing.T) {
	f := newFixture(t, Config{DedupWindow: time.Hour}, nil, "u")
	ctx := context.Background()

	first := f.correlator.Evaluate(ctx, f.cart.ID, nil)
	require.Len(t, first, 1)

	second := f.correlator.Evaluate(ctx, f.cart.ID, nil)
	assert.Empty(t, second, "an equivalent pending alert inside the window is suppressed")
}

func TestEvaluateZeroWindowEmitsFreshRows(t *testing.T) {
	f := newFixture(t, Config{}, nil, "u")
	ctx := context.Background()

	first := f.correlator.Evaluate(ctx, f.cart.ID, nil)
	second := f.correlator.Evaluate(ctx, f.cart.ID, nil)
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0].ID, second[0].ID)
}

func TestVerifyItemWritesFlagsBack(t *testing.T) {
	f := newFixture(t, Config{}, stubVerifier{result: vision.Result{Verified: true, Confidence: 0.92}}, "u")
	ctx := context.Background()

	cart, err := f.store.GetCart(ctx, f.cart.ID)
	require.NoError(t, err)
	itemID := cart.Items[0].ID

	result, err := f.correlator.VerifyItem(ctx, itemID, vision.Evidence{})
	require.NoError(t, err)
	assert.True(t, result.Verified)

	item, err := f.store.GetCartItem(ctx, itemID)
	require.NoError(t, err)
	assert.True(t, item.ScanVerified)
	assert.True(t, item.VerifiedByAI)
}

func TestVerifyItemFailureRaisesHighSeverity(t *testing.T) {
	f := newFixture(t, Config{}, stubVerifier{result: vision.Result{Verified: false, AlertTriggered: true}}, "u")
	ctx := context.Background()

	cart, err := f.store.GetCart(ctx, f.cart.ID)
	require.NoError(t, err)
	itemID := cart.Items[0].ID

	result, err := f.correlator.VerifyItem(ctx, itemID, vision.Evidence{})
	require.NoError(t, err)
	assert.False(t, result.Verified)

	item, err := f.store.GetCartItem(ctx, itemID)
	require.NoError(t, err)
	assert.True(t, item.ScanVerified)
	assert.False(t, item.VerifiedByAI)

	alerts, err := f.correlator.ListAlerts(ctx, repository.AlertFilter{CartID: &f.cart.ID})
	require.NoError(t, err)
	failed := alertsOfType(alerts, models.AlertAIVerificationFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, models.SeverityHigh, failed[0].Severity, "a directly reported failure outranks a sweep finding")
}

func TestVerifyItemUnknownItem(t *testing.T) {
	f := newFixture(t, Config{}, nil)

	_, err := f.correlator.VerifyItem(context.Background(), 42, vision.Evidence{})
	assert.True(t, errs.IsNotFound(err))
}

func TestResolveAlertTerminality(t *testing.T) {
	f := newFixture(t, Config{}, nil, "u")
	ctx := context.Background()

	alerts := f.correlator.Evaluate(ctx, f.cart.ID, nil)
	require.Len(t, alerts, 1)

	resolved, err := f.correlator.ResolveAlert(ctx, alerts[0].ID, "resolved")
	require.NoError(t, err)
	assert.Equal(t, models.AlertResolved, resolved.Status)
	assert.False(t, resolved.IsActive)
	assert.NotNil(t, resolved.ResolvedAt)

	_, err = f.correlator.ResolveAlert(ctx, alerts[0].ID, "false_positive")
	assert.True(t, errs.IsInvalidState(err))
}

func TestResolveAlertValidation(t *testing.T) {
	f := newFixture(t, Config{}, nil, "u")
	ctx := context.Background()

	alerts := f.correlator.Evaluate(ctx, f.cart.ID, nil)
	require.Len(t, alerts, 1)

	_, err := f.correlator.ResolveAlert(ctx, alerts[0].ID, "shrug")
	assert.True(t, errs.IsValidationFailed(err))

	_, err = f.correlator.ResolveAlert(ctx, 404, "resolved")
	assert.True(t, errs.IsNotFound(err))
}

func TestResolveAlertReviewedStampsBothTimes(t *testing.T) {
	f := newFixture(t, Config{}, nil, "u")
	ctx := context.Background()

	alerts := f.correlator.Evaluate(ctx, f.cart.ID, nil)
	require.Len(t, alerts, 1)

	reviewed, err := f.correlator.ResolveAlert(ctx, alerts[0].ID, "reviewed")
	require.NoError(t, err)
	assert.Equal(t, models.AlertReviewed, reviewed.Status)
	assert.NotNil(t, reviewed.ReviewedAt)
	assert.NotNil(t, reviewed.ResolvedAt)
}
