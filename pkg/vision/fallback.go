package vision

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/example/smartcart/pkg/models"
)

// FallbackVerifier stands in when no detector backend is configured, so the
// rest of the pipeline stays fully exercisable. It draws confidence from
// U[0.7, 0.95] and the match outcome from a ~75% biased coin. Demo parity
// only: production deployments plug a real Detector into DetectionVerifier,
// and tests substitute a fixed-seed instance or a stub Verifier.
type FallbackVerifier struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewFallbackVerifier seeds the stand-in. Seed zero means wall-clock seeded.
func NewFallbackVerifier(seed int64) *FallbackVerifier {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &FallbackVerifier{rng: rand.New(rand.NewSource(seed))}
}

func (v *FallbackVerifier) Verify(_ context.Context, product *models.Product, _ Evidence) Result {
	v.mu.Lock()
	confidence := 0.7 + v.rng.Float64()*0.25
	match := v.rng.Float64() < 0.75
	v.mu.Unlock()

	if match {
		return Result{
			Verified:      true,
			Confidence:    confidence,
			MatchScore:    confidence,
			Message:       "fallback verification: match confirmed",
			DetectedLabel: product.Name,
		}
	}
	return Result{
		Verified:       false,
		Confidence:     confidence,
		MatchScore:     0.3,
		AlertTriggered: true,
		Message:        "fallback verification: mismatch detected",
	}
}
