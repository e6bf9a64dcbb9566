// Package vision wraps the external object-detection capability behind a
// uniform verification contract. The detector backend is an external
// collaborator; this package only decides whether its output matches the
// scanned product. Backend failures are never surfaced as errors. An
// unverifiable item is itself a security signal, so failures degrade to an
// unverified result with the alert flag set.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/example/smartcart/pkg/models"
	"go.uber.org/zap"
)

// Detection is one object the camera backend reports.
type Detection struct {
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}

// Evidence carries either raw image data (base64, optionally with a data-URL
// prefix) or a pre-extracted detection list.
type Evidence struct {
	ImageData  string      `json:"image_data,omitempty"`
	Detections []Detection `json:"detections,omitempty"`
}

func (e Evidence) Empty() bool {
	return e.ImageData == "" && len(e.Detections) == 0
}

// Result is the adapter's verdict for one product.
type Result struct {
	Verified       bool    `json:"verified"`
	Confidence     float64 `json:"confidence"`
	MatchScore     float64 `json:"match_score"`
	AlertTriggered bool    `json:"alert_triggered"`
	Message        string  `json:"message"`
	DetectedLabel  string  `json:"detected_label,omitempty"`
}

// Verifier is the pluggable verification strategy, chosen once at process
// start. Implementations are pure with respect to cart state: the caller
// owns writing flags back onto the item.
type Verifier interface {
	Verify(ctx context.Context, product *models.Product, ev Evidence) Result
}

// Detector is the external vision backend contract.
type Detector interface {
	Detect(ctx context.Context, img []byte) ([]Detection, error)
}

// DetectionVerifier is the backed strategy: decode evidence into detections,
// match labels against the product, and accept the best match above the
// confidence threshold.
type DetectionVerifier struct {
	detector  Detector
	threshold float64
	timeout   time.Duration
	logger    *zap.Logger
}

func NewDetectionVerifier(detector Detector, threshold float64, timeout time.Duration, logger *zap.Logger) *DetectionVerifier {
	if threshold <= 0 {
		threshold = 0.5
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DetectionVerifier{
		detector:  detector,
		threshold: threshold,
		timeout:   timeout,
		logger:    logger,
	}
}

func (v *DetectionVerifier) Verify(ctx context.Context, product *models.Product, ev Evidence) Result {
	detections := ev.Detections

	if ev.ImageData != "" {
		img, err := decodeImage(ev.ImageData)
		if err != nil {
			return degraded("failed to decode image")
		}
		detections, err = v.detect(ctx, img)
		if err != nil {
			v.logger.Warn("vision backend failed",
				zap.Uint("product_id", product.ID), zap.Error(err))
			return degraded("vision backend unavailable")
		}
	}

	if len(detections) == 0 {
		return degraded("no image data or detections provided")
	}

	var best *Detection
	for i := range detections {
		d := &detections[i]
		if !labelMatches(d.Label, product) {
			continue
		}
		if best == nil || d.Confidence > best.Confidence {
			best = d
		}
	}

	if best != nil && best.Confidence >= v.threshold {
		return Result{
			Verified:      true,
			Confidence:    best.Confidence,
			MatchScore:    best.Confidence,
			Message:       fmt.Sprintf("product verified with %.0f%% confidence", best.Confidence*100),
			DetectedLabel: best.Label,
		}
	}

	res := Result{
		AlertTriggered: true,
		Message:        "product mismatch detected",
	}
	if best != nil {
		res.Confidence = best.Confidence
		res.MatchScore = best.Confidence
		res.DetectedLabel = best.Label
	}
	return res
}

// detect runs the backend under the adapter's own timeout so a hung backend
// cannot stall the caller.
func (v *DetectionVerifier) detect(ctx context.Context, img []byte) ([]Detection, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	type outcome struct {
		detections []Detection
		err        error
	}
	ch := make(chan outcome, 1)
	go func() {
		d, err := v.detector.Detect(ctx, img)
		ch <- outcome{d, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("vision backend timed out after %s: %w", v.timeout, ctx.Err())
	case o := <-ch:
		return o.detections, o.err
	}
}

// labelMatches applies the case-insensitive substring rule in both
// directions against product name and category.
func labelMatches(label string, product *models.Product) bool {
	l := strings.ToLower(strings.TrimSpace(label))
	if l == "" {
		return false
	}
	name := strings.ToLower(product.Name)
	category := strings.ToLower(product.Category)

	return strings.Contains(name, l) || strings.Contains(l, name) ||
		strings.Contains(category, l) || strings.Contains(l, category)
}

func decodeImage(data string) ([]byte, error) {
	if idx := strings.Index(data, ","); strings.HasPrefix(data, "data:image") && idx >= 0 {
		data = data[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image: %w", err)
	}
	if _, _, err := image.Decode(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("unreadable image: %w", err)
	}
	return raw, nil
}

func degraded(msg string) Result {
	return Result{
		Verified:       false,
		AlertTriggered: true,
		Message:        msg,
	}
}
