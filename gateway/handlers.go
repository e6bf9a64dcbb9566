package gateway

import (
	"net/http"
	"strconv"

	"github.com/example/smartcart/pkg/eventbus"
	"github.com/example/smartcart/pkg/models"
	"github.com/example/smartcart/pkg/repository"
	"github.com/example/smartcart/pkg/vision"
	"github.com/gin-gonic/gin"
)

type createCartRequest struct {
	SessionID string `json:"session_id"`
}

type addItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

type recountRequest struct {
	DetectedCount *int               `json:"detected_count"`
	Detections    []vision.Detection `json:"detections"`
}

type verifyItemRequest struct {
	ImageData  string             `json:"image_data"`
	Detections []vision.Detection `json:"detections"`
}

type resolveAlertRequest struct {
	Resolution string `json:"resolution" binding:"required"`
}

type processPaymentRequest struct {
	CartID           uint   `json:"cart_id" binding:"required"`
	PaymentMethod    string `json:"payment_method" binding:"required"`
	PaymentReference string `json:"payment_reference"`
}

func recordAlerts(alerts []models.Alert) {
	for _, a := range alerts {
		observeAlerts(string(a.Type))
	}
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// createCart godoc
// @Summary Start a cart session
// @Tags cart
// @Accept json
// @Produce json
// @Param request body createCartRequest false "Session"
// @Success 201 {object} models.Cart
// @Router /api/v1/cart [post]
func (g *Gateway) createCart(c *gin.Context) {
	var req createCartRequest
	_ = c.ShouldBindJSON(&req) // empty body is a valid anonymous session

	cart, err := g.ledger.CreateCart(c.Request.Context(), req.SessionID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cart)
}

func (g *Gateway) getCart(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cart, err := g.ledger.GetCart(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (g *Gateway) getCartBySession(c *gin.Context) {
	cart, err := g.ledger.GetCartBySession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (g *Gateway) updateCartStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cart, err := g.ledger.SetStatus(c.Request.Context(), id, models.CartStatus(req.Status))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// addItem godoc
// @Summary Record a barcode scan
// @Tags cart
// @Accept json
// @Produce json
// @Param id path int true "Cart ID"
// @Param request body addItemRequest true "Scan"
// @Success 201 {object} models.CartItem
// @Router /api/v1/cart/{id}/items [post]
func (g *Gateway) addItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	item, err := g.ledger.AddItem(c.Request.Context(), id, req.ProductID, req.Quantity)
	if err != nil {
		fail(c, err)
		return
	}

	// Ledger mutation done; the signal rules get a fresh pass over the cart.
	alerts := g.correlator.Evaluate(c.Request.Context(), id, nil)
	recordAlerts(alerts)
	c.JSON(http.StatusCreated, gin.H{"item": item, "alerts": alerts})
}

func (g *Gateway) setQuantity(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "item_id")
	if !ok {
		return
	}
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	item, err := g.ledger.SetQuantity(c.Request.Context(), id, itemID, req.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	recordAlerts(g.correlator.Evaluate(c.Request.Context(), id, nil))

	if item == nil {
		c.JSON(http.StatusOK, gin.H{"removed": true})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (g *Gateway) removeItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "item_id")
	if !ok {
		return
	}

	if err := g.ledger.RemoveItem(c.Request.Context(), id, itemID); err != nil {
		fail(c, err)
		return
	}
	recordAlerts(g.correlator.Evaluate(c.Request.Context(), id, nil))
	c.JSON(http.StatusOK, gin.H{"removed": true})
}

// getBilling godoc
// @Summary Current bill for a cart
// @Tags cart
// @Produce json
// @Param id path int true "Cart ID"
// @Success 200 {object} ledger.BillingResponse
// @Router /api/v1/cart/{id}/billing [get]
func (g *Gateway) getBilling(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	bill, err := g.ledger.Billing(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bill)
}

// recount feeds a camera object count into the correlator. The count may come
// in directly or as a detection list, in which case its length is the count.
func (g *Gateway) recount(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req recountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	detected := req.DetectedCount
	if detected == nil && req.Detections != nil {
		n := len(req.Detections)
		detected = &n
	}
	if detected == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "detected_count or detections required"})
		return
	}

	eventbus.PublishCameraEvent(g.bus, id, *detected)
	alerts := g.correlator.Evaluate(c.Request.Context(), id, detected)
	recordAlerts(alerts)
	c.JSON(http.StatusOK, gin.H{"detected_count": *detected, "alerts": alerts})
}

// verifyItem godoc
// @Summary Run vision verification for one cart item
// @Tags ai
// @Accept json
// @Produce json
// @Param item_id path int true "Cart item ID"
// @Param request body verifyItemRequest false "Evidence"
// @Success 200 {object} vision.Result
// @Router /api/v1/ai/verify-item/{item_id} [post]
func (g *Gateway) verifyItem(c *gin.Context) {
	itemID, ok := pathID(c, "item_id")
	if !ok {
		return
	}
	var req verifyItemRequest
	_ = c.ShouldBindJSON(&req) // no evidence degrades inside the verifier

	result, err := g.correlator.VerifyItem(c.Request.Context(), itemID, vision.Evidence{
		ImageData:  req.ImageData,
		Detections: req.Detections,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (g *Gateway) listAlerts(c *gin.Context) {
	var f repository.AlertFilter

	if raw := c.Query("cart_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cart_id"})
			return
		}
		cartID := uint(id)
		f.CartID = &cartID
	}
	if raw := c.Query("status"); raw != "" {
		status := models.AlertStatus(raw)
		f.Status = &status
	}
	f.ActiveOnly = c.Query("active_only") == "true"
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			f.Limit = n
		}
	}

	alerts, err := g.correlator.ListAlerts(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

func (g *Gateway) getAlert(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	alert, err := g.correlator.GetAlert(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

// resolveAlert godoc
// @Summary Apply an operator resolution to a pending alert
// @Tags alerts
// @Accept json
// @Produce json
// @Param id path int true "Alert ID"
// @Param request body resolveAlertRequest true "Resolution"
// @Success 200 {object} models.Alert
// @Router /api/v1/alerts/{id}/resolve [post]
func (g *Gateway) resolveAlert(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req resolveAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	alert, err := g.correlator.ResolveAlert(c.Request.Context(), id, req.Resolution)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (g *Gateway) paymentQR(c *gin.Context) {
	id, ok := pathID(c, "cart_id")
	if !ok {
		return
	}
	payload, err := g.gate.GeneratePaymentQR(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

// processPayment godoc
// @Summary Settle a cart
// @Tags payment
// @Accept json
// @Produce json
// @Param request body processPaymentRequest true "Payment"
// @Success 200 {object} checkout.PaymentResponse
// @Router /api/v1/payment/process [post]
func (g *Gateway) processPayment(c *gin.Context) {
	var req processPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := g.gate.ProcessPayment(c.Request.Context(), req.CartID, req.PaymentMethod, req.PaymentReference)
	if err != nil {
		fail(c, err)
		return
	}
	observePayment()
	c.JSON(http.StatusOK, resp)
}

func (g *Gateway) listProducts(c *gin.Context) {
	if barcode := c.Query("barcode"); barcode != "" {
		p, err := g.catalog.LookupByBarcode(c.Request.Context(), barcode)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"products": []interface{}{p}, "count": 1})
		return
	}

	products, err := g.catalog.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

func (g *Gateway) getProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	product, err := g.catalog.Lookup(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (g *Gateway) busHistory(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	messages := g.bus.History(c.Query("topic"), limit)
	c.JSON(http.StatusOK, gin.H{"messages": messages, "count": len(messages)})
}

func (g *Gateway) adminStats(c *gin.Context) {
	ctx := c.Request.Context()

	active := models.CartStatusActive
	activeCarts, err := g.store.ListCarts(ctx, &active)
	if err != nil {
		fail(c, err)
		return
	}

	paid := models.CartStatusPaid
	paidCarts, err := g.store.ListCarts(ctx, &paid)
	if err != nil {
		fail(c, err)
		return
	}
	revenue := 0.0
	for _, cart := range paidCarts {
		revenue += cart.FinalAmount
	}

	alerts, err := g.store.ListAlerts(ctx, repository.AlertFilter{ActiveOnly: true, Limit: 1000})
	if err != nil {
		fail(c, err)
		return
	}

	products, err := g.store.CountProducts(ctx)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"active_carts":  len(activeCarts),
		"paid_carts":    len(paidCarts),
		"total_revenue": revenue,
		"active_alerts": len(alerts),
		"products":      products,
	})
}

func (g *Gateway) alertsSummary(c *gin.Context) {
	alerts, err := g.store.ListAlerts(c.Request.Context(), repository.AlertFilter{Limit: 1000})
	if err != nil {
		fail(c, err)
		return
	}

	byType := make(map[string]int)
	bySeverity := make(map[string]int)
	pending := 0
	for _, a := range alerts {
		byType[string(a.Type)]++
		bySeverity[string(a.Severity)]++
		if a.Status == models.AlertPending {
			pending++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"total":       len(alerts),
		"pending":     pending,
		"by_type":     byType,
		"by_severity": bySeverity,
	})
}
