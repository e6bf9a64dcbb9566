package gateway

import (
	"fmt"
	"net/http"
	"time"

	"github.com/example/smartcart/pkg/catalog"
	"github.com/example/smartcart/pkg/checkout"
	"github.com/example/smartcart/pkg/config"
	"github.com/example/smartcart/pkg/errs"
	"github.com/example/smartcart/pkg/eventbus"
	"github.com/example/smartcart/pkg/ledger"
	"github.com/example/smartcart/pkg/repository"
	"github.com/example/smartcart/pkg/theft"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// Gateway is the thin HTTP surface over the core operations. No business
// logic lives here; handlers translate requests, call one service operation
// and map errors to status codes.
type Gateway struct {
	config     *config.Config
	logger     *zap.Logger
	router     *gin.Engine
	store      repository.Store
	catalog    *catalog.Catalog
	ledger     *ledger.Service
	correlator *theft.Correlator
	gate       *checkout.Gate
	bus        *eventbus.Bus
}

func New(
	cfg *config.Config,
	logger *zap.Logger,
	store repository.Store,
	cat *catalog.Catalog,
	led *ledger.Service,
	correlator *theft.Correlator,
	gate *checkout.Gate,
	bus *eventbus.Bus,
) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))
	router.Use(metricsMiddleware())

	return &Gateway{
		config:     cfg,
		logger:     logger,
		router:     router,
		store:      store,
		catalog:    cat,
		ledger:     led,
		correlator: correlator,
		gate:       gate,
		bus:        bus,
	}
}

func (g *Gateway) SetupRoutes() {
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	g.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := g.router.Group("/api/v1")
	{
		carts := v1.Group("/cart")
		{
			carts.POST("", g.createCart)
			carts.GET("/:id", g.getCart)
			carts.GET("/session/:session_id", g.getCartBySession)
			carts.PUT("/:id", g.updateCartStatus)
			carts.POST("/:id/items", g.addItem)
			carts.PUT("/:id/items/:item_id", g.setQuantity)
			carts.DELETE("/:id/items/:item_id", g.removeItem)
			carts.GET("/:id/billing", g.getBilling)
			carts.POST("/:id/recount", g.recount)
		}

		ai := v1.Group("/ai")
		{
			ai.POST("/verify-item/:item_id", g.verifyItem)
		}

		alerts := v1.Group("/alerts")
		{
			alerts.GET("", g.listAlerts)
			alerts.GET("/:id", g.getAlert)
			alerts.POST("/:id/resolve", g.resolveAlert)
		}

		payment := v1.Group("/payment")
		{
			payment.POST("/:cart_id/qr", g.paymentQR)
			payment.POST("/process", g.processPayment)
		}

		products := v1.Group("/products")
		{
			products.GET("", g.listProducts)
			products.GET("/:id", g.getProduct)
		}

		v1.GET("/iot/messages", g.busHistory)

		admin := v1.Group("/admin")
		{
			admin.GET("/stats", g.adminStats)
			admin.GET("/alerts/summary", g.alertsSummary)
		}
	}

	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

func (g *Gateway) Start() error {
	addr := fmt.Sprintf("%s:%d", g.config.Server.Host, g.config.Server.Port)
	g.logger.Info("gateway starting", zap.String("address", addr))
	return g.router.Run(addr)
}

// Router exposes the engine for httptest-style exercising.
func (g *Gateway) Router() *gin.Engine {
	return g.router
}

// fail maps the error taxonomy onto status codes: NotFound → 404,
// InvalidState and ValidationFailed → 400, anything else → 500. Adapter
// failures never reach here; the adapter degrades them into results.
func fail(c *gin.Context, err error) {
	switch {
	case errs.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errs.IsInvalidState(err), errs.IsValidationFailed(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
