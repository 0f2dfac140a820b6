package v1

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"millstock/internal/app"
	"millstock/internal/infrastructure/idempotency"
	"millstock/internal/infrastructure/http/v1/handlers"
	"millstock/internal/infrastructure/http/v1/middleware"
	"millstock/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	App *app.App

	// Logger for request logging
	Logger *logger.Logger

	// ServiceName names HTTP spans; empty disables otelgin
	ServiceName string

	// HealthChecks are probed by /health/ready (database, redis ...)
	HealthChecks map[string]handlers.HealthChecker

	// Idempotency enables X-Idempotency-Key replay on POST when set
	Idempotency idempotency.Store
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	if cfg.ServiceName != "" {
		router.Use(otelgin.Middleware(cfg.ServiceName))
	}
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(log))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	healthHandler := handlers.NewHealthHandler(cfg.HealthChecks)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	api := router.Group("/api/v1")
	api.Use(middleware.Operator())
	if cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	registerCatalogRoutes(api, base, cfg.App)
	registerStockRoutes(api, base, cfg.App)
	registerOrderRoutes(api, base, cfg.App)
	registerLedgerRoutes(api, base, cfg.App)
	if cfg.App.Audit != nil {
		api.GET("/audit/:entityType/:id", handlers.NewAuditHandler(base, cfg.App.Audit).History)
	}

	return router
}

// registerCatalogRoutes registers products, colors and counterparties.
func registerCatalogRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, a *app.App) {
	products := handlers.NewProductHandler(base, a.Products, a.Colors, a.Stock)
	group := rg.Group("/products")
	RegisterCatalogRoutes(group, products)
	group.GET("/:id/colors", products.Colors)
	group.GET("/:id/inventory", products.Inventory)

	RegisterCatalogRoutes(rg.Group("/colors"), handlers.NewColorHandler(base, a.Colors))

	counterparties := handlers.NewCounterpartyHandler(base, a.Counterparties, a.Ledger)
	group = rg.Group("/counterparties")
	RegisterCatalogRoutes(group, counterparties)
	group.GET("/:id/balance", counterparties.Balance)
}

// registerStockRoutes registers batch endpoints.
func registerStockRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, a *app.App) {
	h := handlers.NewStockHandler(base, a.Stock, a.Engine)
	batches := rg.Group("/batches")
	{
		batches.GET("", h.List)
		batches.GET("/:id", h.Get)
		batches.POST("/:id/adjust", h.Adjust)
		batches.GET("/:id/check", h.Check)
		batches.GET("/:id/movements", h.Movements)
	}
}

// registerOrderRoutes registers the five order families.
func registerOrderRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, a *app.App) {
	purchases := handlers.NewPurchaseHandler(base, a.Purchases)
	RegisterOrderRoutes(rg.Group("/purchase-orders"), purchases, Actions{
		"review":   purchases.Review,
		"unreview": purchases.Unreview,
		"commit":   purchases.Commit,
	})

	sales := handlers.NewSalesHandler(base, a.Sales)
	RegisterOrderRoutes(rg.Group("/sales-orders"), sales, Actions{
		"review":   sales.Review,
		"unreview": sales.Unreview,
		"commit":   sales.Commit,
	})

	dyeings := handlers.NewDyeingHandler(base, a.Dyeings)
	RegisterOrderRoutes(rg.Group("/dyeing-orders"), dyeings, Actions{
		"ship":     dyeings.Ship,
		"complete": dyeings.Complete,
		"stock-in": dyeings.StockIn,
	})

	adjustments := handlers.NewAdjustmentHandler(base, a.Adjustments)
	RegisterOrderRoutes(rg.Group("/adjustments"), adjustments, Actions{
		"commit": adjustments.Commit,
	})

	counts := handlers.NewCycleCountHandler(base, a.CycleCounts)
	RegisterOrderRoutes(rg.Group("/cycle-counts"), counts, Actions{
		"start":    counts.Start,
		"counts":   counts.RecordCount,
		"complete": counts.Complete,
	})
}

// registerLedgerRoutes registers accounts and settlements.
func registerLedgerRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, a *app.App) {
	h := handlers.NewLedgerHandler(base, a.Ledger, a.Settlements)
	accounts := rg.Group("/accounts")
	{
		accounts.GET("", h.List)
		accounts.POST("/batch-payments", h.RegisterBatchPayment)
		accounts.GET("/:id", h.Get)
		accounts.GET("/:id/settlements", h.Settlements)
		accounts.POST("/:id/payments", h.RegisterPayment)
	}
}
