package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"folio/internal/config"
	"folio/internal/handlers"
	"folio/internal/middleware"
	"folio/internal/pricing"
	"folio/internal/services"
)

// appServices is the service graph shared by the router and the refresh workers.
type appServices struct {
	audit        services.AuditServicer
	holdings     services.HoldingsServicer
	transactions services.TransactionServicer
	categories   services.CategoryServicer
	prices       services.PriceServicer
	valuation    services.ValuationServicer
}

func newServices(db *gorm.DB, publisher pricing.Publisher, cfg *config.Config) *appServices {
	holdings := services.NewHoldingsService(db)
	categories := services.NewCategoryService(db)
	prices := services.NewPriceService(db, publisher, services.PriceOptions{
		PollAttempts:   cfg.PricePollAttempts,
		PollDelay:      cfg.PricePollDelay,
		FallbackMonths: cfg.PriceFallbackMonths,
	})
	return &appServices{
		audit:        services.NewAuditService(db),
		holdings:     holdings,
		transactions: services.NewTransactionService(db, holdings),
		categories:   categories,
		prices:       prices,
		valuation:    services.NewValuationService(holdings, prices, categories, services.ValuationOptions{}),
	}
}

func newRouter(cfg *config.Config, svc *appServices) *gin.Engine {
	transactionHandler := handlers.NewTransactionHandler(svc.transactions, svc.audit)
	holdingsHandler := handlers.NewHoldingsHandler(svc.holdings, svc.audit)
	categoryHandler := handlers.NewCategoryHandler(svc.categories, svc.audit)
	valuationHandler := handlers.NewValuationHandler(svc.valuation, cfg.DefaultCurrency)
	pipelineHandler := handlers.NewPipelineHandler(svc.prices, svc.holdings, svc.audit)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/valuation", valuationHandler.GetValuation)

	charts := protected.Group("/charts")
	charts.GET("/pie", valuationHandler.GetPieChart)
	charts.GET("/bar", valuationHandler.GetBarChart)

	transactions := protected.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("", transactionHandler.GetAccountTransactions)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)

	holdings := protected.Group("/holdings")
	holdings.GET("", holdingsHandler.GetCurrentHoldings)
	holdings.GET("/snapshots", holdingsHandler.GetSnapshots)
	holdings.POST("/rebuild", holdingsHandler.RebuildHoldings)

	categories := protected.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.GetAccountCategories)
	categories.GET("/:id", categoryHandler.GetCategoryByID)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)
	categories.GET("/:id/assignments", categoryHandler.ListAssignments)
	categories.PUT("/:id/assignments", categoryHandler.AssignAsset)
	categories.DELETE("/:id/assignments/:asset", categoryHandler.UnassignAsset)

	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(cfg.PipelineAPIKey))
	pipeline.POST("/prices", pipelineHandler.RecordPrices)
	pipeline.POST("/holdings/rebuild", pipelineHandler.RebuildAll)

	return router
}
