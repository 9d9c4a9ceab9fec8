// Package server assembles the HTTP API: services, handlers, middleware and
// routes.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"pulpe/internal/handlers"
	"pulpe/internal/logger"
	"pulpe/internal/middleware"
	"pulpe/internal/scheduler"
	"pulpe/internal/services"

	_ "pulpe/internal/docs" // Import swagger docs
)

// Options configures the router.
type Options struct {
	Tokens         *middleware.TokenIssuer
	DefaultPayDay  int
	OpsAPIKey      string
	RefreshWorkers int
	// Ping reports database health on /api/health. Nil skips the check.
	Ping func(ctx context.Context) error
	// Swagger serves the API documentation under /swagger.
	Swagger bool
}

// NewRouter wires every service and handler on db and registers the routes.
func NewRouter(db *gorm.DB, opts Options) *gin.Engine {
	// Initialize services
	userService := services.NewUserService(db)
	mutations := services.NewMutationLog(logger.Named("mutations"))
	periodService := services.NewBudgetPeriodService(db)
	envelopeService := services.NewEnvelopeService(db)
	transactionService := services.NewTransactionService(db)

	refresher := scheduler.NewRefresher(userService, periodService, opts.RefreshWorkers, logger.Named("refresher"))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, mutations, opts.Tokens, opts.DefaultPayDay)
	periodHandler := handlers.NewBudgetPeriodHandler(periodService, mutations)
	envelopeHandler := handlers.NewEnvelopeHandler(envelopeService, mutations)
	transactionHandler := handlers.NewTransactionHandler(transactionService, mutations)
	opsHandler := handlers.NewOpsHandler(refresher)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	if opts.Swagger {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	router.GET("/api/health", func(c *gin.Context) {
		if opts.Ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := opts.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	// Operations routes
	ops := v1.Group("/ops")
	ops.Use(middleware.OpsKeyAuth(opts.OpsAPIKey))
	ops.POST("/refresh", opsHandler.RefreshChains)
	ops.GET("/refresh", opsHandler.LastRefresh)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(opts.Tokens))

	protected.GET("/profile", authHandler.GetProfile)
	protected.PUT("/profile/pay-day", authHandler.UpdatePayDay)

	periods := protected.Group("/budget-periods")
	periods.POST("", periodHandler.CreatePeriod)
	periods.GET("", periodHandler.GetPeriods)
	periods.GET("/current", periodHandler.GetCurrentPeriod)
	periods.GET("/:id", periodHandler.GetPeriod)
	periods.DELETE("/:id", periodHandler.DeletePeriod)
	periods.GET("/:id/snapshot", periodHandler.GetSnapshot)
	periods.POST("/:id/ending-balance", periodHandler.RecalculateEndingBalance)
	periods.GET("/:id/transactions", transactionHandler.GetPeriodTransactions)

	envelopes := protected.Group("/envelopes")
	envelopes.POST("", envelopeHandler.CreateEnvelope)
	envelopes.GET("/:id", envelopeHandler.GetEnvelope)
	envelopes.PUT("/:id", envelopeHandler.UpdateEnvelope)
	envelopes.DELETE("/:id", envelopeHandler.DeleteEnvelope)
	envelopes.PUT("/:id/check", envelopeHandler.SetChecked)
	envelopes.POST("/:id/toggle", envelopeHandler.ToggleEnvelope)

	transactions := protected.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("/:id", transactionHandler.GetTransaction)
	transactions.PUT("/:id", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)
	transactions.PUT("/:id/check", transactionHandler.SetChecked)
	transactions.POST("/:id/toggle", transactionHandler.ToggleTransaction)

	return router
}
