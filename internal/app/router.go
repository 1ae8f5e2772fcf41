package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"carshare/internal/handler"
	"carshare/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	BookingHandler    *handler.BookingHandler
	WithdrawalHandler *handler.WithdrawalHandler
	PartyHandler      *handler.PartyHandler
	Auth              middleware.AuthOptions
	RedisClient       *redis.Client // Optional: disables idempotency replay when nil
	NewRelicApp       *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
		router.Use(middleware.ErrorReportingMiddleware())
	}

	router.Use(middleware.ActorMiddleware(deps.Auth))
	if deps.RedisClient != nil {
		router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Party routes.
		parties := v1.Group("/parties")
		{
			parties.POST("/register", deps.PartyHandler.Register)
			parties.GET("", deps.PartyHandler.GetAll)
		}

		// Booking routes.
		bookings := v1.Group("/bookings")
		{
			bookings.POST("", deps.BookingHandler.CreateBooking)
			bookings.GET("/:id", deps.BookingHandler.GetBooking)
			bookings.POST("/:id/accept", deps.BookingHandler.AcceptBooking)
			bookings.POST("/:id/reject", deps.BookingHandler.RejectBooking)
			bookings.POST("/:id/start", deps.BookingHandler.StartRide)
			bookings.POST("/:id/complete", deps.BookingHandler.CompleteBooking)
			bookings.POST("/:id/cancel", deps.BookingHandler.CancelBooking)
		}

		// Owner routes.
		owners := v1.Group("/owners")
		{
			owners.GET("/:id/bookings", deps.BookingHandler.ListProviderBookings)
			owners.GET("/:id/balance", deps.WithdrawalHandler.GetBalance)
			owners.GET("/:id/withdrawals", deps.WithdrawalHandler.ListWithdrawals)
		}

		// Withdrawal routes.
		withdrawals := v1.Group("/withdrawals")
		{
			withdrawals.POST("", deps.WithdrawalHandler.RequestWithdrawal)
			withdrawals.GET("/:id", deps.WithdrawalHandler.GetWithdrawal)
		}

		// Status callbacks, called by the payout processor only.
		callbacks := v1.Group("/withdrawals", middleware.PayoutCallbackMiddleware(deps.Auth.PayoutCallbackSecret))
		{
			callbacks.POST("/:id/processing", deps.WithdrawalHandler.MarkProcessing)
			callbacks.POST("/:id/complete", deps.WithdrawalHandler.Complete)
			callbacks.POST("/:id/fail", deps.WithdrawalHandler.Fail)
		}
	}

	return router
}
