package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"carshare/internal/app"
	"carshare/internal/config"
	"carshare/internal/handler"
	"carshare/internal/jobs"
	"carshare/internal/middleware"
	internalRedis "carshare/internal/redis"
	"carshare/internal/repository/postgres"
	"carshare/internal/scheduler"
	"carshare/internal/service"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s", cfg.NewRelic.AppName)
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL, schema up to date")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	server, settlement, payouts, err := wireServer(db, redisClient, nrApp, cfg)
	if err != nil {
		log.Fatalf("failed to wire server: %v", err)
	}

	var sched *scheduler.Scheduler
	if cfg.Jobs.Enabled {
		runner := jobs.NewJobRunner(settlement, cfg.Jobs.StaleWithdrawalAge)
		sched, err = scheduler.NewScheduler(runner, scheduler.Schedules{
			ResubmitStalePayouts: cfg.Jobs.PayoutResubmitSchedule,
		})
		if err != nil {
			log.Fatalf("failed to schedule jobs: %v", err)
		}
		sched.Start()
	}

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}
	if sched != nil {
		sched.Stop()
	}
	// Let in-flight payout callbacks land before the database closes.
	payouts.Wait()
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Println("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	cfg *config.Config,
) (*http.Server, *service.SettlementService, *service.MockPayoutProcessor, error) {
	// Initialize Redis stores.
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)
	eventBus := internalRedis.NewEventBus(redisClient)

	// Initialize repositories.
	partyRepo := postgres.NewPartyRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)
	withdrawalRepo := postgres.NewWithdrawalRepository(db)

	// Initialize services.
	policy, err := app.NewSettlementPolicy(cfg.Settlement)
	if err != nil {
		return nil, nil, nil, err
	}
	// The messaging clients outlive startup, so they must not inherit its timeout.
	email, push, err := app.NewNotificationChannels(context.Background(), cfg.Notification)
	if err != nil {
		return nil, nil, nil, err
	}
	notificationService := service.NewNotificationService(partyRepo, eventBus, email, push)
	payouts := service.NewMockPayoutProcessor(cfg.Jobs.MockPayoutDelay)
	settlementService := service.NewSettlementService(
		bookingRepo, withdrawalRepo, lockStore, cacheStore, notificationService, payouts, policy,
	)
	payouts.Bind(settlementService)

	// Initialize handlers.
	partyHandler := handler.NewPartyHandler(partyRepo)
	bookingHandler := handler.NewBookingHandler(settlementService)
	withdrawalHandler := handler.NewWithdrawalHandler(settlementService)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		PartyHandler:      partyHandler,
		BookingHandler:    bookingHandler,
		WithdrawalHandler: withdrawalHandler,
		Auth: middleware.AuthOptions{
			JWTSecret:            cfg.Auth.JWTSecret,
			JWTIssuer:            cfg.Auth.JWTIssuer,
			PayoutCallbackSecret: cfg.Auth.PayoutCallbackSecret,
		},
		RedisClient: redisClient,
		NewRelicApp: nrApp,
	})

	// Create HTTP server.
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return server, settlementService, payouts, nil
}
