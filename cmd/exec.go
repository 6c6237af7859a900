package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"party-system/config"
	"party-system/handlers"
	"party-system/monitoring"
	"party-system/security"
	"party-system/services"
	"party-system/store"
	"party-system/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	pubnub "github.com/pubnub/go"

	_ "party-system/migrations"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize PubNub
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	pn := pubnub.NewPubNub(pnConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	partyStore := store.NewPBStore(app, cfg.TxMaxAttempts, cfg.TxRetryBackoff)
	notifier := services.NewPubNubNotifier(pn)
	statsService := services.NewStatsService(app)
	partyService := services.NewPartyService(partyStore, notifier, statsService, cfg)

	sweepLock := utils.NewRedisLock(redisClient, "sweep:lock", cfg.SweepLockTTL)
	sweeper := services.NewSweeper(partyStore, partyService, sweepLock, cfg)

	paymentListener := services.NewPaymentListener(pn, partyService)

	rateLimiter := security.NewRateLimiter(redisClient)

	// Initialize handlers
	partyHandler := handlers.NewPartyHandler(partyService)
	paymentHandler := handlers.NewPaymentHandler(partyService, pn, cfg)
	adminHandler := handlers.NewAdminHandler(sweeper, redisClient)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Start background tasks
	sweeper.Start(ctx)
	go paymentListener.Listen(ctx)

	if cfg.EnableMetrics {
		monitoring.ServeMetrics(cfg.MetricsPort)
	}

	// Setup graceful shutdown
	go handleShutdown(cancel, sweeper)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		e.Router.BindFunc(rateLimiter.AntiBotMiddleware())

		// Party endpoints
		e.Router.POST("/api/v1/parties", partyHandler.CreateParty)
		e.Router.GET("/api/v1/parties", partyHandler.ListParties)
		e.Router.GET("/api/v1/parties/{partyId}", partyHandler.GetParty)
		e.Router.POST("/api/v1/parties/{partyId}/end", partyHandler.EndParty)
		e.Router.POST("/api/v1/parties/{partyId}/cancel", partyHandler.CancelParty)

		// Guest request endpoints
		e.Router.POST("/api/v1/parties/{partyId}/requests", partyHandler.SubmitRequest).
			BindFunc(rateLimiter.RequestRateLimit(cfg.SubmitRateLimit, cfg.SubmitRateWindow))
		e.Router.POST("/api/v1/parties/{partyId}/requests/{requestId}/approve", partyHandler.ApproveRequest)
		e.Router.POST("/api/v1/parties/{partyId}/requests/{requestId}/deny", partyHandler.DenyRequest)
		e.Router.POST("/api/v1/parties/{partyId}/requests/{requestId}/free", partyHandler.ApproveFree)
		e.Router.POST("/api/v1/parties/{partyId}/requests/{requestId}/verify", partyHandler.VerifyProof)
		e.Router.POST("/api/v1/parties/{partyId}/proof", partyHandler.SubmitProof)
		e.Router.POST("/api/v1/parties/{partyId}/leave", partyHandler.Leave)

		// Payment endpoints
		e.Router.POST("/api/v1/webhooks/payment", paymentHandler.PaymentWebhook)

		// Admin endpoints
		e.Router.POST("/api/v1/admin/force-sweep", adminHandler.ForceSweep).Bind(apis.RequireSuperuserAuth())
		e.Router.GET("/api/v1/admin/sweeper-status", adminHandler.SweeperStatus).Bind(apis.RequireSuperuserAuth())

		// Test endpoint for payment simulation
		if cfg.Environment == "development" {
			e.Router.POST("/api/v1/test/simulate-payment", paymentHandler.SimulatePayment)
		}

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc, sweeper *services.Sweeper) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
	sweeper.Shutdown()
}
