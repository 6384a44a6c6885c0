package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-checkout/internal/config"
	"market-checkout/internal/coupon"
	"market-checkout/internal/database"
	"market-checkout/internal/events"
	"market-checkout/internal/handler"
	"market-checkout/internal/idempotency"
	"market-checkout/internal/inventory"
	"market-checkout/internal/payment"
	"market-checkout/internal/pricing"
	"market-checkout/internal/repository"
	"market-checkout/internal/router"
	"market-checkout/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting market-checkout API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	// Initialize repositories
	productRepo := repository.NewProductRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	sellerOrderRepo := repository.NewSellerOrderRepository(pool, logger)
	cartRepo := repository.NewCartRepository(pool, logger)
	couponRepo := repository.NewCouponRepository(pool, logger)
	paymentRepo := repository.NewPaymentRepository(pool, logger)

	// Pricing pipeline
	couponValidator := coupon.NewValidator(couponRepo, logger)
	calculator := pricing.NewCalculator(productRepo, couponValidator, cfg.Pricing, logger)
	verifier := pricing.NewVerifier(calculator, cfg.Pricing.PriceTolerance, logger)
	reserver := inventory.NewReserver(productRepo, logger)

	// Payment gateway; the simulator is refused in production by config
	// validation requiring a provider URL there.
	var gateway payment.Gateway
	if cfg.Payment.ProviderBaseURL != "" {
		gateway = payment.NewHTTPGateway(cfg.Payment, logger)
	} else {
		logger.Warn().Msg("no payment provider configured, using simulated gateway")
		gateway = payment.NewSimulatedGateway(logger)
	}
	normalizer := payment.NewNormalizer(gateway, cfg.Payment, logger)

	// Idempotency markers and event sink
	markers := idempotency.NewRedisStore(cfg.Redis.Addr, "checkout", logger)
	markerTTL := time.Duration(cfg.Redis.MarkerTTLSecs) * time.Second

	var publisher events.Publisher
	if cfg.Kafka.Brokers != "" {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	} else {
		logger.Info().Msg("no kafka brokers configured, order events disabled")
		publisher = events.NewNopPublisher()
	}

	// Initialize services
	productService := service.NewProductService(productRepo, logger)
	checkoutService := service.NewCheckoutService(
		orderRepo, sellerOrderRepo, cartRepo, couponRepo, paymentRepo,
		calculator, verifier, reserver, gateway, normalizer, markers, publisher,
		cfg.Pricing, cfg.Payment.Currency, markerTTL, logger,
	)
	webhookService := service.NewWebhookService(
		orderRepo, sellerOrderRepo, couponRepo, paymentRepo,
		calculator, reserver, normalizer, markers, publisher,
		cfg.Pricing, markerTTL, logger,
	)

	// Initialize HTTP handlers
	productHandler := handler.NewProductHandler(productService, logger)
	checkoutHandler := handler.NewCheckoutHandler(checkoutService, logger)
	webhookHandler := handler.NewWebhookHandler(webhookService, logger)

	// Initialize router
	mux := router.New(productHandler, checkoutHandler, webhookHandler, cfg.Auth.APIKey, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}
