package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DukeRupert/mundo/internal"
	"github.com/DukeRupert/mundo/internal/billing"
	"github.com/DukeRupert/mundo/internal/clock"
	"github.com/DukeRupert/mundo/internal/handler"
	"github.com/DukeRupert/mundo/internal/metrics"
	"github.com/DukeRupert/mundo/internal/middleware"
	"github.com/DukeRupert/mundo/internal/repository"
	"github.com/DukeRupert/mundo/internal/scheduler"
	"github.com/DukeRupert/mundo/internal/service"
	"github.com/DukeRupert/mundo/internal/storage"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(ctx, db, logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	store := repository.NewStore(db)
	clk := clock.System()

	// Initialize file storage
	fileStore, err := newStorage(cfg, logger)
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	// Payment gateways stay nil interfaces when not configured; checkout
	// answers 501 for them and the Stripe webhook acknowledges and ignores.
	var stripeService billing.Service
	if cfg.StripeSecretKey != "" {
		stripeService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, billing.PriceConfig{
			PremiumPriceID: cfg.StripePricePremium,
			VIPPriceID:     cfg.StripePriceVIP,
		})
		logger.Info("Stripe checkout enabled")
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, card checkout disabled")
	}

	var pixGateway billing.PixGateway
	if cfg.AbacatePayAPIKey != "" {
		pixGateway = billing.NewAbacatePayClient(billing.AbacatePayConfig{
			APIKey:  cfg.AbacatePayAPIKey,
			BaseURL: cfg.AbacatePayAPIURL,
			Timeout: cfg.PixTimeout,
		})
		logger.Info("PIX checkout enabled")
	} else {
		logger.Warn("ABACATEPAY_API_KEY not set, PIX checkout disabled")
	}

	// Initialize services
	ledger := service.NewLedger(clk)
	sessionService := service.NewSessionService(store, clk, service.SessionServiceConfig{
		SessionDuration: cfg.SessionDuration,
	}, logger)
	userService := service.NewUserService(store, sessionService, logger)
	subscriptionService := service.NewSubscriptionService(store, clk, logger)
	entitlementService := service.NewEntitlementService(store, ledger, clk, logger)
	adminService := service.NewAdminService(store, ledger, clk, logger)
	checkoutService := service.NewCheckoutService(store, stripeService, pixGateway, clk, logger)
	reconciler := service.NewReconciler(store, clk, logger)

	// Initialize middleware
	isSecure := !cfg.IsDevelopment()
	authMw := middleware.NewAuthMiddleware(userService, subscriptionService, logger, isSecure)
	authLimiter := middleware.NewAuthRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow, clk, logger)
	defer authLimiter.Close()
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(middleware.SecurityConfig{
		IsSecure:     isSecure,
		ImageOrigins: []string{cfg.R2PublicURL},
	})
	csrfMw := middleware.NewCSRFMiddleware(isSecure, logger)
	metricsAuth := middleware.NewMetricsAuthMiddleware(middleware.MetricsCredentials{
		Username: cfg.MetricsUsername,
		Password: cfg.MetricsPassword,
		Token:    cfg.MetricsToken,
	}, logger)
	if !metricsAuth.Enabled() {
		logger.Warn("METRICS_USERNAME, METRICS_PASSWORD and METRICS_TOKEN not set, /metrics is unprotected")
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(userService, authLimiter, cfg.SessionDuration, logger, isSecure)
	contentHandler := handler.NewContentHandler(entitlementService, fileStore, cfg.DownloadURLTTL, logger)
	checkoutHandler := handler.NewCheckoutHandler(checkoutService, cfg.BaseURL, logger)
	webhookHandler := handler.NewWebhookHandler(stripeService, reconciler, cfg.AbacatePayWebhookSecret, logger)
	adminHandler := handler.NewAdminHandler(adminService, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	mux.Handle("GET /health", handler.NewHealthHandler(db, logger))
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	// Local storage serves its files directly; R2 links point at the bucket.
	if local, ok := fileStore.(*storage.LocalStorage); ok {
		mux.Handle("GET /files/", http.StripPrefix("/files/", http.FileServer(http.Dir(local.BasePath()))))
	}

	// Public routes
	authHandler.RegisterRoutes(mux, authLimiter.LimitLogin, authLimiter.LimitRegister, authMw.RequireUser)
	webhookHandler.RegisterRoutes(mux)

	// Authenticated routes
	contentHandler.RegisterRoutes(mux, authMw.RequireUser)
	checkoutHandler.RegisterRoutes(mux, authMw.RequireUser)
	adminHandler.RegisterRoutes(mux, authMw.RequireAdmin)

	// Every request resolves its session so handlers see the effective plan.
	root := middleware.Stack(
		loggingMw.Handler,
		metrics.Middleware,
		securityMw.Handler,
		csrfMw.Handler,
		authMw.WithUser,
	)(mux)

	// ==========================================================================
	// Start background jobs
	// ==========================================================================

	if cfg.SchedulerEnabled {
		sched := scheduler.New(scheduler.DefaultJobTimeout, logger)
		if err := sched.Add(scheduler.JobExpireSubscriptions, cfg.SubscriptionSweepSchedule,
			scheduler.ExpireSubscriptions(subscriptionService)); err != nil {
			return err
		}
		if err := sched.Add(scheduler.JobPruneSessions, cfg.SessionPruneSchedule,
			scheduler.PruneSessions(sessionService)); err != nil {
			return err
		}
		sched.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			sched.Stop(stopCtx)
		}()
	}

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// newStorage selects the storage backend named by STORAGE_PROVIDER.
func newStorage(cfg *internal.Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.StorageProvider {
	case storage.ProviderR2:
		return storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	default:
		return storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
