package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/bundlemart/bundlemart-api/internal/config"
	"github.com/bundlemart/bundlemart-api/internal/domain/admin"
	"github.com/bundlemart/bundlemart-api/internal/domain/audit"
	"github.com/bundlemart/bundlemart-api/internal/domain/bundle"
	"github.com/bundlemart/bundlemart-api/internal/domain/deposit"
	"github.com/bundlemart/bundlemart-api/internal/domain/order"
	"github.com/bundlemart/bundlemart-api/internal/domain/user"
	"github.com/bundlemart/bundlemart-api/internal/domain/wallet"
	"github.com/bundlemart/bundlemart-api/internal/jobs"
	"github.com/bundlemart/bundlemart-api/internal/middleware"
	"github.com/bundlemart/bundlemart-api/internal/pkg/database"
	"github.com/bundlemart/bundlemart-api/internal/pkg/fulfillment"
	"github.com/bundlemart/bundlemart-api/internal/pkg/jwt"
	"github.com/bundlemart/bundlemart-api/internal/pkg/logger"
	"github.com/bundlemart/bundlemart-api/internal/pkg/paystack"
	pkgresponse "github.com/bundlemart/bundlemart-api/internal/pkg/response"
	"github.com/bundlemart/bundlemart-api/internal/pkg/sms"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		panic(err)
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting BundleMart API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	paystackClient := paystack.NewClient(paystack.Config{
		BaseURL:     cfg.PaystackBaseURL,
		SecretKey:   cfg.PaystackSecretKey,
		CallbackURL: cfg.PaystackCallbackURL,
	})

	smsClient := sms.NewClient(sms.Config{
		BaseURL:  cfg.SMSBaseURL,
		APIKey:   cfg.SMSAPIKey,
		SenderID: cfg.SMSSenderID,
	})

	providers := fulfillment.NewRegistry()
	providers.Register(fulfillment.ProviderHubnet, fulfillment.NewHTTPProvider(fulfillment.ClientConfig{
		Name:      fulfillment.ProviderHubnet,
		BaseURL:   cfg.HubnetBaseURL,
		APIKey:    cfg.HubnetAPIKey,
		Delivered: true,
	}))
	providers.Register(fulfillment.ProviderGeonettech, fulfillment.NewHTTPProvider(fulfillment.ClientConfig{
		Name:    fulfillment.ProviderGeonettech,
		BaseURL: cfg.GeonettechBaseURL,
		APIKey:  cfg.GeonettechAPIKey,
	}))
	providers.Register(fulfillment.ProviderTelecel, fulfillment.NewHTTPProvider(fulfillment.ClientConfig{
		Name:    fulfillment.ProviderTelecel,
		BaseURL: cfg.TelecelBaseURL,
		APIKey:  cfg.TelecelAPIKey,
	}))

	feePercent, err := decimal.NewFromString(cfg.DepositFeePercent)
	if err != nil {
		log.Fatal().Err(err).Str("value", cfg.DepositFeePercent).Msg("Invalid deposit fee percent")
	}

	// ---------- Repositories ----------
	userRepo := user.NewRepository(db)
	walletRepo := wallet.NewRepository(db)
	bundleRepo := bundle.NewRepository(db)
	orderRepo := order.NewRepository(db)
	depositRepo := deposit.NewRepository(db, walletRepo)
	auditSink := audit.NewSink(db)

	// ---------- Services ----------
	userService := user.NewService(userRepo, jwtService)
	ledger := wallet.NewLedger(walletRepo)
	stockEngine := bundle.NewStockEngine(bundleRepo)
	depositService := deposit.NewService(depositRepo, userRepo, paystackClient,
		redis, smsClient, auditSink, feePercent, cfg.StaleClaimWindow)
	orchestrator := order.NewOrchestrator(orderRepo, stockEngine, walletRepo,
		userRepo, providers, smsClient, auditSink)
	adminService := admin.NewService(ledger, userService, depositService, auditSink)

	// ---------- Handlers ----------
	userHandler := user.NewHandler(userService)
	walletHandler := wallet.NewHandler(ledger)
	bundleHandler := bundle.NewHandler(stockEngine)
	depositHandler := deposit.NewHandler(depositService, cfg.PaystackSecretKey)
	orderHandler := order.NewHandler(orchestrator)
	adminHandler := admin.NewHandler(adminService)

	authMiddleware := middleware.Auth(jwtService)
	stockAdmin := middleware.RequireCapability(func(role string) bool {
		return user.Role(role).CanManageStock()
	})
	orderStaff := middleware.RequireCapability(func(role string) bool {
		return user.Role(role).CanUpdateOrderStatus()
	})

	// ---------- Background jobs ----------
	scheduler := jobs.NewScheduler(depositService, cfg.SweepSchedule,
		cfg.DepositPollSchedule, cfg.DepositPollBatchSize)
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start background jobs")
	}
	defer scheduler.Stop()

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(chimw.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/auth", userHandler.Routes(authMiddleware))
		r.Mount("/wallet", walletHandler.Routes(authMiddleware))
		r.Mount("/bundles", bundleHandler.Routes(authMiddleware, stockAdmin))
		r.Mount("/deposits", depositHandler.Routes(authMiddleware))
		r.Mount("/orders", orderHandler.Routes(authMiddleware, orderStaff))
		r.Mount("/admin", adminHandler.Routes(authMiddleware))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
