package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reelhouse-economy/config"
	httpHandler "reelhouse-economy/internal/adapter/http/handler"
	"reelhouse-economy/internal/adapter/http/middleware"
	pgStorage "reelhouse-economy/internal/adapter/storage/postgres"
	redisStorage "reelhouse-economy/internal/adapter/storage/redis"
	"reelhouse-economy/internal/core/ports"
	"reelhouse-economy/internal/service"
	"reelhouse-economy/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("reelhouse-economy", cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Reelhouse Economy")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Run embedded migrations
	if cfg.Database.Migrate {
		if err := pgStorage.Migrate(cfg.Database.DSN(), log); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
	}

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	userRepo := pgStorage.NewUserRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	cardRepo := pgStorage.NewCardRepo(pool)
	listingRepo := pgStorage.NewListingRepo(pool)
	buyOrderRepo := pgStorage.NewBuyOrderRepo(pool)
	tradeRepo := pgStorage.NewTradeRepo(pool)
	ticketRepo := pgStorage.NewTicketRepo(pool)
	codexRepo := pgStorage.NewCodexRepo(pool)
	snapshotRepo := pgStorage.NewSnapshotRepo(pool)
	stateRepo := pgStorage.NewMarketStateRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	balanceCache := redisStorage.NewBalanceCache(rdb, cfg.Economy.BalanceCacheTTL)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	locks := service.NewUserLocks()

	// Initialize business services
	ledgerSvc := service.NewLedgerService(ledgerRepo, userRepo, balanceCache, transactor, locks, log)
	authSvc := service.NewAuthService(userRepo, hashSvc, tokenSvc, ledgerSvc, cfg.Economy.StartingCredits, log)
	inventorySvc := service.NewInventoryService(cardRepo, listingRepo, tradeRepo, userRepo, transactor, locks, log)
	marketSvc := service.NewMarketplaceService(
		listingRepo,
		buyOrderRepo,
		cardRepo,
		tradeRepo,
		ledgerRepo,
		stateRepo,
		balanceCache,
		transactor,
		locks,
		log,
	)
	tradeSvc := service.NewTradeService(tradeRepo, cardRepo, listingRepo, ledgerRepo, userRepo, balanceCache, transactor, locks, log)
	rollbackSvc := service.NewRollbackService(
		ledgerRepo,
		cardRepo,
		listingRepo,
		buyOrderRepo,
		tradeRepo,
		ticketRepo,
		codexRepo,
		snapshotRepo,
		userRepo,
		balanceCache,
		transactor,
		locks,
		log,
	)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	if cfg.Server.Metrics {
		middleware.RegisterMetrics()
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		LedgerSvc:      ledgerSvc,
		InventorySvc:   inventorySvc,
		MarketSvc:      marketSvc,
		TradeSvc:       tradeSvc,
		RollbackSvc:    rollbackSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		EnableMetrics:  cfg.Server.Metrics,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
