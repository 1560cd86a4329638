package handler

import (
	"reelhouse-economy/internal/adapter/http/middleware"
	redisStore "reelhouse-economy/internal/adapter/storage/redis"
	"reelhouse-economy/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	LedgerSvc      ports.LedgerService
	InventorySvc   ports.InventoryService
	MarketSvc      ports.MarketplaceService
	TradeSvc       ports.TradeService
	RollbackSvc    ports.RollbackService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	EnableMetrics  bool
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	if deps.EnableMetrics {
		r.Use(middleware.Metrics())
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- JWT-authenticated member routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	walletHandler := NewWalletHandler(deps.LedgerSvc)
	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.GET("/balance", rl("wallet"), walletHandler.GetBalance)
		wallet.GET("/history", rl("wallet"), walletHandler.GetHistory)
	}

	cardHandler := NewCardHandler(deps.InventorySvc)
	cards := v1.Group("/cards", jwtAuth)
	{
		cards.GET("", rl("cards"), cardHandler.ListOwn)
		cards.GET("/:id", rl("cards"), cardHandler.Get)
		cards.GET("/:id/encumbered", rl("cards"), cardHandler.GetEncumbrance)
	}

	marketHandler := NewMarketHandler(deps.MarketSvc)
	market := v1.Group("/market", jwtAuth)
	{
		market.GET("/status", rl("market"), marketHandler.GetStatus)
		market.GET("/listings", rl("market"), marketHandler.ListListings)
		market.POST("/listings", rl("market"), marketHandler.CreateListing)
		market.DELETE("/listings/:id", rl("market"), marketHandler.DeleteListing)
		market.POST("/listings/:id/buy", rl("market"), marketHandler.BuyListing)
		market.GET("/orders", rl("market"), marketHandler.ListBuyOrders)
		market.POST("/orders", rl("market"), marketHandler.CreateBuyOrder)
		market.DELETE("/orders/:id", rl("market"), marketHandler.DeleteBuyOrder)
	}

	tradeHandler := NewTradeHandler(deps.TradeSvc)
	trades := v1.Group("/trades", jwtAuth)
	{
		trades.GET("", rl("trades"), tradeHandler.List)
		trades.POST("", rl("trades"), tradeHandler.Create)
		trades.GET("/:id", rl("trades"), tradeHandler.Get)
		trades.POST("/:id/accept", rl("trades"), tradeHandler.Accept)
		trades.POST("/:id/deny", rl("trades"), tradeHandler.Deny)
		trades.POST("/:id/cancel", rl("trades"), tradeHandler.Cancel)
	}

	// --- Admin routes ---
	adminHandler := NewAdminHandler(deps.LedgerSvc, deps.InventorySvc, deps.MarketSvc, deps.RollbackSvc)
	admin := v1.Group("/admin", jwtAuth, middleware.AdminOnly())
	{
		admin.POST("/credits/grant", rl("admin"), adminHandler.GrantCredits)
		admin.POST("/credits/debit", rl("admin"), adminHandler.DebitCredits)
		admin.PUT("/users/:id/balance", rl("admin"), adminHandler.SetBalance)
		admin.POST("/users/:id/rollback", rl("admin"), adminHandler.Rollback)
		admin.POST("/users/:id/rollback/undo", rl("admin"), adminHandler.UndoRollback)
		admin.GET("/users/:id/rollback", rl("admin"), adminHandler.GetRollbackStatus)
		admin.POST("/market/disable", rl("admin"), adminHandler.DisableMarket)
		admin.POST("/market/enable", rl("admin"), adminHandler.EnableMarket)
		admin.POST("/cards/grant", rl("admin"), adminHandler.GrantCard)
	}

	return r
}
