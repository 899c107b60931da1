package handler

import (
	"auction-house/config"
	"auction-house/internal/adapter/http/middleware"
	redisStore "auction-house/internal/adapter/storage/redis"
	"auction-house/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuctionSvc     ports.AuctionService
	RoundSvc       ports.RoundService
	BidSvc         ports.BidService
	WalletSvc      ports.WalletService
	IdempRepo      ports.IdempotencyRepository
	IdempCache     ports.IdempotencyCache
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Auction        config.AuctionConfig
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Bid rate limiter: per userId (or client address) over a fixed window.
	bidLimiter := func(c *gin.Context) { c.Next() }
	if deps.RateLimitStore != nil {
		bidLimiter = middleware.RateLimiter(deps.RateLimitStore, "bids", middleware.RateLimitRule{
			Limit:  deps.Auction.BidRateLimit,
			Window: deps.Auction.BidRateWindow,
		}, deps.Logger)
	}

	// Retry memoization for the money-moving endpoints.
	idem := middleware.Idempotency(deps.IdempRepo, deps.IdempCache, deps.Logger)

	auctionHandler := NewAuctionHandler(deps.AuctionSvc, deps.RoundSvc)
	roundHandler := NewRoundHandler(deps.RoundSvc)
	bidHandler := NewBidHandler(deps.BidSvc)
	walletHandler := NewWalletHandler(deps.WalletSvc)

	// --- Admin routes (static token when configured) ---
	admin := r.Group("/admin", middleware.AdminAuth(deps.Auction.AdminToken))
	{
		admin.POST("/auction", auctionHandler.CreateAuction)
		admin.POST("/auction/:id/start", auctionHandler.StartRound)
		admin.POST("/auction/:id/stop", auctionHandler.StopAuction)
		admin.POST("/round/:id/close", roundHandler.CloseRound)
		admin.POST("/users/:userId/deposit", idem, walletHandler.Deposit)
	}

	// --- Public routes ---
	auction := r.Group("/auction")
	{
		auction.GET("/:id", auctionHandler.GetAuction)
		auction.GET("/:id/leaderboard", bidHandler.GetLeaderboard)
		auction.POST("/:id/bid", bidLimiter, idem, bidHandler.PlaceBid)
	}

	r.POST("/bid/:id/withdraw", idem, bidHandler.Withdraw)
	r.GET("/users/:userId/wallet", walletHandler.GetWallet)

	return r
}
