package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-house/config"
	httpHandler "auction-house/internal/adapter/http/handler"
	pgStorage "auction-house/internal/adapter/storage/postgres"
	redisStorage "auction-house/internal/adapter/storage/redis"
	"auction-house/internal/core/ports"
	"auction-house/internal/service"
	"auction-house/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Auction House")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	if err := pgStorage.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run schema migration")
	}

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	auctionRepo := pgStorage.NewAuctionRepo(pool)
	roundRepo := pgStorage.NewRoundRepo(pool)
	bidRepo := pgStorage.NewBidRepo(pool)
	userRepo := pgStorage.NewUserRepo(pool)
	walletRepo := pgStorage.NewWalletRepo(pool)
	idempotencyRepo := pgStorage.NewIdempotencyRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis adapters
	leaderboard := redisStorage.NewLeaderboard(rdb)
	scheduler := redisStorage.NewRoundScheduler(rdb, log)
	mutex := redisStorage.NewMutex(rdb)
	publisher := redisStorage.NewPublisher(rdb)
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize business services
	roundSvc := service.NewRoundService(
		auctionRepo, roundRepo, bidRepo, walletRepo,
		transactor, leaderboard, scheduler, publisher,
		cfg.Auction, log,
	)
	bidSvc := service.NewBidService(
		auctionRepo, roundRepo, bidRepo, userRepo, walletRepo,
		transactor, leaderboard, scheduler, mutex, publisher,
		cfg.Auction, log,
	)
	auctionSvc := service.NewAuctionService(auctionRepo, roundRepo, roundSvc, cfg.Auction, log)
	walletSvc := service.NewWalletService(userRepo, walletRepo, transactor, log)

	// Closure worker pool consuming the scheduled-job stream
	workerCtx, stopWorkers := context.WithCancel(ctx)
	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		scheduler.Run(workerCtx, redisStorage.WorkerOptions{
			PollInterval: cfg.Scheduler.PollInterval,
			Workers:      cfg.Scheduler.Workers,
			RetryDelay:   cfg.Scheduler.RetryDelay,
		}, roundSvc.FinishRound)
	}()
	log.Info().Int("workers", cfg.Scheduler.Workers).Msg("Round closure workers started")

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuctionSvc:     auctionSvc,
		RoundSvc:       roundSvc,
		BidSvc:         bidSvc,
		WalletSvc:      walletSvc,
		IdempRepo:      idempotencyRepo,
		IdempCache:     idempotencyCache,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Auction:        cfg.Auction,
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

	// Graceful shutdown: drain HTTP, then stop the closure workers.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	stopWorkers()
	<-workersDone

	log.Info().Msg("Server exited")
}
