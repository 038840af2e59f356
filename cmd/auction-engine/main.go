package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"agrobid-auction-engine/internal/adapters/broadcaster"
	"agrobid-auction-engine/internal/adapters/db"
	"agrobid-auction-engine/internal/adapters/redis"
	"agrobid-auction-engine/internal/adapters/scheduler"
	"agrobid-auction-engine/internal/adapters/ws"
	"agrobid-auction-engine/internal/app"
	"agrobid-auction-engine/internal/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	initLogging(cfg)

	log.Info().Msg("Starting AgroBid Auction Engine...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.RunMigrations(cfg.Database.MigrationURL, cfg.Database.URL); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	dbConn, err := db.NewConnection(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	log.Info().Msg("Database connection established")

	repoFactory := db.NewRepositoryFactory(dbConn)
	auctionRepo := repoFactory.GetAuctionRepository()
	bidRepo := repoFactory.GetBidRepository()
	participantRepo := repoFactory.GetParticipantRepository()

	redisClient := redis.NewClient(cfg)
	if err := redis.PingRedis(redisClient); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	log.Info().Msg("Redis connection established")

	redisBroadcaster := broadcaster.NewBroadcaster(broadcaster.RedisBroadcasterParams{
		RedisClient: redisClient,
		Logger:      log.Logger,
	})

	engine := app.NewAuctionEngine(app.AuctionEngineParams{
		AuctionRepo:     auctionRepo,
		BidRepo:         bidRepo,
		ParticipantRepo: participantRepo,
		Broadcaster:     redisBroadcaster,
		Defaults: app.EngineDefaults{
			ExtensionWindow: cfg.Auction.ExtensionWindow,
			MaxExtensions:   cfg.Auction.MaxExtensions,
		},
		Logger: log.Logger,
	})

	closeSweeper := scheduler.NewCloseSweeper(scheduler.CloseSweeperParams{
		RedisClient: redisClient,
		Engine:      engine,
		Interval:    cfg.Auction.SweepInterval,
		Logger:      log.Logger,
	})
	engine.SetScheduler(closeSweeper)

	if err := engine.LoadOpenAuctions(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to restore open auctions")
	}

	closeSweeper.Start()
	log.Info().Msg("Close sweeper started")

	wsServer := ws.NewServer(ws.ServerParams{
		Config:      cfg,
		Engine:      engine,
		Broadcaster: redisBroadcaster,
		Logger:      log.Logger,
	})

	go func() {
		if err := wsServer.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start WebSocket server")
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled")
	}

	log.Info().Msg("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	closeSweeper.Stop()
	log.Info().Msg("Close sweeper stopped")

	if err := wsServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping WebSocket server")
	}

	if err := redisBroadcaster.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing broadcaster")
	}

	log.Info().Msg("Graceful shutdown completed")
}

func initLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.DefaultContextLogger = &log.Logger
}
