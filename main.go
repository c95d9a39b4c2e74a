package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"antiquebid/internal/archival"
	"antiquebid/internal/config"
	"antiquebid/internal/database/db_client"
	"antiquebid/internal/database/pgstore"
	"antiquebid/internal/http/http_server"
	"antiquebid/internal/notify"
	"antiquebid/internal/reconciler"
	"antiquebid/internal/redis/redis_client"
	"antiquebid/internal/redis/watcher/closewatcher"
	"antiquebid/internal/services/bidding"
	"antiquebid/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	var err error
	var cfg *config.Config
	var redisClient *redis.Client
	var biddingService bidding.IBiddingService

	// 1. Load configuration
	cfg, err = config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis
	redisClient, err = redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort))
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()
	Log.Debug("Redis client created successfully")

	// 4. Postgres db client
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()

	// 5. NATS + JetStream archival stream
	natsConn, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		Log.Fatal("nats-connect", zap.Error(err))
	}
	defer natsConn.Close()

	archPub, err := archival.NewPublisher(ctx, natsConn)
	if err != nil {
		Log.Fatal("archival-publisher", zap.Error(err))
	}

	// 6. Bid admission service over the Postgres store
	store := pgstore.New(pgDb)
	publisher := notify.NewRedisPublisher(redisClient)
	biddingService = bidding.NewBiddingService(store, redisClient, publisher, archPub, bidding.Config{
		BidValidFor:  cfg.BidValidFor,
		CancelWindow: cfg.BidCancelWindow,
		AdmitRetries: cfg.AdmitRetries,
	})

	// 7. Background: key-expiry watcher ➜ settle finished auctions
	go closewatcher.Run(ctx, redisClient, biddingService)

	// 8. Background: bidder-counter consumer + cache reconciler
	if err := archival.RunConsumer(ctx, natsConn, pgDb); err != nil {
		Log.Fatal("archival-consumer", zap.Error(err))
	}
	reconciler.Run(ctx, pgDb)

	// 9. WebSockets hub for lot watchers
	hub := ws.NewHub()
	wsSrv := ws.NewWsServer(hub, redisClient, biddingService)

	// 10. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, biddingService)
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
