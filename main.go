package main

import (
	"context"
	"errors"
	"flowerbidgo/internal/bidhistory"
	"flowerbidgo/internal/bidledger"
	"flowerbidgo/internal/catalog"
	"flowerbidgo/internal/config"
	"flowerbidgo/internal/database/db_client"
	"flowerbidgo/internal/http/http_server"
	"flowerbidgo/internal/identity"
	"flowerbidgo/internal/notify"
	"flowerbidgo/internal/redis/redis_client"
	"flowerbidgo/internal/redis/watcher/lotwatcher"
	"flowerbidgo/internal/services/auction"
	"flowerbidgo/internal/sweeper"
	"flowerbidgo/internal/wallet"
	"flowerbidgo/internal/ws"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
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
	var auctionService auction.IAuctionService

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

	// 5. Wire the auction service over its stores
	policy := auction.Policy{
		MinIncrement:    decimal.NewFromFloat(cfg.BidMinIncrement),
		AllowSelfOutbid: cfg.AllowSelfOutbid,
		Cooldown:        time.Duration(cfg.BidCooldownSeconds) * time.Second,
	}
	if policy.Cooldown > 0 {
		policy.CooldownStore = auction.NewRedisCooldownStore(redisClient)
	}
	auctionService = auction.NewAuctionService(
		catalog.NewPgStore(pgDb),
		bidledger.NewPgLedger(pgDb),
		wallet.NewPgService(pgDb),
		notify.NewRedisChannel(redisClient),
		bidhistory.NewRedisRecorder(redisClient, cfg.BidHistorySize),
		redisClient,
		policy,
	)

	// 6. Background: key-expiry watcher finalises lots the moment their
	// timer key drops; the cron sweep below is the safety net.
	go lotwatcher.Run(ctx, redisClient, auctionService)

	// 7. Background: settlement sweep + nightly losing-bid purge
	sw, err := sweeper.New(ctx, auctionService, time.Duration(cfg.SweepIntervalSeconds)*time.Second)
	if err != nil {
		Log.Fatal("sweeper", zap.Error(err))
	}
	sw.Start(ctx)

	// 8. WebSockets hub + Redis fan-out
	hub := ws.NewHub()
	wsSrv := ws.NewWsServer(hub, redisClient, auctionService)

	// 9. HTTP + WS server
	authProvider := identity.NewProvider(cfg.JwtSecret)
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, auctionService, authProvider)
	go func() {
		<-ctx.Done()
		if err := httpServer.Dispose(); err != nil {
			Log.Error("http_shutdown", zap.Error(err))
		}
	}()
	if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
