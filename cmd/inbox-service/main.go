package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/fathima-sithara/inbox-service/internal/api"
	"github.com/fathima-sithara/inbox-service/internal/config"
	"github.com/fathima-sithara/inbox-service/internal/directory"
	"github.com/fathima-sithara/inbox-service/internal/feed"
	"github.com/fathima-sithara/inbox-service/internal/inbox"
	"github.com/fathima-sithara/inbox-service/internal/logger"
	"github.com/fathima-sithara/inbox-service/internal/metrics"
	"github.com/fathima-sithara/inbox-service/internal/repository"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfgPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zlog, err := logger.New(logger.Config{Development: cfg.App.Development()})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	metrics.Init()

	// Mongo client
	mc, err := repository.NewMongoClient(cfg.Mongo.URI)
	if err != nil {
		zlog.Fatalw("mongo init failed", "err", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()
	db := mc.Database(cfg.Mongo.Database)

	// Redis client
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// Collaborators
	repo := repository.NewMessageRepository(db.Collection("messages"), rdb, cfg.Redis.Prefix, zlog)
	dir := directory.NewCache(
		directory.NewMongoDirectory(db.Collection("users")),
		rdb, cfg.Redis.Prefix, cfg.Directory.CacheTTL, zlog,
	)

	var msgFeed feed.Feed
	switch cfg.Feed.Driver {
	case "kafka":
		msgFeed = feed.NewKafkaFeed(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupIDPrefix, zlog)
	default:
		msgFeed = feed.NewSnapshotFeed(db.Collection("messages"), rdb, cfg.Redis.Prefix, cfg.Feed.BackfillLimit, zlog)
	}

	svc := inbox.NewService(msgFeed, dir, zlog)

	app := api.NewServer(cfg, repo, svc, zlog)

	errs := make(chan error, 1)
	go func() {
		addr := ":" + cfg.App.PortString()
		zlog.Infow("starting inbox service", "addr", addr, "feed", cfg.Feed.Driver)
		errs <- app.Listen(addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errs:
		zlog.Fatalw("server error", "err", err)
	case sig := <-stop:
		zlog.Infow("shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		zlog.Warnw("server shutdown error", "err", err)
	}
	zlog.Info("shutdown complete")
}
