package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"bugboard/internal/ratelimit"
	"bugboard/internal/util"
	"bugboard/pkg/discord"
	"bugboard/pkg/notify"
	"bugboard/pkg/queue"
	"bugboard/pkg/storage"
	"bugboard/services/sync/internal/app"
	"bugboard/services/sync/internal/config"
	"bugboard/services/sync/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	var clientOpts []discord.ClientOption
	if cfg.DiscordAPIBaseURL != "" {
		clientOpts = append(clientOpts, discord.WithBaseURL(cfg.DiscordAPIBaseURL))
	}
	source, err := discord.NewClient(cfg.DiscordBotToken, logger, clientOpts...)
	if err != nil {
		log.Fatalf("failed to init discord client: %v", err)
	}

	var archiver app.Archiver
	if cfg.MinioEndpoint != "" {
		objectStore, err := storage.NewMinioStore(
			cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init object store: %v", err)
		}
		archiver = storage.NewScreenshotArchiver(objectStore, logger)
	}

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.AMQPURL != "" {
		amqpNotifier, err := notify.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			log.Fatalf("failed to init amqp notifier: %v", err)
		}
		defer amqpNotifier.Close()
		notifier = amqpNotifier
	}

	syncQueue, err := queue.NewRedisSyncQueue(queue.RedisQueueConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Stream:   cfg.QueueStream,
		Group:    cfg.QueueGroup,
	})
	if err != nil {
		log.Fatalf("failed to init sync queue: %v", err)
	}

	appCore, err := app.New(app.Config{
		DatabaseURL: cfg.DatabaseURL,
		Source:      source,
		ChannelIDs:  cfg.DiscordChannelIDs,
		FetchLimit:  cfg.FetchLimit,
		Archiver:    archiver,
		Notifier:    notifier,
		Queue:       syncQueue,
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	appCore.StartWorkers(context.Background(), cfg.QueueConcurrency)

	rateWindow, err := config.ParseSyncRateWindow(cfg.SyncRateWindow)
	if err != nil {
		log.Fatalf("failed to parse sync rate window: %v", err)
	}
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(
		cfg.RedisAddr, cfg.RedisPassword, "bugboard:sync", cfg.SyncRateLimit, rateWindow)
	if err != nil {
		log.Fatalf("failed to init rate limiter: %v", err)
	}
	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:            appCore,
		WebhookSecret:  cfg.WebhookSecret,
		SyncLimiter:    limiter,
		TrustedProxies: trustedProxies,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("sync server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
