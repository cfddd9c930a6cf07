// Command syncrun performs one sync pass against the configured channels and
// prints the run summary as JSON. Useful for cron jobs and manual backfills.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"bugboard/internal/util"
	"bugboard/pkg/discord"
	"bugboard/pkg/queue"
	"bugboard/pkg/storage"
	"bugboard/services/sync/internal/app"
	"bugboard/services/sync/internal/config"
)

func main() {
	configPath := flag.String("config", config.ConfigPath, "path to config.yaml")
	limit := flag.Int("limit", 0, "messages to fetch per channel (0 uses the configured limit)")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall run timeout")
	flag.Parse()

	cfg, err := config.Load(*configPath)
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

	appCore, err := app.New(app.Config{
		DatabaseURL: cfg.DatabaseURL,
		Source:      source,
		ChannelIDs:  cfg.DiscordChannelIDs,
		FetchLimit:  cfg.FetchLimit,
		Archiver:    archiver,
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	summary, err := appCore.RunSync(ctx, queue.SyncParams{Limit: *limit})
	if err != nil {
		log.Fatalf("sync run failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		log.Fatalf("encode summary: %v", err)
	}
	if !summary.Clean() {
		os.Exit(1)
	}
}
