package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	DatabaseURL string `yaml:"databaseURL"`

	DiscordBotToken   string   `yaml:"discordBotToken"`
	DiscordAPIBaseURL string   `yaml:"discordApiBaseURL"`
	DiscordChannelIDs []string `yaml:"discordChannelIds"`
	WebhookSecret     string   `yaml:"webhookSecret"`
	FetchLimit        int      `yaml:"fetchLimit"`

	RedisAddr        string `yaml:"redisAddr"`
	RedisPassword    string `yaml:"redisPassword"`
	QueueStream      string `yaml:"queueStream"`
	QueueGroup       string `yaml:"queueGroup"`
	QueueConcurrency int    `yaml:"queueConcurrency"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	AMQPURL      string `yaml:"amqpURL"`
	AMQPExchange string `yaml:"amqpExchange"`

	SyncRateLimit  int      `yaml:"syncRateLimit"`
	SyncRateWindow string   `yaml:"syncRateWindow"`
	TrustedProxies []string `yaml:"trustedProxies"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("DISCORD_BOT_TOKEN"); v != "" {
		cfg.DiscordBotToken = v
	}
	if v := os.Getenv("DISCORD_CHANNEL_IDS"); v != "" {
		cfg.DiscordChannelIDs = splitCSV(v)
	}
	if v := os.Getenv("DISCORD_WEBHOOK_SECRET"); v != "" {
		cfg.WebhookSecret = v
	}
	if v := os.Getenv("SYNC_FETCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FetchLimit = n
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" {
		cfg.MinioUseSSL = true
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.AMQPURL = v
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.FetchLimit <= 0 {
		cfg.FetchLimit = 100
	}
	if cfg.QueueStream == "" {
		cfg.QueueStream = "bugboard:sync"
	}
	if cfg.QueueGroup == "" {
		cfg.QueueGroup = "sync-workers"
	}
	if cfg.QueueConcurrency <= 0 {
		cfg.QueueConcurrency = 1
	}
	if cfg.SyncRateLimit <= 0 {
		cfg.SyncRateLimit = 5
	}
	if cfg.SyncRateWindow == "" {
		cfg.SyncRateWindow = "1m"
	}
}

// ParseSyncRateWindow converts the configured window into a duration.
func ParseSyncRateWindow(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Minute, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: syncRateWindow: %w", err)
	}
	if d <= 0 {
		return 0, errors.New("config: syncRateWindow must be positive")
	}
	return d, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml)")
	}
	if cfg.DiscordBotToken == "" {
		return errors.New("config: discordBotToken is required (set in config.yaml or DISCORD_BOT_TOKEN)")
	}
	if len(cfg.DiscordChannelIDs) == 0 {
		return errors.New("config: at least one discordChannelIds entry is required")
	}
	if cfg.WebhookSecret == "" {
		return errors.New("config: webhookSecret is required (set in config.yaml or DISCORD_WEBHOOK_SECRET)")
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set in config.yaml or REDIS_ADDR)")
	}
	if _, err := ParseSyncRateWindow(cfg.SyncRateWindow); err != nil {
		return err
	}
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
