package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads configuration from the given TOML file, layers a local .env
// file on top of the process environment, and finally applies PRICEDASH_*
// environment overrides. A missing config file is not an error; defaults
// plus environment are used instead.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, fmt.Errorf("config: decode %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	// .env is optional and never overrides variables already exported.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides maps PRICEDASH_* environment variables onto cfg.
// Environment always wins over file values.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "PRICEDASH_MODE")
	setStr(&cfg.LogLevel, "PRICEDASH_LOG_LEVEL")
	setStr(&cfg.DefaultSymbol, "PRICEDASH_DEFAULT_SYMBOL")

	setStr(&cfg.Feeds.BinanceWS, "PRICEDASH_FEEDS_BINANCE_WS")
	setStr(&cfg.Feeds.BybitWS, "PRICEDASH_FEEDS_BYBIT_WS")
	setStr(&cfg.Feeds.CoinbaseWS, "PRICEDASH_FEEDS_COINBASE_WS")
	setStr(&cfg.Feeds.OKXWS, "PRICEDASH_FEEDS_OKX_WS")
	setStr(&cfg.Feeds.PythWS, "PRICEDASH_FEEDS_PYTH_WS")
	setStr(&cfg.Feeds.LazerWS, "PRICEDASH_FEEDS_LAZER_WS")
	setStr(&cfg.Feeds.LazerToken, "PRICEDASH_FEEDS_LAZER_TOKEN")
	setStr(&cfg.Feeds.FinnhubWS, "PRICEDASH_FEEDS_FINNHUB_WS")
	setStr(&cfg.Feeds.FinnhubKey, "PRICEDASH_FEEDS_FINNHUB_KEY")
	setStr(&cfg.Feeds.TiingoWS, "PRICEDASH_FEEDS_TIINGO_WS")
	setStr(&cfg.Feeds.TiingoKey, "PRICEDASH_FEEDS_TIINGO_KEY")

	setStr(&cfg.Rate.HermesURL, "PRICEDASH_RATE_HERMES_URL")
	setDuration(&cfg.Rate.Refresh, "PRICEDASH_RATE_REFRESH")

	setStr(&cfg.Replay.HistoryURL, "PRICEDASH_REPLAY_HISTORY_URL")

	setStr(&cfg.Postgres.DSN, "PRICEDASH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PRICEDASH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PRICEDASH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PRICEDASH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PRICEDASH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PRICEDASH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PRICEDASH_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PRICEDASH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PRICEDASH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PRICEDASH_POSTGRES_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "PRICEDASH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PRICEDASH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PRICEDASH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PRICEDASH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PRICEDASH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PRICEDASH_REDIS_TLS_ENABLED")

	setStr(&cfg.S3.Endpoint, "PRICEDASH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PRICEDASH_S3_REGION")
	setStr(&cfg.S3.Bucket, "PRICEDASH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PRICEDASH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PRICEDASH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PRICEDASH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PRICEDASH_S3_FORCE_PATH_STYLE")

	setBool(&cfg.Recorder.Enabled, "PRICEDASH_RECORDER_ENABLED")
	setInt(&cfg.Recorder.FlushSize, "PRICEDASH_RECORDER_FLUSH_SIZE")
	setDuration(&cfg.Recorder.FlushInterval, "PRICEDASH_RECORDER_FLUSH_INTERVAL")

	setBool(&cfg.Archive.Enabled, "PRICEDASH_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "PRICEDASH_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "PRICEDASH_ARCHIVE_INTERVAL")

	setBool(&cfg.Server.Enabled, "PRICEDASH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "PRICEDASH_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PRICEDASH_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "PRICEDASH_SERVER_API_KEY")

	setStr(&cfg.Notify.TelegramToken, "PRICEDASH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PRICEDASH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PRICEDASH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PRICEDASH_NOTIFY_EVENTS")
}

func setStr(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			*dst = out
		}
	}
}
