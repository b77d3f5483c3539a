// Package config defines the top-level configuration for pricedash and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by PRICEDASH_* environment
// variables.
type Config struct {
	Feeds    FeedsConfig    `toml:"feeds"`
	Rate     RateConfig     `toml:"rate"`
	Replay   ReplayConfig   `toml:"replay"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Recorder RecorderConfig `toml:"recorder"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`

	// DefaultSymbol is selected at startup; empty means no selection until
	// a client picks one.
	DefaultSymbol string `toml:"default_symbol"`
	Mode          string `toml:"mode"`
	LogLevel      string `toml:"log_level"`
}

// FeedsConfig holds per-source WebSocket endpoints and API credentials.
type FeedsConfig struct {
	BinanceWS  string `toml:"binance_ws"`
	BybitWS    string `toml:"bybit_ws"`
	CoinbaseWS string `toml:"coinbase_ws"`
	OKXWS      string `toml:"okx_ws"`
	PythWS     string `toml:"pyth_ws"`
	LazerWS    string `toml:"lazer_ws"`
	LazerToken string `toml:"lazer_token"`
	FinnhubWS  string `toml:"finnhub_ws"`
	FinnhubKey string `toml:"finnhub_key"`
	TiingoWS   string `toml:"tiingo_ws"`
	TiingoKey  string `toml:"tiingo_key"`
}

// RateConfig holds USDT→USD conversion parameters.
type RateConfig struct {
	HermesURL string   `toml:"hermes_url"`
	Refresh   duration `toml:"refresh"`
}

// ReplayConfig holds the historical query service endpoint the replay
// engine fetches from. Empty HistoryURL points the client at this
// process's own server.
type ReplayConfig struct {
	HistoryURL string `toml:"history_url"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// RecorderConfig holds tick persistence parameters.
type RecorderConfig struct {
	Enabled       bool     `toml:"enabled"`
	FlushSize     int      `toml:"flush_size"`
	FlushInterval duration `toml:"flush_interval"`
}

// ArchiveConfig holds tick retention parameters. Ticks older than
// RetentionDays are exported to object storage and pruned on every
// Interval.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so the TOML decoder accepts strings like
// "5m" or "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Feeds: FeedsConfig{
			BinanceWS:  "wss://stream.binance.com:9443",
			BybitWS:    "wss://stream.bybit.com/v5/public/spot",
			CoinbaseWS: "wss://advanced-trade-ws.coinbase.com",
			OKXWS:      "wss://ws.okx.com:8443/ws/v5/public",
			PythWS:     "wss://hermes.pyth.network/ws",
			LazerWS:    "wss://pyth-lazer.dourolabs.app/v1/stream",
			// Finnhub and Tiingo need API keys, so those feeds stay off
			// until an endpoint and key are configured together.
		},
		Rate: RateConfig{
			HermesURL: "https://hermes.pyth.network",
			Refresh:   duration{time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "pricedash",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "pricedash-data",
			ForcePathStyle: true,
		},
		Recorder: RecorderConfig{
			Enabled:       true,
			FlushSize:     200,
			FlushInterval: duration{2 * time.Second},
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 30,
			Interval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"replay_failed", "archive_failed"},
		},
		DefaultSymbol: "",
		Mode:          "full",
		LogLevel:      "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
//
//	full:      feeds, recorder, replay, and the HTTP server
//	collector: feeds and recorder only, no HTTP surface
//	server:    HTTP server and replay over an existing tick store
var validModes = map[string]bool{
	"full":      true,
	"collector": true,
	"server":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, collector, server)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Feeds: the four crypto exchanges and the oracle endpoints must be
	// set; forex providers may be blank when their keys are absent.
	for _, f := range []struct{ name, v string }{
		{"binance_ws", c.Feeds.BinanceWS},
		{"bybit_ws", c.Feeds.BybitWS},
		{"coinbase_ws", c.Feeds.CoinbaseWS},
		{"okx_ws", c.Feeds.OKXWS},
		{"pyth_ws", c.Feeds.PythWS},
	} {
		if f.v == "" {
			errs = append(errs, "feeds: "+f.name+" must not be empty")
		}
	}
	if c.Feeds.FinnhubWS != "" && c.Feeds.FinnhubKey == "" {
		errs = append(errs, "feeds: finnhub_key is required when finnhub_ws is set")
	}
	if c.Feeds.TiingoWS != "" && c.Feeds.TiingoKey == "" {
		errs = append(errs, "feeds: tiingo_key is required when tiingo_ws is set")
	}

	// Rate
	if c.Rate.HermesURL == "" {
		errs = append(errs, "rate: hermes_url must not be empty")
	}
	if c.Rate.Refresh.Duration <= 0 {
		errs = append(errs, "rate: refresh must be positive")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 is only needed when archiving is on.
	if c.Archive.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archiving is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archiving is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be positive")
		}
	}

	// Recorder
	if c.Recorder.Enabled {
		if c.Recorder.FlushSize < 1 {
			errs = append(errs, "recorder: flush_size must be >= 1")
		}
		if c.Recorder.FlushInterval.Duration <= 0 {
			errs = append(errs, "recorder: flush_interval must be positive")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
