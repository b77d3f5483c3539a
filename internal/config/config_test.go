package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	// The keyed forex feeds ship disabled; a non-empty default endpoint
	// would trip the key requirement before any config is written.
	if cfg.Feeds.FinnhubWS != "" || cfg.Feeds.TiingoWS != "" {
		t.Fatalf("forex feeds should default off, got %q and %q",
			cfg.Feeds.FinnhubWS, cfg.Feeds.TiingoWS)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "hybrid"
	cfg.Feeds.BinanceWS = ""
	cfg.Redis.Addr = ""
	cfg.Server.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"unknown mode", "binance_ws", "redis: addr", "server: port"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestValidateForexKeyRequired(t *testing.T) {
	cfg := Defaults()
	cfg.Feeds.FinnhubWS = "wss://ws.finnhub.io"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "finnhub_key") {
		t.Fatalf("expected finnhub_key error, got %v", err)
	}
	cfg.Feeds.FinnhubKey = "fk-123"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("keyed finnhub feed should validate: %v", err)
	}
}

func TestLoadTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "collector"
default_symbol = "BTC"

[rate]
refresh = "30s"

[postgres]
host = "db.internal"
port = 5433

[recorder]
flush_size = 50
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "collector" {
		t.Errorf("mode = %q, want collector", cfg.Mode)
	}
	if cfg.DefaultSymbol != "BTC" {
		t.Errorf("default_symbol = %q", cfg.DefaultSymbol)
	}
	if cfg.Rate.Refresh.Duration != 30*time.Second {
		t.Errorf("rate.refresh = %v, want 30s", cfg.Rate.Refresh.Duration)
	}
	if cfg.Postgres.Host != "db.internal" || cfg.Postgres.Port != 5433 {
		t.Errorf("postgres = %s:%d", cfg.Postgres.Host, cfg.Postgres.Port)
	}
	if cfg.Recorder.FlushSize != 50 {
		t.Errorf("recorder.flush_size = %d", cfg.Recorder.FlushSize)
	}
	// Untouched fields keep their defaults.
	if cfg.Server.Port != 8000 {
		t.Errorf("server.port = %d, want default 8000", cfg.Server.Port)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "full" {
		t.Errorf("mode = %q, want full", cfg.Mode)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PRICEDASH_MODE", "server")
	t.Setenv("PRICEDASH_SERVER_PORT", "9100")
	t.Setenv("PRICEDASH_RATE_REFRESH", "5m")
	t.Setenv("PRICEDASH_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("PRICEDASH_RECORDER_ENABLED", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "server" {
		t.Errorf("mode = %q, want server", cfg.Mode)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("server.port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Rate.Refresh.Duration != 5*time.Minute {
		t.Errorf("rate.refresh = %v, want 5m", cfg.Rate.Refresh.Duration)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != want[0] || cfg.Server.CORSOrigins[1] != want[1] {
		t.Errorf("cors_origins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	if cfg.Recorder.Enabled {
		t.Error("recorder.enabled should be overridden to false")
	}
}

func TestRedactedConfigMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.Feeds.FinnhubKey = "fk-123"
	cfg.Server.APIKey = "api-xyz"

	red := RedactedConfig(&cfg)
	if red.Postgres.Password != "***" || red.Feeds.FinnhubKey != "***" || red.Server.APIKey != "***" {
		t.Error("secrets not redacted")
	}
	if cfg.Postgres.Password != "hunter2" {
		t.Error("original config mutated")
	}
	if red.Postgres.Host != cfg.Postgres.Host {
		t.Error("non-secret fields should be preserved")
	}
}
