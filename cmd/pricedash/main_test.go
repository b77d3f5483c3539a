package main

import (
	"log/slog"
	"testing"
)

func TestLogLevel(t *testing.T) {
	cases := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := logLevel(tc.name); got != tc.want {
			t.Errorf("logLevel(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	t.Setenv("PRICEDASH_MODE", "hybrid")
	if err := run("does-not-exist.toml"); err == nil {
		t.Fatal("expected validation error for unknown mode")
	}
}
