package log

import (
	"context"
	"log/slog"
	"testing"

	"icc.tech/procbus-agent/internal/config"
)

func TestInitJSON(t *testing.T) {
	cfg := config.LogConfig{Level: "debug", Format: "json"}
	if err := Init(cfg); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level not enabled")
	}
}

func TestInitText(t *testing.T) {
	cfg := config.LogConfig{Level: "warn", Format: "text"}
	if err := Init(cfg); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if slog.Default().Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info level unexpectedly enabled at warn")
	}
}

func TestInitRejectsBadLevel(t *testing.T) {
	if err := Init(config.LogConfig{Level: "verbose", Format: "json"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestInitRejectsBadFormat(t *testing.T) {
	if err := Init(config.LogConfig{Level: "info", Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestInitFileOutputRequiresPath(t *testing.T) {
	cfg := config.LogConfig{Level: "info", Format: "json"}
	cfg.Outputs.File.Enabled = true
	if err := Init(cfg); err == nil {
		t.Error("expected error for file output without path")
	}
}

func TestInitFileOutput(t *testing.T) {
	cfg := config.LogConfig{Level: "info", Format: "json"}
	cfg.Outputs.File.Enabled = true
	cfg.Outputs.File.Path = t.TempDir() + "/procbus.log"
	cfg.Outputs.File.Rotation.MaxSizeMB = 1
	if err := Init(cfg); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	slog.Info("rotation smoke test")
}
