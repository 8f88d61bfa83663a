package config

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Simplici0/extrusion-capacity/internal/capacity"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ADMIN_EMAIL", "ADMIN_PASSWORD", "SESSION_SECRET", "DB_PATH", "PORT", "APP_ENV",
		"DATA_PATH", "OUTPUT_DIR", "UPTIME", "DAYS", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.DBPath != defaultDBPath || cfg.Port != defaultPort || cfg.DataPath != "data/base_dados.xlsx" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Uptime != 0.95 || cfg.Days != 30 {
		t.Fatalf("uptime/days = %v/%d, want 0.95/30", cfg.Uptime, cfg.Days)
	}
	if !cfg.IsDev() {
		t.Fatalf("expected dev mode by default")
	}
	if cfg.Operating().Default != capacity.DefaultOperating().Default {
		t.Fatalf("operating = %+v, want defaults", cfg.Operating())
	}
}

func TestLoad_ReadsOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("UPTIME", "0.8")
	t.Setenv("DAYS", "22")
	t.Setenv("OUTPUT_DIR", "/tmp/out")
	t.Setenv("LOG_FORMAT", "json")

	cfg := Load()

	if cfg.IsDev() {
		t.Fatalf("expected production mode")
	}
	if got := cfg.Operating().Default; got != (capacity.Shift{Uptime: 0.8, Days: 22}) {
		t.Fatalf("operating = %+v", got)
	}
	if cfg.OutputDir != "/tmp/out" || cfg.LogFormat != "json" {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("UPTIME", "high")
	t.Setenv("DAYS", "thirty")

	cfg := Load()

	if cfg.Uptime != capacity.DefaultUptime || cfg.Days != capacity.DefaultDays {
		t.Fatalf("uptime/days = %v/%d, want defaults", cfg.Uptime, cfg.Days)
	}
	if len(cfg.Warnings) != 2 || !strings.HasPrefix(cfg.Warnings[0], "UPTIME:") || !strings.HasPrefix(cfg.Warnings[1], "DAYS:") {
		t.Fatalf("unexpected warnings: %v", cfg.Warnings)
	}
}

func TestLogWarnings_UsesInstalledLogger(t *testing.T) {
	clearEnv(t)
	t.Setenv("DAYS", "thirty")

	cfg := Load()

	previous := log.Logger
	t.Cleanup(func() { log.Logger = previous })
	var buf bytes.Buffer
	log.Logger = zerolog.New(&buf)

	cfg.LogWarnings()

	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, `DAYS: invalid integer \"thirty\"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
}
