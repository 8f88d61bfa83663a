package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Simplici0/extrusion-capacity/internal/capacity"
)

const (
	defaultDBPath    = "./dev.db"
	defaultPort      = "8080"
	defaultAppEnv    = "dev"
	defaultDataPath  = "data/base_dados.xlsx"
	defaultOutputDir = "output"
	defaultLogLevel  = "info"
	defaultLogFormat = "console"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	AdminEmail    string
	AdminPassword string
	SessionSecret string
	DBPath        string
	Port          string
	AppEnv        string
	DataPath      string
	OutputDir     string
	Uptime        float64
	Days          int
	LogLevel      string
	LogFormat     string
	// Warnings collects problems found while loading; Load runs before the
	// logger is configured, so callers log them with LogWarnings.
	Warnings []string
}

// Load reads environment variables and returns a populated Config.
func Load() Config {
	var warnings []string

	// Best-effort: production should inject real environment variables.
	if _, err := loadDotEnv(".env"); err != nil {
		warnings = append(warnings, fmt.Sprintf("ignoring .env: %v", err))
	}

	cfg := Config{
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		DBPath:        getenv("DB_PATH", defaultDBPath),
		Port:          getenv("PORT", defaultPort),
		AppEnv:        getenv("APP_ENV", defaultAppEnv),
		DataPath:      getenv("DATA_PATH", defaultDataPath),
		OutputDir:     getenv("OUTPUT_DIR", defaultOutputDir),
		Uptime:        getenvFloat("UPTIME", capacity.DefaultUptime, &warnings),
		Days:          getenvInt("DAYS", capacity.DefaultDays, &warnings),
		LogLevel:      getenv("LOG_LEVEL", defaultLogLevel),
		LogFormat:     getenv("LOG_FORMAT", defaultLogFormat),
	}
	cfg.Warnings = warnings

	return cfg
}

// LogWarnings reports the problems collected by Load on the global logger.
func (c Config) LogWarnings() {
	for _, w := range c.Warnings {
		log.Warn().Msg(w)
	}
}

// WarnUnsetSecrets logs the server settings that have no value.
func (c Config) WarnUnsetSecrets() {
	if c.AdminEmail == "" {
		log.Warn().Msg("ADMIN_EMAIL is not set")
	}
	if c.AdminPassword == "" {
		log.Warn().Msg("ADMIN_PASSWORD is not set")
	}
	if c.SessionSecret == "" {
		log.Warn().Msg("SESSION_SECRET is not set")
	}
}

// IsDev reports whether the app runs in development mode, where migrations run on start.
func (c Config) IsDev() bool {
	env := strings.ToLower(c.AppEnv)
	return env == "" || env == "dev" || env == "development" || env == "local"
}

// Operating returns the configured global shift with no per-line overrides.
func (c Config) Operating() capacity.OperatingParameters {
	return capacity.OperatingParameters{Default: capacity.Shift{Uptime: c.Uptime, Days: c.Days}}
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvFloat(key string, fallback float64, warnings *[]string) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("%s: invalid number %q, using default %v", key, raw, fallback))
		return fallback
	}
	return v
}

func getenvInt(key string, fallback int, warnings *[]string) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("%s: invalid integer %q, using default %d", key, raw, fallback))
		return fallback
	}
	return v
}
