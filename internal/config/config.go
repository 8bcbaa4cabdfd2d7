package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTP API
	HTTPHost string
	HTTPPort int

	// IBKR Client Portal API
	IBKRBaseURL          string
	IBKRConsumerKey      string
	IBKRAccessToken      string
	IBKRSignatureKeyPath string
	IBKRRealm            string
	IBKRAccountID        string // discovered from /portfolio/accounts when empty

	// Session keepalive
	KeepaliveInterval time.Duration

	// Trading
	DryRun          bool
	DefaultQuantity int

	// Symbol venue overrides
	VenueOverridesPath string

	// Calendar
	CalendarBaseURL string
	CalendarToken   string

	// Discord
	DiscordWebhookURL string

	// Execution journal
	JournalDBPath string

	// Telemetry
	LogLevel string
}

func Load() *Config {
	// config.env is the legacy settings file name; values already in the
	// environment (or loaded from .env) win when both exist.
	_ = godotenv.Load()
	_ = godotenv.Load("config.env")

	return &Config{
		HTTPHost: envStr("HTTP_HOST", "0.0.0.0"),
		HTTPPort: envInt("PORT", 8000),

		IBKRBaseURL:          envStr("IBKR_BASE_URL", "https://api.ibkr.com/v1/api"),
		IBKRConsumerKey:      envStr("IBKR_CONSUMER_KEY", ""),
		IBKRAccessToken:      envStr("IBKR_ACCESS_TOKEN", ""),
		IBKRSignatureKeyPath: envStr("IBKR_SIGNATURE_KEY_FILE", ""),
		IBKRRealm:            envStr("IBKR_REALM", "limited_poa"),
		IBKRAccountID:        envStr("IBKR_ACCOUNT_ID", ""),

		KeepaliveInterval: time.Duration(envInt("IBKR_KEEPALIVE_SEC", 60)) * time.Second,

		// Simulation is the default; live submission is opt-in.
		DryRun:          envStr("DRY_RUN", "true") == "true",
		DefaultQuantity: envInt("DEFAULT_QUANTITY", 1),

		VenueOverridesPath: envStr("VENUE_OVERRIDES_PATH", "internal/core/symbols/venue_overrides.yaml"),

		CalendarBaseURL: envStr("CALENDAR_BASE_URL", ""),
		CalendarToken:   envStr("CALENDAR_TOKEN", ""),

		DiscordWebhookURL: envStr("DISCORD_WEBHOOK_URL", ""),

		JournalDBPath: envStr("JOURNAL_DB_PATH", "executions.db"),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
