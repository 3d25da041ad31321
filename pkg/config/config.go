package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the decision core.
type Config struct {
	Port string

	// Market data
	UseMockFeed  bool
	FeedWSURL    string
	MockSymbols  []string
	MockSpread   float64
	MockInterval int // milliseconds between synthetic ticks

	// Execution simulation
	InitialEquity       float64
	ContractSize        float64
	DuplicateDeliveries int

	// Instance definitions
	InstancesPath string

	// Database
	DBPath string

	// Telemetry sink
	TelemetryURL      string
	TelemetryAPIKey   string
	TelemetryCurrency string
	TelemetryEnabled  bool

	// Telegram notifications
	TelegramToken  string
	TelegramChatID int64

	// Auth
	JWTSecret   string
	AdminSecret string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:                getEnv("PORT", "8080"),
		UseMockFeed:         getEnv("USE_MOCK_FEED", "true") == "true",
		FeedWSURL:           getEnv("FEED_WS_URL", ""),
		MockSymbols:         splitAndTrim(getEnv("MOCK_SYMBOLS", "EURUSD")),
		MockSpread:          getEnvFloat("MOCK_SPREAD", 0.0001),
		MockInterval:        getEnvInt("MOCK_INTERVAL_MS", 1000),
		InitialEquity:       getEnvFloat("INITIAL_EQUITY", 10000.0),
		ContractSize:        getEnvFloat("CONTRACT_SIZE", 100000.0),
		DuplicateDeliveries: getEnvInt("DUPLICATE_DELIVERIES", 0),
		InstancesPath:       getEnv("INSTANCES_PATH", "./configs/instances.yaml"),
		DBPath:              getEnv("DB_PATH", "./data/decision.db"),
		TelemetryURL:        getEnv("TELEMETRY_URL", ""),
		TelemetryAPIKey:     os.Getenv("TELEMETRY_API_KEY"),
		TelemetryCurrency:   getEnv("TELEMETRY_CURRENCY", "USD"),
		TelemetryEnabled:    getEnv("TELEMETRY_ENABLED", "true") == "true",
		TelegramToken:       os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID:      getEnvInt64("TELEGRAM_CHAT_ID", 0),
		JWTSecret:           getEnv("JWT_SECRET", "dev-secret"),
		AdminSecret:         getEnv("ADMIN_SECRET", ""),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}
