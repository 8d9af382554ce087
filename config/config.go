package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"candleflow/internal/adapters/logger"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Market data
	FeedSymbols   []string // Symbols to consume from the live trade feed
	CacheDBPath   string   // SQLite path for the historical candle cache
	FetchRetries  int      // Upstream retry budget for historical fetches
	RetryBaseWait time.Duration
	RetryMaxWait  time.Duration

	// HTTP server
	ListenAddr string

	// Logging
	LogLevel logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env if present; pure env vars are fine too.
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string

	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true)

	symbols := getEnv("FEED_SYMBOLS", "BTCUSDT,ETHUSDT")
	for _, s := range strings.Split(symbols, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			cfg.FeedSymbols = append(cfg.FeedSymbols, s)
		}
	}
	if len(cfg.FeedSymbols) == 0 {
		errs = append(errs, "FEED_SYMBOLS must list at least one symbol")
	}

	cfg.CacheDBPath = getEnv("CACHE_DB_PATH", "./data/candle_cache.db")
	if cfg.CacheDBPath == "" {
		errs = append(errs, "CACHE_DB_PATH must be set")
	}

	cfg.FetchRetries = getEnvAsInt("FETCH_RETRIES", 4)
	if cfg.FetchRetries < 0 {
		errs = append(errs, "FETCH_RETRIES cannot be negative")
	}

	retryBaseMs := getEnvAsInt("RETRY_BASE_WAIT_MS", 250)
	if retryBaseMs <= 0 {
		errs = append(errs, "RETRY_BASE_WAIT_MS must be positive")
	}
	cfg.RetryBaseWait = time.Duration(retryBaseMs) * time.Millisecond

	retryMaxS := getEnvAsInt("RETRY_MAX_WAIT_SECONDS", 10)
	if retryMaxS <= 0 {
		errs = append(errs, "RETRY_MAX_WAIT_SECONDS must be positive")
	}
	cfg.RetryMaxWait = time.Duration(retryMaxS) * time.Second

	cfg.ListenAddr = getEnv("LISTEN_ADDR", ":8080")

	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
