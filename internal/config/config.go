package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                    string
	DatabaseURL             string
	DBMaxConns              int
	Timezone                string
	CatalogTTL              time.Duration
	RateLimitPerMinute      int
	RateLimitBurst          int
	OperatorRateLimitPerMin int
	OperatorRateLimitBurst  int
	RequestTimeout          time.Duration
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	timezone := os.Getenv("YARD_TZ")
	if timezone == "" {
		timezone = "America/Campo_Grande"
	}

	return Config{
		Port:                    port,
		DatabaseURL:             os.Getenv("DB_DSN"),
		DBMaxConns:              readInt("DB_MAX_CONNS", 10),
		Timezone:                timezone,
		CatalogTTL:              readDurationSeconds("CATALOG_TTL_SECONDS", 21600),
		RateLimitPerMinute:      readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:          readInt("RATE_LIMIT_BURST", 30),
		OperatorRateLimitPerMin: readInt("OPERATOR_RATE_LIMIT_PER_MIN", 600),
		OperatorRateLimitBurst:  readInt("OPERATOR_RATE_LIMIT_BURST", 120),
		RequestTimeout:          readDurationSeconds("REQUEST_TIMEOUT_SECONDS", 10),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
