package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                 string
	DatabaseURL          string
	PredictorURL         string
	PredictorTimeout     time.Duration
	HistoricalThroughput float64
	RedisAddr            string
	EstimateCacheTTL     time.Duration
	EstimateSweepCron    string
	EstimateSweepBatch   int
	RateLimitPerMinute   int
	RateLimitBurst       int
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	cron := os.Getenv("ESTIMATE_SWEEP_CRON")
	if cron == "" {
		cron = "*/5 * * * *"
	}

	return Config{
		Port:                 port,
		DatabaseURL:          os.Getenv("DB_DSN"),
		PredictorURL:         os.Getenv("PREDICTOR_URL"),
		PredictorTimeout:     readDurationSeconds("PREDICTOR_TIMEOUT_SECONDS", 3),
		HistoricalThroughput: readFloat("HISTORICAL_THROUGHPUT", 4.2),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		EstimateCacheTTL:     readDurationSeconds("ESTIMATE_CACHE_TTL_SECONDS", 60),
		EstimateSweepCron:    cron,
		EstimateSweepBatch:   readInt("ESTIMATE_SWEEP_BATCH", 200),
		RateLimitPerMinute:   readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:       readInt("RATE_LIMIT_BURST", 30),
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

func readFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
