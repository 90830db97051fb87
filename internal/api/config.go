package api

import (
	"os"
	"strconv"
	"time"
)

// Config is the server configuration, read from the environment.
type Config struct {
	Addr string

	// RedisURL selects a shared Redis cache; empty uses CacheDir.
	RedisURL string
	// CacheDir holds the file cache; empty disables caching.
	CacheDir string
	// CacheScope prefixes cache keys so deployments can share a backend.
	CacheScope string

	// StoreDSN selects the run store (see store.Open); empty disables
	// run storage and GET /api/runs.
	StoreDSN string

	// DataDir lets specs reference dataset files below it. Empty rejects
	// specs that name paths.
	DataDir string

	// Render requests per second and burst.
	RateLimit float64
	RateBurst int

	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

// LoadConfig reads the configuration from MAIDR_* variables.
func LoadConfig() Config {
	cfg := Config{
		Addr:           envOr("MAIDR_ADDR", ":8080"),
		RedisURL:       os.Getenv("MAIDR_REDIS_URL"),
		CacheDir:       os.Getenv("MAIDR_CACHE_DIR"),
		CacheScope:     os.Getenv("MAIDR_CACHE_SCOPE"),
		StoreDSN:       storeDSN(),
		DataDir:        os.Getenv("MAIDR_DATA_DIR"),
		RateLimit:      envFloat("MAIDR_RATE_LIMIT", 10),
		RateBurst:      envInt("MAIDR_RATE_BURST", 20),
		MaxBodyBytes:   envInt64("MAIDR_MAX_BODY_BYTES", 10<<20),
		RequestTimeout: envDuration("MAIDR_REQUEST_TIMEOUT", 30*time.Second),
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 20
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return cfg
}

// storeDSN picks the first configured store: Mongo, then SQLite, then an
// explicit DSN.
func storeDSN() string {
	if uri := os.Getenv("MAIDR_MONGO_URI"); uri != "" {
		return uri
	}
	if path := os.Getenv("MAIDR_SQLITE_PATH"); path != "" {
		return "sqlite:" + path
	}
	return os.Getenv("MAIDR_STORE")
}

func envOr(key, fallback string) string {
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

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
