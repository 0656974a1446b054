package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds everything the server needs, sourced from the
// environment (optionally via a .env file).
type AppConfig struct {
	// OpenWeatherMap credentials and query.
	OpenWeatherAPIKey string
	City              string
	ForecastHours     int

	// FetchInterval controls how often an ingestion run is triggered.
	FetchInterval time.Duration

	// IngestWorkers bounds reconciliation concurrency per run;
	// IngestTimeout bounds one whole run.
	IngestWorkers int
	IngestTimeout time.Duration

	// MaxRetries is the engine's per-key retry budget under contention.
	MaxRetries int

	DBPath string
	Port   string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.City = getenvDefault("CITY", "Calgary")
	cfg.ForecastHours = getenvInt("FORECAST_HOURS", 240)

	// Upstream forecasts refresh slowly; default one run per day.
	intervalStr := getenvDefault("FETCH_INTERVAL", "24h")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_INTERVAL: %w", err)
	}
	cfg.FetchInterval = interval

	cfg.IngestWorkers = getenvInt("INGEST_WORKERS", 4)

	timeoutStr := getenvDefault("INGEST_TIMEOUT", "2m")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid INGEST_TIMEOUT: %w", err)
	}
	cfg.IngestTimeout = timeout

	cfg.MaxRetries = getenvInt("MAX_RETRIES", 3)

	cfg.DBPath = getenvDefault("DB_PATH", "forecast.db")
	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
