/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the forecast history engine: durable version
  store, reconciliation engine, OpenWeatherMap supplier, periodic
  ingestion scheduler, and the HTTP API. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load environment configuration (.env supported)
  2. Initialize SQLite version store
  3. Build engine, supplier, runner
  4. Start the ingestion scheduler (if an API key is configured)
  5. Start HTTP server with graceful shutdown

CONFIGURATION (environment):
  OPENWEATHER_API_KEY  Upstream API key (scheduler disabled if empty)
  CITY                 City to track (default: Calgary)
  FORECAST_HOURS       Forecast slots per run (default: 240)
  FETCH_INTERVAL       Ingestion cadence (default: 24h)
  DB_PATH              SQLite database path (default: forecast.db,
                       ":memory:" for in-memory)
  PORT                 HTTP server port (default: 8080)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the ingestion scheduler
  2. Stop accepting new connections, drain active requests (30s)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - ingest/scheduler.go: Periodic ingestion
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/forecast-engine/api"
	"github.com/warp/forecast-engine/config"
	"github.com/warp/forecast-engine/forecast"
	"github.com/warp/forecast-engine/forecast/openweather"
	"github.com/warp/forecast-engine/ingest"
	"github.com/warp/forecast-engine/scd"
	"github.com/warp/forecast-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath, forecast.NewCodec())
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Core wiring
	engine := scd.NewEngine(store, cfg.MaxRetries)
	supplier := openweather.New(
		&http.Client{Timeout: 30 * time.Second},
		cfg.OpenWeatherAPIKey,
		cfg.City,
		cfg.ForecastHours,
	)
	runner := ingest.NewRunner(supplier, engine, cfg.IngestWorkers)

	// Periodic ingestion
	if cfg.OpenWeatherAPIKey != "" {
		scheduler := ingest.NewScheduler(runner, cfg.FetchInterval, cfg.IngestTimeout)
		if err := scheduler.Start(); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
		defer scheduler.Stop()
	} else {
		log.Println("OPENWEATHER_API_KEY not set; scheduled ingestion disabled")
	}

	// HTTP server
	handler := api.NewHandler(store, runner)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
