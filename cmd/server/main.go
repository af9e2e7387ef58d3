/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the school engine server. Handles configuration,
  dependency injection, seed loading and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env file (optional) and parse command-line flags
  2. Initialize SQLite store
  3. Optionally load a seed dataset JSON file
  4. Create API handler with dependencies
  5. Configure HTTP router
  6. Start server with graceful shutdown

CONFIGURATION:
  Environment variables (loadable from a .env file) provide defaults;
  command-line flags override them.

  -port / PORT         HTTP server port (default: 8080)
  -db   / DATABASE     SQLite database path (default: school.db)
                       Use ":memory:" for in-memory database
  -seed / SEED_FILE    Optional JSON dataset to load at startup

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/school.db"

  # Run with in-memory database and seed data
  ./server -db=":memory:" -seed="./seed/term.json"

SEE ALSO:
  - api/server.go: Router configuration
  - factory/dataset.go: Seed dataset format
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/campusworks/school-engine/api"
	"github.com/campusworks/school-engine/factory"
	"github.com/campusworks/school-engine/store/sqlite"
)

func main() {
	// .env provides defaults; missing file is fine
	_ = godotenv.Load()

	// Flags (override environment)
	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DATABASE", "school.db"), "SQLite database path")
	seedFile := flag.String("seed", envStr("SEED_FILE", ""), "optional seed dataset JSON file")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Optional seed dataset
	if *seedFile != "" {
		data, err := os.ReadFile(*seedFile)
		if err != nil {
			log.Fatalf("Failed to read seed file: %v", err)
		}
		ds, err := factory.ParseDataset(data)
		if err != nil {
			log.Fatalf("Failed to parse seed file: %v", err)
		}
		if err := factory.Load(context.Background(), store, ds); err != nil {
			log.Fatalf("Failed to load seed data: %v", err)
		}
		log.Printf("Seed data loaded from %s", *seedFile)
	}

	// Initialize handler and router
	handler := api.NewHandler(store)
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
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
