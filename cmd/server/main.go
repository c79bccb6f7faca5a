/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the casework retention engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize the chosen storage backend
  3. Create API handler with dependencies
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -store   Storage backend: sqlite or memory (default: sqlite)
  -db      SQLite database path (default: casework.db)
           Use ":memory:" for an in-memory SQLite database
  -retention-days  Default retention window for sweep previews (default: 365)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/casework.db"

  # Run fully in memory (no persistence across restarts)
  ./server -store=memory

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
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
	"syscall"
	"time"

	"github.com/nordcare/casework-engine/api"
	"github.com/nordcare/casework-engine/casework"
	memstore "github.com/nordcare/casework-engine/casework/store"
	"github.com/nordcare/casework-engine/history"
	"github.com/nordcare/casework-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	backend := flag.String("store", "sqlite", "storage backend: sqlite or memory")
	dbPath := flag.String("db", "casework.db", "SQLite database path")
	retentionDays := flag.Int("retention-days", 365, "default retention window for sweep previews")
	flag.Parse()

	var (
		entities     casework.EntityStore
		historyStore history.Store
		audit        casework.AuditLog
	)

	switch *backend {
	case "sqlite":
		store, err := sqlite.New(*dbPath)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer store.Close()
		entities = store
		historyStore = store
		audit = store.Audit()
	case "memory":
		entities = memstore.NewMemory()
		historyStore = memstore.NewHistoryMemory()
		audit = memstore.NewAuditMemory()
	default:
		log.Fatalf("Unknown store backend %q (want sqlite or memory)", *backend)
	}

	// Initialize handler
	handler := api.NewHandler(entities, historyStore, audit)
	handler.DefaultCutoffDays = *retentionDays

	// Create router
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
		log.Printf("Server starting on http://localhost:%d (store=%s)", *port, *backend)
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
