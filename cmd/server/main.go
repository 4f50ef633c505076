/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the brood engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load configuration from environment (.env supported)
  3. Initialize structured logging
  4. Initialize SQLite store
  5. Wire sessions, handler, router, ledger auditor
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -env     Path to an env file (default: none; plain environment)

ENVIRONMENT:
  APP_PORT             HTTP server port (default: 8080)
  DB_PATH              SQLite database path (default: ./data/brood.db)
  DB_POOL_SIZE         Connection pool bound (default: 4)
  ADMIN_USERNAME       Operator account name (default: admin)
  ADMIN_PASSWORD       Operator password; empty disables auth (dev only)
  SESSION_TTL          Session lifetime (default: 12h)
  AUDIT_CRON_SCHEDULE  Ledger audit schedule (default: hourly)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the ledger auditor
  4. Close database connection
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gallus/brood-engine/api"
	"github.com/gallus/brood-engine/auth"
	"github.com/gallus/brood-engine/config"
	"github.com/gallus/brood-engine/logger"
	"github.com/gallus/brood-engine/store/sqlite"
)

func main() {
	envFile := flag.String("env", "", "path to an env file")
	flag.Parse()

	log := logger.Must(logger.New())
	defer log.Sync()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}

	store, err := sqlite.NewWithPool(cfg.Database.Path, cfg.Database.PoolSize)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// An empty password disables the session check entirely; that is a
	// development convenience, never a production setup.
	var authenticator *auth.Authenticator
	if cfg.Auth.Password != "" {
		sessions := auth.NewMemorySessionStore(cfg.Auth.SessionTTL)
		authenticator = auth.NewAuthenticator(cfg.Auth.Username, cfg.Auth.Password, sessions)
	} else {
		log.Warn("ADMIN_PASSWORD not set, API authentication disabled")
	}

	handler := api.NewHandler(store, authenticator, logger.Named(log, "api"))
	router := api.NewRouter(handler)

	auditor := api.NewAuditor(store, cfg.Audit.CronSchedule, logger.Named(log, "auditor"))
	if err := auditor.Start(); err != nil {
		log.Fatal("failed to start ledger auditor", zap.Error(err))
	}
	defer auditor.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
