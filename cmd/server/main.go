/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the cost ledger server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) into the environment
  2. Load configuration (defaults, config file, LEDGER_* env)
  3. Build the zap logger
  4. Open the SQLite store (runs migrations, seeds stock roles)
  5. Wire ledgers, cost engine and report aggregator
  6. Configure HTTP router
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Config file path (default: search ./config.yaml, ./config/config.yaml)
  -token   Print a bearer token for the given user id and exit

  The SQLite store doubles as user directory and authorizer: users,
  projects, members and role grants live in the same database.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with defaults (ledger.db, port 8080)
  ./server

  # In-memory database with the demo scenarios and a dev identity header
  LEDGER_DB_PATH=":memory:" LEDGER_SERVER_SCENARIOS=true LEDGER_AUTH_DEV_HEADER=X-Actor-ID ./server

  # Mint a token for local testing
  LEDGER_AUTH_JWT_SECRET=dev ./server -token u-ann

SEE ALSO:
  - config/config.go: Configuration keys
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/warp/cost-ledger/api"
	"github.com/warp/cost-ledger/config"
	"github.com/warp/cost-ledger/costing"
	"github.com/warp/cost-ledger/generic"
	"github.com/warp/cost-ledger/logging"
	"github.com/warp/cost-ledger/store/sqlite"
	"github.com/warp/cost-ledger/timesheet"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "Config file path")
	tokenFor := flag.String("token", "", "Print a bearer token for this user id and exit")
	flag.Parse()

	// .env is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *tokenFor != "" {
		if err := printToken(cfg, *tokenFor); err != nil {
			log.Fatal(err)
		}
		return
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func printToken(cfg *config.Config, userID string) error {
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not set")
	}
	token, err := api.IssueToken(cfg.Auth.JWTSecret, generic.UserID(userID), 24*time.Hour)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Println(token)
	return nil
}

func run(cfg *config.Config, logger *zap.Logger) error {
	// Initialize store
	store, err := sqlite.NewWithLogger(cfg.DB.Path, logger.Named("sqlite"))
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	// Wire domain services
	times := timesheet.NewTimeLedger(store.Timesheets(), store, store)
	times.Logger = logger.Named("timesheet")
	reports := timesheet.NewReportLedger(store.Timesheets(), store)
	reports.Logger = logger.Named("reports")
	engine := costing.NewCostEngine(store.Costs(), store, store, store)
	engine.Logger = logger.Named("costing")
	aggregator := costing.NewReportAggregator(store.Costs(), store, store)
	aggregator.Logger = logger.Named("cost-reports")

	handler := api.NewHandler(times, reports, engine, aggregator)
	handler.Logger = logger.Named("api")
	handler.Health = store
	if cfg.Server.Scenarios {
		handler.Directory = store
		logger.Warn("demo scenarios enabled")
	}
	if cfg.Auth.JWTSecret == "" && cfg.Auth.DevHeader == "" {
		logger.Warn("no authentication configured; every /api request will be rejected")
	}

	// Create router
	router := api.NewRouter(handler, api.RouterOptions{
		Auth:         api.AuthOptions{JWTSecret: cfg.Auth.JWTSecret, DevHeader: cfg.Auth.DevHeader},
		AllowOrigins: cfg.Server.CORS.AllowOrigins,
		Scenarios:    cfg.Server.Scenarios,
		Logger:       logger.Named("http"),
	})

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", server.Addr), zap.String("db", cfg.DB.Path))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
