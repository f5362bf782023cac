/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the ledger engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env file, then environment)
  2. Build the zap logger
  3. Open the SQLite document store
  4. Optionally number vouchers from Postgres or Redis counters
  5. Seed the demo company into an empty database
  6. Start the backup scheduler when BACKUP_SCHEDULE is set
  7. Configure HTTP router and start server with graceful shutdown

COMMAND-LINE FLAGS:
  -env     Env file to load (default: .env, missing is fine)
  -port    HTTP server port, overrides APP_ADDR
  -db      SQLite database path, overrides DB_PATH
           Use ":memory:" for in-memory database

ENVIRONMENT:
  See config/config.go. The common ones:
  APP_ENV, APP_ADDR, DB_PATH, LOG_LEVEL, JWT_SECRET,
  PG_DSN, REDIS_ADDR, BACKUP_SCHEDULE, BACKUP_DIR, SEED_DEMO

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (APP_SHUTDOWN_TIMEOUT)
  3. Stop the backup scheduler, letting a running backup finish
  4. Close database connections
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/ledger.db"

  # Hourly backups, counters in Redis
  BACKUP_SCHEDULE="@hourly" REDIS_ADDR=localhost:6379 ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/ledger-engine/admin"
	"github.com/warp/ledger-engine/api"
	"github.com/warp/ledger-engine/config"
	"github.com/warp/ledger-engine/demo"
	"github.com/warp/ledger-engine/generic"
	"github.com/warp/ledger-engine/identity"
	"github.com/warp/ledger-engine/logger"
	"github.com/warp/ledger-engine/store/postgres"
	redisseq "github.com/warp/ledger-engine/store/redis"
	"github.com/warp/ledger-engine/store/sqlite"
)

const devSecret = "development-only-secret"

func main() {
	// Flags
	envFile := flag.String("env", "", "env file to load")
	port := flag.Int("port", 0, "HTTP server port (overrides APP_ADDR)")
	dbPath := flag.String("db", "", "SQLite database path (overrides DB_PATH)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.AppAddr = fmt.Sprintf(":%d", *port)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.LogDevelopment})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Errorw("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx := context.Background()

	// Initialize store
	docs, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer docs.Close()

	store, closeSeq, err := openStore(ctx, cfg, docs, log)
	if err != nil {
		return err
	}
	defer closeSeq()

	if cfg.SeedDemo {
		empty, err := demo.IsEmpty(ctx, store)
		if err != nil {
			return fmt.Errorf("check database: %w", err)
		}
		if empty {
			if err := demo.Seed(ctx, store, true); err != nil {
				return fmt.Errorf("seed demo data: %w", err)
			}
			log.Infow("seeded demo company", "db", cfg.DBPath)
		}
	}

	secret := cfg.JWTSecret
	if secret == "" {
		log.Warnw("JWT_SECRET not set, using the development secret")
		secret = devSecret
	}
	tokenCfg := identity.DefaultTokenConfig(secret)
	tokenCfg.TTL = cfg.TokenTTL
	tokens := identity.NewTokenService(tokenCfg)

	var opts []api.Option
	var backups *admin.BackupScheduler
	if cfg.BackupSchedule != "" {
		backups, err = admin.NewBackupScheduler(admin.NewService(store, log), cfg.BackupDir, cfg.BackupSchedule, log)
		if err != nil {
			return err
		}
		backups.Start()
		opts = append(opts, api.WithBackups(backups))
	}

	// Initialize handler and router
	handler := api.NewHandler(store, tokens, log, opts...)
	router := api.NewRouter(handler, api.RouterConfig{
		CORSOrigins:    cfg.CORSOrigins,
		AdminRateLimit: cfg.AdminRateLimit,
		Production:     !cfg.IsDevelopment(),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		log.Infow("server starting", "addr", cfg.AppAddr, "env", cfg.AppEnv, "db", cfg.DBPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Infow("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if backups != nil {
		backups.Stop(shutdownCtx)
	}

	log.Infow("server stopped")
	return nil
}

// openStore pairs the SQLite documents with an external counter backend when
// one is configured. Postgres wins over Redis.
func openStore(ctx context.Context, cfg *config.Config, docs *sqlite.Store, log *logger.Logger) (generic.Store, func(), error) {
	switch {
	case cfg.PostgresDSN != "":
		pool, seq, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		log.Infow("voucher counters in postgres")
		return generic.SplitSequencer{EntityStore: docs, Sequencer: seq}, pool.Close, nil
	case cfg.RedisAddr != "":
		client, err := redisseq.Dial(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		log.Infow("voucher counters in redis", "addr", cfg.RedisAddr)
		return generic.SplitSequencer{EntityStore: docs, Sequencer: redisseq.New(client)}, func() { _ = client.Close() }, nil
	default:
		return docs, func() {}, nil
	}
}
