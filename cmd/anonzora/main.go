package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/makerdock/anonzora/internal/adapter/driven/ethereum"
	"github.com/makerdock/anonzora/internal/adapter/driven/memory"
	redisadapter "github.com/makerdock/anonzora/internal/adapter/driven/redis"
	"github.com/makerdock/anonzora/internal/adapter/driven/relay"
	sqliteadapter "github.com/makerdock/anonzora/internal/adapter/driven/sqlite"
	"github.com/makerdock/anonzora/internal/adapter/driven/zk"
	httphandler "github.com/makerdock/anonzora/internal/adapter/driving/http"
	"github.com/makerdock/anonzora/internal/application"
	"github.com/makerdock/anonzora/internal/config"
	"github.com/makerdock/anonzora/internal/domain/port/driven"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"redis", cfg.UsesRedis(),
		"vk_dir", cfg.VKDir,
		"dedup_ttl", cfg.DedupTTL,
		"execute_concurrency", cfg.ExecuteConcurrency,
		"vault_sessions", cfg.HasVaultSessions(),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM). A fatal batch failure
	// cancels it with a cause so run can exit non-zero.
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancelCause(sigCtx)
	defer cancel(nil)

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	version, dirty, err := sqliteadapter.SchemaVersion(db.Writer)
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("database schema version %d is dirty", version)
	}
	slog.Info("migrations complete", "schema_version", version)

	// 5. Wire persistence adapters.
	credentialStore := sqliteadapter.NewCredentialRepo(db)
	actionStore := sqliteadapter.NewActionRepo(db)
	executionStore := sqliteadapter.NewExecutionRepo(db)
	postLinkStore := sqliteadapter.NewPostLinkRepo(db)

	healthSvc := application.NewHealthService(2 * time.Second)
	healthSvc.Register("database", true, db)

	// 6. Dedup store: Redis when configured, otherwise per-process memory.
	var dedupStore driven.DedupStore
	if cfg.UsesRedis() {
		rs := redisadapter.NewDedupStore(cfg.RedisAddr, cfg.RedisDB)
		defer func() {
			if closeErr := rs.Close(); closeErr != nil {
				slog.Error("error closing redis", "error", closeErr)
			}
		}()
		if err := rs.Ping(ctx); err != nil {
			return fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		healthSvc.Register("dedup", true, rs)
		dedupStore = rs
		slog.Info("redis dedup store connected", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	} else {
		dedupStore = memory.NewDedupStore()
		slog.Warn("no redis configured, deduplication only covers this process")
	}

	// 7. Chain RPC clients for the storage oracle.
	chain, err := ethereum.Dial(ctx, cfg.RPCURLs)
	if err != nil {
		return err
	}
	defer chain.Close()
	healthSvc.Register("chain", false, chain)
	slog.Info("chain clients dialed", "chains", chain.Chains())

	// 8. Load verification keys.
	verifiers, err := zk.LoadRegistry(cfg.VKDir)
	if err != nil {
		return err
	}
	slog.Info("verification keys loaded", "dir", cfg.VKDir, "count", verifiers.Len())

	// 9. Social platform relay clients.
	clients := application.NewPlatformClientProvider()
	for platform, url := range cfg.RelayURLs {
		c, err := relay.NewClient(url, platform, cfg.RelayToken)
		if err != nil {
			return err
		}
		clients.Replace(c)
	}
	slog.Info("relay clients configured", "platforms", clients.Platforms())

	// 10. Application services.
	registry := application.NewActionRegistry(clients, postLinkStore)
	credentialSvc := application.NewCredentialService(verifiers, application.NewStorageOracle(chain), credentialStore, slog.Default())
	actionSvc := application.NewActionService(actionStore, registry, slog.Default())
	engine := application.NewActionEngine(actionStore, credentialStore, executionStore, dedupStore, registry, slog.Default(),
		application.EngineConfig{DedupTTL: cfg.DedupTTL, Concurrency: cfg.ExecuteConcurrency})

	// 11. Seed and validate the action catalog before serving.
	if cfg.ActionsFile != "" {
		if err := seedActions(ctx, actionSvc, cfg.ActionsFile); err != nil {
			return err
		}
	}
	if err := actionSvc.ValidateAll(ctx); err != nil {
		return err
	}

	// 12. HTTP server.
	onFatal := func(err error) {
		slog.Error("shutting down after fatal action failure", "error", err)
		cancel(err)
	}
	apiHandler := httphandler.NewHandler(credentialSvc, actionSvc, engine, healthSvc, []byte(cfg.SessionSecret), onFatal, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			cancel(err)
		}
	}()

	slog.Info("anonzora started", "listen_addr", cfg.ListenAddr)

	// 13. Wait for shutdown signal or fatal failure.
	<-ctx.Done()
	slog.Info("shutting down")

	// 14. Graceful shutdown with 10s timeout to drain in-flight requests.
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")

	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}

func seedActions(ctx context.Context, svc *application.ActionService, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open actions file: %w", err)
	}
	defer f.Close()

	n, err := svc.Seed(ctx, f)
	if err != nil {
		return fmt.Errorf("seed actions from %s: %w", path, err)
	}
	slog.Info("actions seeded", "file", path, "count", n)
	return nil
}
