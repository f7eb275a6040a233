package main

import (
	"context"
	"embed"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tabular-gateway/internal/api"
	"tabular-gateway/internal/cache"
	"tabular-gateway/internal/compiler"
	"tabular-gateway/internal/config"
	"tabular-gateway/internal/database"
	"tabular-gateway/internal/directory"
	"tabular-gateway/internal/downstream"
	"tabular-gateway/internal/downstream/httptable"
	"tabular-gateway/internal/downstream/pgtable"
	"tabular-gateway/internal/logger"
	"tabular-gateway/internal/metrics"
	"tabular-gateway/internal/profile"
	"tabular-gateway/internal/reporting"
	"tabular-gateway/internal/telemetry"
)

//go:embed migrations
var migrations embed.FS

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve":
		runServe()
	case "migrate":
		runMigrate()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want serve|migrate)\n", cmd)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("error")
		logger.Fatal("failed to load config", "error", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Init("error")
		logger.Fatal("invalid config", "error", err)
	}
	logger.InitWithConfig(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	return cfg
}

// runMigrate applies the fixture directory/profile schema to the
// postgres downstream. It has nothing to do with the read path: it
// exists only to stand up the resources/tables_index/exceptions/
// profiles tables the pgtable adapter reads in local and test
// environments where there is no separately-owned table service.
func runMigrate() {
	cfg := loadConfig()
	ctx := context.Background()

	db, err := database.NewPostgresDB(ctx, &cfg.Downstream)
	if err != nil {
		logger.Fatal("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	migrator := database.NewMigrator(db.Pool(), migrations, "migrations")
	if err := migrator.Up(ctx); err != nil {
		logger.Fatal("migration failed", "error", err)
	}
}

func runServe() {
	cfg := loadConfig()

	logger.Log.Info("starting tabular gateway",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		logger.Fatal("failed to initialize tracing", "error", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("tracing shutdown error", "error", err)
		}
	}()

	if cfg.Metrics.Enabled {
		metrics.InitMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
		metrics.Get().SetServiceInfo(cfg.App.Version, cfg.App.Environment)
	}

	reporter, err := reporting.Init(cfg.Sentry)
	if err != nil {
		logger.Fatal("failed to initialize error reporting", "error", err)
	}
	defer reporter.Close()

	client, closeClient, err := buildDownstreamClient(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize downstream client", "error", err)
	}
	defer closeClient()

	dialect := compiler.PostgrestDialect{}
	tableResolver := directory.NewTableResolver(client, dialect)
	tableStore := profile.NewTableStore(client, dialect)

	var resolver directory.Resolver = tableResolver
	var store profile.Store = tableStore
	var queryCache cache.Cache

	if cfg.Cache.Enabled {
		queryCache, err = cache.New(cache.FromConfig(&cfg.Cache))
		if err != nil {
			logger.Fatal("failed to initialize cache", "error", err)
		}
		defer func() {
			if err := queryCache.Close(); err != nil {
				logger.Log.Error("cache close error", "error", err)
			}
		}()
		resolver = directory.NewCachedResolver(tableResolver, queryCache, cfg.Cache.DefaultTTL)
		store = profile.NewCachedStore(tableStore, queryCache, cfg.Cache.DefaultTTL)
	}

	server := api.NewServer(resolver, store, client, dialect, cfg, reporter, tableResolver, queryCache)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      server.Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Log.Info("gateway listening", "port", cfg.HTTP.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", "error", err)
		}
	}()

	if cfg.Metrics.Enabled && cfg.Metrics.Port != cfg.HTTP.Port {
		go func() {
			if err := metrics.StartMetricsServer(cfg.Metrics.Port); err != nil {
				logger.Log.Error("metrics server failed", "error", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("server shutdown error", "error", err)
	}

	logger.Log.Info("server stopped")
}

// buildDownstreamClient selects the adapter named by cfg.Downstream.Kind.
// "postgres" talks SQL directly through pgx; anything else (the
// default, "http") speaks the PostgREST-shaped wire contract.
func buildDownstreamClient(ctx context.Context, cfg *config.Config) (downstream.Client, func(), error) {
	switch cfg.Downstream.Kind {
	case "postgres":
		db, err := database.NewPostgresDB(ctx, &cfg.Downstream)
		if err != nil {
			return nil, nil, err
		}
		if err := database.RunMigrations(ctx, db.Pool(), &cfg.Downstream, migrations, "migrations"); err != nil {
			db.Close()
			return nil, nil, err
		}
		return pgtable.New(db), func() { db.Close() }, nil
	default:
		adapter := httptable.New(cfg.Downstream.Endpoint, cfg.Downstream.Timeout)
		return adapter, func() {}, nil
	}
}
