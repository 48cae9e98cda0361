// odd-client keeps a live connection to the vehicle telemetry bridge and
// serves the resulting state over HTTP.
// Usage: odd-client --config configs/odd-client.yaml [--url ws://robot:8081]
//
// Endpoints:
//
//	GET  /health   connection, router and recorder status
//	GET  /state    JSON snapshot of every state slot
//	POST /command  forward a JSON command (or ?name=start) to the bridge
//	GET  /metrics  Prometheus metrics
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

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/parkingrobot/odd-telemetry/internal/config"
	"github.com/parkingrobot/odd-telemetry/internal/connection"
	"github.com/parkingrobot/odd-telemetry/internal/database"
	"github.com/parkingrobot/odd-telemetry/internal/metrics"
	"github.com/parkingrobot/odd-telemetry/internal/router"
	"github.com/parkingrobot/odd-telemetry/internal/state"
	"github.com/parkingrobot/odd-telemetry/internal/version"
	"github.com/parkingrobot/odd-telemetry/internal/writer"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("odd-client", pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "path to config file (defaults apply when empty)")
	bridgeURL := flagSet.String("url", "", "bridge WebSocket URL, overrides bridge.url")
	showVersion := flagSet.Bool("version", false, "print version and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if *showVersion {
		fmt.Println("odd-client", version.String())
		return nil
	}

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		return err
	}
	if *bridgeURL != "" {
		cfg.Bridge.URL = *bridgeURL
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}

	// Set up structured logging
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	logger.Info("starting odd-client",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"bridge_url", cfg.Bridge.URL,
	)

	// Cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// State, router and connection manager
	store := state.NewStore(cfg.StoreConfig())
	defer store.Close()

	rtr := router.NewRouter(router.DefaultRouterConfig(), store, logger)
	mgr := connection.NewManager(cfg.ManagerConfig(), store.Connection, rtr, logger)

	if err := rtr.Start(ctx); err != nil {
		return fmt.Errorf("start router: %w", err)
	}

	// Optional recorder
	var (
		pool     *pgxpool.Pool
		recorder *writer.Recorder
		db       pinger
	)
	if cfg.Recorder.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Recorder.Database.Host,
			"port", cfg.Recorder.Database.Port,
			"database", cfg.Recorder.Database.Name,
		)

		pool, err = database.Connect(ctx, cfg.Recorder.Database)
		if err != nil {
			return fmt.Errorf("connect recorder database: %w", err)
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		db = pool

		recorder = writer.NewRecorder(writer.WriterConfig{
			BatchSize:     cfg.Recorder.BatchSize,
			FlushInterval: cfg.Recorder.FlushInterval,
			QueueSize:     writer.DefaultWriterConfig().QueueSize,
		}, store.View(), pool, func() uuid.UUID { return mgr.Stats().SessionID }, logger)

		if err := recorder.Start(ctx); err != nil {
			return fmt.Errorf("start recorder: %w", err)
		}
		logger.Info("database connected")
	}

	// HTTP server
	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: createHandler(
			store.View(),
			mgr,
			rtr,
			db,
			cfg.Metrics.Path,
			metrics.Handler(metrics.Registry()),
			logger,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "port", cfg.Metrics.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Stop intake first so the router and recorder can drain.
		if err := mgr.Close(shutdownCtx); err != nil {
			logger.Warn("connection manager close", "error", err)
		}
		if err := rtr.Stop(shutdownCtx); err != nil {
			logger.Warn("router stop", "error", err)
		}
		if recorder != nil {
			if err := recorder.Stop(shutdownCtx); err != nil {
				logger.Warn("recorder stop", "error", err)
			}
		}
		return server.Shutdown(shutdownCtx)
	})

	mgr.Connect("")

	logger.Info("odd-client running",
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("odd-client stopped")
	return nil
}

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
}
